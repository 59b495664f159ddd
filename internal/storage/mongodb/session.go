package mongodb

import (
	"context"

	"github.com/luikyv/go-authorize/internal/timeutil"
	"github.com/luikyv/go-authorize/pkg/goidc"
	"go.mongodb.org/mongo-driver/mongo"
)

type SessionManager struct {
	Collection *mongo.Collection
}

func NewSessionManager(database *mongo.Database) SessionManager {
	return SessionManager{
		Collection: database.Collection(collectionSessions),
	}
}

func (manager SessionManager) Save(ctx context.Context, session *goidc.Session) error {
	return upsert(ctx, manager.Collection, byID(session.ID), session)
}

// Session returns goidc.ErrNotFound for expired sessions even if they were
// not removed yet.
func (manager SessionManager) Session(ctx context.Context, id string) (*goidc.Session, error) {
	session, err := findOne[goidc.Session](ctx, manager.Collection, byID(id))
	if err != nil {
		return nil, err
	}

	if session.IsExpired(timeutil.TimestampNow()) {
		return nil, goidc.ErrNotFound
	}

	return session, nil
}

func (manager SessionManager) Delete(ctx context.Context, id string) error {
	if _, err := manager.Collection.DeleteOne(ctx, byID(id)); err != nil {
		return err
	}

	return nil
}
