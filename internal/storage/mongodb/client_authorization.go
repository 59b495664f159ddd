package mongodb

import (
	"context"

	"github.com/luikyv/go-authorize/pkg/goidc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ClientAuthorizationManager keeps a single document per user and client.
type ClientAuthorizationManager struct {
	Collection *mongo.Collection
}

func NewClientAuthorizationManager(database *mongo.Database) ClientAuthorizationManager {
	return ClientAuthorizationManager{
		Collection: database.Collection(collectionClientAuthorizations),
	}
}

func (manager ClientAuthorizationManager) Save(ctx context.Context, auth *goidc.ClientAuthorization) error {
	return upsert(ctx, manager.Collection, authorizationFilter(auth.Subject, auth.ClientID), auth)
}

func (manager ClientAuthorizationManager) ClientAuthorization(
	ctx context.Context,
	sub string,
	clientID string,
) (
	*goidc.ClientAuthorization,
	error,
) {
	return findOne[goidc.ClientAuthorization](ctx, manager.Collection, authorizationFilter(sub, clientID))
}

func authorizationFilter(sub, clientID string) bson.D {
	return bson.D{
		{Key: "sub", Value: sub},
		{Key: "client_id", Value: clientID},
	}
}
