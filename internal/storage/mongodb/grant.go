package mongodb

import (
	"context"

	"github.com/luikyv/go-authorize/pkg/goidc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type GrantManager struct {
	Collection *mongo.Collection
}

func NewGrantManager(database *mongo.Database) GrantManager {
	return GrantManager{
		Collection: database.Collection(collectionGrants),
	}
}

func (manager GrantManager) Save(ctx context.Context, grant *goidc.Grant) error {
	return upsert(ctx, manager.Collection, byID(grant.ID), grant)
}

func (manager GrantManager) Grant(ctx context.Context, id string) (*goidc.Grant, error) {
	return findOne[goidc.Grant](ctx, manager.Collection, byID(id))
}

func (manager GrantManager) GrantByAuthReqID(ctx context.Context, authReqID string) (*goidc.Grant, error) {
	return findOne[goidc.Grant](ctx, manager.Collection, bson.D{{Key: "auth_req_id", Value: authReqID}})
}
