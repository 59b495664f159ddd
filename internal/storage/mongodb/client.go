package mongodb

import (
	"context"

	"github.com/luikyv/go-authorize/pkg/goidc"
	"go.mongodb.org/mongo-driver/mongo"
)

type ClientManager struct {
	Collection *mongo.Collection
}

func NewClientManager(database *mongo.Database) ClientManager {
	return ClientManager{
		Collection: database.Collection(collectionClients),
	}
}

func (manager ClientManager) Save(ctx context.Context, client *goidc.Client) error {
	return upsert(ctx, manager.Collection, byID(client.ID), client)
}

func (manager ClientManager) Client(ctx context.Context, id string) (*goidc.Client, error) {
	return findOne[goidc.Client](ctx, manager.Collection, byID(id))
}
