// Package mongodb implements the storage interfaces on MongoDB.
// Every manager keeps one document per entity keyed by its id.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/luikyv/go-authorize/pkg/goidc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionClients              = "clients"
	collectionSessions             = "sessions"
	collectionGrants               = "grants"
	collectionClientAuthorizations = "client_authorizations"
)

var (
	_ goidc.ClientManager              = ClientManager{}
	_ goidc.SessionManager             = SessionManager{}
	_ goidc.GrantManager               = GrantManager{}
	_ goidc.ClientAuthorizationManager = ClientAuthorizationManager{}
)

// Open connects to the MongoDB server at uri and returns the database named
// name.
func Open(ctx context.Context, uri, name string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("could not ping mongodb: %w", err)
	}

	return client.Database(name), nil
}

func upsert(ctx context.Context, collection *mongo.Collection, filter any, document any) error {
	if _, err := collection.ReplaceOne(ctx, filter, document, options.Replace().SetUpsert(true)); err != nil {
		return err
	}

	return nil
}

func findOne[T any](ctx context.Context, collection *mongo.Collection, filter any) (*T, error) {
	result := collection.FindOne(ctx, filter)
	if errors.Is(result.Err(), mongo.ErrNoDocuments) {
		return nil, goidc.ErrNotFound
	}
	if result.Err() != nil {
		return nil, result.Err()
	}

	var document T
	if err := result.Decode(&document); err != nil {
		return nil, err
	}

	return &document, nil
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}
