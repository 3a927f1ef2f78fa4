// Package dbiface defines the narrow storage interface the rest of the
// gateway depends on, and a MongoDB-backed implementation of it. Handlers,
// the view translator, and the update-function runtime never see the
// mongo driver directly; they see this interface, which tests satisfy with
// a mock instead of a live database.
package dbiface

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by FindByID when no document matches the id.
// It is mongo.ErrNoDocuments itself, so callers can use errors.Is (or ==)
// against either name.
var ErrNotFound = mongo.ErrNoDocuments

// Database is the storage surface the gateway depends on: find-by-id,
// replace-with-upsert, delete, aggregate, estimated-count, and a
// server-version probe used for the root banner's mongo_details.
type Database interface {
	FindByID(ctx context.Context, collection, id string) (bson.M, error)
	ReplaceUpsert(ctx context.Context, collection string, filter, replacement bson.M) error
	DeleteOne(ctx context.Context, collection string, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error)
	EstimatedCount(ctx context.Context, collection string) (int64, error)
	ServerVersion(ctx context.Context) (bson.M, error)
}

// Mongo adapts a *mongo.Database to the Database interface.
type Mongo struct {
	db *mongo.Database
}

// NewMongo wraps an already-connected mongo database handle.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) FindByID(ctx context.Context, collection, id string) (bson.M, error) {
	var doc bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, err
	}
	return doc, nil
}

func (m *Mongo) ReplaceUpsert(ctx context.Context, collection string, filter, replacement bson.M) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.db.Collection(collection).ReplaceOne(ctx, filter, replacement, opts)
	return err
}

func (m *Mongo) DeleteOne(ctx context.Context, collection string, filter bson.M) (int64, error) {
	res, err := m.db.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *Mongo) Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error) {
	stages := make(bson.A, 0, len(pipeline))
	for _, stage := range pipeline {
		stages = append(stages, stage)
	}
	cursor, err := m.db.Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Mongo) EstimatedCount(ctx context.Context, collection string) (int64, error) {
	return m.db.Collection(collection).EstimatedDocumentCount(ctx)
}

func (m *Mongo) ServerVersion(ctx context.Context) (bson.M, error) {
	var result bson.M
	err := m.db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&result)
	return result, err
}

var _ Database = (*Mongo)(nil)
