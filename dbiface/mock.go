package dbiface

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
)

// MockDatabase is a testify/mock double for Database, used in place of a
// live MongoDB connection in handler and translation tests.
type MockDatabase struct {
	mock.Mock
}

func (m *MockDatabase) FindByID(ctx context.Context, collection, id string) (bson.M, error) {
	args := m.Called(ctx, collection, id)
	var doc bson.M
	if args.Get(0) != nil {
		doc = args.Get(0).(bson.M)
	}
	return doc, args.Error(1)
}

func (m *MockDatabase) ReplaceUpsert(ctx context.Context, collection string, filter, replacement bson.M) error {
	args := m.Called(ctx, collection, filter, replacement)
	return args.Error(0)
}

func (m *MockDatabase) DeleteOne(ctx context.Context, collection string, filter bson.M) (int64, error) {
	args := m.Called(ctx, collection, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDatabase) Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error) {
	args := m.Called(ctx, collection, pipeline)
	var rows []bson.M
	if args.Get(0) != nil {
		rows = args.Get(0).([]bson.M)
	}
	return rows, args.Error(1)
}

func (m *MockDatabase) EstimatedCount(ctx context.Context, collection string) (int64, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDatabase) ServerVersion(ctx context.Context) (bson.M, error) {
	args := m.Called(ctx)
	var doc bson.M
	if args.Get(0) != nil {
		doc = args.Get(0).(bson.M)
	}
	return doc, args.Error(1)
}

var _ Database = (*MockDatabase)(nil)
