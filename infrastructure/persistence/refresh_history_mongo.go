package persistence

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/model"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
)

const defaultHistoryCollection = "refresh_runs"

// NewMongoDb connects to MongoDB and verifies the connection.
func NewMongoDb(ctx context.Context, host, port, user, password string) (*mongo.Client, error) {
	uri := fmt.Sprintf("mongodb://%s:%s", host, port)
	if user != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%s", user, password, host, port)
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

type historyCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

// MongoRefreshHistory keeps every refresh run as a document.
type MongoRefreshHistory struct {
	collection historyCollection
}

func NewMongoRefreshHistory(client *mongo.Client, database, collection string) *MongoRefreshHistory {
	if client == nil {
		return &MongoRefreshHistory{}
	}
	if collection == "" {
		collection = defaultHistoryCollection
	}
	return &MongoRefreshHistory{collection: client.Database(database).Collection(collection)}
}

func (h *MongoRefreshHistory) Record(ctx context.Context, run model.RefreshRun) error {
	if h.collection == nil {
		return fmt.Errorf("mongo client is nil")
	}
	if _, err := h.collection.InsertOne(ctx, run); err != nil {
		return fmt.Errorf("failed to insert refresh run: %w", err)
	}
	return nil
}

func (h *MongoRefreshHistory) Recent(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	if h.collection == nil {
		return nil, fmt.Errorf("mongo client is nil")
	}
	if limit <= 0 {
		limit = defaultHistoryCapacity
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(int64(limit))
	cursor, err := h.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh runs: %w", err)
	}
	defer func(cursor *mongo.Cursor, ctx context.Context) {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}(cursor, ctx)

	runs := make([]model.RefreshRun, 0, limit)
	for cursor.Next(ctx) {
		var run model.RefreshRun
		if err := cursor.Decode(&run); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while decoding refresh run")
			continue
		}
		runs = append(runs, run)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refresh runs: %w", err)
	}
	return runs, nil
}
