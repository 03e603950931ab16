package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureHistoryIndexes creates the indexes the history ledger queries rely on.
// The collection itself is created on first insert.
func EnsureHistoryIndexes(ctx context.Context, db *mongo.Database, collectionName string) error {
	collection := db.Collection(collectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_history_sent_at"),
		},
		{
			Keys:    bson.D{{Key: "event_type", Value: 1}, {Key: "sent_at", Value: -1}},
			Options: options.Index().SetName("idx_history_event_type_sent_at"),
		},
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "sent_at", Value: -1}},
			Options: options.Index().SetName("idx_history_channel_sent_at"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "sent_at", Value: -1}},
			Options: options.Index().SetName("idx_history_status_sent_at"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
