package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores the ledger in a MongoDB collection. Entry ids are
// used as document ids.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database, collectionName string) *MongoRepository {
	return &MongoRepository{collection: db.Collection(collectionName)}
}

func (r *MongoRepository) Insert(ctx context.Context, entry *Entry) (err error) {
	defer observeQuery("mongodb", "insert_history", time.Now(), &err)

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func (r *MongoRepository) Query(ctx context.Context, filter Filter) (_ []Entry, err error) {
	defer observeQuery("mongodb", "query_history", time.Now(), &err)

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(filter.Limit))

	cursor, err := r.collection.Find(ctx, mongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	for i := range entries {
		entries[i].SentAt = entries[i].SentAt.UTC()
	}
	return entries, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter Filter) (_ int, err error) {
	defer observeQuery("mongodb", "count_history", time.Now(), &err)

	n, err := r.collection.CountDocuments(ctx, mongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int(n), nil
}

func mongoFilter(f Filter) bson.M {
	m := bson.M{}

	if f.StartDate != nil || f.EndDate != nil {
		sentAt := bson.M{}
		if f.StartDate != nil {
			sentAt["$gte"] = *f.StartDate
		}
		if f.EndDate != nil {
			sentAt["$lte"] = *f.EndDate
		}
		m["sent_at"] = sentAt
	}
	if f.EventType != "" {
		m["event_type"] = f.EventType
	}
	if f.ChannelID != "" {
		m["channel_id"] = f.ChannelID
	}
	if f.Status != "" {
		m["status"] = string(f.Status)
	}
	return m
}
