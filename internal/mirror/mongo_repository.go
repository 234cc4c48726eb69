package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) RecordRepository {
	return &mongoRepository{
		collection: db.Collection("abandoned_carts"),
	}
}

func (m *mongoRepository) Get(ctx context.Context, key string) (*domain.AbandonedCartRecord, error) {
	var record domain.AbandonedCartRecord

	filter := bson.M{"_id": key}
	err := m.collection.FindOne(ctx, filter).Decode(&record)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return &record, nil
}

func (m *mongoRepository) Upsert(ctx context.Context, up CartUpsert) error {
	now := time.Now().UTC()

	// Any cart activity resets the abandonment clock.
	filter := bson.M{"_id": up.Key, "recovered": false}
	update := bson.M{
		"$set": bson.M{
			"session_id":   up.SessionID,
			"user_id":      up.UserID,
			"email":        up.Email,
			"items":        up.Items,
			"total":        up.Total,
			"updated_at":   now,
			"abandoned_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at":     now,
			"reminders_sent": 0,
			"recovered":      false,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		// The filter excludes a recovered record, so the upsert tries to
		// insert a second document under the same key. Recovered is terminal:
		// leave the record alone.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	return nil
}

func (m *mongoRepository) Delete(ctx context.Context, key string) error {
	filter := bson.M{"_id": key, "recovered": false}

	_, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	// A zero delete count means the record is already gone or recovered.
	// Both count as success: the delete is idempotent.
	return nil
}

func (m *mongoRepository) MarkRecovered(ctx context.Context, key string) error {
	now := time.Now().UTC()

	filter := bson.M{"_id": key, "recovered": false}
	update := bson.M{
		"$set": bson.M{
			"recovered":    true,
			"recovered_at": now,
			"updated_at":   now,
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark record recovered: %w", err)
	}

	// Zero matches means missing or already recovered: a no-op, not an error,
	// and the original recovered_at timestamp stays put.
	return nil
}

func (m *mongoRepository) RecordReminder(ctx context.Context, key string) error {
	now := time.Now().UTC()

	filter := bson.M{"_id": key}
	update := bson.M{
		"$inc": bson.M{"reminders_sent": 1},
		"$set": bson.M{"last_reminder_at": now},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m *mongoRepository) ListOpen(ctx context.Context, since time.Time) ([]domain.AbandonedCartRecord, error) {
	filter := bson.M{
		"recovered":    false,
		"abandoned_at": bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "abandoned_at", Value: -1}})

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list open records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.AbandonedCartRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode open records: %w", err)
	}

	return records, nil
}

func (m *mongoRepository) ListUnreminded(ctx context.Context) ([]domain.AbandonedCartRecord, error) {
	filter := bson.M{
		"recovered":      false,
		"reminders_sent": 0,
		"email":          bson.M{"$ne": ""},
	}

	cursor, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreminded records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.AbandonedCartRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode unreminded records: %w", err)
	}

	return records, nil
}

func (m *mongoRepository) CountRecovered(ctx context.Context, since time.Time) (int64, error) {
	filter := bson.M{
		"recovered":    true,
		"recovered_at": bson.M{"$gte": since},
	}

	count, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count recovered records: %w", err)
	}

	return count, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "abandoned_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
