package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sigma-backend/internal/models"
)

// ErrThreadNotFound is returned when a thread id matches no document.
var ErrThreadNotFound = errors.New("thread not found")

// ThreadRepo persists conversation threads as single MongoDB documents with
// the message log embedded, so deleting a thread removes its messages
// atomically.
type ThreadRepo struct {
	coll *mongo.Collection
}

func NewThreadRepo(db *mongo.Database) *ThreadRepo {
	return &ThreadRepo{coll: db.Collection("threads")}
}

func (r *ThreadRepo) GetByID(ctx context.Context, threadID string) (*models.Thread, error) {
	var thread models.Thread
	err := r.coll.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&thread)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", threadID, err)
	}
	return &thread, nil
}

// List returns thread summaries ordered by most recently updated first.
func (r *ThreadRepo) List(ctx context.Context) ([]models.ThreadSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetProjection(bson.M{"messages": 0})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := []models.ThreadSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("failed to decode threads: %w", err)
	}
	return summaries, nil
}

// GetMessages returns a thread's message log in arrival order.
func (r *ThreadRepo) GetMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	thread, err := r.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return thread.Messages, nil
}

// AppendMessages pushes one or more messages onto a thread's log and
// refreshes updated_at in a single document write. Unseen thread ids are
// created lazily via upsert; title and created_at only apply on insert.
// Writing the whole turn in one call keeps the user/assistant pair atomic.
func (r *ThreadRepo) AppendMessages(ctx context.Context, threadID, title string, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": msgs}},
		"$set":  bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"title":      title,
			"created_at": now,
		},
	}

	_, err := r.coll.UpdateOne(ctx, bson.M{"thread_id": threadID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to append messages to thread %s: %w", threadID, err)
	}
	return nil
}

// Delete removes a thread and its embedded messages. Returns false when no
// thread matched.
func (r *ThreadRepo) Delete(ctx context.Context, threadID string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"thread_id": threadID})
	if err != nil {
		return false, fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return result.DeletedCount > 0, nil
}
