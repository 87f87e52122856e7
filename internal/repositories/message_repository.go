package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/safetrade/marketplace/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository defines the interface for message data operations
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns up to limit messages older than before (all when nil),
	// oldest first.
	ListMessages(ctx context.Context, conversationID uint, before *primitive.ObjectID, limit int64) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uint, at time.Time) (int64, error)
	CountUnread(ctx context.Context, conversationIDs []uint, readerID uint) (map[uint]int64, error)
	EnsureIndexes(ctx context.Context) error
}

// MongoMessageRepository implements MessageRepository for MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection("messages")}
}

func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	return err
}

func (r *MongoMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = primitive.NewObjectID()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

func (r *MongoMessageRepository) ListMessages(ctx context.Context, conversationID uint, before *primitive.ObjectID, limit int64) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if before != nil {
		filter["_id"] = bson.M{"$lt": *before}
	}
	// Newest first to take the latest page, then flip for display.
	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead stamps read_at on every unread message in the conversation not sent by readerID.
func (r *MongoMessageRepository) MarkRead(ctx context.Context, conversationID, readerID uint, at time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"sender_id":       bson.M{"$ne": readerID},
			"read_at":         bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"read_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountUnread returns unread counts per conversation for readerID. Conversations with
// no unread messages are absent from the map.
func (r *MongoMessageRepository) CountUnread(ctx context.Context, conversationIDs []uint, readerID uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"conversation_id": bson.M{"$in": conversationIDs},
			"sender_id":       bson.M{"$ne": readerID},
			"read_at":         bson.M{"$exists": false},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("counting unread messages: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ConversationID uint  `bson:"_id"`
		Count          int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Count
	}
	return counts, nil
}
