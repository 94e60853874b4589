package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

// MongoStore implements Store using MongoDB
type MongoStore struct {
	client      *mongo.Client
	chats       *mongo.Collection
	escalations *mongo.Collection
	logger      zerolog.Logger
}

// NewMongoStore connects to MongoDB and ensures the record indexes exist
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger zerolog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping error: %w", err)
	}

	db := client.Database(cfg.Database)
	store := &MongoStore{
		client:      client,
		chats:       db.Collection(cfg.ChatRecordsCollection),
		escalations: db.Collection(cfg.EscalationsCollection),
		logger:      logger,
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info().
		Str("database", cfg.Database).
		Msg("MongoDB store initialized")

	return store, nil
}

// ensureIndexes mirrors the DynamoDB key schema with unique compound indexes
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		collection *mongo.Collection
		keys       bson.D
	}{
		{s.chats, bson.D{{Key: "date_key", Value: 1}, {Key: "session_id", Value: 1}}},
		{s.escalations, bson.D{{Key: "queue_id", Value: 1}, {Key: "escalation_id", Value: 1}}},
	}

	for _, idx := range indexes {
		_, err := idx.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    idx.keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("mongodb index error on %s: %w", idx.collection.Name(), err)
		}
	}
	return nil
}

func (s *MongoStore) SaveChatRecord(record types.ChatRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	filter := bson.D{{Key: "date_key", Value: record.DateKey}, {Key: "session_id", Value: record.SessionID}}
	_, err := s.chats.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert chat record error: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveEscalationRecord(record types.EscalationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	filter := bson.D{{Key: "queue_id", Value: record.QueueID}, {Key: "escalation_id", Value: record.EscalationID}}
	_, err := s.escalations.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert escalation record error: %w", err)
	}
	return nil
}

func (s *MongoStore) GetChatRecords(dateKey string) ([]types.ChatRecord, error) {
	var records []types.ChatRecord
	err := s.find(s.chats, bson.D{{Key: "date_key", Value: dateKey}}, bson.D{{Key: "session_id", Value: 1}}, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) GetAgentChatsByDate(agentID, date string) ([]types.ChatRecord, error) {
	var records []types.ChatRecord
	filter := bson.D{{Key: "date_key", Value: date}, {Key: "agent_id", Value: agentID}}
	if err := s.find(s.chats, filter, bson.D{{Key: "assigned_at", Value: 1}}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) GetEscalationRecords(queueID string) ([]types.EscalationRecord, error) {
	var records []types.EscalationRecord
	filter := bson.D{{Key: "queue_id", Value: queueID}}
	if err := s.find(s.escalations, filter, bson.D{{Key: "sequence", Value: 1}}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) find(collection *mongo.Collection, filter, sort bson.D, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	cursor, err := collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return fmt.Errorf("mongodb find error: %w", err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("mongodb decode error: %w", err)
	}
	return nil
}

// TruncateAll deletes every document from both collections
func (s *MongoStore) TruncateAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	for _, c := range []*mongo.Collection{s.chats, s.escalations} {
		res, err := c.DeleteMany(ctx, bson.D{})
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", c.Name(), err)
		}
		s.logger.Info().Str("collection", c.Name()).Int64("deleted", res.DeletedCount).Msg("collection truncated")
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
