package storage

import (
	"context"

	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// Store defines the storage interface for chat and escalation audit records
type Store interface {
	SaveChatRecord(record types.ChatRecord) error
	SaveEscalationRecord(record types.EscalationRecord) error
	GetChatRecords(dateKey string) ([]types.ChatRecord, error)
	GetAgentChatsByDate(agentID, date string) ([]types.ChatRecord, error)
	GetEscalationRecords(queueID string) ([]types.EscalationRecord, error)
	TruncateAll() error
	Close() error
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "storage").Logger()

	switch cfg.Mode {
	case ModeDynamo:
		return NewDynamoDBStore(ctx, cfg.Dynamo, logger)
	case ModeMongo:
		return NewMongoStore(ctx, cfg.Mongo, logger)
	default:
		logger.Info().Msg("persistence disabled (STORAGE_MODE=none)")
		return NewNoopStore(), nil
	}
}
