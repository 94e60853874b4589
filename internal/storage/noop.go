package storage

import "github.com/kishorekota-dev/chatrouter/internal/types"

// NoopStore is a no-op implementation when persistence is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveChatRecord(_ types.ChatRecord) error                     { return nil }
func (s *NoopStore) SaveEscalationRecord(_ types.EscalationRecord) error         { return nil }
func (s *NoopStore) GetChatRecords(_ string) ([]types.ChatRecord, error)         { return nil, nil }
func (s *NoopStore) GetAgentChatsByDate(_, _ string) ([]types.ChatRecord, error) { return nil, nil }
func (s *NoopStore) GetEscalationRecords(_ string) ([]types.EscalationRecord, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll() error { return nil }
func (s *NoopStore) Close() error       { return nil }
