package queue

import "github.com/kishorekota-dev/chatrouter/internal/types"

// Store holds the live queue entries. Queue serializes every call, so
// implementations do not need their own locking.
type Store interface {
	Put(entry types.QueueEntry)
	Get(queueID string) (types.QueueEntry, bool)
	BySession(sessionID string) (types.QueueEntry, bool)
	Delete(queueID string) bool
	All() []types.QueueEntry
	Len() int
	Clear() int
}

// MemoryStore is a map-backed Store with a session index
type MemoryStore struct {
	entries   map[string]types.QueueEntry // queueID -> entry
	bySession map[string]string           // sessionID -> queueID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]types.QueueEntry),
		bySession: make(map[string]string),
	}
}

// Put inserts or replaces an entry
func (s *MemoryStore) Put(entry types.QueueEntry) {
	if old, ok := s.entries[entry.QueueID]; ok && old.SessionID != entry.SessionID {
		delete(s.bySession, old.SessionID)
	}
	s.entries[entry.QueueID] = entry
	s.bySession[entry.SessionID] = entry.QueueID
}

// Get returns the entry with the given queue ID
func (s *MemoryStore) Get(queueID string) (types.QueueEntry, bool) {
	e, ok := s.entries[queueID]
	return e, ok
}

// BySession returns the live entry of a chat session
func (s *MemoryStore) BySession(sessionID string) (types.QueueEntry, bool) {
	id, ok := s.bySession[sessionID]
	if !ok {
		return types.QueueEntry{}, false
	}
	return s.Get(id)
}

// Delete removes an entry, reporting whether it existed
func (s *MemoryStore) Delete(queueID string) bool {
	e, ok := s.entries[queueID]
	if !ok {
		return false
	}
	delete(s.entries, queueID)
	delete(s.bySession, e.SessionID)
	return true
}

// All returns every entry in no particular order
func (s *MemoryStore) All() []types.QueueEntry {
	result := make([]types.QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e)
	}
	return result
}

// Len returns the number of entries
func (s *MemoryStore) Len() int {
	return len(s.entries)
}

// Clear drops every entry and returns how many were removed
func (s *MemoryStore) Clear() int {
	n := len(s.entries)
	s.entries = make(map[string]types.QueueEntry)
	s.bySession = make(map[string]string)
	return n
}
