package session

import (
	"context"
	"sync"
)

// InMemoryStore is a volatile Store keeping conversations in a process-local
// map. Every value crossing the boundary is cloned, so callers can never
// mutate stored state except through Save.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*Conversation)}
}

// Load returns a clone of the stored conversation, or a fresh one.
func (s *InMemoryStore) Load(_ context.Context, id, userID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[id]; ok {
		return conv.Clone(), nil
	}
	return NewConversation(id, userID), nil
}

// Save stores a clone of the snapshot with turn-scoped state stripped.
func (s *InMemoryStore) Save(_ context.Context, conv *Conversation) error {
	cp := conv.Clone()
	cp.State.StripTransient()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[cp.ID] = cp
	return nil
}

// Len reports how many conversations are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
