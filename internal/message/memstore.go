package message

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/huddlechat/message-search/pkg/errors"
)

// MemStore is an in-memory Store used by tests and local development.
type MemStore struct {
	mu       sync.RWMutex
	messages map[string]Message
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{messages: make(map[string]Message)}
}

// Put inserts or replaces a message.
func (s *MemStore) Put(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = m
}

// Delete removes a message by id.
func (s *MemStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
}

// Get returns a single message by id, or ErrMessageNotFound.
func (s *MemStore) Get(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	return &m, nil
}

// GetBatch returns the messages for the given ids, keyed by id.
func (s *MemStore) GetBatch(ctx context.Context, ids []string) (map[string]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*Message, len(ids))
	for _, id := range ids {
		if m, ok := s.messages[id]; ok {
			copied := m
			result[id] = &copied
		}
	}
	return result, nil
}

// Iterate walks every message in creation order, invoking fn for each.
func (s *MemStore) Iterate(ctx context.Context, fn func(Message) error) error {
	s.mu.RLock()
	snapshot := make([]Message, 0, len(s.messages))
	for _, m := range s.messages {
		snapshot = append(snapshot, m)
	}
	s.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if !snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
			return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt)
		}
		return snapshot[i].ID < snapshot[j].ID
	})
	for _, m := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}
