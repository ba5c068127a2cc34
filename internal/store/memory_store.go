package store

import (
	"context"
	"sync"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Conversation
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied conversations.
func NewMemoryStore(items ...Conversation) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Conversation, len(items))}
	for _, item := range items {
		s.items[item.ID] = clone(item)
	}
	return s
}

func (s *MemoryStore) List(_ context.Context) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Conversation, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, clone(item))
	}
	sortByUpdated(out)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return clone(item), nil
}

func (s *MemoryStore) Put(_ context.Context, conv Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, held := range s.items {
		if id != conv.ID && held.Filename == conv.Filename {
			return filenameTaken(conv)
		}
	}
	s.items[conv.ID] = clone(conv)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
