package kv

import (
	"context"
	"sync"
)

// MemoryKV keeps lists in process memory. Values are copied in and out.
type MemoryKV struct {
	// lists holds the stored values by key.
	lists map[string][]string
	// mu protects lists.
	mu sync.RWMutex
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		lists: make(map[string][]string),
	}
}

// GetList returns a copy of the list stored under key.
func (s *MemoryKV) GetList(_ context.Context, key string) ([]string, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.lists[key]
	if !ok {
		return nil, false, nil
	}

	return cloneList(values), true, nil
}

// SetList stores a copy of values under key.
func (s *MemoryKV) SetList(_ context.Context, key string, values []string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[key] = cloneList(values)

	return nil
}
