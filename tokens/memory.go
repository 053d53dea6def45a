package tokens

import (
	"context"
	"sync"
)

type memoryStorage struct {
	mu   sync.RWMutex
	pair Pair
	set  bool
}

var _ Storage = (*memoryStorage)(nil)

// NewMemory returns a process-local Storage, optionally seeded with a pair.
func NewMemory(seed ...Pair) Storage {
	s := &memoryStorage{}
	if len(seed) > 0 && !seed[0].Empty() {
		s.pair = seed[0]
		s.set = true
	}
	return s
}

func (s *memoryStorage) Load(_ context.Context) (Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Pair{}, ErrNotFound
	}
	return s.pair, nil
}

func (s *memoryStorage) Save(_ context.Context, pair Pair) error {
	s.mu.Lock()
	s.pair = pair
	s.set = true
	s.mu.Unlock()
	return nil
}

func (s *memoryStorage) Clear(_ context.Context) error {
	s.mu.Lock()
	s.pair = Pair{}
	s.set = false
	s.mu.Unlock()
	return nil
}
