package storage

import (
	"context"
	"sync"
)

// MemorySlot is a process-local slot for tests and --no-persist runs.
type MemorySlot struct {
	mu    sync.Mutex
	rec   Record
	saved bool
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Load(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved || s.rec.Token == "" {
		return Record{}, ErrEmpty
	}
	return s.rec, nil
}

func (s *MemorySlot) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	s.rec, s.saved = rec, true
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rec, s.saved = Record{}, false
	s.mu.Unlock()
	return nil
}
