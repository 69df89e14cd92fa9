package store

import (
	"context"
	"sync"

	"taixiu/internal/game"
)

// MemoryStore holds the encoded snapshot in process. Useful for tests and throwaway runs.
type MemoryStore struct {
	mu    sync.Mutex
	body  []byte
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (game.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body == nil {
		return game.Snapshot{}, ErrNoSnapshot
	}
	return decode(s.body)
}

func (s *MemoryStore) Save(_ context.Context, snap game.Snapshot) error {
	body, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.body = body
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves reports how many snapshots have been written.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error { return nil }
