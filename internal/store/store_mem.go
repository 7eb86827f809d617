package store

import (
	"context"
	"sync"
)

type MemStore struct {
	mu   sync.Mutex
	Docs map[string][]byte
	// when set, Save fails with this error; used to exercise best-effort persistence
	SaveErr error
}

func NewMemStore() *MemStore {
	return &MemStore{Docs: make(map[string][]byte)}
}

func (s *MemStore) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemStore) Save(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Docs[name] = append([]byte(nil), data...)
	return nil
}
