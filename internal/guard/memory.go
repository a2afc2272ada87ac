package guard

import "sync"

// MemoryStore keeps flags in memory; used by tests and by sessions that opt
// out of persistence.
type MemoryStore struct {
	mu    sync.Mutex
	flags map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]bool)}
}

func (s *MemoryStore) Get(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key], nil
}

func (s *MemoryStore) Set(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = value
	return nil
}
