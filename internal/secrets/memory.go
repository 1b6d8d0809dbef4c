package secrets

import (
	"context"
	"sync"
)

// MemoryStore keeps secrets in process memory. It backs local development
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
	denied  map[string]bool
}

// NewMemoryStore creates a store seeded with initial.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	s := &MemoryStore{
		secrets: make(map[string]string, len(initial)),
		denied:  make(map[string]bool),
	}
	for k, v := range initial {
		s.secrets[k] = v
	}
	return s
}

// Set stores value under name.
func (s *MemoryStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}

// Deny makes every lookup of name fail with ErrAccessDenied.
func (s *MemoryStore) Deny(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[name] = true
}

func (s *MemoryStore) GetSecret(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.denied[name] {
		return "", &LookupError{Store: "memory", Name: name, Err: ErrAccessDenied}
	}
	value, ok := s.secrets[name]
	if !ok {
		return "", &LookupError{Store: "memory", Name: name, Err: ErrSecretNotFound}
	}
	return value, nil
}
