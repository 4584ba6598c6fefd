package verification

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when no attempt exists for a state token.
	ErrNotFound = errors.New("verification attempt not found")
	// ErrTerminal is returned when a write targets an attempt that already
	// reached a terminal status.
	ErrTerminal = errors.New("verification attempt is terminal")
)

// Store holds the current state of every known attempt.
//
// Put inserts or overwrites, except that a terminal record is never
// overwritten: Put returns ErrTerminal and keeps the stored record.
type Store interface {
	Put(ctx context.Context, attempt Attempt) error
	Get(ctx context.Context, state string) (Attempt, error)
	Delete(ctx context.Context, state string) error
	// Range calls fn for each attempt until fn returns false. fn must not
	// call back into the store.
	Range(ctx context.Context, fn func(Attempt) bool) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: make(map[string]Attempt)}
}

func (s *MemoryStore) Put(_ context.Context, attempt Attempt) error {
	if attempt.State == "" {
		return errors.New("attempt state is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.attempts[attempt.State]; ok && existing.Status.Terminal() {
		return ErrTerminal
	}
	s.attempts[attempt.State] = attempt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, state string) (Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[state]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return attempt, nil
}

func (s *MemoryStore) Delete(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, state)
	return nil
}

func (s *MemoryStore) Range(_ context.Context, fn func(Attempt) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, attempt := range s.attempts {
		if !fn(attempt) {
			return nil
		}
	}
	return nil
}
