package incident

import (
	"errors"
	"sync"
)

// ErrNoBatch is returned when no batch has been loaded into the store yet.
var ErrNoBatch = errors.New("no batch loaded")

// Store holds the active batch of the session. Replace swaps the whole batch,
// so readers see either the previous or the new one.
type Store struct {
	mu    sync.RWMutex
	batch *Batch
}

func NewStore() *Store {
	return &Store{}
}

// Replace installs b as the active batch and returns the one it displaced.
func (s *Store) Replace(b *Batch) *Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.batch
	s.batch = b
	return prev
}

// Current returns the active batch, or ErrNoBatch.
func (s *Store) Current() (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return nil, ErrNoBatch
	}
	return s.batch, nil
}
