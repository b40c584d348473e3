package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Sentinel errors for store operations.
var (
	ErrInvalidKey   = errors.New("store: key is invalid")
	ErrInvalidEntry = errors.New("store: entry is invalid")
	ErrPersistence  = errors.New("store: persistence failure")
	ErrCorruptEntry = errors.New("store: corrupt persisted entry")
)

// Store is the in-memory mapping from canonical cache key to Entry.
//
// Contract:
// - Concurrency: safe for concurrent use; per-key writes are atomic and
//   a Get following a Put for the same key observes the full entry.
// - Get never computes and never blocks on in-flight computations.
// - Put is an idempotent overwrite; the last writer for a key wins.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// flushMu serializes flushes so concurrent callers cannot interleave
	// temp-file writes and break the atomic-rename invariant.
	flushMu sync.Mutex
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Get retrieves the entry for key. Returns (Entry{}, false) on miss.
func (s *Store) Get(_ context.Context, key string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

// Put stores an entry under key, overwriting any previous entry.
func (s *Store) Put(_ context.Context, key string, e Entry) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := e.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	e.Key = key

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CountOk returns the number of entries with StatusOk.
func (s *Store) CountOk() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Status == StatusOk {
			n++
		}
	}
	return n
}

// CountPrefix returns the total and StatusOk entry counts restricted to
// keys with the given prefix. Handlers sharing a store use their key
// prefix to observe only their own entries.
func (s *Store) CountPrefix(prefix string) (total, ok int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		total++
		if e.Status == StatusOk {
			ok++
		}
	}
	return total, ok
}

// Keys returns a snapshot of all keys in unspecified order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// snapshot copies the entry map for persistence without holding the
// lock during I/O.
func (s *Store) snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = e
	}
	return out
}
