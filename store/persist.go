package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotVersion is the persisted document schema version.
const snapshotVersion = 1

// document is the on-disk snapshot layout: a single human-inspectable
// JSON object mapping canonical keys to entries.
type document struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// LoadStats reports the outcome of a Load.
type LoadStats struct {
	// Loaded is the number of entries successfully rehydrated.
	Loaded int
	// Discarded is the number of persisted entries dropped because they
	// were structurally corrupt.
	Discarded int
}

// Load reads a persisted snapshot into the store, replacing nothing on
// failure: an unreadable or corrupt file leaves the store usable (cold)
// and returns an ErrPersistence-wrapped error for the caller to log.
// Individually corrupt entries are discarded and counted, not fatal.
//
// A missing file is a normal cold start and returns no error.
func (s *Store) Load(_ context.Context, path string) (LoadStats, error) {
	var stats LoadStats
	if path == "" {
		return stats, fmt.Errorf("%w: empty path", ErrPersistence)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("%w: read %s: %v", ErrPersistence, path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return stats, fmt.Errorf("%w: parse %s: %v", ErrPersistence, path, err)
	}
	if doc.Version != snapshotVersion {
		return stats, fmt.Errorf("%w: %s has snapshot version %d, want %d", ErrPersistence, path, doc.Version, snapshotVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range doc.Entries {
		if key == "" || e.validate() != nil {
			stats.Discarded++
			continue
		}
		e.Key = key
		s.entries[key] = e
		stats.Loaded++
	}
	return stats, nil
}

// Flush atomically persists the current snapshot to path: the document
// is written to a temp file in the same directory, then renamed into
// place. A crash mid-write never corrupts the existing durable file.
// The in-memory store remains valid whether or not the flush succeeds.
//
// Concurrent flushes are serialized.
func (s *Store) Flush(_ context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrPersistence)
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	doc := document{
		Version: snapshotVersion,
		Entries: s.snapshot(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", ErrPersistence, dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %v", ErrPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s to %s: %v", ErrPersistence, tmpName, path, err)
	}
	return nil
}
