package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ukcensusapi/internal/metadata"
)

// LocalStore implements metadata.Store using one JSON file per table,
// named {table}_metadata.json inside dir.
type LocalStore struct {
	mu  sync.RWMutex
	dir string
}

// NewLocalStore creates a new file-based store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Path returns the file that holds the record for table.
func (s *LocalStore) Path(table string) string {
	return filepath.Join(s.dir, table+metadataSuffix)
}

// Get reads the record for table from its JSON file.
func (s *LocalStore) Get(ctx context.Context, table string) (*metadata.Record, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Not cached yet, not an error
		}
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var rec metadata.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	if rec.TableID == "" {
		return nil, nil // null or {} left by an earlier failed lookup
	}

	return &rec, nil
}

// Set writes the record for table as indented JSON.
func (s *LocalStore) Set(ctx context.Context, table string, rec *metadata.Record) error {
	if err := validTable(table); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// Write atomically using temp file + rename
	path := s.Path(table)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename metadata file: %w", err)
	}

	return nil
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}
