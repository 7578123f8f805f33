/*
Package localstore is the device-local key-value store.

PURPOSE:
  Holds state that never reaches the remote storage service: dismissed
  birthday notifications, the daily sales goal, and UI preferences. Each
  owner gets one JSON file of key -> raw JSON value.

WRITE MODEL:
  Every mutation reads the whole file, changes one key, and rewrites the
  whole file (temp file + rename). There is no merge and no versioning:
  two processes writing the same file is last-writer-wins. Within one
  process, Update makes a read-modify-write atomic.

SEE ALSO:
  - ack.go: Birthday acknowledgements
  - prefs.go: Theme and daily sales goal
*/
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a JSON file of key -> value. A Store with an empty Path keeps
// everything in memory.
type Store struct {
	Path string

	mu  sync.Mutex
	mem map[string]json.RawMessage
}

// Open returns a Store backed by path, creating its directory.
func Open(path string) (*Store, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
	}
	return &Store{Path: path}, nil
}

// NewMemory returns a Store that is never written to disk.
func NewMemory() *Store {
	return &Store{}
}

// Get decodes key into v. It reports false when the key is absent.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	raw, ok := entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Set encodes v under key and rewrites the whole file.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[key] = raw
	return s.save(entries)
}

// Update runs fn on the current value of key and stores what it returns,
// all under one lock. raw is nil when the key is absent.
func (s *Store) Update(key string, fn func(raw json.RawMessage) (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	v, err := fn(entries[key])
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	entries[key] = raw
	return s.save(entries)
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.save(entries)
}

func (s *Store) load() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)
	if s.Path == "" {
		for k, v := range s.mem {
			entries[k] = v
		}
		return entries, nil
	}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.Path, err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]json.RawMessage) error {
	if s.Path == "" {
		s.mem = entries
		return nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}
