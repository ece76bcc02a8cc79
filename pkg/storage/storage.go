// Package storage implements the Storage contract (spec §6): a small
// per-app key/value store used by extensions to persist user preferences
// and app state across restarts. Grounded on hivekit's bucket store
// handler, simplified to the single namespace-keyed get/set this gateway
// exposes rather than the original's cursor/bulk-operation surface.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
)

// Store is a namespace-partitioned string key/value store, one namespace
// per app. It is safe for concurrent use.
type Store struct {
	mux  sync.RWMutex
	path string // backing file, empty for a pure in-memory store
	data map[string]map[string]string
}

// New creates an in-memory Store.
func New() *Store {
	return &Store{data: make(map[string]map[string]string)}
}

// Open creates a Store backed by a single JSON file at path, loading any
// existing contents. A missing file is treated as an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]map[string]string)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, err
	}
	return s, nil
}

// GetString returns the value stored at key within namespace, or
// contracts.ErrNotFound if nothing has been set.
func (s *Store) GetString(_ context.Context, namespace, key string) (string, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ns, ok := s.data[namespace]
	if !ok {
		return "", contracts.ErrNotFound
	}
	v, ok := ns[key]
	if !ok {
		return "", contracts.ErrNotFound
	}
	return v, nil
}

// SetString stores value at key within namespace, creating the namespace
// if it doesn't exist yet, and persists the change if the Store was
// opened against a file.
func (s *Store) SetString(_ context.Context, namespace, key, value string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string]string)
		s.data[namespace] = ns
	}
	ns[key] = value
	return s.persistLocked()
}

// GetStringFromNamespace is an alias kept for call sites that already hold
// a namespace handle, e.g. a per-app scoped view obtained once at session
// start rather than threading namespace through every call.
func (s *Store) GetStringFromNamespace(ctx context.Context, namespace, key string) (string, error) {
	return s.GetString(ctx, namespace, key)
}

// persistLocked writes the whole store to s.path. Caller must hold mux.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}
