// Package filestore persists session snapshots as one JSON file per
// session under a root directory.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kestrelrun/agentkernel/kernel/session"
)

// Store persists session snapshots to local disk, one file per session.
type Store struct {
	root string
	mu   sync.Mutex
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	if err := validatePathComponent("session_id", snap.Metadata.ID); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(snap.Metadata.ID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(snap.Metadata.ID))
}

func (s *Store) Load(ctx context.Context, id string) (session.Snapshot, error) {
	if err := validatePathComponent("session_id", id); err != nil {
		return session.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Snapshot{}, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("filestore: decode %s: %w", id, err)
	}
	return snap, nil
}

func (s *Store) List(ctx context.Context) ([]session.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	out := []session.Metadata{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		var snap session.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			continue
		}
		out = append(out, snap.Metadata)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := validatePathComponent("session_id", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return session.ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

func validatePathComponent(name, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	if filepath.Clean(value) != value {
		return fmt.Errorf("filestore: invalid %s", name)
	}
	return nil
}
