// Package inmemory is a thread-safe, process-local session.Store backed
// by a map. Useful for tests and for a demo CLI run with no persistence
// requirement.
package inmemory

import (
	"context"
	"sync"

	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/session"
)

// Store is a thread-safe in-memory session.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]session.Snapshot
}

func New() *Store {
	return &Store{data: make(map[string]session.Snapshot)}
}

func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	if snap.Metadata.ID == "" {
		return session.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := snap
	cp.Messages = append([]message.Message(nil), snap.Messages...)
	s.data[snap.Metadata.ID] = cp
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[id]
	if !ok {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	return snap, nil
}

func (s *Store) List(ctx context.Context) ([]session.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]session.Metadata, 0, len(s.data))
	for _, snap := range s.data {
		out = append(out, snap.Metadata)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return session.ErrSessionNotFound
	}
	delete(s.data, id)
	return nil
}
