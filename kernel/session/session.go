// Package session defines the persisted session state (C8's storage
// boundary) and the Store contract every backing implementation
// (in-memory, one local JSON file per session, sqlite) satisfies identically.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/message"
)

// ErrSessionNotFound is returned by Load/Delete for an unknown id.
var ErrSessionNotFound = errors.New("session: not found")

// Metadata is the lightweight, list-friendly view of a session: enough
// to populate a picker UI without loading every message.
type Metadata struct {
	ID           string
	AgentType    agent.Type
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Snapshot is the full persisted state of one session.
type Snapshot struct {
	Metadata Metadata
	Messages []message.Message
	Usage    message.Usage
	// State holds orchestrator-private key/value state (e.g. pruning
	// bookmarks) that doesn't belong in the message history itself.
	State map[string]any
}

// Store provides whole-session persistence: save a complete snapshot,
// load it back by id, list known sessions by metadata, or delete one.
// Every backing store (in-memory, filestore, sqlitestore) implements
// this one contract identically.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, id string) (Snapshot, error)
	List(ctx context.Context) ([]Metadata, error)
	Delete(ctx context.Context, id string) error
}
