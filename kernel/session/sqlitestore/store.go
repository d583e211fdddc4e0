// Package sqlitestore persists session snapshots in a local sqlite
// database, one row per session with the message history and usage
// serialized as JSON columns.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/session"
)

const (
	driverName = "sqlite"
	dsnOptions = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

// Store is a session.Store backed by sqlite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlitestore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlitestore: create dir: %w", err)
	}
	db, err := sql.Open(driverName, path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_type TEXT NOT NULL,
	model TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	message_count INTEGER NOT NULL,
	messages_json TEXT NOT NULL,
	usage_json TEXT NOT NULL,
	state_json TEXT NOT NULL
);`
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	if snap.Metadata.ID == "" {
		return fmt.Errorf("sqlitestore: empty session id")
	}
	messagesJSON, err := json.Marshal(snap.Messages)
	if err != nil {
		return err
	}
	usageJSON, err := json.Marshal(snap.Usage)
	if err != nil {
		return err
	}
	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	createdAt := snap.Metadata.CreatedAt.UnixMilli()
	if snap.Metadata.CreatedAt.IsZero() {
		createdAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	const q = `
INSERT INTO sessions (id, agent_type, model, created_at, updated_at, message_count, messages_json, usage_json, state_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	agent_type = excluded.agent_type,
	model = excluded.model,
	updated_at = excluded.updated_at,
	message_count = excluded.message_count,
	messages_json = excluded.messages_json,
	usage_json = excluded.usage_json,
	state_json = excluded.state_json;`
	_, err = s.db.ExecContext(ctx, q,
		snap.Metadata.ID, string(snap.Metadata.AgentType), snap.Metadata.Model,
		createdAt, now, len(snap.Messages), string(messagesJSON), string(usageJSON), string(stateJSON))
	return err
}

func (s *Store) Load(ctx context.Context, id string) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const q = `SELECT agent_type, model, created_at, updated_at, message_count, messages_json, usage_json, state_json FROM sessions WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id)

	var agentType, model, messagesJSON, usageJSON, stateJSON string
	var createdAt, updatedAt int64
	var messageCount int
	if err := row.Scan(&agentType, &model, &createdAt, &updatedAt, &messageCount, &messagesJSON, &usageJSON, &stateJSON); err != nil {
		if err == sql.ErrNoRows {
			return session.Snapshot{}, session.ErrSessionNotFound
		}
		return session.Snapshot{}, err
	}

	snap := session.Snapshot{Metadata: session.Metadata{
		ID:           id,
		AgentType:    agent.Type(agentType),
		Model:        model,
		CreatedAt:    time.UnixMilli(createdAt),
		UpdatedAt:    time.UnixMilli(updatedAt),
		MessageCount: messageCount,
	}}
	if err := json.Unmarshal([]byte(messagesJSON), &snap.Messages); err != nil {
		return session.Snapshot{}, fmt.Errorf("sqlitestore: decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(usageJSON), &snap.Usage); err != nil {
		return session.Snapshot{}, fmt.Errorf("sqlitestore: decode usage: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &snap.State); err != nil {
		return session.Snapshot{}, fmt.Errorf("sqlitestore: decode state: %w", err)
	}
	return snap, nil
}

func (s *Store) List(ctx context.Context) ([]session.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const q = `SELECT id, agent_type, model, created_at, updated_at, message_count FROM sessions ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []session.Metadata{}
	for rows.Next() {
		var m session.Metadata
		var agentType string
		var createdAt, updatedAt int64
		if err := rows.Scan(&m.ID, &agentType, &m.Model, &createdAt, &updatedAt, &m.MessageCount); err != nil {
			return nil, err
		}
		m.AgentType = agent.Type(agentType)
		m.CreatedAt = time.UnixMilli(createdAt)
		m.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}
