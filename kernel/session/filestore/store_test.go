package filestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/session"
)

func TestStoreSaveLoadRoundTrips(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sessions")
	store, err := New(root)
	require.NoError(t, err)

	snap := session.Snapshot{
		Metadata: session.Metadata{ID: "s1", AgentType: agent.TypeGeneral},
		Messages: []message.Message{message.NewUserText("hi")},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	got, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "hi", got.Messages[0].Text())
}

func TestStoreLoadMissingReturnsNotFound(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	_, err = store.Load(context.Background(), "nope")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStoreListAndDelete(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), session.Snapshot{Metadata: session.Metadata{ID: "s1"}}))
	require.NoError(t, store.Save(context.Background(), session.Snapshot{Metadata: session.Metadata{ID: "s2"}}))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, store.Delete(context.Background(), "s1"))
	_, err = store.Load(context.Background(), "s1")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStoreRejectsPathTraversalInID(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)

	bad := session.Snapshot{Metadata: session.Metadata{ID: "../escape"}}
	require.Error(t, store.Save(context.Background(), bad))
	_, err = store.Load(context.Background(), "../escape")
	require.Error(t, err)
	require.Error(t, store.Delete(context.Background(), "../escape"))
}
