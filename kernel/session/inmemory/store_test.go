package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/session"
)

func TestStoreSaveLoadRoundTrips(t *testing.T) {
	store := New()
	snap := session.Snapshot{
		Metadata: session.Metadata{ID: "s1", AgentType: agent.TypeGeneral, MessageCount: 1},
		Messages: []message.Message{message.NewUserText("hi")},
	}
	require.NoError(t, store.Save(context.Background(), snap))

	got, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.Metadata.ID)
	require.Len(t, got.Messages, 1)
}

func TestStoreLoadMissingReturnsNotFound(t *testing.T) {
	store := New()
	_, err := store.Load(context.Background(), "nope")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStoreListAndDelete(t *testing.T) {
	store := New()
	require.NoError(t, store.Save(context.Background(), session.Snapshot{Metadata: session.Metadata{ID: "s1"}}))
	require.NoError(t, store.Save(context.Background(), session.Snapshot{Metadata: session.Metadata{ID: "s2"}}))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, store.Delete(context.Background(), "s1"))
	_, err = store.Load(context.Background(), "s1")
	require.ErrorIs(t, err, session.ErrSessionNotFound)

	require.ErrorIs(t, store.Delete(context.Background(), "s1"), session.ErrSessionNotFound)
}
