package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubTool struct {
	id string
}

func (s stubTool) ID() string          { return s.id }
func (s stubTool) Description() string { return "stub " + s.id }
func (s stubTool) Parameters() []ParameterSchema {
	return []ParameterSchema{{Name: "x", Type: ParamString, Required: true}}
}
func (s stubTool) Execute(ctx context.Context, args map[string]any, ec ExecContext) (Result, error) {
	return Result{Content: "ok"}, nil
}

func TestRegistryRegisterGetList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{id: "b"}))
	require.NoError(t, r.Register(stubTool{id: "a"}))

	got, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", got.ID())

	_, ok = r.Get("missing")
	require.False(t, ok)

	list := r.List()
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].ID())
	require.Equal(t, "b", list[1].ID())
}

func TestRegistryRegisterIsIdempotentLastWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{id: "a"}))
	require.NoError(t, r.Register(stubTool{id: "a"}))
	require.Len(t, r.List(), 1)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubTool{id: "a"}))
	r.Unregister("a")
	_, ok := r.Get("a")
	require.False(t, ok)
	r.Unregister("a") // no-op, must not panic
}

func TestTruncateTextByLines(t *testing.T) {
	text := "l1\nl2\nl3\nl4\nl5"
	out, truncated := TruncateText(text, TruncationPolicy{MaxLines: 2})
	require.True(t, truncated)
	require.Contains(t, out, "l1\nl2")
	require.Contains(t, out, "truncated 3 lines")
}

func TestTruncateTextByBytes(t *testing.T) {
	text := "abcdefghij"
	out, truncated := TruncateText(text, TruncationPolicy{MaxBytes: 4})
	require.True(t, truncated)
	require.Contains(t, out, "abcd")
	require.Contains(t, out, "truncated 6 bytes")
}

func TestTruncateTextUnderBudgetIsUnchanged(t *testing.T) {
	out, truncated := TruncateText("short", TruncationPolicy{MaxLines: 2000, MaxBytes: 51200})
	require.False(t, truncated)
	require.Equal(t, "short", out)
}
