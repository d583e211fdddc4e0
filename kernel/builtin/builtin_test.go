package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/tool"
)

func newHostRuntime(t *testing.T) execenv.Runtime {
	t.Helper()
	rt, err := execenv.New(execenv.Config{PermissionMode: execenv.PermissionModeFullControl})
	require.NoError(t, err)
	return rt
}

func TestReadToolReturnsLineNumberedWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	rt := newHostRuntime(t)
	rd, err := NewReadWithRuntime(DefaultReadConfig(), rt)
	require.NoError(t, err)

	result, err := rd.Execute(context.Background(), map[string]any{"path": path}, tool.ExecContext{})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "1: one")
	require.Contains(t, result.Content, "3: three")
}

func TestWriteToolCreatesAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")
	rt := newHostRuntime(t)
	wr, err := NewWriteWithRuntime(rt)
	require.NoError(t, err)

	_, err = wr.Execute(context.Background(), map[string]any{"path": path, "content": "hello"}, tool.ExecContext{})
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))

	_, err = wr.Execute(context.Background(), map[string]any{"path": path, "content": "bye"}, tool.ExecContext{})
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "bye", string(content))
}

func TestEditToolRequiresSingleMatchUnlessReplaceAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo foo bar"), 0o644))

	rt := newHostRuntime(t)
	ed, err := NewEditWithRuntime(rt)
	require.NoError(t, err)

	_, err = ed.Execute(context.Background(), map[string]any{"path": path, "old_string": "foo", "new_string": "baz"}, tool.ExecContext{})
	require.Error(t, err)

	_, err = ed.Execute(context.Background(), map[string]any{"path": path, "old_string": "foo", "new_string": "baz", "replace_all": true}, tool.ExecContext{})
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "baz baz bar", string(content))
}

func TestGlobToolMatchesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte(""), 0o644))

	rt := newHostRuntime(t)
	g, err := NewGlobWithRuntime(rt)
	require.NoError(t, err)

	result, err := g.Execute(context.Background(), map[string]any{"pattern": filepath.Join(dir, "*.go")}, tool.ExecContext{})
	require.NoError(t, err)
	require.Contains(t, result.Content, "a.go")
	require.NotContains(t, result.Content, "b.txt")
}

func TestGrepToolFindsMatchesRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("needle here\nno match\n"), 0o644))

	rt := newHostRuntime(t)
	gr, err := NewGrepWithRuntime(rt)
	require.NoError(t, err)

	result, err := gr.Execute(context.Background(), map[string]any{"path": dir, "query": "needle"}, tool.ExecContext{})
	require.NoError(t, err)
	require.Contains(t, result.Content, "needle here")
}

func TestBashToolFullControlRunsWithoutApproval(t *testing.T) {
	rt := newHostRuntime(t)
	b, err := NewBash(BashConfig{Runtime: rt})
	require.NoError(t, err)

	result, err := b.Execute(context.Background(), map[string]any{"command": "echo hi"}, tool.ExecContext{})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "hi")
}

func TestBashToolAskApprovedRunsCommand(t *testing.T) {
	rt, err := execenv.New(execenv.Config{
		Permissions:      permission.NewEngine(),
		PermissionConfig: permission.Config{DefaultPermission: permission.Ask},
	})
	require.NoError(t, err)
	b, err := NewBash(BashConfig{Runtime: rt})
	require.NoError(t, err)

	asked := false
	ec := tool.ExecContext{QuestionHandler: func(ctx context.Context, info tool.QuestionInfo) (tool.QuestionResponse, error) {
		asked = true
		return tool.QuestionResponse{Answers: []string{"yes"}}, nil
	}}

	result, err := b.Execute(context.Background(), map[string]any{"command": "echo approved"}, ec)
	require.NoError(t, err)
	require.True(t, asked)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "approved")
}

func TestBashToolAskDeclinedNeverRunsCommand(t *testing.T) {
	rt, err := execenv.New(execenv.Config{
		Permissions:      permission.NewEngine(),
		PermissionConfig: permission.Config{DefaultPermission: permission.Ask},
	})
	require.NoError(t, err)
	b, err := NewBash(BashConfig{Runtime: rt})
	require.NoError(t, err)

	ec := tool.ExecContext{QuestionHandler: func(ctx context.Context, info tool.QuestionInfo) (tool.QuestionResponse, error) {
		return tool.QuestionResponse{Answers: []string{"no"}}, nil
	}}

	result, err := b.Execute(context.Background(), map[string]any{"command": "echo should-not-run"}, ec)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "denied")
}

func TestBashToolAskWithoutHandlerErrorsWithoutRunning(t *testing.T) {
	rt, err := execenv.New(execenv.Config{
		Permissions:      permission.NewEngine(),
		PermissionConfig: permission.Config{DefaultPermission: permission.Ask},
	})
	require.NoError(t, err)
	b, err := NewBash(BashConfig{Runtime: rt})
	require.NoError(t, err)

	result, err := b.Execute(context.Background(), map[string]any{"command": "echo nope"}, tool.ExecContext{})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "approval")
}

func TestBashToolDeniedNeverAsksOrRuns(t *testing.T) {
	rt, err := execenv.New(execenv.Config{
		Permissions:      permission.NewEngine(),
		PermissionConfig: permission.Config{DeniedTools: []string{"bash"}},
	})
	require.NoError(t, err)
	b, err := NewBash(BashConfig{Runtime: rt})
	require.NoError(t, err)

	ec := tool.ExecContext{QuestionHandler: func(ctx context.Context, info tool.QuestionInfo) (tool.QuestionResponse, error) {
		t.Fatal("question handler should not be invoked for a denied command")
		return tool.QuestionResponse{}, nil
	}}

	result, err := b.Execute(context.Background(), map[string]any{"command": "echo should-not-run"}, ec)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "denied")
}

func TestQuestionToolFallsBackToTextWithoutHandler(t *testing.T) {
	q := NewQuestion()
	result, err := q.Execute(context.Background(), map[string]any{"questions": []any{"what now?"}}, tool.ExecContext{})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "what now?")
}

func TestQuestionToolUsesHandler(t *testing.T) {
	q := NewQuestion()
	ec := tool.ExecContext{QuestionHandler: func(ctx context.Context, info tool.QuestionInfo) (tool.QuestionResponse, error) {
		return tool.QuestionResponse{Answers: []string{"42"}}, nil
	}}
	result, err := q.Execute(context.Background(), map[string]any{"questions": []any{"the answer?"}}, ec)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "42")
}

func TestTaskToolRequiresChildSessionCollaborator(t *testing.T) {
	task := NewTask()
	result, err := task.Execute(context.Background(), map[string]any{"prompt": "do it", "description": "d", "subagent_type": "general"}, tool.ExecContext{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestTaskToolDelegatesToCreateChildSession(t *testing.T) {
	task := NewTask()
	ec := tool.ExecContext{CreateChildSession: func(ctx context.Context, agentType, prompt string) (string, error) {
		return "done: " + prompt, nil
	}}
	result, err := task.Execute(context.Background(), map[string]any{"prompt": "explore x", "description": "d", "subagent_type": "explore"}, ec)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "done: explore x")
}
