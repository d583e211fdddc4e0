package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/provider"
	"github.com/kestrelrun/agentkernel/kernel/tool"
)

// scriptedProvider replays one fixed sequence of events per Stream call,
// advancing to the next scripted call on every invocation.
type scriptedProvider struct {
	calls [][]*provider.StreamEvent
	n     int
}

func (p *scriptedProvider) Name() string                                  { return "scripted" }
func (p *scriptedProvider) Models() []provider.ModelInfo                  { return nil }
func (p *scriptedProvider) GetModel(string) (provider.ModelInfo, bool)    { return provider.ModelInfo{}, false }

func (p *scriptedProvider) Stream(ctx context.Context, req *provider.Request) func(yield func(*provider.StreamEvent, error) bool) {
	events := p.calls[p.n]
	if p.n < len(p.calls)-1 {
		p.n++
	}
	return func(yield func(*provider.StreamEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

type echoTool struct {
	id     string
	result tool.Result
	calls  int
}

func (t *echoTool) ID() string                       { return t.id }
func (t *echoTool) Description() string              { return "echo" }
func (t *echoTool) Parameters() []tool.ParameterSchema { return nil }
func (t *echoTool) Execute(ctx context.Context, args map[string]any, ec tool.ExecContext) (tool.Result, error) {
	t.calls++
	return t.result, nil
}

func TestPruneKeepsRecentAndExemptsSkill(t *testing.T) {
	msgs := []message.Message{
		message.NewUserText("hi"),
		{Role: message.RoleUser, Content: []message.Block{message.NewToolResult("1", "read", "old content", false)}},
		{Role: message.RoleUser, Content: []message.Block{message.NewToolResult("2", "skill", "skill body", false)}},
		{Role: message.RoleUser, Content: []message.Block{message.NewToolResult("3", "read", "recent content", false)}},
	}
	out := prune(msgs, 1)
	require.Equal(t, prunedPlaceholder, out[1].Content[0].Content)
	require.Equal(t, "skill body", out[2].Content[0].Content)
	require.Equal(t, "recent content", out[3].Content[0].Content)
}

func TestPruneNoopUnderBudget(t *testing.T) {
	msgs := []message.Message{
		{Role: message.RoleUser, Content: []message.Block{message.NewToolResult("1", "read", "x", false)}},
	}
	out := prune(msgs, 5)
	require.Equal(t, "x", out[0].Content[0].Content)
}

func TestSessionPromptEchoCompletesWithoutDispatch(t *testing.T) {
	p := &scriptedProvider{calls: [][]*provider.StreamEvent{
		{
			{Type: provider.EventTextDelta, Text: "hello"},
			{Type: provider.EventFinishStep, FinishReason: provider.FinishStop, Usage: message.Usage{InputTokens: 3, OutputTokens: 2}},
		},
	}}
	var finishInfo FinishInfo
	var gotErr error
	sess, err := New(Config{
		Agent:    agent.Config{Model: "m", DefaultPermission: permission.Allow},
		Provider: p,
		OnComplete: func(f FinishInfo) { finishInfo = f },
		OnError:    func(e error) { gotErr = e },
	})
	require.NoError(t, err)

	require.NoError(t, sess.Prompt(context.Background(), "hi"))
	require.NoError(t, sess.Wait(context.Background()))
	require.NoError(t, gotErr)
	require.Equal(t, provider.FinishStop, finishInfo.Reason)
	require.Equal(t, 5, finishInfo.Usage.Total())

	msgs := sess.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[1].Text())
}

func TestSessionPromptSingleToolTurn(t *testing.T) {
	et := &echoTool{id: "read", result: tool.Result{Content: "file contents"}}
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(et))

	p := &scriptedProvider{calls: [][]*provider.StreamEvent{
		{
			{Type: provider.EventToolCallComplete, ToolCallID: "t1", ToolCallName: "read", Arguments: map[string]any{"path": "a.txt"}},
			{Type: provider.EventFinishStep, FinishReason: provider.FinishToolCalls},
		},
		{
			{Type: provider.EventTextDelta, Text: "done"},
			{Type: provider.EventFinishStep, FinishReason: provider.FinishStop},
		},
	}}

	var toolStarted, toolCompleted bool
	sess, err := New(Config{
		Agent:          agent.Config{Model: "m", DefaultPermission: permission.Allow},
		Provider:       p,
		Tools:          registry,
		OnToolStart:    func(ToolStartEvent) { toolStarted = true },
		OnToolComplete: func(ToolCompleteEvent) { toolCompleted = true },
	})
	require.NoError(t, err)

	require.NoError(t, sess.Prompt(context.Background(), "read a.txt"))
	require.NoError(t, sess.Wait(context.Background()))
	require.True(t, toolStarted)
	require.True(t, toolCompleted)
	require.Equal(t, 1, et.calls)

	msgs := sess.Messages()
	require.Len(t, msgs, 4)
	result, ok := msgs[2].ToolResultFor("t1")
	require.True(t, ok)
	require.Equal(t, "file contents", result.Content)
	require.False(t, result.IsError)
}

func TestSessionDeniedToolNeverRuns(t *testing.T) {
	et := &echoTool{id: "danger", result: tool.Result{Content: "should not run"}}
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(et))

	p := &scriptedProvider{calls: [][]*provider.StreamEvent{
		{
			{Type: provider.EventToolCallComplete, ToolCallID: "t1", ToolCallName: "danger", Arguments: map[string]any{}},
			{Type: provider.EventFinishStep, FinishReason: provider.FinishToolCalls},
		},
		{{Type: provider.EventFinishStep, FinishReason: provider.FinishStop}},
	}}

	sess, err := New(Config{
		Agent: agent.Config{
			Model:             "m",
			DefaultPermission: permission.Allow,
			DeniedTools:       []string{"danger"},
		},
		Provider: p,
		Tools:    registry,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Prompt(context.Background(), "do it"))
	require.NoError(t, sess.Wait(context.Background()))
	require.Equal(t, 0, et.calls)

	msgs := sess.Messages()
	result, ok := msgs[2].ToolResultFor("t1")
	require.True(t, ok)
	require.True(t, result.IsError)
}

func TestSessionBudgetExceededFiresOnError(t *testing.T) {
	loopEvent := []*provider.StreamEvent{
		{Type: provider.EventToolCallComplete, ToolCallID: "t1", ToolCallName: "noop", Arguments: map[string]any{}},
		{Type: provider.EventFinishStep, FinishReason: provider.FinishToolCalls},
	}
	p := &scriptedProvider{calls: [][]*provider.StreamEvent{loopEvent}}

	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(&echoTool{id: "noop", result: tool.Result{Content: "ok"}}))

	var gotErr error
	var completed bool
	sess, err := New(Config{
		Agent:    agent.Config{Model: "m", DefaultPermission: permission.Allow},
		Provider: p,
		Tools:    registry,
		MaxTurns: 2,
		OnError:  func(e error) { gotErr = e },
		OnComplete: func(FinishInfo) { completed = true },
	})
	require.NoError(t, err)

	require.NoError(t, sess.Prompt(context.Background(), "loop forever"))
	err = sess.Wait(context.Background())
	require.ErrorIs(t, err, ErrBudgetExceeded)
	require.ErrorIs(t, gotErr, ErrBudgetExceeded)
	require.False(t, completed)
}

// blockingProvider never yields an event on its own; the test drives it
// through a channel so it can hold a turn open long enough for a
// concurrent Cancel to land mid-stream.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) Name() string                               { return "blocking" }
func (p *blockingProvider) Models() []provider.ModelInfo                { return nil }
func (p *blockingProvider) GetModel(string) (provider.ModelInfo, bool) { return provider.ModelInfo{}, false }

func (p *blockingProvider) Stream(ctx context.Context, req *provider.Request) func(yield func(*provider.StreamEvent, error) bool) {
	return func(yield func(*provider.StreamEvent, error) bool) {
		select {
		case <-p.release:
		case <-ctx.Done():
			return
		}
		if !yield(&provider.StreamEvent{Type: provider.EventTextDelta, Text: "too late"}, nil) {
			return
		}
		yield(&provider.StreamEvent{Type: provider.EventFinishStep, FinishReason: provider.FinishStop}, nil)
	}
}

func TestSessionCancelMidStreamFinishesCancelled(t *testing.T) {
	p := &blockingProvider{release: make(chan struct{})}
	var finishInfo FinishInfo
	sess, err := New(Config{
		Agent:      agent.Config{Model: "m", DefaultPermission: permission.Allow},
		Provider:   p,
		OnComplete: func(f FinishInfo) { finishInfo = f },
	})
	require.NoError(t, err)

	require.NoError(t, sess.Prompt(context.Background(), "hang on"))

	// The turn is now blocked inside streamOnce, waiting on p.release.
	// Cancel it from this goroutine, exactly the scenario a REPL's
	// interrupt handler exercises against a live turn.
	sess.Cancel()
	close(p.release)

	err = sess.Wait(context.Background())
	require.ErrorIs(t, err, ErrCancelled)
	require.Equal(t, provider.FinishCancelled, finishInfo.Reason)
}

func TestSessionPromptRejectsConcurrentTurn(t *testing.T) {
	p := &blockingProvider{release: make(chan struct{})}
	sess, err := New(Config{
		Agent:    agent.Config{Model: "m", DefaultPermission: permission.Allow},
		Provider: p,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Prompt(context.Background(), "first"))
	require.ErrorIs(t, sess.Prompt(context.Background(), "second"), ErrSessionBusy)

	close(p.release)
	require.NoError(t, sess.Wait(context.Background()))
}
