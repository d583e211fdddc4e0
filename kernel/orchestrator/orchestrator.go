package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/provider"
	"github.com/kestrelrun/agentkernel/kernel/session"
	"github.com/kestrelrun/agentkernel/kernel/tool"
)

// defaultMaxTurns bounds the turn loop absent an explicit Config.MaxTurns.
const defaultMaxTurns = 25

var (
	retryMaxAttempts = 3
	retryBaseDelay    = 250 * time.Millisecond
	retryMaxDelay     = 4 * time.Second
)

// ToolStartEvent is fired when a tool call begins executing.
type ToolStartEvent struct {
	ToolUseID string
	ToolName  string
	Args      map[string]any
}

// ToolCompleteEvent is fired when a tool call finishes (successfully,
// with a recovered error, or denied by permission policy).
type ToolCompleteEvent struct {
	ToolUseID string
	ToolName  string
	Result    tool.Result
	Duration  time.Duration
}

// FinishInfo is passed to OnComplete exactly once per Prompt call.
type FinishInfo struct {
	Reason provider.FinishReason
	Usage  message.Usage
}

// Config constructs a Session.
type Config struct {
	ID          string
	Agent       agent.Config
	Provider    provider.Provider
	Tools       *tool.Registry
	Permissions *permission.Engine
	Store       session.Store
	Logger      *slog.Logger

	MaxTurns int

	// AgentConfigs resolves a child agent.Type to its Config, for the
	// CreateChildSessionFunc wired into tool.ExecContext. Nil disables
	// child sessions (CreateChildSession calls fail).
	AgentConfigs map[agent.Type]agent.Config

	QuestionHandler tool.QuestionHandler

	// PruneKeepRecentToolResults bounds how many of the most recent
	// tool results keep their full content; older ones are replaced
	// with a placeholder unless they came from the skill tool.
	PruneKeepRecentToolResults int

	OnStream       func(*provider.StreamEvent)
	OnToolStart    func(ToolStartEvent)
	OnToolComplete func(ToolCompleteEvent)
	OnComplete     func(FinishInfo)
	OnError        func(error)
}

// Session is one live C8 conversation: history, the permission-gated
// dispatch loop, and the persistence hook, all scoped to one agent
// configuration and one provider.
type Session struct {
	id     string
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	messages []message.Message
	usage    message.Usage

	running  bool
	turnDone chan struct{}
	lastErr  error

	abort *tool.AbortSignal
}

// New constructs a Session. cfg.ID is generated if empty.
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("orchestrator: provider is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = tool.NewRegistry()
	}
	if cfg.Permissions == nil {
		cfg.Permissions = permission.NewEngine()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.PruneKeepRecentToolResults <= 0 {
		cfg.PruneKeepRecentToolResults = 20
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:     cfg.ID,
		cfg:    cfg,
		logger: logger.With("session_id", cfg.ID),
		abort:  &tool.AbortSignal{},
	}, nil
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Cancel flags the session's abort signal. In-flight tool executions are
// not forcibly killed; the loop observes the flag at its next
// suspension point.
func (s *Session) Cancel() { s.abort.Cancel() }

// Messages returns a snapshot of the current message history.
func (s *Session) Messages() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]message.Message(nil), s.messages...)
}

// Usage returns accumulated token usage for the session so far.
func (s *Session) Usage() message.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Prompt appends a user message and spawns the turn loop on a goroutine,
// returning immediately. Exactly one of OnComplete/OnError fires from
// that goroutine once the turn finishes. A caller that needs the
// terminal error synchronously (rather than through OnComplete/OnError)
// can follow Prompt with Wait. Prompt fails fast with ErrSessionBusy if
// a previous turn is still running — cancel it first.
func (s *Session) Prompt(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.messages = append(s.messages, message.NewUserText(text))
	s.running = true
	done := make(chan struct{})
	s.turnDone = done
	s.mu.Unlock()

	go func() {
		err := s.runLoop(ctx)
		s.mu.Lock()
		s.lastErr = err
		s.running = false
		s.mu.Unlock()
		close(done)
	}()
	return nil
}

// Wait blocks until the turn spawned by the most recent Prompt call
// finishes, returning the error runLoop produced (nil on a normal
// completion, ErrCancelled after Cancel, etc). It returns immediately
// with nil if no turn has ever run. A caller relying solely on
// OnComplete/OnError need not call Wait.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.turnDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restore replaces the session's history and usage with a loaded
// snapshot, without running the loop.
func (s *Session) Restore(snap session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]message.Message(nil), snap.Messages...)
	s.usage = snap.Usage
}

func (s *Session) runLoop(ctx context.Context) error {
	for turn := 0; turn < s.cfg.MaxTurns; turn++ {
		if s.abort.Cancelled() {
			s.complete(provider.FinishCancelled)
			return ErrCancelled
		}

		assistantMsg, finish, usage, err := s.step(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
				s.complete(provider.FinishCancelled)
				return ErrCancelled
			}
			s.fail(err)
			return err
		}

		s.mu.Lock()
		s.messages = append(s.messages, assistantMsg)
		s.usage.Add(usage)
		s.mu.Unlock()
		s.persist(ctx)

		toolUses := assistantMsg.ToolUses()
		if len(toolUses) == 0 {
			s.complete(finish)
			return nil
		}

		resultMsg := s.dispatch(ctx, toolUses)
		s.mu.Lock()
		s.messages = append(s.messages, resultMsg)
		s.mu.Unlock()
		s.persist(ctx)

		if s.abort.Cancelled() {
			s.complete(provider.FinishCancelled)
			return ErrCancelled
		}
	}
	s.fail(ErrBudgetExceeded)
	return ErrBudgetExceeded
}

// step issues one model request (with bounded exponential retry on a
// transport/provider error that occurred before any event was streamed)
// and folds the resulting stream into one assistant message.
func (s *Session) step(ctx context.Context) (message.Message, provider.FinishReason, message.Usage, error) {
	req := s.buildRequest()

	attempt := 0
	for {
		assistantMsg, finish, usage, emitted, err := s.streamOnce(ctx, req)
		if err == nil {
			return assistantMsg, finish, usage, nil
		}
		if emitted {
			return message.Message{}, "", message.Usage{}, err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return message.Message{}, "", message.Usage{}, err
		}
		if !isRetryableErr(err) || attempt >= retryMaxAttempts {
			return message.Message{}, "", message.Usage{}, err
		}
		delay := retryDelayForAttempt(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return message.Message{}, "", message.Usage{}, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

func isRetryableErr(err error) bool {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr.Retryable
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

func retryDelayForAttempt(attempt int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}

func (s *Session) buildRequest() *provider.Request {
	s.mu.Lock()
	history := prune(s.messages, s.cfg.PruneKeepRecentToolResults)
	s.mu.Unlock()
	return &provider.Request{
		Model:        s.cfg.Agent.Model,
		SystemPrompt: s.cfg.Agent.SystemPrompt,
		Messages:     history,
		Tools:        provider.DeclareTools(s.cfg.Tools.List()),
		MaxTokens:    s.cfg.Agent.MaxTokens,
	}
}

// streamOnce drains one provider.Stream call into a single assistant
// message. emitted reports whether any stream event was forwarded to
// OnStream before an error occurred, which gates retry eligibility.
func (s *Session) streamOnce(ctx context.Context, req *provider.Request) (msg message.Message, finish provider.FinishReason, usage message.Usage, emitted bool, err error) {
	msg = message.Message{Role: message.RoleAssistant}
	var textBuf string

	flushText := func() {
		if textBuf != "" {
			msg.AppendText(textBuf)
			textBuf = ""
		}
	}

	for ev, streamErr := range s.cfg.Provider.Stream(ctx, req) {
		if s.abort.Cancelled() {
			return message.Message{}, "", message.Usage{}, emitted, ErrCancelled
		}
		if streamErr != nil {
			return message.Message{}, "", message.Usage{}, emitted, &TransportError{Op: "stream", Err: streamErr, Retryable: false}
		}
		if ev == nil {
			continue
		}
		emitted = true
		if s.cfg.OnStream != nil {
			s.cfg.OnStream(ev)
		}
		switch ev.Type {
		case provider.EventTextDelta:
			textBuf += ev.Text
		case provider.EventToolCallComplete:
			flushText()
			msg.AppendToolUse(ev.ToolCallID, ev.ToolCallName, ev.Arguments)
		case provider.EventFinishStep:
			flushText()
			finish = ev.FinishReason
			usage = ev.Usage
		case provider.EventStreamError:
			return message.Message{}, "", message.Usage{}, emitted, &ProviderError{Provider: s.cfg.Provider.Name(), Err: errors.New(ev.ErrMessage), Retryable: ev.Retryable}
		}
	}
	flushText()
	return msg, finish, usage, emitted, nil
}

func (s *Session) persist(ctx context.Context) {
	if s.cfg.Store == nil {
		return
	}
	s.mu.Lock()
	snap := session.Snapshot{
		Metadata: session.Metadata{
			ID:           s.id,
			AgentType:    s.cfg.Agent.Type,
			Model:        s.cfg.Agent.Model,
			MessageCount: len(s.messages),
			UpdatedAt:    time.Now(),
		},
		Messages: append([]message.Message(nil), s.messages...),
		Usage:    s.usage,
	}
	s.mu.Unlock()
	if err := s.cfg.Store.Save(ctx, snap); err != nil {
		s.logger.Warn("orchestrator: persist snapshot failed", "error", err)
	}
}

func (s *Session) complete(reason provider.FinishReason) {
	if s.cfg.OnComplete != nil {
		s.cfg.OnComplete(FinishInfo{Reason: reason, Usage: s.Usage()})
	}
}

func (s *Session) fail(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
