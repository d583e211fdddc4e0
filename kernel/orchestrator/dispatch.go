package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kestrelrun/agentkernel/kernel/agent"
	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

// dispatch runs every tool call in toolUses concurrently (the dispatch
// phase), gates each on the permission engine, and folds the results
// into one user message in the same order the calls arrived.
func (s *Session) dispatch(ctx context.Context, toolUses []message.Block) message.Message {
	results := make([]message.Block, len(toolUses))
	var wg sync.WaitGroup
	for i, use := range toolUses {
		wg.Add(1)
		go func(i int, use message.Block) {
			defer wg.Done()
			results[i] = s.runOne(ctx, use)
		}(i, use)
	}
	wg.Wait()

	out := message.Message{Role: message.RoleUser, Content: results}
	return out
}

func (s *Session) runOne(ctx context.Context, use message.Block) message.Block {
	start := time.Now()
	if s.cfg.OnToolStart != nil {
		s.cfg.OnToolStart(ToolStartEvent{ToolUseID: use.ToolUseID, ToolName: use.ToolName, Args: use.ToolInput})
	}

	result := s.executeWithPermission(ctx, use)

	if s.cfg.OnToolComplete != nil {
		s.cfg.OnToolComplete(ToolCompleteEvent{ToolUseID: use.ToolUseID, ToolName: use.ToolName, Result: result, Duration: time.Since(start)})
	}

	truncated, _ := tool.TruncateText(result.Content, tool.DefaultTruncationPolicy())
	return message.NewToolResult(use.ToolUseID, use.ToolName, truncated, result.IsError)
}

func (s *Session) executeWithPermission(ctx context.Context, use message.Block) tool.Result {
	t, ok := s.cfg.Tools.Get(use.ToolName)
	if !ok {
		return tool.Result{Content: fmt.Sprintf("%v: %s", ErrToolNotFound, use.ToolName), IsError: true}
	}

	permCfg := s.cfg.Agent.PermissionConfig()
	decision := s.cfg.Permissions.Check(use.ToolName, permCfg)
	if _, cached := s.cfg.Permissions.Cached(use.ToolName); !cached {
		decision = toolcap.Escalate(decision, toolcap.Of(t), explicitlyConfigured(use.ToolName, permCfg))
	}
	if decision == permission.Ask {
		decision = s.resolveAsk(ctx, use)
	}
	if decision == permission.Deny {
		return tool.Result{Content: fmt.Sprintf("%v: %s", ErrPermissionDenied, use.ToolName), IsError: true}
	}

	ec := tool.ExecContext{
		SessionID:          s.id,
		AbortSignal:        s.abort,
		QuestionHandler:    s.cfg.QuestionHandler,
		CreateChildSession: s.createChildSession,
	}

	result, err := t.Execute(ctx, use.ToolInput, ec)
	if err != nil {
		return tool.Result{Content: err.Error(), IsError: true}
	}
	return result
}

// explicitlyConfigured reports whether toolID has a policy answer that
// pre-dates any capability-driven escalation: an explicit permissions
// entry, or an allowed_tools allowlist naming it.
func explicitlyConfigured(toolID string, cfg permission.Config) bool {
	if _, ok := cfg.Permissions[toolID]; ok {
		return true
	}
	return slices.Contains(cfg.AllowedTools, toolID)
}

// resolveAsk consults the session's QuestionHandler to turn an Ask
// decision into Allow or Deny, and caches the outcome for the rest of
// the session. Absent a handler, Ask resolves to Deny (the conservative
// default: nothing can silently allow an unreviewed tool call).
func (s *Session) resolveAsk(ctx context.Context, use message.Block) permission.Permission {
	if s.cfg.QuestionHandler == nil {
		return permission.Deny
	}
	resp, err := s.cfg.QuestionHandler(ctx, tool.QuestionInfo{
		Questions: []string{fmt.Sprintf("Allow tool %q to run?", use.ToolName)},
	})
	if err != nil || resp.Cancelled || len(resp.Answers) == 0 {
		s.cfg.Permissions.Deny(use.ToolName)
		return permission.Deny
	}
	if resp.Answers[0] == "yes" || resp.Answers[0] == "allow" {
		s.cfg.Permissions.Grant(use.ToolName)
		return permission.Allow
	}
	s.cfg.Permissions.Deny(use.ToolName)
	return permission.Deny
}

// createChildSession spawns a short-lived Session of agentType, prompts
// it once, and returns its final assistant text. Child sessions never
// hold a pointer back to the parent; this closure is their only link.
func (s *Session) createChildSession(ctx context.Context, agentType string, prompt string) (string, error) {
	childCfg, ok := s.cfg.AgentConfigs[agent.Type(agentType)]
	if !ok {
		return "", fmt.Errorf("orchestrator: unknown child agent type %q", agentType)
	}
	child, err := New(Config{
		Agent:           childCfg,
		Provider:        s.cfg.Provider,
		Tools:           s.cfg.Tools,
		Permissions:     s.cfg.Permissions,
		Logger:          s.logger,
		AgentConfigs:    s.cfg.AgentConfigs,
		QuestionHandler: s.cfg.QuestionHandler,
	})
	if err != nil {
		return "", err
	}

	var final string
	var runErr error
	child.cfg.OnComplete = func(FinishInfo) {}
	child.cfg.OnError = func(err error) { runErr = err }

	if err := child.Prompt(ctx, prompt); err != nil {
		return "", err
	}
	if err := child.Wait(ctx); err != nil {
		return "", err
	}
	if runErr != nil {
		return "", runErr
	}
	msgs := child.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant {
			final = msgs[i].Text()
			break
		}
	}
	return final, nil
}
