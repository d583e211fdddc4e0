package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelrun/agentkernel/kernel/builtin/internal/argparse"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/permission"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

const (
	bashToolID         = "bash"
	defaultBashTimeout = 90 * time.Second
	defaultBashIdle    = 45 * time.Second
)

// BashConfig configures the built-in shell execution tool.
type BashConfig struct {
	Timeout     time.Duration
	IdleTimeout time.Duration
	Runtime     execenv.Runtime
}

// BashTool executes a shell command through the execenv runtime. Approval
// runs through exactly one path: execenv.Runtime.DecideRoute answers in
// kernel/permission's Allow/Ask/Deny lattice under the "bash" tool id —
// the same lattice the orchestrator checks before dispatching any other
// tool — and an Ask verdict is resolved by the same
// tool.ExecContext.QuestionHandler every other Ask resolution uses.
type BashTool struct {
	cfg     BashConfig
	runtime execenv.Runtime
}

func NewBash(cfg BashConfig) (*BashTool, error) {
	resolved, err := runtimeOrDefault(cfg.Runtime)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBashTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultBashIdle
	}
	return &BashTool{cfg: cfg, runtime: resolved}, nil
}

func (t *BashTool) ID() string          { return bashToolID }
func (t *BashTool) Description() string { return "Execute a shell command and return stdout/stderr." }

func (t *BashTool) Capability() toolcap.Capability {
	return toolcap.Capability{Operations: []toolcap.Operation{toolcap.OperationExec}, Risk: toolcap.RiskHigh}
}

func (t *BashTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "command", Type: tool.ParamString, Required: true, Description: "shell command"},
		{Name: "dir", Type: tool.ParamString, Description: "working directory"},
		{Name: "timeout_ms", Type: tool.ParamNumber, Description: "overrides the default command timeout"},
		{Name: "idle_timeout_ms", Type: tool.ParamNumber, Description: "overrides the default no-output timeout"},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any, ec tool.ExecContext) (tool.Result, error) {
	command, err := argparse.String(args, "command", true)
	if err != nil {
		return tool.Result{}, err
	}
	dir, err := argparse.String(args, "dir", false)
	if err != nil {
		return tool.Result{}, err
	}
	timeoutMS, err := argparse.Int(args, "timeout_ms", 0)
	if err != nil {
		return tool.Result{}, err
	}
	idleTimeoutMS, err := argparse.Int(args, "idle_timeout_ms", 0)
	if err != nil {
		return tool.Result{}, err
	}

	timeout := t.cfg.Timeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	idleTimeout := t.cfg.IdleTimeout
	if idleTimeoutMS > 0 {
		idleTimeout = time.Duration(idleTimeoutMS) * time.Millisecond
	}

	decision := t.runtime.DecideRoute(command)
	switch decision.Permission {
	case permission.Deny:
		return tool.Result{Content: fmt.Sprintf("bash command denied: %s", decision.Reason), IsError: true}, nil
	case permission.Ask:
		if err := t.requestApproval(ctx, ec, command, decision.Reason); err != nil {
			return tool.Result{Content: err.Error(), IsError: true}, nil
		}
	}

	runner := t.runtime.HostRunner()
	if runner == nil {
		return tool.Result{}, fmt.Errorf("tool: host runner is unavailable")
	}
	result, err := runner.Run(ctx, execenv.CommandRequest{Command: command, Dir: dir, Timeout: timeout, IdleTimeout: idleTimeout})
	if err != nil {
		return tool.Result{}, fmt.Errorf("tool: bash failed: %w", err)
	}

	var out strings.Builder
	out.WriteString(result.Stdout)
	if result.Stderr != "" {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "[stderr]\n%s", result.Stderr)
	}
	if result.ExitCode != 0 {
		return tool.Result{Content: fmt.Sprintf("%s\n[exit code %d]", out.String(), result.ExitCode), IsError: true}, nil
	}
	return tool.Result{Content: out.String()}, nil
}

func (t *BashTool) requestApproval(ctx context.Context, ec tool.ExecContext, command, reason string) error {
	if ec.QuestionHandler == nil {
		return fmt.Errorf("tool: bash command requires approval and no question handler is configured: %s", reason)
	}
	prompt := fmt.Sprintf("Approve execution of %q?", command)
	if reason != "" {
		prompt = fmt.Sprintf("%s (%s)", prompt, reason)
	}
	resp, err := ec.QuestionHandler(ctx, tool.QuestionInfo{Questions: []string{prompt}})
	if err != nil {
		return err
	}
	if resp.Cancelled || len(resp.Answers) == 0 || (resp.Answers[0] != "yes" && resp.Answers[0] != "allow") {
		return fmt.Errorf("tool: bash execution denied: %s", reason)
	}
	return nil
}
