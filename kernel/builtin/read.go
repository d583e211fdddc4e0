package builtin

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kestrelrun/agentkernel/kernel/builtin/internal/argparse"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

const readToolID = "read"

// ReadConfig bounds the built-in read tool's line and token windows.
type ReadConfig struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultMaxTokens int
	MaxTokens        int
}

// DefaultReadConfig returns the conservative defaults every session should
// start from absent an explicit override.
func DefaultReadConfig() ReadConfig {
	return ReadConfig{DefaultLimit: 200, MaxLimit: 400, DefaultMaxTokens: 2000, MaxTokens: 4000}
}

// ReadTool reads a bounded line window of a text file.
type ReadTool struct {
	cfg     ReadConfig
	runtime execenv.Runtime
}

// NewRead constructs the read tool against a full-control host runtime.
func NewRead(cfg ReadConfig) (*ReadTool, error) {
	return NewReadWithRuntime(cfg, nil)
}

// NewReadWithRuntime constructs the read tool against rt's FileSystem.
func NewReadWithRuntime(cfg ReadConfig, rt execenv.Runtime) (*ReadTool, error) {
	if cfg.DefaultLimit <= 0 || cfg.MaxLimit <= 0 || cfg.DefaultMaxTokens <= 0 || cfg.MaxTokens <= 0 {
		cfg = DefaultReadConfig()
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.DefaultMaxTokens > cfg.MaxTokens {
		cfg.DefaultMaxTokens = cfg.MaxTokens
	}
	resolved, err := runtimeOrDefault(rt)
	if err != nil {
		return nil, err
	}
	return &ReadTool{cfg: cfg, runtime: resolved}, nil
}

func (t *ReadTool) ID() string          { return readToolID }
func (t *ReadTool) Description() string { return "Read a text file segment by path with offset/limit/token caps." }

func (t *ReadTool) Capability() toolcap.Capability {
	return toolcap.Capability{Operations: []toolcap.Operation{toolcap.OperationFileRead}, Risk: toolcap.RiskLow}
}

func (t *ReadTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "path", Type: tool.ParamString, Required: true, Description: "file path, absolute or relative"},
		{Name: "offset", Type: tool.ParamNumber, Description: "start line offset, zero-based"},
		{Name: "limit", Type: tool.ParamNumber, Description: "max lines requested"},
		{Name: "max_tokens", Type: tool.ParamNumber, Description: "max token budget requested"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any, _ tool.ExecContext) (tool.Result, error) {
	select {
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	default:
	}

	pathArg, err := argparse.String(args, "path", true)
	if err != nil {
		return tool.Result{}, err
	}
	offset, err := argparse.Int(args, "offset", 0)
	if err != nil {
		return tool.Result{}, err
	}
	if offset < 0 {
		return tool.Result{}, fmt.Errorf("tool: arg %q must be >= 0", "offset")
	}
	limit, err := argparse.Int(args, "limit", t.cfg.DefaultLimit)
	if err != nil {
		return tool.Result{}, err
	}
	if limit <= 0 || limit > t.cfg.MaxLimit {
		limit = t.cfg.DefaultLimit
	}
	maxTokens, err := argparse.Int(args, "max_tokens", t.cfg.DefaultMaxTokens)
	if err != nil {
		return tool.Result{}, err
	}
	if maxTokens <= 0 || maxTokens > t.cfg.MaxTokens {
		maxTokens = t.cfg.DefaultMaxTokens
	}

	target, err := normalizePath(t.runtime.FileSystem(), pathArg)
	if err != nil {
		return tool.Result{}, err
	}
	file, err := t.runtime.FileSystem().Open(target)
	if err != nil {
		return tool.Result{}, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var (
		lineNo    int
		usedToken int
		lines     []string
		hasMore   bool
	)
	for scanner.Scan() {
		lineNo++
		if lineNo <= offset {
			continue
		}
		if len(lines) >= limit {
			hasMore = true
			break
		}
		line := scanner.Text()
		tokens := estimateTokens(line)
		if usedToken+tokens > maxTokens {
			hasMore = true
			break
		}
		lines = append(lines, line)
		usedToken += tokens
	}
	if err := scanner.Err(); err != nil {
		return tool.Result{}, err
	}

	var out strings.Builder
	for i, line := range lines {
		if i > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "%d: %s", offset+i+1, line)
	}
	if hasMore {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString("... (truncated, more content remains)")
	}
	if len(lines) == 0 && !hasMore {
		return tool.Result{Content: "(empty)"}, nil
	}
	return tool.Result{Content: out.String()}, nil
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	tokens := runes / 4
	if runes%4 != 0 {
		tokens++
	}
	if tokens <= 0 {
		tokens = 1
	}
	return tokens
}
