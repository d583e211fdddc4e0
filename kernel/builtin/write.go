package builtin

import (
	"context"
	"fmt"
	"os"

	"github.com/kestrelrun/agentkernel/kernel/builtin/internal/argparse"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

const writeToolID = "write"

// WriteTool overwrites a file's full content.
type WriteTool struct {
	runtime execenv.Runtime
}

func NewWrite() (*WriteTool, error) { return NewWriteWithRuntime(nil) }

func NewWriteWithRuntime(rt execenv.Runtime) (*WriteTool, error) {
	resolved, err := runtimeOrDefault(rt)
	if err != nil {
		return nil, err
	}
	return &WriteTool{runtime: resolved}, nil
}

func (t *WriteTool) ID() string          { return writeToolID }
func (t *WriteTool) Description() string { return "Write full file content by path, creating or overwriting it." }

func (t *WriteTool) Capability() toolcap.Capability {
	return toolcap.Capability{Operations: []toolcap.Operation{toolcap.OperationFileWrite}, Risk: toolcap.RiskMedium}
}

func (t *WriteTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "path", Type: tool.ParamString, Required: true, Description: "target file path"},
		{Name: "content", Type: tool.ParamString, Required: true, Description: "full file content to write"},
	}
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any, _ tool.ExecContext) (tool.Result, error) {
	select {
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	default:
	}

	pathArg, err := argparse.String(args, "path", true)
	if err != nil {
		return tool.Result{}, err
	}
	content, err := argparse.String(args, "content", false)
	if err != nil {
		return tool.Result{}, err
	}

	target, err := normalizePath(t.runtime.FileSystem(), pathArg)
	if err != nil {
		return tool.Result{}, err
	}

	info, statErr := t.runtime.FileSystem().Stat(target)
	created := false
	mode := os.FileMode(0o644)
	if statErr == nil {
		if info.IsDir() {
			return tool.Result{}, fmt.Errorf("tool: target %q is a directory", target)
		}
		mode = info.Mode()
	} else if !os.IsNotExist(statErr) {
		return tool.Result{}, statErr
	} else {
		created = true
	}

	if err := t.runtime.FileSystem().WriteFile(target, []byte(content), mode); err != nil {
		return tool.Result{}, err
	}

	verb := "wrote"
	if created {
		verb = "created"
	}
	return tool.Result{Content: fmt.Sprintf("%s %s (%d bytes)", verb, target, len(content))}, nil
}
