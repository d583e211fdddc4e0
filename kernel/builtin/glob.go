package builtin

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kestrelrun/agentkernel/kernel/builtin/internal/argparse"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

const globToolID = "glob"

// GlobTool matches files by glob pattern relative to the working directory.
type GlobTool struct {
	runtime execenv.Runtime
}

func NewGlob() (*GlobTool, error) { return NewGlobWithRuntime(nil) }

func NewGlobWithRuntime(rt execenv.Runtime) (*GlobTool, error) {
	resolved, err := runtimeOrDefault(rt)
	if err != nil {
		return nil, err
	}
	return &GlobTool{runtime: resolved}, nil
}

func (t *GlobTool) ID() string          { return globToolID }
func (t *GlobTool) Description() string { return "Match files by glob pattern." }

func (t *GlobTool) Capability() toolcap.Capability {
	return toolcap.Capability{Operations: []toolcap.Operation{toolcap.OperationFileRead}, Risk: toolcap.RiskLow}
}

func (t *GlobTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "pattern", Type: tool.ParamString, Required: true, Description: "glob pattern, e.g. **/*.go"},
	}
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any, _ tool.ExecContext) (tool.Result, error) {
	select {
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	default:
	}
	pattern, err := argparse.String(args, "pattern", true)
	if err != nil {
		return tool.Result{}, err
	}
	if !filepath.IsAbs(pattern) {
		wd, err := t.runtime.FileSystem().Getwd()
		if err != nil {
			return tool.Result{}, err
		}
		pattern = filepath.Join(wd, pattern)
	}
	matches, err := t.runtime.FileSystem().Glob(filepath.Clean(pattern))
	if err != nil {
		return tool.Result{}, err
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return tool.Result{Content: "(no matches)"}, nil
	}
	return tool.Result{Content: strings.Join(matches, "\n")}, nil
}
