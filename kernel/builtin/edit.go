package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kestrelrun/agentkernel/kernel/builtin/internal/argparse"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

const editToolID = "edit"

// EditTool replaces one exact occurrence of old_string with new_string in
// a file, or every occurrence when replace_all is set.
type EditTool struct {
	runtime execenv.Runtime
}

func NewEdit() (*EditTool, error) { return NewEditWithRuntime(nil) }

func NewEditWithRuntime(rt execenv.Runtime) (*EditTool, error) {
	resolved, err := runtimeOrDefault(rt)
	if err != nil {
		return nil, err
	}
	return &EditTool{runtime: resolved}, nil
}

func (t *EditTool) ID() string          { return editToolID }
func (t *EditTool) Description() string { return "Patch one file by exact old-string to new-string replacement." }

func (t *EditTool) Capability() toolcap.Capability {
	return toolcap.Capability{Operations: []toolcap.Operation{toolcap.OperationFileWrite}, Risk: toolcap.RiskMedium}
}

func (t *EditTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "path", Type: tool.ParamString, Required: true, Description: "target file path"},
		{Name: "old_string", Type: tool.ParamString, Required: true, Description: "exact original content to replace"},
		{Name: "new_string", Type: tool.ParamString, Required: true, Description: "replacement content"},
		{Name: "replace_all", Type: tool.ParamBoolean, Description: "replace every occurrence instead of requiring exactly one"},
	}
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any, _ tool.ExecContext) (tool.Result, error) {
	select {
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	default:
	}

	pathArg, err := argparse.String(args, "path", true)
	if err != nil {
		return tool.Result{}, err
	}
	oldString, err := argparse.String(args, "old_string", false)
	if err != nil {
		return tool.Result{}, err
	}
	newString, err := argparse.String(args, "new_string", false)
	if err != nil {
		return tool.Result{}, err
	}
	replaceAll := argparse.Bool(args, "replace_all")

	target, err := normalizePath(t.runtime.FileSystem(), pathArg)
	if err != nil {
		return tool.Result{}, err
	}

	fileInfo, statErr := t.runtime.FileSystem().Stat(target)
	fileExists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return tool.Result{}, statErr
	}

	if !fileExists {
		if oldString != "" {
			return tool.Result{}, fmt.Errorf("tool: edit target %q does not exist; old_string must be empty to create it", target)
		}
		if err := t.runtime.FileSystem().WriteFile(target, []byte(newString), 0o644); err != nil {
			return tool.Result{}, err
		}
		return tool.Result{Content: fmt.Sprintf("created %s", target)}, nil
	}

	raw, err := t.runtime.FileSystem().ReadFile(target)
	if err != nil {
		return tool.Result{}, err
	}
	content := string(raw)

	if oldString == "" {
		if content != "" {
			return tool.Result{}, fmt.Errorf("tool: edit old_string can be empty only when the target file is empty")
		}
		if err := t.runtime.FileSystem().WriteFile(target, []byte(newString), fileInfo.Mode()); err != nil {
			return tool.Result{}, err
		}
		return tool.Result{Content: fmt.Sprintf("replaced 1 occurrence in %s", target)}, nil
	}

	count := strings.Count(content, oldString)
	if count == 0 {
		return tool.Result{}, fmt.Errorf("tool: edit old_string not found in %s", target)
	}
	if !replaceAll && count != 1 {
		return tool.Result{}, fmt.Errorf("tool: edit requires a single match, found %d; set replace_all=true", count)
	}

	var next string
	var replaced int
	if replaceAll {
		next = strings.ReplaceAll(content, oldString, newString)
		replaced = count
	} else {
		next = strings.Replace(content, oldString, newString, 1)
		replaced = 1
	}

	if err := t.runtime.FileSystem().WriteFile(target, []byte(next), fileInfo.Mode()); err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Content: fmt.Sprintf("replaced %d occurrence(s) in %s", replaced, target)}, nil
}
