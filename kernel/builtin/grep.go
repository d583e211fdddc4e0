package builtin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/kestrelrun/agentkernel/kernel/builtin/internal/argparse"
	"github.com/kestrelrun/agentkernel/kernel/execenv"
	"github.com/kestrelrun/agentkernel/kernel/tool"
	"github.com/kestrelrun/agentkernel/kernel/toolcap"
)

const grepToolID = "grep"

var errGrepLimitReached = errors.New("grep: limit reached")

// GrepTool searches for a literal substring in one file or, recursively,
// a directory.
type GrepTool struct {
	runtime execenv.Runtime
}

func NewGrep() (*GrepTool, error) { return NewGrepWithRuntime(nil) }

func NewGrepWithRuntime(rt execenv.Runtime) (*GrepTool, error) {
	resolved, err := runtimeOrDefault(rt)
	if err != nil {
		return nil, err
	}
	return &GrepTool{runtime: resolved}, nil
}

func (t *GrepTool) ID() string          { return grepToolID }
func (t *GrepTool) Description() string { return "Search text in a file or directory recursively." }

func (t *GrepTool) Capability() toolcap.Capability {
	return toolcap.Capability{Operations: []toolcap.Operation{toolcap.OperationFileRead}, Risk: toolcap.RiskLow}
}

func (t *GrepTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "path", Type: tool.ParamString, Required: true, Description: "target file or directory path"},
		{Name: "query", Type: tool.ParamString, Required: true, Description: "search text"},
		{Name: "limit", Type: tool.ParamNumber, Description: "max results, default 50"},
		{Name: "case_sensitive", Type: tool.ParamBoolean, Description: "case sensitive search"},
	}
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any, _ tool.ExecContext) (tool.Result, error) {
	select {
	case <-ctx.Done():
		return tool.Result{}, ctx.Err()
	default:
	}
	pathArg, err := argparse.String(args, "path", true)
	if err != nil {
		return tool.Result{}, err
	}
	query, err := argparse.String(args, "query", true)
	if err != nil {
		return tool.Result{}, err
	}
	limit, err := argparse.Int(args, "limit", 50)
	if err != nil {
		return tool.Result{}, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	caseSensitive := argparse.Bool(args, "case_sensitive")

	target, err := normalizePath(t.runtime.FileSystem(), pathArg)
	if err != nil {
		return tool.Result{}, err
	}
	info, err := t.runtime.FileSystem().Stat(target)
	if err != nil {
		return tool.Result{}, err
	}

	needle := query
	if !caseSensitive {
		needle = strings.ToLower(query)
	}

	var hits []string
	appendMatch := func(path string, line int, text string) bool {
		hits = append(hits, fmt.Sprintf("%s:%d: %s", path, line, text))
		return len(hits) >= limit
	}

	if info.IsDir() {
		walkErr := t.runtime.FileSystem().WalkDir(target, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d == nil || d.IsDir() {
				return nil
			}
			if searchFile(t.runtime.FileSystem(), path, needle, caseSensitive, appendMatch) {
				return errGrepLimitReached
			}
			return nil
		})
		if walkErr != nil && !errors.Is(walkErr, errGrepLimitReached) {
			return tool.Result{}, walkErr
		}
	} else {
		searchFile(t.runtime.FileSystem(), target, needle, caseSensitive, appendMatch)
	}

	if len(hits) == 0 {
		return tool.Result{Content: "(no matches)"}, nil
	}
	out := strings.Join(hits, "\n")
	if len(hits) >= limit {
		out += fmt.Sprintf("\n... (truncated at %d matches)", limit)
	}
	return tool.Result{Content: out}, nil
}

func searchFile(fsys execenv.FileSystem, path, needle string, caseSensitive bool, appendMatch func(string, int, string) bool) bool {
	file, err := fsys.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		candidate := text
		if !caseSensitive {
			candidate = strings.ToLower(candidate)
		}
		if strings.Contains(candidate, needle) {
			if appendMatch(path, lineNo, text) {
				return true
			}
		}
	}
	return false
}
