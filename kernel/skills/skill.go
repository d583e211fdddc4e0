package skills

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kestrelrun/agentkernel/kernel/tool"
)

const skillToolID = "skill"

// Tool activates one discovered skill by name, returning its SKILL.md body
// (front matter stripped) as the tool result. Its ID is the literal
// string "skill" — the orchestrator's history pruning exempts tool
// results produced under this exact id so a skill's full body survives
// compaction regardless of how old the turn that fetched it is.
type Tool struct {
	mu    sync.RWMutex
	metas map[string]Meta
}

// NewTool indexes discovered metadata by name for fast activation lookup.
func NewTool(metas []Meta) *Tool {
	t := &Tool{metas: make(map[string]Meta, len(metas))}
	for _, m := range metas {
		t.metas[m.Name] = m
	}
	return t
}

// Refresh replaces the indexed metadata, e.g. after a directory rescan.
func (t *Tool) Refresh(metas []Meta) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metas = make(map[string]Meta, len(metas))
	for _, m := range metas {
		t.metas[m.Name] = m
	}
}

func (t *Tool) ID() string          { return skillToolID }
func (t *Tool) Description() string { return "Activate one named skill and load its full instructions." }

func (t *Tool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "name", Type: tool.ParamString, Required: true, Description: "the skill's name, as declared in its metadata"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any, _ tool.ExecContext) (tool.Result, error) {
	name, _ := args["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return tool.Result{}, fmt.Errorf("tool: missing required arg %q", "name")
	}

	t.mu.RLock()
	meta, ok := t.metas[name]
	t.mu.RUnlock()
	if !ok {
		return tool.Result{Content: fmt.Sprintf("no skill named %q is active", name), IsError: true}, nil
	}

	body, err := loadSkillBody(meta.Path)
	if err != nil {
		return tool.Result{Content: fmt.Sprintf("failed to load skill %q: %v", name, err), IsError: true}, nil
	}
	return tool.Result{Content: body}, nil
}

func loadSkillBody(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	_, body := parseFrontMatter(normalizeText(string(raw)))
	return strings.TrimSpace(body), nil
}
