package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kestrelrun/agentkernel/kernel/tool"
)

func writeTestSkill(t *testing.T, dir, name, body string) Meta {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(skillDir, "SKILL.md")
	content := "---\nname: " + name + "\ndescription: test skill\n---\n" + body
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return Meta{Name: name, Description: "test skill", Path: path}
}

func TestToolIDIsExactlySkill(t *testing.T) {
	tl := NewTool(nil)
	if tl.ID() != "skill" {
		t.Fatalf("expected id %q, got %q", "skill", tl.ID())
	}
}

func TestToolExecuteReturnsBodyWithoutFrontMatter(t *testing.T) {
	dir := t.TempDir()
	meta := writeTestSkill(t, dir, "echo_skill", "# Echo\n\nDo the echo thing.\n")
	tl := NewTool([]Meta{meta})

	result, err := tl.Execute(context.Background(), map[string]any{"name": "echo_skill"}, tool.ExecContext{})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if strings.Contains(result.Content, "description: test skill") {
		t.Fatalf("front matter leaked into body: %q", result.Content)
	}
	if !strings.Contains(result.Content, "Do the echo thing.") {
		t.Fatalf("expected skill body, got %q", result.Content)
	}
}

func TestToolExecuteUnknownNameIsError(t *testing.T) {
	tl := NewTool(nil)
	result, err := tl.Execute(context.Background(), map[string]any{"name": "missing"}, tool.ExecContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for unknown skill name")
	}
}

func TestToolRefreshReplacesIndex(t *testing.T) {
	dir := t.TempDir()
	meta := writeTestSkill(t, dir, "second_skill", "second body\n")
	tl := NewTool(nil)
	tl.Refresh([]Meta{meta})

	result, err := tl.Execute(context.Background(), map[string]any{"name": "second_skill"}, tool.ExecContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Content, "second body") {
		t.Fatalf("expected refreshed skill body, got %q", result.Content)
	}
}
