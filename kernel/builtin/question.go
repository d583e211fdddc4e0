package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/kestrelrun/agentkernel/kernel/tool"
)

const questionToolID = "question"

// QuestionTool asks the user one or more questions through the session's
// QuestionHandler. Absent a handler, it returns the questions as text
// rather than blocking forever.
type QuestionTool struct{}

func NewQuestion() *QuestionTool { return &QuestionTool{} }

func (t *QuestionTool) ID() string { return questionToolID }
func (t *QuestionTool) Description() string {
	return "Ask the user a question to gather information or clarify requirements."
}

func (t *QuestionTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "questions", Type: tool.ParamArray, Required: true, Description: "questions to ask the user"},
	}
}

func (t *QuestionTool) Execute(ctx context.Context, args map[string]any, ec tool.ExecContext) (tool.Result, error) {
	questions, err := extractQuestions(args)
	if err != nil {
		return tool.Result{}, err
	}
	if len(questions) == 0 {
		return tool.Result{Content: "no questions provided", IsError: true}, nil
	}

	if ec.QuestionHandler == nil {
		var out strings.Builder
		out.WriteString("questions for user (no interactive handler available):")
		for i, q := range questions {
			fmt.Fprintf(&out, "\n%d. %s", i+1, q)
		}
		return tool.Result{Content: out.String(), IsError: true}, nil
	}

	resp, err := ec.QuestionHandler(ctx, tool.QuestionInfo{Questions: questions})
	if err != nil {
		return tool.Result{Content: fmt.Sprintf("failed to get user response: %v", err), IsError: true}, nil
	}
	if resp.Cancelled {
		return tool.Result{Content: "user cancelled the question", IsError: true}, nil
	}

	var out strings.Builder
	out.WriteString("user responses:")
	for i, q := range questions {
		if i >= len(resp.Answers) {
			break
		}
		fmt.Fprintf(&out, "\nQ%d: %s\nA%d: %s", i+1, q, i+1, resp.Answers[i])
	}
	return tool.Result{Content: out.String()}, nil
}

func extractQuestions(args map[string]any) ([]string, error) {
	raw, ok := args["questions"]
	if !ok {
		return nil, fmt.Errorf("tool: missing required arg %q", "questions")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("tool: arg %q must be an array", "questions")
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if q, ok := v["question"].(string); ok {
				out = append(out, q)
			}
		}
	}
	return out, nil
}
