package builtin

import (
	"context"
	"fmt"

	"github.com/kestrelrun/agentkernel/kernel/tool"
)

const taskToolID = "task"

// TaskTool launches a child session to handle a complex, multi-step task
// autonomously, returning its final assistant text.
type TaskTool struct{}

func NewTask() *TaskTool { return &TaskTool{} }

func (t *TaskTool) ID() string { return taskToolID }
func (t *TaskTool) Description() string {
	return "Launch a new agent to handle a complex, multistep task autonomously."
}

func (t *TaskTool) Parameters() []tool.ParameterSchema {
	return []tool.ParameterSchema{
		{Name: "prompt", Type: tool.ParamString, Required: true, Description: "the task for the agent to perform"},
		{Name: "description", Type: tool.ParamString, Required: true, Description: "a short description of the task"},
		{Name: "subagent_type", Type: tool.ParamString, Required: true, Enum: []any{"general", "explore"}, Description: "the type of agent to use"},
	}
}

func (t *TaskTool) Execute(ctx context.Context, args map[string]any, ec tool.ExecContext) (tool.Result, error) {
	prompt, _ := args["prompt"].(string)
	description, _ := args["description"].(string)
	subagentType, _ := args["subagent_type"].(string)
	if prompt == "" {
		return tool.Result{}, fmt.Errorf("tool: missing required arg %q", "prompt")
	}
	if subagentType == "" {
		subagentType = "general"
	}

	if ec.CreateChildSession == nil {
		return tool.Result{Content: "task tool requires a session context to create child sessions", IsError: true}, nil
	}

	response, err := ec.CreateChildSession(ctx, subagentType, prompt)
	if err != nil {
		return tool.Result{Content: fmt.Sprintf("failed to run child task: %v", err), IsError: true}, nil
	}
	if response == "" {
		response = "task completed with no output"
	}
	if description != "" {
		response = fmt.Sprintf("[%s]\n%s", description, response)
	}
	return tool.Result{Content: response}, nil
}
