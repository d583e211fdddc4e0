package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/ssestream"
)

type openAIProvider struct {
	cfg    Config
	client *ssestream.Client
}

func newOpenAI(cfg Config) Provider {
	return &openAIProvider{cfg: cfg, client: ssestream.NewClient()}
}

func (p *openAIProvider) Name() string { return p.cfg.Alias }

func (p *openAIProvider) Models() []ModelInfo { return p.cfg.Models }

func (p *openAIProvider) GetModel(id string) (ModelInfo, bool) {
	for _, m := range p.cfg.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

type openAIReqMsg struct {
	Role       string          `json:"role"`
	Content    any             `json:"content,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Index    int                `json:"index,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIToolCallFunc `json:"function"`
}

type openAIToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string          `json:"type"`
	Function openAIToolDecl  `json:"function"`
}

type openAIToolDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIReqMsg  `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role      string           `json:"role"`
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func toOpenAIMessages(systemPrompt string, messages []message.Message) []openAIReqMsg {
	out := make([]openAIReqMsg, 0, len(messages)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, openAIReqMsg{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		var toolUses []message.Block
		var toolResults []message.Block
		var text strings.Builder
		for _, b := range m.Content {
			switch b.Type {
			case message.BlockText:
				text.WriteString(b.Text)
			case message.BlockToolUse:
				toolUses = append(toolUses, b)
			case message.BlockToolResult:
				toolResults = append(toolResults, b)
			}
		}
		if len(toolResults) > 0 {
			for _, r := range toolResults {
				out = append(out, openAIReqMsg{Role: "tool", ToolCallID: r.ResultForID, Content: r.Content})
			}
			continue
		}
		role := "user"
		if m.Role == message.RoleAssistant {
			role = "assistant"
		}
		msg := openAIReqMsg{Role: role}
		if text.Len() > 0 {
			msg.Content = text.String()
		}
		for _, u := range toolUses {
			raw, _ := json.Marshal(u.ToolInput)
			msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
				ID:   u.ToolUseID,
				Type: "function",
				Function: openAIToolCallFunc{Name: u.ToolName, Arguments: string(raw)},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolDeclaration) []openAITool {
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIToolDecl{
				Name:        t.ID,
				Description: t.Description,
				Parameters:  parametersToJSONSchema(t.Parameters),
			},
		})
	}
	return out
}

func (p *openAIProvider) Stream(ctx context.Context, req *Request) func(yield func(*StreamEvent, error) bool) {
	return func(yield func(*StreamEvent, error) bool) {
		payload := openAIRequest{
			Model:       req.Model,
			Messages:    toOpenAIMessages(req.SystemPrompt, req.Messages),
			Tools:       toOpenAITools(req.Tools),
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Stop:        req.StopSequences,
			Stream:      true,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			yield(nil, fmt.Errorf("provider: openai: encode request: %w", err))
			return
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(raw))
		if err != nil {
			yield(nil, err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.Auth.APIKey)

		es, err := p.client.Stream(ctx, httpReq)
		if err != nil {
			yield(&StreamEvent{Type: EventStreamError, ErrMessage: err.Error(), Retryable: isRetryable(err)}, nil)
			return
		}
		defer es.Close()

		type acc struct {
			name string
			args strings.Builder
		}
		calls := map[int]*acc{}
		idsByIndex := map[int]string{}
		var usage message.Usage
		finishReason := FinishStop

		for {
			frame, ok, err := es.Next(ctx)
			if err != nil {
				yield(&StreamEvent{Type: EventStreamError, ErrMessage: err.Error(), Retryable: isRetryable(err)}, nil)
				return
			}
			if !ok {
				break
			}
			if strings.TrimSpace(frame.Data) == "[DONE]" {
				break
			}
			var chunk openAIStreamChunk
			if jsonErr := json.Unmarshal([]byte(frame.Data), &chunk); jsonErr != nil {
				continue
			}
			usage.InputTokens += chunk.Usage.PromptTokens
			usage.OutputTokens += chunk.Usage.CompletionTokens
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !yield(&StreamEvent{Type: EventTextDelta, Text: choice.Delta.Content}, nil) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				entry, ok := calls[tc.Index]
				if !ok {
					entry = &acc{}
					calls[tc.Index] = entry
				}
				if tc.Function.Name != "" {
					entry.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					entry.args.WriteString(tc.Function.Arguments)
				}
				id := tc.ID
				if !yield(&StreamEvent{Type: EventToolCallDelta, ToolCallID: id, ToolCallName: entry.name, ArgumentsDelta: tc.Function.Arguments}, nil) {
					return
				}
				// openAI emits the id only on the first delta for a given
				// index; remember it so ToolCallComplete can use it.
				if id != "" {
					idsByIndex[tc.Index] = id
				}
			}
			switch choice.FinishReason {
			case "stop":
				finishReason = FinishStop
			case "tool_calls":
				finishReason = FinishToolCalls
			case "length":
				finishReason = FinishLength
			}
		}

		keys := make([]int, 0, len(calls))
		for idx := range calls {
			keys = append(keys, idx)
		}
		sort.Ints(keys)
		for _, idx := range keys {
			entry := calls[idx]
			args := map[string]any{}
			raw := strings.TrimSpace(entry.args.String())
			if raw != "" {
				_ = json.Unmarshal([]byte(raw), &args)
			}
			if !yield(&StreamEvent{Type: EventToolCallComplete, ToolCallID: idsByIndex[idx], ToolCallName: entry.name, Arguments: args}, nil) {
				return
			}
		}
		if len(calls) > 0 {
			finishReason = FinishToolCalls
		}
		yield(&StreamEvent{Type: EventFinishStep, FinishReason: finishReason, Usage: usage}, nil)
	}
}
