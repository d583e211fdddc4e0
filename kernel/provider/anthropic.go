package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/ssestream"
	"github.com/kestrelrun/agentkernel/kernel/tool"
)

type anthropicProvider struct {
	cfg    Config
	client *ssestream.Client
}

func newAnthropic(cfg Config) Provider {
	return &anthropicProvider{cfg: cfg, client: ssestream.NewClient()}
}

func (p *anthropicProvider) Name() string { return p.cfg.Alias }

func (p *anthropicProvider) Models() []ModelInfo { return p.cfg.Models }

func (p *anthropicProvider) GetModel(id string) (ModelInfo, bool) {
	for _, m := range p.cfg.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// anthropicRequest/anthropicMessage/anthropicPart mirror the wire shapes
// of spec.md §4.5(a).
type anthropicRequest struct {
	Model         string              `json:"model"`
	System        string              `json:"system,omitempty"`
	Messages      []anthropicMessage  `json:"messages"`
	Tools         []anthropicToolDecl `json:"tools,omitempty"`
	Temperature   *float64            `json:"temperature,omitempty"`
	StopSequences []string            `json:"stop_sequences,omitempty"`
	MaxTokens     int                 `json:"max_tokens"`
	Stream        bool                `json:"stream"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicPart  `json:"content"`
}

type anthropicPart struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type anthropicToolDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

func toAnthropicTools(tools []ToolDeclaration) []anthropicToolDecl {
	out := make([]anthropicToolDecl, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicToolDecl{Name: t.ID, Description: t.Description, InputSchema: parametersToJSONSchema(t.Parameters)})
	}
	return out
}

func toAnthropicMessages(messages []message.Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		var parts []anthropicPart
		for _, b := range m.Content {
			switch b.Type {
			case message.BlockText:
				if strings.TrimSpace(b.Text) != "" {
					parts = append(parts, anthropicPart{Type: "text", Text: b.Text})
				}
			case message.BlockToolUse:
				parts = append(parts, anthropicPart{Type: "tool_use", ID: b.ToolUseID, Name: b.ToolName, Input: b.ToolInput})
			case message.BlockToolResult:
				parts = append(parts, anthropicPart{Type: "tool_result", ToolUseID: b.ResultForID, Content: b.Content, IsError: b.IsError})
			}
		}
		if len(parts) == 0 {
			continue
		}
		role := "user"
		if m.Role == message.RoleAssistant {
			role = "assistant"
		}
		out = append(out, anthropicMessage{Role: role, Content: parts})
	}
	return out
}

// Stream implements the full duty (a)+(b)+(c): encode the request, POST
// with stream:true, and decode the named Anthropic SSE events into the
// canonical StreamEvent sequence.
func (p *anthropicProvider) Stream(ctx context.Context, req *Request) func(yield func(*StreamEvent, error) bool) {
	return func(yield func(*StreamEvent, error) bool) {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 8192
		}
		payload := anthropicRequest{
			Model:         req.Model,
			System:        req.SystemPrompt,
			Messages:      toAnthropicMessages(req.Messages),
			Tools:         toAnthropicTools(req.Tools),
			Temperature:   req.Temperature,
			StopSequences: req.StopSequences,
			MaxTokens:     maxTokens,
			Stream:        true,
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			yield(nil, fmt.Errorf("provider: anthropic: encode request: %w", err))
			return
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/messages", bytes.NewReader(raw))
		if err != nil {
			yield(nil, err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", p.cfg.Auth.APIKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		es, err := p.client.Stream(ctx, httpReq)
		if err != nil {
			yield(&StreamEvent{Type: EventStreamError, ErrMessage: err.Error(), Retryable: isRetryable(err)}, nil)
			return
		}
		defer es.Close()

		type pendingCall struct {
			id, name string
			argsBuf  strings.Builder
		}
		blocks := map[int]*pendingCall{}
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
			switch frame.Event {
			case "content_block_start":
				var evt struct {
					Index        int `json:"index"`
					ContentBlock struct {
						Type string `json:"type"`
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"content_block"`
				}
				if jsonErr := json.Unmarshal([]byte(frame.Data), &evt); jsonErr != nil {
					continue
				}
				if evt.ContentBlock.Type == "tool_use" {
					blocks[evt.Index] = &pendingCall{id: evt.ContentBlock.ID, name: evt.ContentBlock.Name}
				}
			case "content_block_delta":
				var evt struct {
					Index int `json:"index"`
					Delta struct {
						Type        string `json:"type"`
						Text        string `json:"text"`
						PartialJSON string `json:"partial_json"`
					} `json:"delta"`
				}
				if jsonErr := json.Unmarshal([]byte(frame.Data), &evt); jsonErr != nil {
					continue
				}
				switch evt.Delta.Type {
				case "text_delta":
					if !yield(&StreamEvent{Type: EventTextDelta, Text: evt.Delta.Text}, nil) {
						return
					}
				case "input_json_delta":
					if pc, ok := blocks[evt.Index]; ok {
						pc.argsBuf.WriteString(evt.Delta.PartialJSON)
						if !yield(&StreamEvent{Type: EventToolCallDelta, ToolCallID: pc.id, ToolCallName: pc.name, ArgumentsDelta: evt.Delta.PartialJSON}, nil) {
							return
						}
					}
				}
			case "content_block_stop":
				var evt struct {
					Index int `json:"index"`
				}
				if jsonErr := json.Unmarshal([]byte(frame.Data), &evt); jsonErr != nil {
					continue
				}
				pc, ok := blocks[evt.Index]
				if !ok {
					continue
				}
				args := map[string]any{}
				raw := strings.TrimSpace(pc.argsBuf.String())
				if raw != "" {
					_ = json.Unmarshal([]byte(raw), &args)
				}
				if !yield(&StreamEvent{Type: EventToolCallComplete, ToolCallID: pc.id, ToolCallName: pc.name, Arguments: args}, nil) {
					return
				}
				delete(blocks, evt.Index)
			case "message_delta":
				var evt struct {
					Delta struct {
						StopReason string `json:"stop_reason"`
					} `json:"delta"`
					Usage struct {
						OutputTokens int `json:"output_tokens"`
					} `json:"usage"`
				}
				if jsonErr := json.Unmarshal([]byte(frame.Data), &evt); jsonErr != nil {
					continue
				}
				usage.OutputTokens += evt.Usage.OutputTokens
				finishReason = normalizeAnthropicStopReason(evt.Delta.StopReason)
			case "message_start":
				var evt struct {
					Message struct {
						Usage struct {
							InputTokens              int `json:"input_tokens"`
							CacheReadInputTokens     int `json:"cache_read_input_tokens"`
							CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
						} `json:"usage"`
					} `json:"message"`
				}
				if jsonErr := json.Unmarshal([]byte(frame.Data), &evt); jsonErr != nil {
					continue
				}
				usage.InputTokens += evt.Message.Usage.InputTokens
				usage.CacheReadTokens += evt.Message.Usage.CacheReadInputTokens
				usage.CacheWriteTokens += evt.Message.Usage.CacheCreationInputTokens
			case "error":
				var evt struct {
					Error struct {
						Message string `json:"message"`
					} `json:"error"`
				}
				_ = json.Unmarshal([]byte(frame.Data), &evt)
				yield(&StreamEvent{Type: EventStreamError, ErrMessage: evt.Error.Message, Retryable: false}, nil)
				return
			case "message_stop", "ping":
				// no-op markers.
			}
		}

		if len(blocks) > 0 {
			finishReason = FinishToolCalls
		}
		yield(&StreamEvent{Type: EventFinishStep, FinishReason: finishReason, Usage: usage}, nil)
	}
}

func normalizeAnthropicStopReason(reason string) FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return FinishStop
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	default:
		return FinishStop
	}
}

func parametersToJSONSchema(params []tool.ParameterSchema) map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func isRetryable(err error) bool {
	var terr *ssestream.TransportError
	if errors.As(err, &terr) {
		return terr.Retryable
	}
	return false
}
