// Package provider adapts the canonical message model to each supported
// LLM wire format and decodes their SSE streams into a common event
// sequence. Two concrete families are normative: Anthropic and OpenAI.
package provider

import (
	"context"
	"fmt"

	"github.com/kestrelrun/agentkernel/kernel/message"
	"github.com/kestrelrun/agentkernel/kernel/tool"
)

// ModelInfo describes one model a Provider can target.
type ModelInfo struct {
	ID                 string
	DisplayName        string
	ContextWindowTokens int
}

// ToolDeclaration is the model-visible projection of a registered tool.
type ToolDeclaration struct {
	ID          string
	Description string
	Parameters  []tool.ParameterSchema
}

// DeclareTools projects registered tools into their model-visible form.
func DeclareTools(tools []tool.Tool) []ToolDeclaration {
	out := make([]ToolDeclaration, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDeclaration{ID: t.ID(), Description: t.Description(), Parameters: t.Parameters()})
	}
	return out
}

// Request is the canonical request handed to Stream.
type Request struct {
	Model         string
	SystemPrompt  string
	Messages      []message.Message
	Tools         []ToolDeclaration
	Temperature   *float64
	MaxTokens     int
	StopSequences []string
}

// FinishReason is the terminal state of a turn.
type FinishReason string

const (
	FinishStop       FinishReason = "stop"
	FinishToolCalls  FinishReason = "tool_calls"
	FinishLength     FinishReason = "length"
	FinishError      FinishReason = "error"
	FinishCancelled  FinishReason = "cancelled"
)

// StreamEventType tags the variant held by a StreamEvent.
type StreamEventType string

const (
	EventTextDelta       StreamEventType = "text_delta"
	EventToolCallDelta   StreamEventType = "tool_call_delta"
	EventToolCallComplete StreamEventType = "tool_call_complete"
	EventFinishStep      StreamEventType = "finish_step"
	EventStreamError     StreamEventType = "stream_error"
)

// StreamEvent is the canonical decoded event sequence every adapter emits.
// Ordering guarantee: for a given ToolCall ID, every ToolCallDelta
// precedes its ToolCallComplete, which precedes the turn's FinishStep.
type StreamEvent struct {
	Type StreamEventType

	// EventTextDelta
	Text string

	// EventToolCallDelta / EventToolCallComplete
	ToolCallID        string
	ToolCallName      string
	ArgumentsDelta    string
	Arguments         map[string]any

	// EventFinishStep
	FinishReason FinishReason
	Usage        message.Usage

	// EventStreamError
	ErrMessage string
	Retryable  bool
}

// Provider is the uniform interface over one LLM wire family.
type Provider interface {
	Name() string
	Models() []ModelInfo
	GetModel(id string) (ModelInfo, bool)
	Stream(ctx context.Context, req *Request) func(yield func(*StreamEvent, error) bool)
}

// AuthType names how a provider config authenticates.
type AuthType string

const AuthAPIKey AuthType = "api_key"

// Auth carries provider credentials.
type Auth struct {
	Type   AuthType
	APIKey string
}

// Family names a normative wire encoding.
type Family string

const (
	FamilyAnthropic Family = "anthropic"
	FamilyOpenAI    Family = "openai"
)

// Config configures one registered provider alias.
type Config struct {
	Alias   string
	Family  Family
	BaseURL string
	Auth    Auth
	Models  []ModelInfo
}

func (c Config) validate() error {
	if c.Alias == "" {
		return fmt.Errorf("provider: config missing alias")
	}
	if c.Family != FamilyAnthropic && c.Family != FamilyOpenAI {
		return fmt.Errorf("provider: config %q: unsupported family %q", c.Alias, c.Family)
	}
	if c.Auth.Type != AuthAPIKey {
		return fmt.Errorf("provider: config %q: unsupported auth type %q", c.Alias, c.Auth.Type)
	}
	return nil
}

// Factory resolves a provider alias to a constructed adapter. Registration
// is static, normally performed during process initialization.
type Factory struct {
	configs map[string]Config
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{configs: make(map[string]Config)}
}

// Register validates and stores cfg under cfg.Alias.
func (f *Factory) Register(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	f.configs[cfg.Alias] = cfg
	return nil
}

// NewByAlias constructs the adapter registered under alias. Unknown
// aliases return an error (the absent value spec.md describes).
func (f *Factory) NewByAlias(alias string) (Provider, error) {
	cfg, ok := f.configs[alias]
	if !ok {
		return nil, fmt.Errorf("provider: unknown alias %q", alias)
	}
	switch cfg.Family {
	case FamilyAnthropic:
		return newAnthropic(cfg), nil
	case FamilyOpenAI:
		return newOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("provider: unsupported family %q", cfg.Family)
	}
}

// ListModels returns every model declared across registered configs.
func (f *Factory) ListModels() []ModelInfo {
	var out []ModelInfo
	for _, cfg := range f.configs {
		out = append(out, cfg.Models...)
	}
	return out
}
