package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// protocolVersion is the MCP protocol version this client speaks.
const protocolVersion = "2024-11-05"

// ClientState layers handshake progress on top of the transport's
// connection state: a transport can be Connected while the client is
// still Initializing.
type ClientState int

const (
	ClientInitializing ClientState = iota
	ClientReady
)

func (s ClientState) String() string {
	if s == ClientReady {
		return "ready"
	}
	return "initializing"
}

// ServerCapabilities records what the server advertised during
// initialize; only the fields the bridge cares about are modeled.
type ServerCapabilities struct {
	Tools *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"tools"`
}

// ToolInfo is one tool descriptor as reported by tools/list.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      clientInfo         `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []ToolInfo `json:"tools"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolsCallResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// Client drives one MCP server through its handshake and exposes
// tools/list and tools/call once ready. It owns the transport's
// notification handler to watch for tools/list_changed.
type Client struct {
	Name      string
	transport Transport
	logger    *slog.Logger

	state        atomic.Int32
	mu           sync.RWMutex
	capabilities ServerCapabilities
	tools        []ToolInfo

	onToolsChanged func()
}

func NewClient(name string, transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{Name: name, transport: transport, logger: logger}
	c.state.Store(int32(ClientInitializing))
	transport.SetNotificationHandler(c.handleNotification)
	return c
}

func (c *Client) State() ClientState { return ClientState(c.state.Load()) }

// OnToolsChanged registers a callback invoked when the server announces
// notifications/tools/list_changed. The callback should re-fetch
// ListTools.
func (c *Client) OnToolsChanged(fn func()) { c.onToolsChanged = fn }

func (c *Client) handleNotification(method string, params []byte) {
	switch method {
	case "notifications/tools/list_changed":
		if c.onToolsChanged != nil {
			c.onToolsChanged()
		}
	case "notifications/initialized":
	default:
		c.logger.Debug("mcp: unhandled notification", "server", c.Name, "method", method)
	}
}

// Initialize connects the transport, performs the initialize handshake,
// sends notifications/initialized, and fetches the initial tool list.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("mcp: client %s: connect: %w", c.Name, err)
	}

	resp, err := c.transport.SendRequest(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "agentkernel", Version: "0.1.0"},
	})
	if err != nil {
		return fmt.Errorf("mcp: client %s: initialize: %w", c.Name, err)
	}
	if !resp.Ok() {
		return fmt.Errorf("mcp: client %s: initialize: %s", c.Name, resp.ErrorMessage())
	}
	var initRes initializeResult
	if err := json.Unmarshal(resp.Result, &initRes); err != nil {
		return fmt.Errorf("mcp: client %s: decode initialize result: %w", c.Name, err)
	}
	c.mu.Lock()
	c.capabilities = initRes.Capabilities
	c.mu.Unlock()

	if err := c.transport.SendNotification(ctx, "notifications/initialized", struct{}{}); err != nil {
		return fmt.Errorf("mcp: client %s: notify initialized: %w", c.Name, err)
	}

	if _, err := c.ListTools(ctx); err != nil {
		return fmt.Errorf("mcp: client %s: initial tools/list: %w", c.Name, err)
	}

	c.state.Store(int32(ClientReady))
	c.logger.Info("mcp client ready", "server", c.Name, "tools", len(c.tools))
	return nil
}

// ListTools fetches and caches the server's tool list.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	resp, err := c.transport.SendRequest(ctx, "tools/list", struct{}{})
	if err != nil {
		return nil, err
	}
	if !resp.Ok() {
		return nil, fmt.Errorf("mcp: client %s: tools/list: %s", c.Name, resp.ErrorMessage())
	}
	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcp: client %s: decode tools/list: %w", c.Name, err)
	}
	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()
	return result.Tools, nil
}

// Tools returns the cached tool list without a round trip.
func (c *Client) Tools() []ToolInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolInfo, len(c.tools))
	copy(out, c.tools)
	return out
}

// CallTool invokes one tool by name and returns its concatenated text
// content and error flag.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (text string, isError bool, err error) {
	if c.State() != ClientReady {
		return "", false, fmt.Errorf("mcp: client %s: not ready", c.Name)
	}
	resp, err := c.transport.SendRequest(ctx, "tools/call", toolsCallParams{Name: name, Arguments: args})
	if err != nil {
		return "", false, err
	}
	if !resp.Ok() {
		return resp.ErrorMessage(), true, nil
	}
	var result toolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", false, fmt.Errorf("mcp: client %s: decode tools/call result: %w", c.Name, err)
	}
	var parts []string
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += "\n"
		}
		joined += p
	}
	return joined, result.IsError, nil
}

// Disconnect tears down the underlying transport.
func (c *Client) Disconnect() {
	c.transport.Disconnect()
	c.state.Store(int32(ClientInitializing))
}
