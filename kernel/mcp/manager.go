package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kestrelrun/agentkernel/kernel/tool"
)

// ServerSpec describes one configured MCP server: a command to spawn
// over stdio, or a URL to speak HTTP to.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
	Headers map[string]string
}

func (s ServerSpec) newTransport() Transport {
	if s.URL != "" {
		return NewHTTPTransport(s.URL, s.Headers)
	}
	return NewStdioTransport(s.Command, s.Args, s.Env, nil)
}

// Manager owns one Client per configured server and bridges their tools
// into a tool.Registry under the mcp_<server>_<tool> naming convention.
type Manager struct {
	registry *tool.Registry
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

func NewManager(registry *tool.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: registry, logger: logger, clients: make(map[string]*Client)}
}

// ConnectAll initializes every server and registers its tools. It keeps
// going on a single server's failure, collecting all errors.
func (m *Manager) ConnectAll(ctx context.Context, specs []ServerSpec) error {
	var errs []error
	for _, spec := range specs {
		if err := m.connectOne(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("mcp: server %s: %w", spec.Name, err))
		}
	}
	if len(errs) > 0 {
		msg := "mcp: one or more servers failed to connect:"
		for _, e := range errs {
			msg += " " + e.Error() + ";"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func (m *Manager) connectOne(ctx context.Context, spec ServerSpec) error {
	client := NewClient(spec.Name, spec.newTransport(), m.logger)
	client.OnToolsChanged(func() {
		m.refreshServerTools(context.Background(), client)
	})
	if err := client.Initialize(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.clients[spec.Name] = client
	m.mu.Unlock()

	m.registerServerTools(client)
	return nil
}

func (m *Manager) registerServerTools(client *Client) {
	for _, info := range client.Tools() {
		m.registry.Register(NewToolBridge(client, info))
	}
}

func (m *Manager) refreshServerTools(ctx context.Context, client *Client) {
	old := client.Tools()
	if _, err := client.ListTools(ctx); err != nil {
		m.logger.Warn("mcp: refresh tools/list failed", "server", client.Name, "error", err)
		return
	}
	for _, info := range old {
		m.registry.Unregister(bridgeID(client.Name, info.Name))
	}
	m.registerServerTools(client)
}

// DisconnectAll tears down every client's transport and removes their
// bridged tools from the registry.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, client := range m.clients {
		for _, info := range client.Tools() {
			m.registry.Unregister(bridgeID(client.Name, info.Name))
		}
		client.Disconnect()
	}
	m.clients = make(map[string]*Client)
}

// Client returns the named server's client, if connected.
func (m *Manager) Client(name string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[name]
	return c, ok
}
