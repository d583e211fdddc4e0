package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport double driven entirely by
// canned responses keyed by method, for exercising Client and
// ToolBridge without a real subprocess or HTTP server.
type fakeTransport struct {
	state     TransportState
	responses map[string]json.RawMessage
	handler   NotificationHandler
	calls     []string
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.state = Connected; return nil }
func (f *fakeTransport) Disconnect()                       { f.state = Disconnected }
func (f *fakeTransport) State() TransportState             { return f.state }
func (f *fakeTransport) SetNotificationHandler(h NotificationHandler) { f.handler = h }
func (f *fakeTransport) SendNotification(ctx context.Context, method string, params any) error {
	f.calls = append(f.calls, method)
	return nil
}
func (f *fakeTransport) SendRequest(ctx context.Context, method string, params any) (*Response, error) {
	f.calls = append(f.calls, method)
	raw, ok := f.responses[method]
	if !ok {
		return &Response{Error: &RPCError{Code: -32601, Message: "method not found: " + method}}, nil
	}
	return &Response{Result: raw}, nil
}

func TestClientInitializeHandshakeAndListTools(t *testing.T) {
	ft := &fakeTransport{responses: map[string]json.RawMessage{
		"initialize": json.RawMessage(`{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"srv","version":"1"}}`),
		"tools/list": json.RawMessage(`{"tools":[{"name":"ping","description":"pings","inputSchema":{"type":"object","properties":{"count":{"type":"number","description":"times"}},"required":["count"]}}]}`),
	}}
	c := NewClient("srv", ft, nil)
	require.NoError(t, c.Initialize(context.Background()))
	require.Equal(t, ClientReady, c.State())
	require.Contains(t, ft.calls, "notifications/initialized")

	tools := c.Tools()
	require.Len(t, tools, 1)
	require.Equal(t, "ping", tools[0].Name)
}

func TestClientCallToolReturnsJoinedText(t *testing.T) {
	ft := &fakeTransport{responses: map[string]json.RawMessage{
		"initialize":  json.RawMessage(`{"capabilities":{}}`),
		"tools/list":  json.RawMessage(`{"tools":[{"name":"ping"}]}`),
		"tools/call":  json.RawMessage(`{"content":[{"type":"text","text":"pong"}],"isError":false}`),
	}}
	c := NewClient("srv", ft, nil)
	require.NoError(t, c.Initialize(context.Background()))

	text, isError, err := c.CallTool(context.Background(), "ping", nil)
	require.NoError(t, err)
	require.False(t, isError)
	require.Equal(t, "pong", text)
}

func TestToolBridgeIDAndParameterProjection(t *testing.T) {
	ft := &fakeTransport{responses: map[string]json.RawMessage{
		"initialize": json.RawMessage(`{"capabilities":{}}`),
		"tools/list": json.RawMessage(`{"tools":[]}`),
	}}
	c := NewClient("srv", ft, nil)
	require.NoError(t, c.Initialize(context.Background()))

	info := ToolInfo{
		Name:        "ping",
		Description: "pings a host",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"host":  map[string]any{"type": "string", "description": "target host"},
				"count": map[string]any{"type": "number"},
			},
			"required": []any{"host"},
		},
	}
	b := NewToolBridge(c, info)
	require.Equal(t, "mcp_srv_ping", b.ID())

	params := b.Parameters()
	require.Len(t, params, 2)
	require.Equal(t, "count", params[0].Name)
	require.Equal(t, "host", params[1].Name)
	require.True(t, params[1].Required)
	require.False(t, params[0].Required)
}
