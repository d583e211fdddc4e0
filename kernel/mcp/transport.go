package mcp

import (
	"context"
	"errors"
)

// TransportState is the connection-level state machine. Initial:
// Disconnected. Failed is terminal-absorbing until an explicit teardown.
type TransportState int

const (
	Disconnected TransportState = iota
	Connecting
	Connected
	Failed
)

func (s TransportState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrTransportDisconnected names a torn-down transport. StdioTransport's
// Disconnect does not return it to pending callers: each one receives a
// Response carrying RPCError code -32000, "Transport disconnected".
var ErrTransportDisconnected = errors.New("mcp: transport disconnected")

// ErrTransportNotConnected is returned when a request is issued outside
// state Connected.
var ErrTransportNotConnected = errors.New("mcp: transport not connected")

// NotificationHandler receives server-initiated notifications (messages
// with a method and no id).
type NotificationHandler func(method string, params []byte)

// Transport is the JSON-RPC 2.0 channel a Client speaks over: either a
// stdio-framed subprocess or a one-shot HTTP POST.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendRequest(ctx context.Context, method string, params any) (*Response, error)
	SendNotification(ctx context.Context, method string, params any) error
	SetNotificationHandler(h NotificationHandler)
	State() TransportState
}
