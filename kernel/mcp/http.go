package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// HTTPTransport is the minimal MCP transport: it considers itself
// Connected as soon as Connect is called (there is no persistent
// socket) and issues one synchronous POST per request, correlating the
// reply by decoding the response body directly rather than by id.
type HTTPTransport struct {
	url     string
	headers map[string]string
	client  *http.Client

	state atomic.Int32

	handler NotificationHandler
	nextID  atomic.Int64
}

func NewHTTPTransport(url string, headers map[string]string) *HTTPTransport {
	t := &HTTPTransport{url: url, headers: headers, client: &http.Client{}}
	t.state.Store(int32(Disconnected))
	return t
}

func (t *HTTPTransport) State() TransportState { return TransportState(t.state.Load()) }

// Connect is a no-op beyond flipping state: the connection is
// established lazily, on first request.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	t.state.Store(int32(Connected))
	return nil
}

// Disconnect has no subprocess or socket to tear down; it simply marks
// the transport Disconnected.
func (t *HTTPTransport) Disconnect() {
	t.state.Store(int32(Disconnected))
}

func (t *HTTPTransport) SendRequest(ctx context.Context, method string, params any) (*Response, error) {
	if t.State() != Connected {
		return nil, ErrTransportNotConnected
	}
	id := t.nextID.Add(1)
	body, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mcp: http: %w", err)
	}
	defer resp.Body.Close()

	var out Response
	if decErr := json.NewDecoder(resp.Body).Decode(&out); decErr != nil {
		return nil, fmt.Errorf("mcp: http: decode response: %w", decErr)
	}
	out.ID = id
	return &out, nil
}

// SendNotification fires a one-way POST and discards the response.
func (t *HTTPTransport) SendNotification(ctx context.Context, method string, params any) error {
	if t.State() != Connected {
		return nil
	}
	body, err := json.Marshal(newNotification(method, params))
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// SetNotificationHandler is accepted for interface parity; the minimal
// HTTP transport has no inbound channel to deliver server-initiated
// notifications on.
func (t *HTTPTransport) SetNotificationHandler(h NotificationHandler) {
	t.handler = h
}
