package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPTransportSendRequestRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":{"tools":[]}}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil)
	require.NoError(t, tr.Connect(context.Background()))
	require.Equal(t, Connected, tr.State())

	resp, err := tr.SendRequest(context.Background(), "tools/list", struct{}{})
	require.NoError(t, err)
	require.True(t, resp.Ok())

	tr.Disconnect()
	require.Equal(t, Disconnected, tr.State())
}

func TestHTTPTransportRejectsRequestBeforeConnect(t *testing.T) {
	tr := NewHTTPTransport("http://example.invalid", nil)
	_, err := tr.SendRequest(context.Background(), "tools/list", struct{}{})
	require.ErrorIs(t, err, ErrTransportNotConnected)
}
