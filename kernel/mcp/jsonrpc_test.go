package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncomingMessageDiscriminatesResponseVsNotification(t *testing.T) {
	var resp incomingMessage
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":3,"result":{}}`), &resp))
	require.True(t, resp.isResponse())
	require.False(t, resp.isNotification())

	var errResp incomingMessage
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":4,"error":{"code":-32000,"message":"boom"}}`), &errResp))
	require.True(t, errResp.isResponse())

	var notif incomingMessage
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`), &notif))
	require.False(t, notif.isResponse())
	require.True(t, notif.isNotification())
}

func TestResponseErrorMessage(t *testing.T) {
	ok := &Response{ID: 1, Result: json.RawMessage(`{}`)}
	require.True(t, ok.Ok())
	require.Equal(t, "", ok.ErrorMessage())

	failed := &Response{ID: 2, Error: &RPCError{Code: -1, Message: "nope"}}
	require.False(t, failed.Ok())
	require.Equal(t, "nope", failed.ErrorMessage())
}
