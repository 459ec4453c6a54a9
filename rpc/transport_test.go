package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initializeMsg(id any) *Message {
	params, _ := json.Marshal(InitializeParams{ProtocolVersion: ProtocolVersion})
	return &Message{Jsonrpc: Version, ID: id, Method: MethodInitialize, Params: params}
}

func TestTransportRequiresInitialize(t *testing.T) {
	tr := NewServerTransport("test", "1")
	tr.Register(MethodListTools, func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return ListToolsResult{}, nil
	})
	ctx := context.Background()

	resp := tr.Handle(ctx, &Message{Jsonrpc: Version, ID: 1, Method: MethodListTools})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorCodeInvalidRequest, resp.Error.Code)

	// Ping is allowed before the handshake.
	resp = tr.Handle(ctx, &Message{Jsonrpc: Version, ID: 2, Method: MethodPing})
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)

	resp = tr.Handle(ctx, initializeMsg(3))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	assert.True(t, tr.Initialized())

	var result InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "test", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)

	resp = tr.Handle(ctx, &Message{Jsonrpc: Version, ID: 4, Method: MethodListTools})
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestTransportMethodNotFound(t *testing.T) {
	tr := NewServerTransport("test", "1")
	ctx := context.Background()

	tr.Handle(ctx, initializeMsg(1))
	resp := tr.Handle(ctx, &Message{Jsonrpc: Version, ID: 2, Method: "resources/list"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorCodeMethodNotFound, resp.Error.Code)
}

func TestTransportRejectsWrongVersion(t *testing.T) {
	tr := NewServerTransport("test", "1")

	resp := tr.Handle(context.Background(), &Message{Jsonrpc: "1.0", ID: 1, Method: MethodPing})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrorCodeInvalidRequest, resp.Error.Code)
}

func TestTransportNotificationReturnsNil(t *testing.T) {
	tr := NewServerTransport("test", "1")
	ctx := context.Background()

	tr.Handle(ctx, initializeMsg(1))
	tr.Register("notifications/progress", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return nil, nil
	})

	resp := tr.Handle(ctx, &Message{Jsonrpc: Version, Method: "notifications/progress"})
	assert.Nil(t, resp)
}
