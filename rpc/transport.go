package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes the params of one request method and returns either a
// result value (marshalled into the response) or a protocol error.
type Handler func(ctx context.Context, params json.RawMessage) (any, *Error)

// ServerTransport handles JSON-RPC messages for one request lifecycle. Its
// initialized flag lives only in this object: the session protocol requires
// initialize before any other method, but this server constructs a fresh
// transport per inbound request, so callers resuming a persisted session must
// bring the flag in sync first (see session.Manager.AttachTransport).
type ServerTransport struct {
	serverInfo  ServerInfo
	initialized bool
	handlers    map[string]Handler
}

// NewServerTransport constructs a transport advertising the given server
// identity. The initialize and ping methods are built in; everything else is
// registered by the caller.
func NewServerTransport(name, version string) *ServerTransport {
	return &ServerTransport{
		serverInfo: ServerInfo{Name: name, Version: version},
		handlers:   map[string]Handler{},
	}
}

// Register installs the handler for a method, replacing any previous one.
func (t *ServerTransport) Register(method string, h Handler) {
	t.handlers[method] = h
}

// Initialized reports whether this transport has completed its handshake.
func (t *ServerTransport) Initialized() bool { return t.initialized }

// Handle dispatches one message and returns the response. Notifications
// (no id) return nil. Any method other than initialize and ping fails with
// an invalid-request error until the handshake completed.
func (t *ServerTransport) Handle(ctx context.Context, msg *Message) *Message {
	if msg.Jsonrpc != Version {
		return t.errorResponse(msg.ID, ErrorCodeInvalidRequest, fmt.Sprintf("unsupported jsonrpc version %q", msg.Jsonrpc))
	}

	switch msg.Method {
	case MethodInitialize:
		return t.handleInitialize(msg)
	case MethodPing:
		return t.response(msg.ID, struct{}{})
	}

	if !t.initialized {
		return t.errorResponse(msg.ID, ErrorCodeInvalidRequest, "server not initialized")
	}

	h, ok := t.handlers[msg.Method]
	if !ok {
		return t.errorResponse(msg.ID, ErrorCodeMethodNotFound, fmt.Sprintf("method %q not found", msg.Method))
	}

	result, rpcErr := h(ctx, msg.Params)
	if rpcErr != nil {
		return t.errorResponse(msg.ID, rpcErr.Code, rpcErr.Message)
	}
	if msg.ID == nil {
		return nil // notification
	}
	return t.response(msg.ID, result)
}

func (t *ServerTransport) handleInitialize(msg *Message) *Message {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return t.errorResponse(msg.ID, ErrorCodeInvalidParams, "malformed initialize params")
		}
	}
	t.initialized = true
	version := params.ProtocolVersion
	if version == "" {
		version = ProtocolVersion
	}
	return t.response(msg.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
		ServerInfo:      t.serverInfo,
	})
}

func (t *ServerTransport) response(id any, result any) *Message {
	raw, err := json.Marshal(result)
	if err != nil {
		return t.errorResponse(id, ErrorCodeInternal, "failed to marshal result")
	}
	return &Message{Jsonrpc: Version, ID: id, Result: raw}
}

func (t *ServerTransport) errorResponse(id any, code int, message string) *Message {
	return &Message{Jsonrpc: Version, ID: id, Error: &Error{Code: code, Message: message}}
}
