package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/rpc"
	"github.com/hupe1980/agentgraph/stream"
)

// chatToolName is the single tool the session protocol exposes: one
// conversational turn against the session's graph.
const chatToolName = "chat"

// handleRPC serves the JSON-RPC session protocol. Every request builds a
// fresh transport; the session manager reconstructs its handshake state from
// the conversation row, so the client sees a stateful connection over
// stateless HTTP. An initialize without a session header creates the
// session; everything else requires the Mcp-Session-Id header.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var msg rpc.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, rpc.ErrorCodeParse, "malformed JSON-RPC message")
		return
	}

	execCtx := identity(r)
	graph, ok := s.engine.Graph(execCtx.GraphID)
	if !ok {
		writeRPCError(w, http.StatusBadRequest, msg.ID, rpc.ErrorCodeInvalidRequest, "unknown graph "+execCtx.GraphID)
		return
	}

	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		if msg.Method != rpc.MethodInitialize {
			writeRPCError(w, http.StatusBadRequest, msg.ID, rpc.ErrorCodeInvalidRequest, "missing "+HeaderSessionID+" header")
			return
		}
		s.handleRPCInitialize(w, r, &msg, graph, execCtx)
		return
	}

	rec, err := s.engine.Sessions().ResumeSession(r.Context(), sessionID, graph.ID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeRPCError(w, http.StatusNotFound, msg.ID, rpc.ErrorCodeInvalidRequest, err.Error())
			return
		}
		writeRPCError(w, http.StatusInternalServerError, msg.ID, rpc.ErrorCodeInternal, err.Error())
		return
	}

	t := s.newTransport(execCtx, sessionID)
	if err := s.engine.Sessions().AttachTransport(r.Context(), rec, t); err != nil {
		writeRPCError(w, http.StatusInternalServerError, msg.ID, rpc.ErrorCodeInternal, err.Error())
		return
	}

	resp := t.Handle(r.Context(), &msg)
	if msg.Method == rpc.MethodInitialize && resp != nil && resp.Error == nil {
		// A client may re-run the handshake on an existing session.
		if err := s.engine.Sessions().MarkInitialized(r.Context(), sessionID); err != nil {
			s.logger.Error("persist handshake", "error", err, "session_id", sessionID)
		}
	}
	w.Header().Set(HeaderSessionID, sessionID)
	writeRPCResponse(w, resp)
}

// handleRPCInitialize creates the session and answers the handshake.
func (s *Server) handleRPCInitialize(w http.ResponseWriter, r *http.Request, msg *rpc.Message, graph *core.Graph, execCtx core.ExecutionContext) {
	var params rpc.InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			writeRPCError(w, http.StatusBadRequest, msg.ID, rpc.ErrorCodeInvalidParams, "malformed initialize params")
			return
		}
	}
	version := params.ProtocolVersion
	if version == "" {
		version = rpc.ProtocolVersion
	}

	rec, err := s.engine.Sessions().CreateSession(r.Context(), execCtx.TenantID, execCtx.ProjectID, graph, version)
	if err != nil {
		writeRPCError(w, http.StatusInternalServerError, msg.ID, rpc.ErrorCodeInternal, err.Error())
		return
	}

	t := s.newTransport(execCtx, rec.SessionID)
	resp := t.Handle(r.Context(), msg)
	if resp != nil && resp.Error == nil {
		if err := s.engine.Sessions().MarkInitialized(r.Context(), rec.SessionID); err != nil {
			s.logger.Error("persist handshake", "error", err, "session_id", rec.SessionID)
		}
	}
	w.Header().Set(HeaderSessionID, rec.SessionID)
	writeRPCResponse(w, resp)
}

// newTransport builds the per-request transport with the chat tool bound to
// one session's conversation.
func (s *Server) newTransport(execCtx core.ExecutionContext, sessionID string) *rpc.ServerTransport {
	t := rpc.NewServerTransport(s.serverName, s.serverVersion)

	t.Register(rpc.MethodListTools, func(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
		return rpc.ListToolsResult{Tools: []rpc.Tool{{
			Name:        chatToolName,
			Description: "Send a message to the conversation and receive the final response.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{"type": "string", "description": "The user message."},
				},
				"required": []string{"message"},
			},
		}}}, nil
	})

	t.Register(rpc.MethodCallTool, func(ctx context.Context, params json.RawMessage) (any, *rpc.Error) {
		var call rpc.CallToolParams
		if err := json.Unmarshal(params, &call); err != nil {
			return nil, &rpc.Error{Code: rpc.ErrorCodeInvalidParams, Message: "malformed tools/call params"}
		}
		if call.Name != chatToolName {
			return nil, &rpc.Error{Code: rpc.ErrorCodeInvalidParams, Message: "unknown tool " + call.Name}
		}
		message, _ := call.Arguments["message"].(string)
		if message == "" {
			return nil, &rpc.Error{Code: rpc.ErrorCodeInvalidParams, Message: "message argument is required"}
		}
		if rawCtx, ok := call.Arguments["request_context"].(map[string]any); ok {
			execCtx.RequestContext = rawCtx
		}

		sink := stream.NewRPCRenderer()
		result := s.engine.Execute(ctx, execCtx, sessionID, message, "", sink)
		if result.Err != nil && !sink.Completed() {
			return nil, &rpc.Error{Code: rpc.ErrorCodeInternal, Message: result.Err.Error()}
		}
		return sink.Result(), nil
	})

	return t
}

// writeRPCResponse renders a JSON-RPC response message. A nil response
// (notification) is answered with 202 Accepted and an empty body.
func writeRPCResponse(w http.ResponseWriter, resp *rpc.Message) {
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// writeRPCError renders a JSON-RPC error with a matching HTTP status so
// plain HTTP clients see the failure class too.
func writeRPCError(w http.ResponseWriter, status int, id any, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&rpc.Message{
		Jsonrpc: rpc.Version,
		ID:      id,
		Error:   &rpc.Error{Code: code, Message: message},
	})
}
