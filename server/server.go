// Package server exposes the execution core over its three wire protocols:
// a streaming chat-completion endpoint (SSE), a generic UI data-stream
// endpoint, and the JSON-RPC session endpoint. Handlers translate wire
// framing into one Engine.Execute call and own protocol-correct terminal
// framing on failure; the engine never sees protocol details. Execution
// identity arrives pre-authenticated in request headers.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/engine"
	"github.com/hupe1980/agentgraph/logging"
)

// Identity headers populated by the authenticating proxy in front of this
// service.
const (
	HeaderTenantID  = "X-Tenant-Id"
	HeaderProjectID = "X-Project-Id"
	HeaderGraphID   = "X-Graph-Id"
	HeaderAgentID   = "X-Agent-Id"
	// HeaderSessionID carries the session id on all session-protocol
	// calls but the first.
	HeaderSessionID = "Mcp-Session-Id"
	// HeaderConversationID echoes the conversation id on streaming
	// responses so callers that omitted one can continue the
	// conversation.
	HeaderConversationID = "X-Conversation-Id"
)

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// ServerName and ServerVersion identify this server in the session
	// protocol handshake.
	ServerName    string
	ServerVersion string
}

// Server wires the protocol handlers over one engine.
type Server struct {
	engine        *engine.Engine
	validate      *validator.Validate
	logger        logging.Logger
	serverName    string
	serverVersion string
}

// New constructs a Server over eng.
func New(eng *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:        logging.NoOpLogger{},
		ServerName:    "agentgraph",
		ServerVersion: "0.1.0",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		engine:        eng,
		validate:      validator.New(),
		logger:        opts.Logger,
		serverName:    opts.ServerName,
		serverVersion: opts.ServerVersion,
	}
}

// Routes returns the HTTP handler exposing all three protocol endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletion)
	mux.HandleFunc("POST /api/chat", s.handleDataStream)
	mux.HandleFunc("POST /mcp", s.handleRPC)
	return mux
}

// identity extracts the pre-authenticated execution identity.
func identity(r *http.Request) core.ExecutionContext {
	return core.ExecutionContext{
		TenantID:  r.Header.Get(HeaderTenantID),
		ProjectID: r.Header.Get(HeaderProjectID),
		GraphID:   r.Header.Get(HeaderGraphID),
	}
}

// writeJSONError renders a plain JSON error for pre-run failures on the
// HTTP protocols.
func writeJSONError(w http.ResponseWriter, status int, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "details": details},
	})
}

// clientErrorStatus maps pre-run errors onto HTTP status codes: validation
// failures are the caller's fault, session lookups map to not-found,
// everything else is a server error.
func clientErrorStatus(err error) int {
	var vErrs core.ValidationErrors
	switch {
	case errors.As(err, &vErrs):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrConversationNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
