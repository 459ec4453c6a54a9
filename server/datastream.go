package server

import (
	"encoding/json"
	"net/http"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/stream"
)

// DataStreamRequest is the inbound shape of the UI data-stream protocol.
// The id doubles as the conversation id so a UI thread maps onto one
// conversation.
type DataStreamRequest struct {
	ID             string         `json:"id,omitempty"`
	Messages       []ChatMessage  `json:"messages" validate:"required,min=1,dive"`
	RequestContext map[string]any `json:"request_context,omitempty"`
}

// handleDataStream serves the generic UI data-stream protocol: run events
// render as newline-delimited JSON parts.
func (s *Server) handleDataStream(w http.ResponseWriter, r *http.Request) {
	var req DataStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	execCtx := identity(r)
	execCtx.RequestContext = req.RequestContext
	userMessage := req.Messages[len(req.Messages)-1].Content

	conversationID := req.ID
	if conversationID == "" {
		conversationID = core.NewID()
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(HeaderConversationID, conversationID)

	sink := stream.NewDataStreamRenderer(w)
	result := s.engine.Execute(r.Context(), execCtx, conversationID, userMessage, r.Header.Get(HeaderAgentID), sink)
	if result.Err != nil && !sink.Started() {
		writeJSONError(w, clientErrorStatus(result.Err), result.Err.Error(), nil)
		return
	}
	s.logger.Debug("data stream finished", "success", result.Success, "iterations", result.Iterations)
}
