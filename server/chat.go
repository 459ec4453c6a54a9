package server

import (
	"encoding/json"
	"net/http"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/stream"
)

// ChatMessage is one inbound message of a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatCompletionRequest is the inbound shape of the streaming
// chat-completion protocol.
type ChatCompletionRequest struct {
	Model          string         `json:"model" validate:"required"`
	Messages       []ChatMessage  `json:"messages" validate:"required,min=1,dive"`
	ConversationID string         `json:"conversation_id,omitempty"`
	RequestContext map[string]any `json:"request_context,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
}

// handleChatCompletion serves the streaming chat-completion protocol. The
// run's events render as incremental completion chunks terminated by the
// "[DONE]" sentinel. Pre-run failures return plain JSON errors; failures
// once the stream started render inside the stream.
func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
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

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = core.NewID()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(HeaderConversationID, conversationID)

	sink := stream.NewSSERenderer(w, req.Model)
	result := s.engine.Execute(r.Context(), execCtx, conversationID, userMessage, r.Header.Get(HeaderAgentID), sink)
	if result.Err != nil && !sink.Started() {
		// No stream bytes went out yet, so a plain error response is
		// still possible.
		writeJSONError(w, clientErrorStatus(result.Err), result.Err.Error(), nil)
		return
	}
	s.logger.Debug("chat completion finished", "success", result.Success, "iterations", result.Iterations)
}
