package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// CompletionChunk is one frame of the streaming chat-completion protocol.
type CompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the delta of one streamed choice.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta is the incremental message fragment of a chunk.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// chunkError is the error frame of the chat-completion protocol.
type chunkError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// SSERenderer frames sink calls as line-delimited event chunks compatible
// with incremental chat-completion consumption. Complete emits a final
// finish chunk followed by the "[DONE]" sentinel. Not safe for concurrent
// use; the engine serializes sink calls.
type SSERenderer struct {
	w         io.Writer
	flusher   http.Flusher
	id        string
	model     string
	created   int64
	errored   bool
	completed bool
	wrote     bool
}

// Started reports whether any frame has been written yet. Adapters use it to
// decide between a plain error response and in-stream error framing.
func (r *SSERenderer) Started() bool { return r.wrote }

// NewSSERenderer builds a renderer writing to w, flushing after each frame
// when w implements http.Flusher. The model name is echoed in every chunk.
func NewSSERenderer(w io.Writer, model string) *SSERenderer {
	r := &SSERenderer{
		w:       w,
		id:      "chatcmpl-" + core.NewID(),
		model:   model,
		created: time.Now().Unix(),
	}
	if f, ok := w.(http.Flusher); ok {
		r.flusher = f
	}
	return r
}

// WriteRole implements Sink.
func (r *SSERenderer) WriteRole(agentID string) error {
	return r.writeChunk(ChunkChoice{Delta: ChunkDelta{Role: "assistant"}})
}

// WriteContentDelta implements Sink.
func (r *SSERenderer) WriteContentDelta(text string) error {
	return r.writeChunk(ChunkChoice{Delta: ChunkDelta{Content: text}})
}

// WriteOperation implements Sink. The chat-completion framing has no slot
// for structured operations, so they go out as a named event preceding the
// next data chunk.
func (r *SSERenderer) WriteOperation(op Operation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}
	return r.writeFrame("event: operation\ndata: %s\n\n", raw)
}

// WriteError implements Sink. The error is recorded and framed; the stream
// still reaches Complete.
func (r *SSERenderer) WriteError(message string, scope ErrorScope) error {
	r.errored = true
	var frame chunkError
	frame.Error.Message = message
	frame.Error.Type = string(scope)
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal error frame: %w", err)
	}
	return r.writeFrame("data: %s\n\n", raw)
}

// Complete implements Sink, emitting the finish chunk and terminal sentinel.
// Calling it twice is a no-op.
func (r *SSERenderer) Complete() error {
	if r.completed {
		return nil
	}
	r.completed = true
	reason := "stop"
	if r.errored {
		reason = "error"
	}
	if err := r.writeChunk(ChunkChoice{Delta: ChunkDelta{}, FinishReason: reason}); err != nil {
		return err
	}
	return r.writeFrame("data: [DONE]\n\n")
}

func (r *SSERenderer) writeChunk(choice ChunkChoice) error {
	chunk := CompletionChunk{
		ID:      r.id,
		Object:  "chat.completion.chunk",
		Created: r.created,
		Model:   r.model,
		Choices: []ChunkChoice{choice},
	}
	raw, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	return r.writeFrame("data: %s\n\n", raw)
}

func (r *SSERenderer) writeFrame(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.w, format, args...); err != nil {
		return err
	}
	r.wrote = true
	if r.flusher != nil {
		r.flusher.Flush()
	}
	return nil
}
