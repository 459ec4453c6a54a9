package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Data stream part types consumed by generic UI streaming clients.
const (
	partStart     = "start"
	partTextDelta = "text-delta"
	partData      = "data"
	partError     = "error"
	partFinish    = "finish"
)

// dataPart is one JSON envelope of the UI data stream.
type dataPart struct {
	Type    string     `json:"type"`
	AgentID string     `json:"agentId,omitempty"`
	Text    string     `json:"text,omitempty"`
	Data    *Operation `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Scope   string     `json:"scope,omitempty"`
}

// DataStreamRenderer frames sink calls as newline-delimited JSON envelopes in
// a push-based byte stream. Structured operations map to typed "data" parts.
type DataStreamRenderer struct {
	w         io.Writer
	flusher   http.Flusher
	completed bool
	wrote     bool
}

// Started reports whether any part has been written yet.
func (r *DataStreamRenderer) Started() bool { return r.wrote }

// NewDataStreamRenderer builds a renderer writing envelopes to w, flushing
// after each part when w implements http.Flusher.
func NewDataStreamRenderer(w io.Writer) *DataStreamRenderer {
	r := &DataStreamRenderer{w: w}
	if f, ok := w.(http.Flusher); ok {
		r.flusher = f
	}
	return r
}

// WriteRole implements Sink.
func (r *DataStreamRenderer) WriteRole(agentID string) error {
	return r.writePart(dataPart{Type: partStart, AgentID: agentID})
}

// WriteContentDelta implements Sink.
func (r *DataStreamRenderer) WriteContentDelta(text string) error {
	return r.writePart(dataPart{Type: partTextDelta, Text: text})
}

// WriteOperation implements Sink.
func (r *DataStreamRenderer) WriteOperation(op Operation) error {
	return r.writePart(dataPart{Type: partData, Data: &op})
}

// WriteError implements Sink.
func (r *DataStreamRenderer) WriteError(message string, scope ErrorScope) error {
	return r.writePart(dataPart{Type: partError, Message: message, Scope: string(scope)})
}

// Complete implements Sink. Calling it twice is a no-op.
func (r *DataStreamRenderer) Complete() error {
	if r.completed {
		return nil
	}
	r.completed = true
	return r.writePart(dataPart{Type: partFinish})
}

func (r *DataStreamRenderer) writePart(p dataPart) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal data part: %w", err)
	}
	if _, err := fmt.Fprintf(r.w, "%s\n", raw); err != nil {
		return err
	}
	r.wrote = true
	if r.flusher != nil {
		r.flusher.Flush()
	}
	return nil
}
