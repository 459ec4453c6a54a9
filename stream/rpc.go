package stream

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/agentgraph/rpc"
)

// RPCRenderer accumulates sink calls in memory and resolves them to a single
// session-protocol tool result on Complete. The session protocol is
// request/response, not incrementally streamed, so nothing is written to the
// far side until the run finishes.
type RPCRenderer struct {
	text       strings.Builder
	operations []Operation
	errors     []string
	completed  bool
}

// NewRPCRenderer builds an empty accumulating renderer.
func NewRPCRenderer() *RPCRenderer { return &RPCRenderer{} }

// WriteRole implements Sink. Role announcements carry no payload in the
// request/response framing.
func (r *RPCRenderer) WriteRole(agentID string) error { return nil }

// WriteContentDelta implements Sink.
func (r *RPCRenderer) WriteContentDelta(text string) error {
	r.text.WriteString(text)
	return nil
}

// WriteOperation implements Sink.
func (r *RPCRenderer) WriteOperation(op Operation) error {
	r.operations = append(r.operations, op)
	return nil
}

// WriteError implements Sink. Any recorded error marks the eventual tool
// result as isError.
func (r *RPCRenderer) WriteError(message string, scope ErrorScope) error {
	r.errors = append(r.errors, message)
	return nil
}

// Complete implements Sink. Calling it twice is a no-op.
func (r *RPCRenderer) Complete() error {
	r.completed = true
	return nil
}

// Completed reports whether the stream reached its terminal event.
func (r *RPCRenderer) Completed() bool { return r.completed }

// Result resolves the accumulated events into one tool result payload.
// Operations are appended as JSON text blocks after the assistant text;
// recorded errors take over the payload and set isError.
func (r *RPCRenderer) Result() rpc.ToolResult {
	if len(r.errors) > 0 {
		blocks := make([]rpc.ContentBlock, len(r.errors))
		for i, msg := range r.errors {
			blocks[i] = rpc.TextContent(msg)
		}
		return rpc.ToolResult{Content: blocks, IsError: true}
	}
	blocks := []rpc.ContentBlock{rpc.TextContent(r.text.String())}
	for _, op := range r.operations {
		if raw, err := json.Marshal(op); err == nil {
			blocks = append(blocks, rpc.TextContent(string(raw)))
		}
	}
	return rpc.ToolResult{Content: blocks}
}
