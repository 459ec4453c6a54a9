// Package stream defines the outbound event model of the execution core and
// one renderer per wire protocol. The engine pushes role announcements,
// content deltas, structured operations and errors through the narrow Sink
// interface; renderers translate those calls into protocol-specific framing
// (chat-completion event stream, UI data stream, session-protocol tool
// result). New protocols are added by writing a new renderer, never by
// touching the execution loop.
package stream

// ErrorScope classifies where a streamed error originated.
type ErrorScope string

const (
	// ScopeRun marks errors produced by the run itself (routing, step or
	// budget failures).
	ScopeRun ErrorScope = "run"
	// ScopeRequest marks errors produced before or around the run
	// (validation, session lookup, transport).
	ScopeRequest ErrorScope = "request"
)

// Operation kinds emitted by the engine.
const (
	OperationTransfer = "agent-transfer"
	OperationDelegate = "agent-delegate"
	OperationResume   = "agent-resume"
)

// Operation is a structured, non-text signal such as a control handoff or a
// data artifact.
type Operation struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink is the abstract consumer of incremental execution events. Call order
// is preserved by all implementations; WriteRole always precedes content
// deltas for that agent's turn, and Complete (or a fatal WriteError followed
// by Complete) is always last. Writes may block on transport backpressure.
// WriteError never panics mid-stream; it is recorded and the sink still
// reaches Complete exactly once. A second Complete is a guarded no-op.
type Sink interface {
	// WriteRole announces the agent about to produce content.
	WriteRole(agentID string) error
	// WriteContentDelta streams a fragment of assistant text.
	WriteContentDelta(text string) error
	// WriteOperation streams a structured non-text signal.
	WriteOperation(op Operation) error
	// WriteError records a run or request scoped error.
	WriteError(message string, scope ErrorScope) error
	// Complete terminates the event stream with the protocol's sentinel.
	Complete() error
}
