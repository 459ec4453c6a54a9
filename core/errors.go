package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across stores and the session manager.
var (
	// ErrConversationNotFound is returned by stores for unknown ids.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrSessionNotFound is returned when a session id is unknown, was not
	// created by the session protocol, or is bound to a different graph.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBudgetExceeded terminates a run whose step or transfer count hit
	// its budget.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrCancelled terminates a run whose request was aborted.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError reports one bad caller input (context schema violation,
// missing graph or agent). Surfaced as a client error; the run never starts.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Message)
}

// ValidationErrors aggregates schema violations so callers see every bad
// field at once rather than the first one hit.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// RoutingError reports a transfer or delegate to an agent not declared on
// the current agent's edges. Fatal to the run, never retried.
type RoutingError struct {
	Kind   string // "transfer" or "delegate"
	From   string
	Target string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("agent %s may not %s to %s", e.From, e.Kind, e.Target)
}

// StepError wraps a failure of the opaque step function. Fatal to the run;
// retry policy belongs to the step function's own collaborators.
type StepError struct {
	AgentID string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step failed for agent %s: %v", e.AgentID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
