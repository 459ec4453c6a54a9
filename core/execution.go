package core

import "context"

// ExecutionContext carries the pre-authenticated execution identity of one
// inbound request plus the caller-supplied context variables. It is always
// passed explicitly, never ambient.
type ExecutionContext struct {
	TenantID       string
	ProjectID      string
	GraphID        string
	RequestContext map[string]any
}

// ExecutionResult is the terminal summary of one run. Exactly one of
// Success-with-Response or !Success-with-Err holds. All stream events emitted
// during the run precede the result.
type ExecutionResult struct {
	Success    bool
	Iterations int
	Response   string
	Err        error
}

// StepOutcomeType tags the result of one opaque agent step.
type StepOutcomeType string

const (
	// StepFinal carries the agent's final answer text for this turn.
	StepFinal StepOutcomeType = "final"
	// StepTransfer hands control to TargetAgentID permanently.
	StepTransfer StepOutcomeType = "transfer"
	// StepDelegate hands a sub-task to TargetAgentID; control returns to
	// the delegating agent with the delegate's result.
	StepDelegate StepOutcomeType = "delegate"
	// StepFailed reports a step-level failure, fatal to the run.
	StepFailed StepOutcomeType = "error"
)

// StepOutcome is the structured result of one step-function invocation.
type StepOutcome struct {
	Type          StepOutcomeType
	Text          string
	TargetAgentID string
	ErrorMessage  string
}

// StepRequest is the input to one opaque agent step: the agent to run, the
// accumulated conversation history and the run's resolved context variables.
type StepRequest struct {
	Graph           *Graph
	Agent           Agent
	History         []Message
	ResolvedContext map[string]any
}

// StepFunction is the opaque single-step contract. Implementations perform
// one reasoning/tool turn for req.Agent, pushing partial text through onDelta
// as it is produced (onDelta propagates transport backpressure; a returned
// error tells the implementation to stop emitting but finish the step), and
// return the structured outcome. The engine never retries a failed step.
type StepFunction interface {
	RunStep(ctx context.Context, req StepRequest, onDelta func(text string) error) (StepOutcome, error)
}

// StepFunc adapts a plain function to the StepFunction interface.
type StepFunc func(ctx context.Context, req StepRequest, onDelta func(text string) error) (StepOutcome, error)

// RunStep implements StepFunction.
func (f StepFunc) RunStep(ctx context.Context, req StepRequest, onDelta func(text string) error) (StepOutcome, error) {
	return f(ctx, req, onDelta)
}
