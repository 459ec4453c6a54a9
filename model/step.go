package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/tool"
)

// StepRunnerOptions configures a StepRunner.
type StepRunnerOptions struct {
	Logger logging.Logger
}

// StepRunner implements core.StepFunction over a provider Model: one
// generation per step, with transfer and delegate tools offered only for the
// current agent's declared edges. Text deltas stream through onDelta as the
// provider produces them; a tool call maps to a transfer or delegate
// outcome, plain text to a final outcome.
type StepRunner struct {
	model  Model
	logger logging.Logger
}

// NewStepRunner constructs a StepRunner over m.
func NewStepRunner(m Model, optFns ...func(o *StepRunnerOptions)) *StepRunner {
	opts := StepRunnerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &StepRunner{model: m, logger: opts.Logger}
}

// RunStep implements core.StepFunction.
func (r *StepRunner) RunStep(ctx context.Context, req core.StepRequest, onDelta func(text string) error) (core.StepOutcome, error) {
	var tools []tool.Definition
	if len(req.Agent.CanTransferTo) > 0 {
		tools = append(tools, tool.TransferToAgent(req.Agent.CanTransferTo))
	}
	if len(req.Agent.CanDelegateTo) > 0 {
		tools = append(tools, tool.DelegateToAgent(req.Agent.CanDelegateTo))
	}

	chunks, errs := r.model.Generate(ctx, Request{
		Instructions: JoinInstruction(req.Agent, req.ResolvedContext),
		Messages:     FoldHistory(req.History),
		Tools:        tools,
	})

	var text strings.Builder
	var calls []ToolCall
	muted := false
	for chunk := range chunks {
		if chunk.TextDelta != "" {
			text.WriteString(chunk.TextDelta)
			if !muted {
				if err := onDelta(chunk.TextDelta); err != nil {
					// The transport rejected further output; keep
					// collecting so the step still resolves.
					muted = true
				}
			}
		}
		if chunk.Final {
			calls = chunk.ToolCalls
		}
	}
	if err := <-errs; err != nil {
		return core.StepOutcome{}, err
	}

	if len(calls) == 0 {
		return core.StepOutcome{Type: core.StepFinal, Text: text.String()}, nil
	}

	call := calls[0]
	if len(calls) > 1 {
		r.logger.Warn("multiple control tool calls in one step, using the first", "agent_id", req.Agent.ID, "count", len(calls))
	}
	target, err := tool.ParseTarget(call.Arguments)
	if err != nil {
		return core.StepOutcome{}, fmt.Errorf("parse %s arguments: %w", call.Name, err)
	}
	switch call.Name {
	case tool.NameTransfer:
		return core.StepOutcome{Type: core.StepTransfer, TargetAgentID: target, Text: text.String()}, nil
	case tool.NameDelegate:
		return core.StepOutcome{Type: core.StepDelegate, TargetAgentID: target, Text: text.String()}, nil
	default:
		return core.StepOutcome{}, fmt.Errorf("model requested unknown tool %q", call.Name)
	}
}
