// Package tool declares the control-flow tools the model-backed step
// function exposes to an agent: transfer_to_agent for permanent handoffs and
// delegate_to_agent for sub-tasks whose result returns to the caller. Only
// targets declared on the current agent's edges are offered, so the model
// cannot even request an off-graph route.
package tool

import (
	"encoding/json"
	"fmt"
)

// Control-flow tool names.
const (
	NameTransfer = "transfer_to_agent"
	NameDelegate = "delegate_to_agent"
)

// Definition describes one callable tool in provider-neutral form.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// TransferToAgent builds the transfer tool restricted to the given targets.
func TransferToAgent(targets []string) Definition {
	return Definition{
		Name:        NameTransfer,
		Description: "Hand the conversation off to another agent permanently. Use when another agent is better suited to continue.",
		Parameters:  targetSchema(targets),
	}
}

// DelegateToAgent builds the delegate tool restricted to the given targets.
func DelegateToAgent(targets []string) Definition {
	return Definition{
		Name:        NameDelegate,
		Description: "Delegate a sub-task to another agent. Its result comes back to you and you stay in control of the conversation.",
		Parameters:  targetSchema(targets),
	}
}

func targetSchema(targets []string) map[string]any {
	agent := map[string]any{
		"type":        "string",
		"description": "Target agent id",
	}
	if len(targets) > 0 {
		enum := make([]any, len(targets))
		for i, t := range targets {
			enum[i] = t
		}
		agent["enum"] = enum
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"agent": agent},
		"required":   []string{"agent"},
	}
}

// ParseTarget extracts the target agent id from a tool call's JSON argument
// payload.
func ParseTarget(arguments string) (string, error) {
	var args struct {
		Agent string `json:"agent"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("malformed tool arguments: %w", err)
	}
	if args.Agent == "" {
		return "", fmt.Errorf("missing required field 'agent'")
	}
	return args.Agent, nil
}
