package core

import (
	"fmt"
	"slices"
)

// Default run budgets applied when neither the graph nor the current agent
// declares an override.
const (
	DefaultStepBudget     = 50
	DefaultTransferBudget = 10
)

// StopWhen bounds a run. A zero field means "no override at this level"; the
// engine falls back to the graph budget and finally the package defaults.
type StopWhen struct {
	StepCountIs     int `json:"step_count_is,omitempty"`
	TransferCountIs int `json:"transfer_count_is,omitempty"`
}

// Merge overlays non-zero fields of the receiver on top of base. The receiver
// takes precedence field by field, mirroring agent-over-graph budget override
// semantics.
func (s StopWhen) Merge(base StopWhen) StopWhen {
	out := base
	if s.StepCountIs > 0 {
		out.StepCountIs = s.StepCountIs
	}
	if s.TransferCountIs > 0 {
		out.TransferCountIs = s.TransferCountIs
	}
	return out
}

// Agent is one node in a graph. CanTransferTo lists agents it may hand
// control to permanently; CanDelegateTo lists agents it may hand a sub-task
// to, with control returning once the delegate finalizes.
type Agent struct {
	ID            string    `json:"id"`
	Description   string    `json:"description,omitempty"`
	Instruction   string    `json:"instruction,omitempty"`
	CanTransferTo []string  `json:"can_transfer_to,omitempty"`
	CanDelegateTo []string  `json:"can_delegate_to,omitempty"`
	StopWhen      *StopWhen `json:"stop_when,omitempty"`
}

// MayTransferTo reports whether target is a declared transfer edge.
func (a Agent) MayTransferTo(target string) bool {
	return slices.Contains(a.CanTransferTo, target)
}

// MayDelegateTo reports whether target is a declared delegate edge.
func (a Agent) MayDelegateTo(target string) bool {
	return slices.Contains(a.CanDelegateTo, target)
}

// Graph is a named set of agents with a default entry agent, an optional
// context configuration reference and a graph-level run budget.
type Graph struct {
	ID              string           `json:"id"`
	Agents          map[string]Agent `json:"agents"`
	DefaultAgentID  string           `json:"default_agent_id"`
	ContextConfigID string           `json:"context_config_id,omitempty"`
	StopWhen        StopWhen         `json:"stop_when"`
}

// Agent returns the agent registered under id.
func (g *Graph) Agent(id string) (Agent, bool) {
	a, ok := g.Agents[id]
	return a, ok
}

// EffectiveStopWhen resolves the budget for a run currently executing
// agentID: agent-level overrides win over the graph budget, which wins over
// the package defaults.
func (g *Graph) EffectiveStopWhen(agentID string) StopWhen {
	budget := g.StopWhen.Merge(StopWhen{
		StepCountIs:     DefaultStepBudget,
		TransferCountIs: DefaultTransferBudget,
	})
	if a, ok := g.Agents[agentID]; ok && a.StopWhen != nil {
		budget = a.StopWhen.Merge(budget)
	}
	return budget
}

// Validate checks structural integrity: a default agent must exist and every
// declared transfer/delegate edge must point at an agent in the graph.
func (g *Graph) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("graph id must not be empty")
	}
	if _, ok := g.Agents[g.DefaultAgentID]; !ok {
		return fmt.Errorf("graph %s: default agent %q not found", g.ID, g.DefaultAgentID)
	}
	for id, a := range g.Agents {
		for _, target := range a.CanTransferTo {
			if _, ok := g.Agents[target]; !ok {
				return fmt.Errorf("graph %s: agent %s declares transfer edge to unknown agent %q", g.ID, id, target)
			}
		}
		for _, target := range a.CanDelegateTo {
			if _, ok := g.Agents[target]; !ok {
				return fmt.Errorf("graph %s: agent %s declares delegate edge to unknown agent %q", g.ID, id, target)
			}
		}
	}
	return nil
}
