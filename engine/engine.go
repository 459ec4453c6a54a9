// Package engine orchestrates bounded multi-step runs across an agent
// graph. One Execute call walks the graph from a starting agent, invoking
// the opaque step function once per iteration, routing transfer and delegate
// outcomes along declared edges, enforcing step and transfer budgets, and
// pushing incremental events through a protocol-agnostic stream sink. The
// engine never knows which wire protocol is behind the sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/conversation"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/resolver"
	"github.com/hupe1980/agentgraph/session"
	"github.com/hupe1980/agentgraph/stream"
)

// Options configures an Engine via functional options.
type Options struct {
	// StepFn is the opaque single-step function invoked once per
	// iteration. Required for Execute to do anything useful.
	StepFn core.StepFunction
	// Conversations persists conversation rows. Defaults to a shared
	// in-memory store.
	Conversations core.ConversationStore
	// Messages persists message rows. Defaults to the same in-memory
	// store as Conversations.
	Messages core.MessageStore
	// Sessions reads and updates the active-agent pointer. Defaults to a
	// manager over Conversations.
	Sessions *session.Manager
	// Resolver resolves context bindings before the loop starts. Defaults
	// to a resolver over the default stores.
	Resolver *resolver.Resolver
	// Logger receives structured run telemetry. Defaults to NoOp.
	Logger logging.Logger
}

// Engine executes agent graphs. Safe for concurrent use; runs for different
// conversations proceed fully in parallel. Runs for the same conversation
// are not mutually excluded here -- the active-agent pointer is
// last-write-wins, and callers needing strict serialization serialize at the
// protocol layer.
type Engine struct {
	stepFn        core.StepFunction
	conversations core.ConversationStore
	messages      core.MessageStore
	sessions      *session.Manager
	resolver      *resolver.Resolver
	logger        *logging.GraphLogger

	graphs map[string]*core.Graph
	mu     sync.RWMutex
}

// New constructs an Engine. Unset stores default to a single shared
// in-memory implementation so the engine is usable without external
// dependencies.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Conversations == nil || opts.Messages == nil {
		store := conversation.NewInMemoryStore()
		if opts.Conversations == nil {
			opts.Conversations = store
		}
		if opts.Messages == nil {
			opts.Messages = store
		}
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(opts.Conversations, func(o *session.Options) { o.Logger = opts.Logger })
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.NewResolver(opts.Conversations, opts.Messages, func(o *resolver.Options) { o.Logger = opts.Logger })
	}
	return &Engine{
		stepFn:        opts.StepFn,
		conversations: opts.Conversations,
		messages:      opts.Messages,
		sessions:      opts.Sessions,
		resolver:      opts.Resolver,
		logger:        logging.NewGraphLogger(opts.Logger).WithComponent("engine"),
		graphs:        make(map[string]*core.Graph),
	}
}

// RegisterGraph validates and registers a graph, replacing any previous one
// with the same id.
func (e *Engine) RegisterGraph(g *core.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graphs[g.ID] = g
	return nil
}

// Graph returns the registered graph for id.
func (e *Engine) Graph(id string) (*core.Graph, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.graphs[id]
	return g, ok
}

// Sessions exposes the session manager the engine persists active agents
// through, for protocol adapters that manage session identity themselves.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Resolver exposes the context resolver for configuration registration.
func (e *Engine) Resolver() *resolver.Resolver { return e.resolver }

// executionRun is the in-memory state of one Execute invocation.
type executionRun struct {
	currentAgentID string
	stepCount      int
	transferCount  int
	returnStack    []string
}

// Execute runs the bounded step loop for one user turn. Errors discovered
// before the loop starts (unknown graph or agent, context validation,
// persistence) are returned in the result without touching the sink -- the
// adapter owns pre-run framing. Once the loop starts, every path emits
// exactly one terminal sink event (a fatal error or completion) before the
// result is returned.
func (e *Engine) Execute(ctx context.Context, execCtx core.ExecutionContext, conversationID, userMessage, initialAgentID string, sink stream.Sink) core.ExecutionResult {
	if e.stepFn == nil {
		return core.ExecutionResult{Err: fmt.Errorf("no step function configured")}
	}
	graph, ok := e.Graph(execCtx.GraphID)
	if !ok {
		return core.ExecutionResult{Err: core.ValidationErrors{{Field: "graphId", Message: fmt.Sprintf("unknown graph %q", execCtx.GraphID)}}}
	}

	if conversationID == "" {
		conversationID = core.NewID()
	}
	conv, err := e.conversations.CreateOrGet(ctx, &core.Conversation{
		ID:            conversationID,
		TenantID:      execCtx.TenantID,
		ProjectID:     execCtx.ProjectID,
		ActiveAgentID: graph.DefaultAgentID,
	})
	if err != nil {
		return core.ExecutionResult{Err: fmt.Errorf("materialize conversation: %w", err)}
	}

	startAgent := initialAgentID
	if startAgent == "" {
		startAgent = conv.ActiveAgentID
	}
	if startAgent == "" {
		startAgent = graph.DefaultAgentID
	}
	if _, ok := graph.Agent(startAgent); !ok {
		return core.ExecutionResult{Err: core.ValidationErrors{{Field: "agentId", Message: fmt.Sprintf("unknown agent %q", startAgent)}}}
	}

	resolvedCtx, err := e.resolver.Resolve(ctx, graph, conversationID, execCtx.RequestContext)
	if err != nil {
		return core.ExecutionResult{Err: err}
	}

	// The inbound user turn is persisted before the first step so history
	// stays consistent even if the run later fails.
	inbound := core.NewMessage(conversationID, core.RoleUser, userMessage)
	if err := e.messages.Create(ctx, inbound); err != nil {
		return core.ExecutionResult{Err: fmt.Errorf("persist user message: %w", err)}
	}
	history, err := e.messages.List(ctx, conversationID)
	if err != nil {
		return core.ExecutionResult{Err: fmt.Errorf("load history: %w", err)}
	}

	logger := e.logger.WithGraph(graph.ID).WithConversation(conversationID, core.NewID())
	start := time.Now()
	run := &executionRun{currentAgentID: startAgent}
	result := e.runLoop(ctx, graph, conversationID, run, resolvedCtx, history, newSinkGuard(sink, logger))
	logger.LogRun(ctx, result.Iterations, run.transferCount, time.Since(start), result.Success, result.Err)
	return result
}

func (e *Engine) runLoop(ctx context.Context, graph *core.Graph, conversationID string, run *executionRun, resolvedCtx map[string]any, history []core.Message, sink *sinkGuard) core.ExecutionResult {

	fail := func(err error) core.ExecutionResult {
		sink.WriteError(err.Error(), stream.ScopeRun)
		sink.Complete()
		return core.ExecutionResult{Iterations: run.stepCount, Err: err}
	}

	lastAnnounced := ""
	for {
		// Cancellation and deadlines are observed at step boundaries
		// only; already-sent bytes stay as-is.
		if ctx.Err() != nil {
			return fail(core.ErrCancelled)
		}
		budget := graph.EffectiveStopWhen(run.currentAgentID)
		if run.stepCount >= budget.StepCountIs || run.transferCount >= budget.TransferCountIs {
			return fail(core.ErrBudgetExceeded)
		}
		agent, ok := graph.Agent(run.currentAgentID)
		if !ok {
			return fail(&core.RoutingError{Kind: "transfer", From: lastAnnounced, Target: run.currentAgentID})
		}

		if run.currentAgentID != lastAnnounced {
			sink.WriteRole(run.currentAgentID)
			lastAnnounced = run.currentAgentID
		}

		run.stepCount++
		outcome, err := e.stepFn.RunStep(ctx, core.StepRequest{
			Graph:           graph,
			Agent:           agent,
			History:         history,
			ResolvedContext: resolvedCtx,
		}, sink.WriteContentDelta)
		if err != nil {
			return fail(&core.StepError{AgentID: run.currentAgentID, Err: err})
		}

		switch outcome.Type {
		case core.StepTransfer:
			if !agent.MayTransferTo(outcome.TargetAgentID) {
				return fail(&core.RoutingError{Kind: "transfer", From: run.currentAgentID, Target: outcome.TargetAgentID})
			}
			run.transferCount++
			sink.WriteOperation(stream.Operation{Kind: stream.OperationTransfer, Payload: map[string]any{
				"from": run.currentAgentID, "to": outcome.TargetAgentID,
			}})
			if err := e.sessions.SetActiveAgent(ctx, conversationID, outcome.TargetAgentID); err != nil {
				return fail(fmt.Errorf("persist active agent: %w", err))
			}
			if outcome.Text != "" {
				history = append(history, internalMessage(conversationID, core.RoleAssistant, outcome.Text))
			}
			run.currentAgentID = outcome.TargetAgentID

		case core.StepDelegate:
			if !agent.MayDelegateTo(outcome.TargetAgentID) {
				return fail(&core.RoutingError{Kind: "delegate", From: run.currentAgentID, Target: outcome.TargetAgentID})
			}
			run.transferCount++
			sink.WriteOperation(stream.Operation{Kind: stream.OperationDelegate, Payload: map[string]any{
				"from": run.currentAgentID, "to": outcome.TargetAgentID,
			}})
			run.returnStack = append(run.returnStack, run.currentAgentID)
			if outcome.Text != "" {
				history = append(history, internalMessage(conversationID, core.RoleAssistant, outcome.Text))
			}
			run.currentAgentID = outcome.TargetAgentID

		case core.StepFinal:
			if n := len(run.returnStack); n > 0 {
				// The delegate finished; its result rejoins the
				// caller's context as a synthetic tool result and
				// the run continues.
				caller := run.returnStack[n-1]
				run.returnStack = run.returnStack[:n-1]
				delegateResult := &core.Message{
					ID:             core.NewID(),
					ConversationID: conversationID,
					Role:           core.RoleTool,
					Content:        outcome.Text,
					Visibility:     core.VisibilityInternal,
					MessageType:    core.MessageTypeDelegateResult,
					CreatedAt:      time.Now().UTC(),
				}
				if err := e.messages.Create(ctx, delegateResult); err != nil {
					return fail(fmt.Errorf("persist delegate result: %w", err))
				}
				history = append(history, *delegateResult)
				sink.WriteOperation(stream.Operation{Kind: stream.OperationResume, Payload: map[string]any{
					"from": run.currentAgentID, "to": caller,
				}})
				run.currentAgentID = caller
				continue
			}
			outbound := core.NewMessage(conversationID, core.RoleAssistant, outcome.Text)
			if err := e.messages.Create(ctx, outbound); err != nil {
				return fail(fmt.Errorf("persist assistant message: %w", err))
			}
			sink.Complete()
			return core.ExecutionResult{Success: true, Iterations: run.stepCount, Response: outcome.Text}

		case core.StepFailed:
			return fail(&core.StepError{AgentID: run.currentAgentID, Err: errors.New(outcome.ErrorMessage)})

		default:
			return fail(&core.StepError{AgentID: run.currentAgentID, Err: fmt.Errorf("unknown step outcome %q", outcome.Type)})
		}
	}
}

func internalMessage(conversationID, role, content string) core.Message {
	return core.Message{
		ID:             core.NewID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Visibility:     core.VisibilityInternal,
		MessageType:    core.MessageTypeChat,
		CreatedAt:      time.Now().UTC(),
	}
}
