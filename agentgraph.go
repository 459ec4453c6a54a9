// Package agentgraph provides a high-level façade over the core Engine and
// its services (conversations, sessions, context resolution & logging)
// enabling rapid construction of multi-agent conversational systems. Most
// applications interact with this package by:
//  1. Creating an AgentGraph via New() (optionally overriding default in-memory stores)
//  2. Registering one or more graphs and context configurations
//  3. Running turns through a stream sink (Execute) or synchronously (ExecuteSync)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable
// conversation store and a structured logger.
package agentgraph

import (
	"context"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/engine"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/resolver"
	"github.com/hupe1980/agentgraph/stream"
)

// Options configures the AgentGraph instance.
type Options struct {
	// StepFn produces one agent step per iteration, typically a
	// model.StepRunner. Required for execution.
	StepFn core.StepFunction

	// Stores (default to a shared in-memory implementation if not provided)
	Conversations core.ConversationStore
	Messages      core.MessageStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentGraph is the high-level façade aggregating the underlying engine and
// services.
type AgentGraph struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new AgentGraph instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentGraph {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.StepFn = opts.StepFn
		o.Conversations = opts.Conversations
		o.Messages = opts.Messages
		o.Logger = opts.Logger
	})

	return &AgentGraph{opts: opts, engine: eng}
}

// Engine exposes the underlying engine for protocol adapters.
func (g *AgentGraph) Engine() *engine.Engine { return g.engine }

// RegisterGraph validates and registers an agent graph.
func (g *AgentGraph) RegisterGraph(graph *core.Graph) error {
	return g.engine.RegisterGraph(graph)
}

// RegisterContextConfig registers a context configuration referenced by
// graphs via ContextConfigID.
func (g *AgentGraph) RegisterContextConfig(cfg *resolver.ContextConfig) {
	g.engine.Resolver().RegisterConfig(cfg)
}

// Execute runs one user turn, pushing incremental events through sink.
func (g *AgentGraph) Execute(ctx context.Context, execCtx core.ExecutionContext, conversationID, userMessage string, sink stream.Sink) core.ExecutionResult {
	return g.engine.Execute(ctx, execCtx, conversationID, userMessage, "", sink)
}

// ExecuteSync is a synchronous helper that buffers all events in memory and
// returns the recorded stream alongside the result.
func (g *AgentGraph) ExecuteSync(ctx context.Context, execCtx core.ExecutionContext, conversationID, userMessage string) (core.ExecutionResult, *stream.Recorder) {
	rec := stream.NewRecorder()
	result := g.engine.Execute(ctx, execCtx, conversationID, userMessage, "", rec)
	return result, rec
}
