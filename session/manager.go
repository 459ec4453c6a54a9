// Package session makes the stateless per-request transport of the JSON-RPC
// session protocol behave like a long-lived connection. The transport object
// keeps its "handshake completed" flag in local memory only, while this
// manager persists session facts on the conversation row and reconstructs
// the transport state deterministically: every resumed request replays a
// synthetic initialize against the freshly built transport, discarding that
// handshake's own response, before the real call proceeds. The rest of the
// core never sees this wrinkle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/rpc"
)

// SessionTypeMCP marks conversations created through the session protocol.
const SessionTypeMCP = "mcp"

// Record is the reconstructable session view derived from a conversation.
// The session id is the conversation id.
type Record struct {
	SessionID       string
	SessionType     string
	GraphID         string
	ProtocolVersion string
	Initialized     bool
	ActiveAgentID   string
}

// Options configures a Manager.
type Options struct {
	Logger logging.Logger
}

// Manager owns conversation identity, the active-agent pointer and session
// metadata for the session protocol. Safe for concurrent use; the
// active-agent read-then-write is last-write-wins for concurrent requests on
// the same conversation.
type Manager struct {
	conversations core.ConversationStore
	logger        logging.Logger
}

// NewManager constructs a Manager over the given conversation store.
func NewManager(conversations core.ConversationStore, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{conversations: conversations, logger: opts.Logger}
}

// CreateSession allocates a new conversation bound to the graph and returns
// its session record. The active agent starts at the graph's default agent
// and the persisted handshake flag starts false.
func (m *Manager) CreateSession(ctx context.Context, tenantID, projectID string, g *core.Graph, protocolVersion string) (*Record, error) {
	conv := &core.Conversation{
		ID:            core.NewID(),
		TenantID:      tenantID,
		ProjectID:     projectID,
		ActiveAgentID: g.DefaultAgentID,
		Metadata: core.ConversationMetadata{
			SessionData: &core.SessionData{
				SessionType:     SessionTypeMCP,
				GraphID:         g.ID,
				ProtocolVersion: protocolVersion,
				Initialized:     false,
			},
		},
	}
	stored, err := m.conversations.CreateOrGet(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("create session conversation: %w", err)
	}
	m.logger.Info("session created", "session_id", stored.ID, "graph_id", g.ID)
	return recordFrom(stored), nil
}

// ResumeSession looks up the conversation behind a session id. It returns
// core.ErrSessionNotFound if the conversation is absent, was not created by
// the session protocol, or is bound to a different graph than requested --
// cross-graph session reuse is never allowed.
func (m *Manager) ResumeSession(ctx context.Context, conversationID, requestedGraphID string) (*Record, error) {
	conv, err := m.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, core.ErrConversationNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, conversationID)
		}
		return nil, err
	}
	data := conv.Metadata.SessionData
	if data == nil || data.SessionType != SessionTypeMCP {
		return nil, fmt.Errorf("%w: %s is not a session conversation", core.ErrSessionNotFound, conversationID)
	}
	if data.GraphID != requestedGraphID {
		return nil, fmt.Errorf("%w: %s is bound to another graph", core.ErrSessionNotFound, conversationID)
	}
	return recordFrom(conv), nil
}

// MarkInitialized persists the handshake fact after the client's real
// initialize call succeeded.
func (m *Manager) MarkInitialized(ctx context.Context, sessionID string) error {
	conv, err := m.conversations.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if conv.Metadata.SessionData == nil {
		return fmt.Errorf("%w: %s is not a session conversation", core.ErrSessionNotFound, sessionID)
	}
	conv.Metadata.SessionData.Initialized = true
	return m.conversations.Update(ctx, conv)
}

// AttachTransport brings a freshly constructed transport in sync with the
// persisted session record. If the record says the handshake already
// happened, a synthetic initialize is replayed against the transport and its
// response discarded; afterwards the transport accepts the real request as
// if the connection had been alive the whole time.
func (m *Manager) AttachTransport(ctx context.Context, rec *Record, t *rpc.ServerTransport) error {
	if !rec.Initialized || t.Initialized() {
		return nil
	}
	params, err := json.Marshal(rpc.InitializeParams{
		ProtocolVersion: rec.ProtocolVersion,
		ClientInfo:      &rpc.ClientInfo{Name: "agentgraph-replay", Version: "1"},
	})
	if err != nil {
		return fmt.Errorf("marshal replay params: %w", err)
	}
	resp := t.Handle(ctx, &rpc.Message{
		Jsonrpc: rpc.Version,
		ID:      "replay-initialize",
		Method:  rpc.MethodInitialize,
		Params:  params,
	})
	if resp != nil && resp.Error != nil {
		return fmt.Errorf("replay initialize failed: %s", resp.Error.Message)
	}
	m.logger.Debug("replayed initialize handshake", "session_id", rec.SessionID)
	return nil
}

// ActiveAgent reads the conversation's active agent pointer.
func (m *Manager) ActiveAgent(ctx context.Context, conversationID string) (string, error) {
	return m.conversations.ActiveAgent(ctx, conversationID)
}

// SetActiveAgent overwrites the conversation's active agent pointer.
func (m *Manager) SetActiveAgent(ctx context.Context, conversationID, agentID string) error {
	return m.conversations.SetActiveAgent(ctx, conversationID, agentID)
}

func recordFrom(conv *core.Conversation) *Record {
	data := conv.Metadata.SessionData
	return &Record{
		SessionID:       conv.ID,
		SessionType:     data.SessionType,
		GraphID:         data.GraphID,
		ProtocolVersion: data.ProtocolVersion,
		Initialized:     data.Initialized,
		ActiveAgentID:   conv.ActiveAgentID,
	}
}
