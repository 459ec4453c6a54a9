package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/conversation"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/rpc"
)

func sessionGraph() *core.Graph {
	return &core.Graph{
		ID: "support",
		Agents: map[string]core.Agent{
			"triage": {ID: "triage"},
		},
		DefaultAgentID: "triage",
	}
}

func TestCreateAndResumeSession(t *testing.T) {
	store := conversation.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	rec, err := mgr.CreateSession(ctx, "t1", "p1", sessionGraph(), "2025-03-26")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.SessionID)
	assert.Equal(t, SessionTypeMCP, rec.SessionType)
	assert.Equal(t, "support", rec.GraphID)
	assert.Equal(t, "triage", rec.ActiveAgentID)
	assert.False(t, rec.Initialized)

	resumed, err := mgr.ResumeSession(ctx, rec.SessionID, "support")
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID, resumed.SessionID)

	// Resuming twice is idempotent.
	again, err := mgr.ResumeSession(ctx, rec.SessionID, "support")
	require.NoError(t, err)
	assert.Equal(t, resumed, again)
}

func TestResumeSessionUnknownID(t *testing.T) {
	mgr := NewManager(conversation.NewInMemoryStore())

	_, err := mgr.ResumeSession(context.Background(), "nope", "support")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestResumeSessionGraphMismatch(t *testing.T) {
	store := conversation.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	rec, err := mgr.CreateSession(ctx, "t1", "p1", sessionGraph(), "2025-03-26")
	require.NoError(t, err)

	_, err = mgr.ResumeSession(ctx, rec.SessionID, "other-graph")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestResumeSessionRejectsPlainConversation(t *testing.T) {
	store := conversation.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	// Conversations created by the streaming protocols carry no session
	// data and are invisible to the session protocol.
	_, err := store.CreateOrGet(ctx, &core.Conversation{ID: "plain", ActiveAgentID: "triage"})
	require.NoError(t, err)

	_, err = mgr.ResumeSession(ctx, "plain", "support")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestMarkInitializedPersists(t *testing.T) {
	store := conversation.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	rec, err := mgr.CreateSession(ctx, "t1", "p1", sessionGraph(), "2025-03-26")
	require.NoError(t, err)

	require.NoError(t, mgr.MarkInitialized(ctx, rec.SessionID))

	resumed, err := mgr.ResumeSession(ctx, rec.SessionID, "support")
	require.NoError(t, err)
	assert.True(t, resumed.Initialized)
}

func TestAttachTransportReplaysHandshake(t *testing.T) {
	store := conversation.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	rec, err := mgr.CreateSession(ctx, "t1", "p1", sessionGraph(), "2025-03-26")
	require.NoError(t, err)

	// Before the real handshake nothing is replayed.
	t1 := rpc.NewServerTransport("test", "1")
	require.NoError(t, mgr.AttachTransport(ctx, rec, t1))
	assert.False(t, t1.Initialized())

	require.NoError(t, mgr.MarkInitialized(ctx, rec.SessionID))
	resumed, err := mgr.ResumeSession(ctx, rec.SessionID, "support")
	require.NoError(t, err)

	// A fresh transport accepts non-handshake methods after attach.
	t2 := rpc.NewServerTransport("test", "1")
	require.NoError(t, mgr.AttachTransport(ctx, resumed, t2))
	assert.True(t, t2.Initialized())

	resp := t2.Handle(ctx, &rpc.Message{
		Jsonrpc: rpc.Version,
		ID:      1,
		Method:  rpc.MethodListTools,
		Params:  json.RawMessage(`{}`),
	})
	require.NotNil(t, resp)
	// tools/list is not registered on this bare transport, but the failure
	// is method-not-found rather than not-initialized.
	require.NotNil(t, resp.Error)
	assert.Equal(t, rpc.ErrorCodeMethodNotFound, resp.Error.Code)
}

func TestActiveAgentRoundTrip(t *testing.T) {
	store := conversation.NewInMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	rec, err := mgr.CreateSession(ctx, "t1", "p1", sessionGraph(), "2025-03-26")
	require.NoError(t, err)

	require.NoError(t, mgr.SetActiveAgent(ctx, rec.SessionID, "billing"))
	active, err := mgr.ActiveAgent(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "billing", active)
}
