package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.ConversationStore = (*InMemoryStore)(nil)
	_ core.MessageStore      = (*InMemoryStore)(nil)
	_ core.ConversationStore = (*SQLiteStore)(nil)
	_ core.MessageStore      = (*SQLiteStore)(nil)
)

func TestInMemoryConversationLifecycle(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	conv, err := store.CreateOrGet(ctx, &core.Conversation{ID: "c1", TenantID: "t1", ActiveAgentID: "triage"})
	require.NoError(t, err)
	assert.False(t, conv.CreatedAt.IsZero())

	// CreateOrGet on an existing id returns the stored row unchanged.
	again, err := store.CreateOrGet(ctx, &core.Conversation{ID: "c1", TenantID: "other", ActiveAgentID: "billing"})
	require.NoError(t, err)
	assert.Equal(t, "t1", again.TenantID)
	assert.Equal(t, "triage", again.ActiveAgentID)

	require.NoError(t, store.SetActiveAgent(ctx, "c1", "billing"))
	active, err := store.ActiveAgent(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "billing", active)

	conv.Metadata.ResolvedContext = map[string]any{"locale": "de"}
	require.NoError(t, store.Update(ctx, conv))
	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "de", got.Metadata.ResolvedContext["locale"])

	assert.ErrorIs(t, store.Update(ctx, &core.Conversation{ID: "missing"}), core.ErrConversationNotFound)
	assert.ErrorIs(t, store.SetActiveAgent(ctx, "missing", "x"), core.ErrConversationNotFound)
}

func TestInMemoryMessages(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	n, err := store.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Create(ctx, core.NewMessage("c1", core.RoleUser, "hi")))
	require.NoError(t, store.Create(ctx, core.NewMessage("c1", core.RoleAssistant, "hello")))
	require.NoError(t, store.Create(ctx, core.NewMessage("c2", core.RoleUser, "other")))

	msgs, err := store.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)

	n, err = store.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The returned slice is a copy.
	msgs[0].Content = "mutated"
	fresh, err := store.List(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", fresh[0].Content)
}
