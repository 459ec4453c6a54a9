package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/conversation"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/credential"
)

func resolverGraph(configID string) *core.Graph {
	return &core.Graph{
		ID: "support",
		Agents: map[string]core.Agent{
			"triage": {ID: "triage"},
		},
		DefaultAgentID:  "triage",
		ContextConfigID: configID,
	}
}

func newTestResolver(t *testing.T, optFns ...func(o *Options)) (*Resolver, *conversation.InMemoryStore) {
	t.Helper()
	store := conversation.NewInMemoryStore()
	r := NewResolver(store, store, optFns...)
	return r, store
}

func seedConversation(t *testing.T, store *conversation.InMemoryStore, id string) {
	t.Helper()
	_, err := store.CreateOrGet(context.Background(), &core.Conversation{ID: id, ActiveAgentID: "triage"})
	require.NoError(t, err)
}

func TestResolvePassthroughWithoutConfig(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")

	in := map[string]any{"locale": "de", "tier": "gold"}
	out, err := r.Resolve(context.Background(), resolverGraph(""), "conv-1", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// The returned map is a copy, not the caller's map.
	out["locale"] = "fr"
	assert.Equal(t, "de", in["locale"])
}

func TestResolveUnknownConfig(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")

	_, err := r.Resolve(context.Background(), resolverGraph("ghost"), "conv-1", nil)
	require.Error(t, err)
	// A graph referencing a missing configuration is a server-side wiring
	// problem, not a caller validation failure.
	var vErrs core.ValidationErrors
	assert.False(t, errors.As(err, &vErrs))
}

func TestResolveFirstTurnDefaults(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")
	r.RegisterConfig(&ContextConfig{
		ID: "cc",
		Fields: map[string]FieldSpec{
			"locale": {Type: "string", Default: "en"},
			"tier":   {Type: "string"},
		},
	})

	out, err := r.Resolve(context.Background(), resolverGraph("cc"), "conv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "en", out["locale"])
	_, present := out["tier"]
	assert.False(t, present)
}

func TestResolveCarryForward(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")
	r.RegisterConfig(&ContextConfig{
		ID: "cc",
		Fields: map[string]FieldSpec{
			"locale": {Type: "string", Default: "en"},
		},
	})
	ctx := context.Background()
	g := resolverGraph("cc")

	// First turn: the caller overrides the default.
	out, err := r.Resolve(ctx, g, "conv-1", map[string]any{"locale": "de"})
	require.NoError(t, err)
	assert.Equal(t, "de", out["locale"])

	// Simulate the turn completing.
	require.NoError(t, store.Create(ctx, core.NewMessage("conv-1", core.RoleUser, "hallo")))

	// Continuing turn without request context inherits the cached value,
	// not the default.
	out, err = r.Resolve(ctx, g, "conv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "de", out["locale"])

	// Resolving again is idempotent.
	out, err = r.Resolve(ctx, g, "conv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "de", out["locale"])

	// An explicit value on a continuing turn wins over the cache.
	out, err = r.Resolve(ctx, g, "conv-1", map[string]any{"locale": "fr"})
	require.NoError(t, err)
	assert.Equal(t, "fr", out["locale"])
}

func TestResolveRequiredMissing(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")
	r.RegisterConfig(&ContextConfig{
		ID: "cc",
		Fields: map[string]FieldSpec{
			"tenant_tier": {Type: "string", Required: true},
			"region":      {Type: "string", Required: true},
		},
	})

	_, err := r.Resolve(context.Background(), resolverGraph("cc"), "conv-1", nil)
	require.Error(t, err)
	var vErrs core.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	// Every missing field is reported, not just the first.
	assert.Len(t, vErrs, 2)
}

func TestResolveTypeAndRuleViolations(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")
	r.RegisterConfig(&ContextConfig{
		ID: "cc",
		Fields: map[string]FieldSpec{
			"max_results": {Type: "integer"},
			"locale":      {Type: "string", Rules: "oneof=de en fr"},
		},
	})

	_, err := r.Resolve(context.Background(), resolverGraph("cc"), "conv-1", map[string]any{
		"max_results": "ten",
		"locale":      "xx",
	})
	require.Error(t, err)
	var vErrs core.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	assert.Len(t, vErrs, 2)

	// JSON numbers arrive as float64; whole values satisfy "integer".
	out, err := r.Resolve(context.Background(), resolverGraph("cc"), "conv-1", map[string]any{
		"max_results": float64(10),
		"locale":      "de",
	})
	require.NoError(t, err)
	assert.Equal(t, float64(10), out["max_results"])
}

func TestResolveCredentialField(t *testing.T) {
	secrets := credential.NewInMemoryStore()
	secrets.Set("search-api-key", "s3cret")

	r, store := newTestResolver(t, func(o *Options) { o.Credentials = secrets })
	seedConversation(t, store, "conv-1")
	r.RegisterConfig(&ContextConfig{
		ID: "cc",
		Fields: map[string]FieldSpec{
			"api_key": {CredentialRef: "search-api-key"},
			"locale":  {Type: "string", Default: "en"},
		},
	})
	ctx := context.Background()

	// The caller cannot supply credential fields; the capability value wins.
	out, err := r.Resolve(ctx, resolverGraph("cc"), "conv-1", map[string]any{"api_key": "attacker"})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", out["api_key"])

	// Credential values are never cached on the conversation row.
	conv, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	_, cached := conv.Metadata.ResolvedContext["api_key"]
	assert.False(t, cached)
	assert.Equal(t, "en", conv.Metadata.ResolvedContext["locale"])
}

func TestResolveCredentialFailure(t *testing.T) {
	r, store := newTestResolver(t)
	seedConversation(t, store, "conv-1")
	r.RegisterConfig(&ContextConfig{
		ID: "cc",
		Fields: map[string]FieldSpec{
			"api_key": {CredentialRef: "missing-ref"},
		},
	})

	_, err := r.Resolve(context.Background(), resolverGraph("cc"), "conv-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}
