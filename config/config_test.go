package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "agentgraph", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Empty(t, cfg.Store.SQLitePath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MODEL_PROVIDER", "anthropic")
	t.Setenv("SQLITE_PATH", "/var/lib/agentgraph.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "/var/lib/agentgraph.db", cfg.Store.SQLitePath)
}
