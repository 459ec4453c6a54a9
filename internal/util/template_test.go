package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate("Answer in {{.locale}}.", map[string]any{"locale": "de"})
	require.NoError(t, err)
	assert.Equal(t, "Answer in de.", out)

	out, err = RenderTemplate("Tier: {{.tier | default \"free\"}}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Tier: free", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
