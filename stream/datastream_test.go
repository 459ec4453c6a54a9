package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseParts(t *testing.T, out string) []dataPart {
	t.Helper()
	var parts []dataPart
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var p dataPart
		require.NoError(t, json.Unmarshal([]byte(line), &p))
		parts = append(parts, p)
	}
	return parts
}

func TestDataStreamRendererFraming(t *testing.T) {
	var buf bytes.Buffer
	r := NewDataStreamRenderer(&buf)
	assert.False(t, r.Started())

	require.NoError(t, r.WriteRole("triage"))
	require.NoError(t, r.WriteContentDelta("Hel"))
	require.NoError(t, r.WriteContentDelta("lo"))
	require.NoError(t, r.WriteOperation(Operation{Kind: OperationDelegate, Payload: map[string]any{"to": "research"}}))
	require.NoError(t, r.Complete())
	assert.True(t, r.Started())

	parts := parseParts(t, buf.String())
	require.Len(t, parts, 5)
	assert.Equal(t, partStart, parts[0].Type)
	assert.Equal(t, "triage", parts[0].AgentID)
	assert.Equal(t, partTextDelta, parts[1].Type)
	assert.Equal(t, "Hel", parts[1].Text)
	assert.Equal(t, partData, parts[3].Type)
	require.NotNil(t, parts[3].Data)
	assert.Equal(t, OperationDelegate, parts[3].Data.Kind)
	assert.Equal(t, partFinish, parts[4].Type)
}

func TestDataStreamRendererError(t *testing.T) {
	var buf bytes.Buffer
	r := NewDataStreamRenderer(&buf)

	require.NoError(t, r.WriteError("step failed", ScopeRun))
	require.NoError(t, r.Complete())

	parts := parseParts(t, buf.String())
	require.Len(t, parts, 2)
	assert.Equal(t, partError, parts[0].Type)
	assert.Equal(t, "step failed", parts[0].Message)
	assert.Equal(t, "run", parts[0].Scope)
	assert.Equal(t, partFinish, parts[1].Type)
}

func TestDataStreamRendererCompleteIdempotent(t *testing.T) {
	var buf bytes.Buffer
	r := NewDataStreamRenderer(&buf)

	require.NoError(t, r.Complete())
	require.NoError(t, r.Complete())

	parts := parseParts(t, buf.String())
	assert.Len(t, parts, 1)
}
