package stream

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Sink = (*SSERenderer)(nil)
	_ Sink = (*DataStreamRenderer)(nil)
	_ Sink = (*RPCRenderer)(nil)
	_ Sink = (*Recorder)(nil)
)

// parseSSEData extracts the payload of every "data:" line.
func parseSSEData(t *testing.T, out string) []string {
	t.Helper()
	var payloads []string
	for _, line := range strings.Split(out, "\n") {
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			payloads = append(payloads, after)
		}
	}
	return payloads
}

func TestSSERendererFraming(t *testing.T) {
	var buf bytes.Buffer
	r := NewSSERenderer(&buf, "support-graph")
	assert.False(t, r.Started())

	require.NoError(t, r.WriteRole("triage"))
	assert.True(t, r.Started())
	require.NoError(t, r.WriteContentDelta("Hello"))
	require.NoError(t, r.WriteOperation(Operation{Kind: OperationTransfer, Payload: map[string]any{"from": "triage", "to": "billing"}}))
	require.NoError(t, r.Complete())

	out := buf.String()
	payloads := parseSSEData(t, out)
	require.Len(t, payloads, 5) // role, delta, operation, finish, [DONE]
	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])
	assert.Contains(t, out, "event: operation\n")

	var first CompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	assert.Equal(t, "chat.completion.chunk", first.Object)
	assert.Equal(t, "support-graph", first.Model)
	assert.True(t, strings.HasPrefix(first.ID, "chatcmpl-"))
	require.Len(t, first.Choices, 1)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)

	var second CompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[1]), &second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Hello", second.Choices[0].Delta.Content)

	var finish CompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[3]), &finish))
	assert.Equal(t, "stop", finish.Choices[0].FinishReason)
}

func TestSSERendererErrorFinish(t *testing.T) {
	var buf bytes.Buffer
	r := NewSSERenderer(&buf, "m")

	require.NoError(t, r.WriteError("budget exceeded", ScopeRun))
	require.NoError(t, r.Complete())

	payloads := parseSSEData(t, buf.String())
	require.Len(t, payloads, 3) // error, finish, [DONE]

	var frame struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &frame))
	assert.Equal(t, "budget exceeded", frame.Error.Message)
	assert.Equal(t, "run", frame.Error.Type)

	var finish CompletionChunk
	require.NoError(t, json.Unmarshal([]byte(payloads[1]), &finish))
	assert.Equal(t, "error", finish.Choices[0].FinishReason)
}

func TestSSERendererCompleteIdempotent(t *testing.T) {
	var buf bytes.Buffer
	r := NewSSERenderer(&buf, "m")

	require.NoError(t, r.Complete())
	require.NoError(t, r.Complete())

	assert.Equal(t, 1, strings.Count(buf.String(), "data: [DONE]"))
}
