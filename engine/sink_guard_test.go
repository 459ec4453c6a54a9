package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/conversation"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/stream"
)

// brokenSink fails every write after failAfter successful calls.
type brokenSink struct {
	calls     int
	failAfter int
	errWrites []string
	completed int
}

func (s *brokenSink) write(kind string) error {
	s.calls++
	if s.calls > s.failAfter {
		return errors.New("broken pipe")
	}
	s.errWrites = append(s.errWrites, kind)
	return nil
}

func (s *brokenSink) WriteRole(string) error                     { return s.write("role") }
func (s *brokenSink) WriteContentDelta(string) error             { return s.write("delta") }
func (s *brokenSink) WriteOperation(stream.Operation) error      { return s.write("op") }
func (s *brokenSink) WriteError(string, stream.ErrorScope) error { return s.write("error") }
func (s *brokenSink) Complete() error {
	s.completed++
	return s.write("done")
}

func TestRunSurvivesBrokenStream(t *testing.T) {
	store := conversation.NewInMemoryStore()
	eng := New(func(o *Options) {
		o.StepFn = core.StepFunc(func(ctx context.Context, req core.StepRequest, onDelta func(string) error) (core.StepOutcome, error) {
			_ = onDelta("partial ")
			_ = onDelta("text")
			return core.StepOutcome{Type: core.StepFinal, Text: "partial text"}, nil
		})
		o.Conversations = store
		o.Messages = store
	})
	require.NoError(t, eng.RegisterGraph(supportGraph()))

	// The transport dies after the role announcement.
	sink := &brokenSink{failAfter: 1}
	result := eng.Execute(context.Background(), execCtx(), "conv-broken", "hi", "", sink)

	// The run itself still succeeds and persistence completes.
	require.NoError(t, result.Err)
	assert.True(t, result.Success)

	msgs, err := store.List(context.Background(), "conv-broken")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial text", msgs[1].Content)
}

func TestSinkGuardReportsDeltaFailure(t *testing.T) {
	sink := &brokenSink{failAfter: 2}
	guard := newSinkGuard(sink, logging.NoOpLogger{})

	// Healthy transport: deltas flow through without error.
	require.NoError(t, guard.WriteContentDelta("a"))
	require.NoError(t, guard.WriteContentDelta("b"))

	// The failing write is reported so the step function can stop
	// emitting, and stays reported while the stream is broken.
	assert.ErrorIs(t, guard.WriteContentDelta("c"), errStreamBroken)
	assert.ErrorIs(t, guard.WriteContentDelta("d"), errStreamBroken)
}

func TestSinkGuardSilencesAfterFirstFailure(t *testing.T) {
	sink := &brokenSink{failAfter: 0}
	guard := newSinkGuard(sink, logging.NoOpLogger{})

	guard.WriteRole("a")
	guard.WriteOperation(stream.Operation{Kind: stream.OperationTransfer})
	_ = guard.WriteContentDelta("x")
	guard.Complete()

	// One failed role write plus one terminal error attempt; with the
	// error frame also failing no completion is tried and everything after
	// the break is a no-op.
	assert.Equal(t, 2, sink.calls)
	assert.Equal(t, 0, sink.completed)
}
