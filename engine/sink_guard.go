package engine

import (
	"errors"

	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/stream"
)

// errStreamBroken tells the step function to stop emitting deltas once the
// transport has failed. It never escapes the engine; terminal framing is
// the guard's job.
var errStreamBroken = errors.New("stream transport failed")

// sinkGuard wraps a stream.Sink so transport failures never propagate back
// through the execution loop. On the first write error it attempts one
// WriteError and a Complete, logs whatever still fails, and silences all
// further emission; the run continues so database bookkeeping finishes. A
// broken pipe must not crash an otherwise-successful run.
type sinkGuard struct {
	sink   stream.Sink
	logger logging.Logger
	broken bool
}

func newSinkGuard(sink stream.Sink, logger logging.Logger) *sinkGuard {
	return &sinkGuard{sink: sink, logger: logger}
}

func (g *sinkGuard) WriteRole(agentID string) {
	if g.broken {
		return
	}
	if err := g.sink.WriteRole(agentID); err != nil {
		g.breakStream(err)
	}
}

// WriteContentDelta matches the onDelta signature of core.StepFunction. It
// reports the transport failure to the step function (so it can stop
// emitting) while the guard handles terminal framing itself.
func (g *sinkGuard) WriteContentDelta(text string) error {
	if g.broken {
		return errStreamBroken
	}
	if err := g.sink.WriteContentDelta(text); err != nil {
		g.breakStream(err)
		return errStreamBroken
	}
	return nil
}

func (g *sinkGuard) WriteOperation(op stream.Operation) {
	if g.broken {
		return
	}
	if err := g.sink.WriteOperation(op); err != nil {
		g.breakStream(err)
	}
}

func (g *sinkGuard) WriteError(message string, scope stream.ErrorScope) {
	if g.broken {
		return
	}
	if err := g.sink.WriteError(message, scope); err != nil {
		g.breakStream(err)
	}
}

func (g *sinkGuard) Complete() {
	if g.broken {
		return
	}
	if err := g.sink.Complete(); err != nil {
		g.logger.Warn("stream completion failed", "error", err)
		g.broken = true
	}
}

func (g *sinkGuard) breakStream(cause error) {
	g.logger.Warn("stream transport failed, silencing further emission", "error", cause)
	g.broken = true
	if err := g.sink.WriteError("stream transport failed", stream.ScopeRequest); err != nil {
		g.logger.Warn("terminal error frame failed", "error", err)
		return
	}
	if err := g.sink.Complete(); err != nil {
		g.logger.Warn("terminal completion failed", "error", err)
	}
}
