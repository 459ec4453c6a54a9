package stream

// EventType tags recorded events.
type EventType string

// Recorded event types.
const (
	EventRole         EventType = "role"
	EventContentDelta EventType = "content-delta"
	EventOperation    EventType = "operation"
	EventError        EventType = "error"
	EventDone         EventType = "done"
)

// Event is one recorded sink call, used by tests and by callers that want a
// buffered view of a run instead of wire framing.
type Event struct {
	Type    EventType
	AgentID string
	Text    string
	Op      Operation
	Message string
	Scope   ErrorScope
}

// Recorder is a Sink that captures every call in order. Not safe for
// concurrent use.
type Recorder struct {
	Events    []Event
	completed bool
}

// NewRecorder builds an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// WriteRole implements Sink.
func (r *Recorder) WriteRole(agentID string) error {
	r.Events = append(r.Events, Event{Type: EventRole, AgentID: agentID})
	return nil
}

// WriteContentDelta implements Sink.
func (r *Recorder) WriteContentDelta(text string) error {
	r.Events = append(r.Events, Event{Type: EventContentDelta, Text: text})
	return nil
}

// WriteOperation implements Sink.
func (r *Recorder) WriteOperation(op Operation) error {
	r.Events = append(r.Events, Event{Type: EventOperation, Op: op})
	return nil
}

// WriteError implements Sink.
func (r *Recorder) WriteError(message string, scope ErrorScope) error {
	r.Events = append(r.Events, Event{Type: EventError, Message: message, Scope: scope})
	return nil
}

// Complete implements Sink. Calling it twice is a no-op.
func (r *Recorder) Complete() error {
	if r.completed {
		return nil
	}
	r.completed = true
	r.Events = append(r.Events, Event{Type: EventDone})
	return nil
}

// Text concatenates all recorded content deltas.
func (r *Recorder) Text() string {
	var out string
	for _, ev := range r.Events {
		if ev.Type == EventContentDelta {
			out += ev.Text
		}
	}
	return out
}

// CountType returns how many recorded events carry the given type.
func (r *Recorder) CountType(t EventType) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
