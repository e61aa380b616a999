package events

// Event represents a typed event emitted during ledger state transitions.
// Events are an audit trail for external observers, never a control channel.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter consumes events produced by the ledger and its modules.
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding every event.
// Engines default to it so callers only wire a sink when they need one.
type NoopEmitter struct{}

func (NoopEmitter) Emit(*Event) {}

// Recorder is an Emitter that retains every event in order. Intended for
// tests and for read-side services that expose the audit trail.
type Recorder struct {
	events []*Event
}

func (r *Recorder) Emit(evt *Event) {
	if r == nil || evt == nil {
		return
	}
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []*Event {
	if r == nil {
		return nil
	}
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}
