package trace

import (
	"sync"
	"sync/atomic"
)

// Kind names what happened.
type Kind string

const (
	// KindBind marks the start of binding one node.
	KindBind Kind = "bind"

	// KindInit marks a handler's Init call.
	KindInit Kind = "init"

	// KindUpdate marks each run of a handler's Update.
	KindUpdate Kind = "update"

	// KindChildrenComplete marks the children-complete signal.
	KindChildrenComplete Kind = "children_complete"

	// KindDescendantsComplete marks the descendants-complete signal.
	KindDescendantsComplete Kind = "descendants_complete"

	// KindDispose marks a node's bindings being torn down.
	KindDispose Kind = "dispose"

	// KindError marks a failure, including failures of reactive reruns
	// that happen after the apply call returned.
	KindError Kind = "error"
)

// Event is one entry of a binding trace.
type Event struct {
	Seq     int64  `json:"seq" yaml:"seq"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Node    string `json:"node" yaml:"node"`
	Binding string `json:"binding,omitempty" yaml:"binding,omitempty"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Object returns the event as a canonical-JSON-ready object. Empty
// optional fields are omitted.
func (e Event) Object() map[string]any {
	obj := map[string]any{
		"seq":  e.Seq,
		"kind": string(e.Kind),
		"node": e.Node,
	}
	if e.Binding != "" {
		obj["binding"] = e.Binding
	}
	if e.Detail != "" {
		obj["detail"] = e.Detail
	}
	return obj
}

// Sink receives trace events.
type Sink interface {
	Emit(Event)
}

// Clock is a monotonic logical clock. Events are ordered by the sequence
// number it hands out, never by wall-clock time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Recorder is a Sink that stamps events with a logical clock and keeps
// them in memory.
type Recorder struct {
	mu     sync.Mutex
	clock  *Clock
	events []Event
}

// NewRecorder creates a recorder with a fresh clock.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// Emit stamps ev and appends it.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.Seq = r.clock.Next()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in sequence order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops recorded events. The clock keeps counting.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Filter returns the events of the given kinds.
func Filter(events []Event, kinds ...Kind) []Event {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Event
	for _, ev := range events {
		if want[ev.Kind] {
			out = append(out, ev)
		}
	}
	return out
}
