package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/bindery/internal/trace"
)

// AssertionError is returned when an assertion fails. It carries the
// trace so the failure can be read in context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Event
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Kind, ev.Node)
		if ev.Binding != "" {
			fmt.Fprintf(&buf, " %s", ev.Binding)
		}
		if ev.Detail != "" {
			fmt.Fprintf(&buf, " (%s)", ev.Detail)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// Matches reports whether ev has every field m sets.
func (m EventMatch) Matches(ev trace.Event) bool {
	return (m.Kind == "" || m.Kind == string(ev.Kind)) &&
		(m.Node == "" || m.Node == ev.Node) &&
		(m.Binding == "" || m.Binding == ev.Binding) &&
		(m.Detail == "" || m.Detail == ev.Detail)
}

func (m EventMatch) String() string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"kind", m.Kind}, {"node", m.Node}, {"binding", m.Binding}, {"detail", m.Detail},
	} {
		if f.value != "" {
			parts = append(parts, f.name+"="+f.value)
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func assertTraceContains(events []trace.Event, a Assertion) error {
	for _, ev := range events {
		if a.Event.Matches(ev) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("an event matching %s", a.Event),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that events matching a.Events appear in order.
// Other events may come between them.
func assertTraceOrder(events []trace.Event, a Assertion) error {
	next := 0
	for i := 0; i < len(events) && next < len(a.Events); i++ {
		if a.Events[next].Matches(events[i]) {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("no match for %s after the first %d", a.Events[next], next),
		Trace:    events,
	}
}

func assertTraceCount(events []trace.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if a.Event.Matches(ev) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events matching %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    events,
		}
	}
	return nil
}

// EvaluateAssertions checks every assertion against the trace and
// returns the messages of those that failed.
func EvaluateAssertions(events []trace.Event, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(events, a)
		case AssertTraceOrder:
			err = assertTraceOrder(events, a)
		case AssertTraceCount:
			err = assertTraceCount(events, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
