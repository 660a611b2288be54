package harness

import (
	"github.com/roach88/bindery/internal/trace"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the stored run. Empty when no store was given.
	RunID string `json:"run_id,omitempty"`

	// Trace holds the engine's events in sequence order.
	Trace []trace.Event `json:"trace"`

	// TraceHash is the content hash of Trace.
	TraceHash string `json:"trace_hash"`

	// HTML is the body content after the last step.
	HTML string `json:"html"`

	// Errors holds failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []trace.Event{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
