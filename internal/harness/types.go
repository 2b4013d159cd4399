package harness

import (
	"github.com/roach88/offpos/internal/drain"
	"github.com/roach88/offpos/internal/model"
)

// TraceEvent is the terminal state observed after one flow step.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Step    string `json:"step"`
	Outcome string `json:"outcome,omitempty"`
	SaleID  string `json:"sale_id,omitempty"`
	// Error is the error code the step returned, if any.
	Error string        `json:"error,omitempty"`
	Drain *drain.Report `json:"drain,omitempty"`

	Cart      []model.SaleLine `json:"cart"`
	Pending   []string         `json:"pending"`
	Committed []string         `json:"committed"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Last returns the most recent trace event.
func (r *Result) Last() (TraceEvent, bool) {
	if len(r.Trace) == 0 {
		return TraceEvent{}, false
	}
	return r.Trace[len(r.Trace)-1], true
}
