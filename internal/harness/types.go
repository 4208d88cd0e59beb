package harness

import (
	"github.com/roach88/readmeplay/internal/wire"
)

// Trace event types.
const (
	EventStep  = "step"
	EventFired = "fired"
	EventFrame = "frame"
	EventState = "state"
	EventError = "error"
)

// TraceEvent is one observable thing that happened during a run.
type TraceEvent struct {
	Seq      int64         `json:"seq"`
	Type     string        `json:"type"`
	Action   string        `json:"action,omitempty"`
	Position *float64      `json:"position,omitempty"`
	State    string        `json:"state,omitempty"`
	Message  *wire.Message `json:"message,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists events in the order they were observed. Frames written
	// during a step are listed after the step's other events.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// Sent is every non-ping message the executor received.
	Sent []wire.Message `json:"sent"`

	// State and Pending describe the channel after the last step.
	State   string `json:"state"`
	Pending int    `json:"pending"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Sent:   []wire.Message{},
	}
}

// AddError records a failed assertion and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
