package harness

import (
	"fmt"

	"github.com/roach88/buyflow/internal/engine"
	"github.com/roach88/buyflow/internal/order"
)

// TraceEvent is one processed intent as recorded in a scenario trace.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Intent  string          `json:"intent"`
	Applied bool            `json:"applied"`
	From    order.Lifecycle `json:"from"`
	To      order.Lifecycle `json:"to"`
}

// EventFrom drops the state carried by an engine transition.
func EventFrom(t engine.Transition) TraceEvent {
	return TraceEvent{Seq: t.Seq, Intent: t.Intent, Applied: t.Applied, From: t.From, To: t.To}
}

// TraceFrom converts an engine transition log.
func TraceFrom(ts []engine.Transition) []TraceEvent {
	out := make([]TraceEvent, len(ts))
	for i, t := range ts {
		out[i] = EventFrom(t)
	}
	return out
}

// String renders the event as one trace line, e.g.
// "[2] OrderCreated UNINITIALISED -> PENDING_CONFIRMATION".
func (e TraceEvent) String() string {
	line := fmt.Sprintf("[%d] %s %s -> %s", e.Seq, e.Intent, e.From, e.To)
	if !e.Applied {
		line += " (skipped)"
	}
	return line
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	FlowID string       `json:"flow_id"`
	Trace  []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the engine state once the last step settled.
	State order.State `json:"-"`

	// LiveOrders is the number of non-terminal orders left at the broker.
	LiveOrders int `json:"live_orders"`

	// SnapshotSaved reports whether a snapshot survived the run.
	SnapshotSaved bool `json:"snapshot_saved"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
