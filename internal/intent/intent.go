package intent

import "github.com/roach88/buyflow/internal/order"

// Intent is a request to change the buy flow's state.
type Intent interface {
	// Name identifies the intent in logs and traces.
	Name() string
	IsValidFor(s order.State) bool
	Reduce(s order.State) order.State
	sealed()
}

// Reduce applies in to s when its guard accepts s. The boolean reports
// whether the intent was applied.
func Reduce(s order.State, in Intent) (order.State, bool) {
	if !in.IsValidFor(s) {
		return s, false
	}
	return in.Reduce(s), true
}

// guarded is embedded by intents that must not apply once a terminal buy
// error is set.
type guarded struct{}

func (guarded) IsValidFor(s order.State) bool { return s.BuyError == order.BuyErrorNone }
func (guarded) sealed()                       {}

// always is embedded by intents that are deliverable in any state.
type always struct{}

func (always) IsValidFor(order.State) bool { return true }
func (always) sealed()                     {}
