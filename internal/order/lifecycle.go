package order

import "fmt"

// Lifecycle is the position of an order in its progression from creation to
// a terminal outcome. Values are ordered; see Precedes.
type Lifecycle int

const (
	LifecycleUninitialised Lifecycle = iota
	LifecycleInitialised
	LifecyclePendingConfirmation
	LifecyclePendingExecution
	LifecycleAwaitingFunds
	LifecycleFinished
	LifecycleCanceled
	LifecycleFailed
	LifecycleUnknown
)

var lifecycleNames = [...]string{
	LifecycleUninitialised:       "UNINITIALISED",
	LifecycleInitialised:         "INITIALISED",
	LifecyclePendingConfirmation: "PENDING_CONFIRMATION",
	LifecyclePendingExecution:    "PENDING_EXECUTION",
	LifecycleAwaitingFunds:       "AWAITING_FUNDS",
	LifecycleFinished:            "FINISHED",
	LifecycleCanceled:            "CANCELED",
	LifecycleFailed:              "FAILED",
	LifecycleUnknown:             "UNKNOWN",
}

// String returns the wire name of the lifecycle.
func (l Lifecycle) String() string {
	if l < 0 || int(l) >= len(lifecycleNames) {
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
	return lifecycleNames[l]
}

// ParseLifecycle converts a wire name back into a Lifecycle.
func ParseLifecycle(s string) (Lifecycle, error) {
	for i, name := range lifecycleNames {
		if name == s {
			return Lifecycle(i), nil
		}
	}
	return LifecycleUnknown, fmt.Errorf("unknown lifecycle %q", s)
}

// Valid reports whether l is one of the declared lifecycles.
func (l Lifecycle) Valid() bool {
	return l >= LifecycleUninitialised && l <= LifecycleUnknown
}

// Precedes reports whether l comes strictly before other.
func (l Lifecycle) Precedes(other Lifecycle) bool {
	return l < other
}

// IsTerminal reports whether no further transition is expected from l.
func (l Lifecycle) IsTerminal() bool {
	return l >= LifecycleFinished
}

// IsPending reports whether the order exists remotely and still awaits
// confirmation, execution or funds.
func (l Lifecycle) IsPending() bool {
	switch l {
	case LifecyclePendingConfirmation, LifecyclePendingExecution, LifecycleAwaitingFunds:
		return true
	}
	return false
}

// Advance returns the later of l and next. Lifecycles never move backwards
// outside an explicit reset.
func (l Lifecycle) Advance(next Lifecycle) Lifecycle {
	if next > l {
		return next
	}
	return l
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifecycle) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid lifecycle %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifecycle) UnmarshalText(b []byte) error {
	parsed, err := ParseLifecycle(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
