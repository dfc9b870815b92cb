package intent

import "github.com/roach88/buyflow/internal/order"

// ErrorIntent sets a terminal buy error. It is deliverable in any state so
// the flow can always leave a loading state.
type ErrorIntent struct {
	always
	Kind order.BuyErrorKind
}

func (ErrorIntent) Name() string { return "ErrorIntent" }

func (i ErrorIntent) Reduce(s order.State) order.State {
	s.BuyError = i.Kind
	s.IsLoading = false
	s.ConfirmationActionRequested = false
	return s
}

// ClearError removes the current buy error.
type ClearError struct{ always }

func (ClearError) Name() string { return "ClearError" }

func (ClearError) IsValidFor(s order.State) bool {
	return s.BuyError != order.BuyErrorNone
}

func (ClearError) Reduce(s order.State) order.State {
	s.BuyError = order.BuyErrorNone
	return s
}

// ClearState resets the flow. An order mid-confirmation or mid-execution
// cannot be cleared.
type ClearState struct{ always }

func (ClearState) Name() string { return "ClearState" }

func (ClearState) IsValidFor(s order.State) bool { return s.CanClear() }

func (ClearState) Reduce(order.State) order.State { return order.Empty() }
