package intent

import "github.com/roach88/buyflow/internal/order"

// OrderCreated records a newly created order and the quote backing it. The
// quote always replaces the previous one along with the order.
type OrderCreated struct {
	guarded
	ID             string
	Lifecycle      order.Lifecycle
	Quote          order.Quote
	RecurringBuyID string
}

func (OrderCreated) Name() string { return "OrderCreated" }

func (i OrderCreated) Reduce(s order.State) order.State {
	changed := s.Quote != nil && !s.Quote.Price.Equal(i.Quote.Price)
	q := i.Quote

	s.ID = i.ID
	s.Lifecycle = s.Lifecycle.Advance(i.Lifecycle)
	s.Quote = &q
	s.HasQuoteChanged = changed
	s.PaymentSucceeded = i.Lifecycle == order.LifecycleFinished
	s.IsLoading = false
	if i.RecurringBuyID != "" {
		s.RecurringBuyID = i.RecurringBuyID
		s.RecurringBuyState = order.RecurringBuyActive
	}
	return s
}

// OrderConfirmed records the broker's response to a confirmation.
type OrderConfirmed struct {
	guarded
	ID             string
	Lifecycle      order.Lifecycle
	RecurringBuyID string
}

func (OrderConfirmed) Name() string { return "OrderConfirmed" }

func (i OrderConfirmed) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && s.ID == i.ID
}

func (i OrderConfirmed) Reduce(s order.State) order.State {
	s.Lifecycle = s.Lifecycle.Advance(i.Lifecycle)
	s.PaymentSucceeded = i.Lifecycle == order.LifecycleFinished
	s.IsLoading = false
	if i.RecurringBuyID != "" {
		s.RecurringBuyID = i.RecurringBuyID
		s.RecurringBuyState = order.RecurringBuyActive
	}
	return s
}

// OrderCanceled replaces the state with a fresh one marked canceled.
type OrderCanceled struct{ always }

func (OrderCanceled) Name() string { return "OrderCanceled" }

func (OrderCanceled) Reduce(order.State) order.State {
	return order.State{Lifecycle: order.LifecycleCanceled}
}

// PaymentSucceeded records settlement of the order.
type PaymentSucceeded struct{ guarded }

func (PaymentSucceeded) Name() string { return "PaymentSucceeded" }

func (i PaymentSucceeded) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && !s.PaymentSucceeded
}

func (PaymentSucceeded) Reduce(s order.State) order.State {
	s.Lifecycle = s.Lifecycle.Advance(order.LifecycleFinished)
	s.PaymentSucceeded = true
	s.PaymentPending = false
	s.IsLoading = false
	return s
}

// PaymentPending records that settlement did not finish within the polling
// budget. It is not an error.
type PaymentPending struct{ guarded }

func (PaymentPending) Name() string { return "PaymentPending" }

func (i PaymentPending) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && !s.PaymentPending
}

func (PaymentPending) Reduce(s order.State) order.State {
	s.PaymentPending = true
	s.IsLoading = false
	return s
}
