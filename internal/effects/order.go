package effects

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/lifecycle"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/poll"
)

func (r *Runner) createOrder(ctx context.Context, prev order.State, d Dispatcher) {
	results := r.orders.CreateOrderAndStartQuoteFetching(ctx, lifecycle.Request{
		PreviousOrderID: prev.ID,
		Asset:           prev.SelectedAsset,
		PaymentMethod:   *prev.SelectedPaymentMethod,
		Amount:          prev.Amount,
		Frequency:       prev.RecurringBuyFrequency,
	})
	for res := range results {
		if res.Err != nil {
			r.orders.Stop(true)
			r.fail(ctx, d, intent.CancelOrderIfAnyAndCreatePendingOne{}, res.Err)
			return
		}
		d.Dispatch(intent.OrderCreated{
			ID:             res.Order.ID,
			Lifecycle:      res.Order.Lifecycle,
			Quote:          res.Quote,
			RecurringBuyID: res.Order.RecurringBuyID,
		})
	}
}

func (r *Runner) confirmOrder(ctx context.Context, prev order.State, d Dispatcher) {
	pm := *prev.SelectedPaymentMethod
	pmID, _ := pm.ConcreteID()

	var attrs broker.ConfirmAttributes
	if pm.IsBank() {
		attrs.PaymentMethodID = pmID
	}

	o, err := r.collab.Broker.ConfirmOrder(ctx, prev.ID, pmID, attrs)
	if err != nil {
		r.fail(ctx, d, intent.ConfirmOrder{}, err)
		return
	}
	r.log.Info("order confirmed",
		zap.String("order_id", o.ID),
		zap.Stringer("lifecycle", o.Lifecycle),
	)

	d.Dispatch(intent.OrderConfirmed{ID: o.ID, Lifecycle: o.Lifecycle, RecurringBuyID: o.RecurringBuyID})
	if prev.RecurringBuyFrequency.IsRecurring() && o.RecurringBuyID == "" {
		d.Dispatch(intent.CreateRecurringBuy{})
	}

	switch {
	case o.AuthorisationURL != "":
		d.Dispatch(intent.AuthorisationURLUpdated{URL: o.AuthorisationURL})
	case pm.IsBank() && o.Lifecycle.IsPending():
		d.Dispatch(intent.FetchAuthorisationURL{OrderID: o.ID})
	case o.Lifecycle.IsPending():
		d.Dispatch(intent.CheckOrderStatus{})
	}
}

// makePayment looks at a confirmed order once and decides whether the user
// has to authorise it at their bank or whether settlement can be awaited.
func (r *Runner) makePayment(ctx context.Context, id string, d Dispatcher) {
	o, err := r.collab.Broker.GetOrder(ctx, id)
	if err != nil {
		r.fail(ctx, d, intent.MakePayment{}, err)
		return
	}
	switch {
	case o.AuthorisationURL != "":
		d.Dispatch(intent.AuthorisationURLUpdated{URL: o.AuthorisationURL})
	case o.Lifecycle == order.LifecycleFinished:
		d.Dispatch(intent.PaymentSucceeded{})
	default:
		d.Dispatch(intent.CheckOrderStatus{})
	}
}

func (r *Runner) pollAuthorisationURL(ctx context.Context, id string, d Dispatcher) {
	res, err := poll.Until(ctx, r.poller, "authorisation_url", r.short,
		func(ctx context.Context) (broker.Order, error) { return r.collab.Broker.GetOrder(ctx, id) },
		func(o broker.Order) bool { return o.AuthorisationURL != "" },
	)
	if err != nil {
		r.fail(ctx, d, intent.FetchAuthorisationURL{}, err)
		return
	}
	switch res.Outcome {
	case poll.OutcomeFinal:
		d.Dispatch(intent.AuthorisationURLUpdated{URL: res.Value.AuthorisationURL})
	case poll.OutcomeTimeout:
		d.Dispatch(intent.ErrorIntent{Kind: order.BuyErrorBankLinkingTimeout})
	}
}

func isSettled(o broker.Order) bool {
	switch o.Lifecycle {
	case order.LifecycleFinished, order.LifecycleFailed, order.LifecycleCanceled:
		return true
	}
	return false
}

func (r *Runner) pollOrderStatus(ctx context.Context, id string, d Dispatcher) {
	res, err := poll.Until(ctx, r.poller, "order_status", r.short,
		func(ctx context.Context) (broker.Order, error) { return r.collab.Broker.GetOrder(ctx, id) },
		isSettled,
	)
	if err != nil {
		r.fail(ctx, d, intent.CheckOrderStatus{}, err)
		return
	}

	o := res.Value
	switch res.Outcome {
	case poll.OutcomeFinal:
		if o.Lifecycle == order.LifecycleFinished {
			d.Dispatch(intent.PaymentSucceeded{})
			return
		}
		kind := KindForApproval(o.ApprovalError)
		r.log.Info("order did not settle",
			zap.String("order_id", o.ID),
			zap.Stringer("lifecycle", o.Lifecycle),
			zap.String("buy_error", string(kind)),
		)
		d.Dispatch(intent.ErrorIntent{Kind: kind})
	case poll.OutcomeTimeout:
		if o.Lifecycle.IsPending() {
			d.Dispatch(intent.PaymentPending{})
			return
		}
		d.Dispatch(intent.ErrorIntent{Kind: order.BuyErrorPaymentFailed})
	}
}

func (r *Runner) createRecurringBuy(ctx context.Context, prev order.State, d Dispatcher) {
	pm := *prev.SelectedPaymentMethod
	pmID, _ := pm.ConcreteID()

	rb, err := r.collab.Broker.CreateRecurringBuy(ctx, broker.RecurringBuyRequest{
		OrderID:           prev.ID,
		Pair:              broker.Pair{Asset: prev.SelectedAsset, Fiat: prev.FiatCurrency},
		Amount:            prev.Amount,
		PaymentMethodID:   pmID,
		PaymentMethodType: pm.Type,
		Frequency:         prev.RecurringBuyFrequency,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// The purchase itself stands; only the standing instruction failed.
		r.log.Warn("recurring buy not created", zap.String("order_id", prev.ID), zap.Error(err))
		d.Dispatch(intent.RecurringBuyCreated{State: order.RecurringBuyInactive})
		return
	}
	d.Dispatch(intent.RecurringBuyCreated{ID: rb.ID, State: rb.State})
}

func (r *Runner) cancelOrder(ctx context.Context, prev order.State, d Dispatcher) {
	r.orders.Stop(true)
	if prev.HasLiveOrder() {
		if err := r.collab.Broker.CancelOrder(context.WithoutCancel(ctx), prev.ID); err != nil && !broker.IsNotFound(err) {
			r.fail(ctx, d, intent.CancelOrder{}, err)
			return
		}
		r.metrics.OrderCancelled()
	}
	d.Dispatch(intent.OrderCanceled{})
}
