// Package reconcile decides, at flow entry, which order the buy flow should
// resume: the locally persisted one, the broker's copy of it, or an order
// placed from another session.
//
// The engine runs before the state owner takes over the snapshot, so it is
// the snapshot's only reader and writer while it runs.
package reconcile

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/metrics"
	"github.com/roach88/buyflow/internal/order"
)

const tracerName = "github.com/roach88/buyflow/internal/reconcile"

// Snapshots persists the resumable part of the order state.
type Snapshots interface {
	// Load returns the persisted state. A missing or unreadable snapshot is
	// reported as absent, not as an error.
	Load(ctx context.Context) (order.State, bool, error)
	Save(ctx context.Context, s order.State) error
	Clear(ctx context.Context) error
}

// Source names where the reconciled state came from.
type Source string

const (
	SourceNone        Source = "none"
	SourceLocal       Source = "local"
	SourceRemote      Source = "remote"
	SourceOutstanding Source = "outstanding"
)

// Outcome is the result of a reconciliation.
type Outcome struct {
	State  order.State
	Source Source
	// Enriched reports whether payment method details were refreshed.
	Enriched bool
}

// Found reports whether an order survived reconciliation.
func (o Outcome) Found() bool { return o.Source != SourceNone }

// Engine reconciles the persisted snapshot with the broker.
type Engine struct {
	snapshots   Snapshots
	broker      broker.Broker
	instruments broker.Instruments
	log         *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l.Named("reconcile") } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// New creates an Engine.
func New(s Snapshots, b broker.Broker, inst broker.Instruments, opts ...Option) *Engine {
	e := &Engine{
		snapshots:   s,
		broker:      b,
		instruments: inst,
		log:         zap.NewNop(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// resumable lifecycles are those a resumed flow keeps showing or polling.
func resumable(l order.Lifecycle) bool {
	switch l {
	case order.LifecycleUninitialised, order.LifecycleInitialised,
		order.LifecyclePendingConfirmation, order.LifecyclePendingExecution:
		return true
	}
	return false
}

// outstanding lifecycles are those worth recovering from the broker's list.
func outstanding(l order.Lifecycle) bool {
	switch l {
	case order.LifecyclePendingConfirmation, order.LifecyclePendingExecution, order.LifecycleAwaitingFunds:
		return true
	}
	return false
}

// Reconcile resolves the state to resume and persists it, clearing the
// snapshot when nothing survives. Remote lookups that fail are treated as
// having no remote counterpart.
func (e *Engine) Reconcile(ctx context.Context) (out Outcome, err error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.run")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("buyflow.source", string(out.Source)),
				attribute.String("buyflow.order_id", out.State.ID),
			)
			e.metrics.Reconciled(string(out.Source))
		}
		span.End()
	}()

	local, ok, err := e.snapshots.Load(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load snapshot: %w", err)
	}

	var (
		chosen order.State
		source = SourceNone
	)
	if ok {
		chosen, source = local, SourceLocal
		if remote, found := e.remoteCounterpart(ctx, local); found {
			chosen, source = adopt(local, remote)
		}
		if !resumable(chosen.Lifecycle) {
			e.log.Info("snapshot not resumable",
				zap.String("order_id", chosen.ID),
				zap.Stringer("lifecycle", chosen.Lifecycle),
			)
			source = SourceNone
		}
	}

	if source == SourceNone || chosen.Lifecycle.Precedes(order.LifecyclePendingConfirmation) {
		if o, found := e.latestOutstanding(ctx); found {
			base := order.State{}
			if source != SourceNone {
				base = chosen
			}
			chosen, source = fromRemote(base, o), SourceOutstanding
		}
	}

	if source == SourceNone {
		if err := e.snapshots.Clear(ctx); err != nil {
			e.metrics.SnapshotFailed("clear")
			return Outcome{}, fmt.Errorf("clear snapshot: %w", err)
		}
		return Outcome{Source: SourceNone}, nil
	}

	out = Outcome{State: chosen, Source: source}
	out.State, out.Enriched = e.enrich(ctx, out.State)

	if err := e.snapshots.Save(ctx, out.State); err != nil {
		e.metrics.SnapshotFailed("save")
		return Outcome{}, fmt.Errorf("save snapshot: %w", err)
	}
	e.log.Info("reconciled",
		zap.String("source", string(out.Source)),
		zap.String("order_id", out.State.ID),
		zap.Stringer("lifecycle", out.State.Lifecycle),
	)
	return out, nil
}

func (e *Engine) remoteCounterpart(ctx context.Context, local order.State) (order.State, bool) {
	if local.ID == "" {
		return order.State{}, false
	}
	o, err := e.broker.GetOrder(ctx, local.ID)
	if err != nil {
		e.log.Debug("no remote counterpart", zap.String("order_id", local.ID), zap.Error(err))
		return order.State{}, false
	}
	return fromRemote(local, o), true
}

// adopt keeps local unless the broker has progressed further. The result
// never has a lower lifecycle than either input.
func adopt(local, remote order.State) (order.State, Source) {
	if local.Lifecycle.Precedes(remote.Lifecycle) {
		return remote, SourceRemote
	}
	return local, SourceLocal
}

func (e *Engine) latestOutstanding(ctx context.Context) (broker.Order, bool) {
	orders, err := e.broker.ListOutstandingOrders(ctx)
	if err != nil {
		e.log.Warn("list outstanding orders failed", zap.Error(err))
		return broker.Order{}, false
	}
	var (
		best  broker.Order
		found bool
	)
	for _, o := range orders {
		if !outstanding(o.Lifecycle) {
			continue
		}
		if !found || o.ExpiresAt.After(best.ExpiresAt) {
			best, found = o, true
		}
	}
	return best, found
}

// fromRemote overlays the broker's view of an order onto base.
func fromRemote(base order.State, o broker.Order) order.State {
	s := base
	s.ID = o.ID
	s.Lifecycle = o.Lifecycle
	if o.Pair.Asset != "" {
		s.SelectedAsset = o.Pair.Asset
	}
	if o.Amount.Currency != "" {
		s.Amount = o.Amount
		s.FiatCurrency = o.Amount.Currency
	}
	if o.PaymentMethodID != "" {
		pm := order.PaymentMethodRef{ID: o.PaymentMethodID, Type: o.PaymentMethodType}
		if base.SelectedPaymentMethod != nil && base.SelectedPaymentMethod.ID == o.PaymentMethodID {
			pm = *base.SelectedPaymentMethod
		}
		if pm.Type == "" {
			pm.Type = order.PaymentMethodCard
		}
		s.SelectedPaymentMethod = &pm
	}
	if o.RecurringBuyID != "" {
		s.RecurringBuyID = o.RecurringBuyID
		s.RecurringBuyState = order.RecurringBuyActive
	}
	return s
}

// enrich refreshes the display details of a concrete card or bank. Failures
// leave the state as it was.
func (e *Engine) enrich(ctx context.Context, s order.State) (order.State, bool) {
	if s.SelectedPaymentMethod == nil {
		return s, false
	}
	pm := *s.SelectedPaymentMethod
	id, ok := pm.ConcreteID()
	if !ok {
		return s, false
	}

	switch pm.Type {
	case order.PaymentMethodCard:
		card, err := e.instruments.GetCardDetails(ctx, id)
		if err != nil {
			e.log.Warn("card enrichment failed", zap.String("card_id", id), zap.Error(err))
			return s, false
		}
		pm.Label = card.Label
		pm.Partner = card.Partner
		pm.IsEligible = card.Status == broker.CardActive
	case order.PaymentMethodBankTransfer:
		bank, err := e.instruments.GetLinkedBank(ctx, id)
		if err != nil {
			e.log.Warn("bank enrichment failed", zap.String("bank_id", id), zap.Error(err))
			return s, false
		}
		pm.Label = bank.Label()
		pm.Partner = bank.Partner
		pm.IsEligible = bank.State == broker.BankActive
	default:
		return s, false
	}
	s.SelectedPaymentMethod = &pm
	return s, true
}

// CancelAnyPendingConfirmationOrder cancels a persisted order that was
// still awaiting confirmation when the previous process ended, and clears
// the snapshot. Such an order is assumed abandoned. The boolean reports
// whether an order was cancelled. If the broker refuses the cancel for any
// reason other than not knowing the order, the snapshot is kept and the
// error returned.
func (e *Engine) CancelAnyPendingConfirmationOrder(ctx context.Context) (bool, error) {
	s, ok, err := e.snapshots.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok || s.Lifecycle != order.LifecyclePendingConfirmation {
		return false, nil
	}

	cancelled := false
	if s.ID != "" {
		switch err := e.broker.CancelOrder(ctx, s.ID); {
		case err == nil:
			cancelled = true
			e.metrics.OrderCancelled()
		case broker.IsNotFound(err):
		default:
			// The snapshot is the only handle on the order; keep it so the
			// next resume retries the cancel.
			e.log.Warn("cancel abandoned order failed", zap.String("order_id", s.ID), zap.Error(err))
			return false, fmt.Errorf("cancel abandoned order %s: %w", s.ID, err)
		}
	}
	if err := e.snapshots.Clear(ctx); err != nil {
		e.metrics.SnapshotFailed("clear")
		return cancelled, fmt.Errorf("clear snapshot: %w", err)
	}
	e.log.Info("abandoned order dropped", zap.String("order_id", s.ID), zap.Bool("cancelled", cancelled))
	return cancelled, nil
}
