// Package lifecycle owns the current pending order and the quote backing it.
//
// The Controller creates orders, cancels the order they supersede, and keeps
// the quote fresh with a timer whose period is the quote's own time to
// expiry. At most one refresh loop runs at a time; starting a new one
// cancels the previous loop.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/clock"
	"github.com/roach88/buyflow/internal/metrics"
	"github.com/roach88/buyflow/internal/order"
)

const tracerName = "github.com/roach88/buyflow/internal/lifecycle"

var errStale = errors.New("order created after the refresh loop was stopped")

// Request describes the order to create.
type Request struct {
	PreviousOrderID string
	Asset           order.AssetID
	PaymentMethod   order.PaymentMethodRef
	Amount          order.Money
	Frequency       order.RecurringBuyFrequency
}

// Result is one create attempt: either a new order and its quote, or the
// error that aborted the attempt.
type Result struct {
	Order broker.Order
	Quote order.Quote
	Err   error
}

// Toggle reports whether a feature is enabled.
type Toggle func() bool

// Controller creates, supersedes and refreshes orders.
//
// Thread-safety: all methods are safe for concurrent use. The latest pending
// order reference is written only by the controller's own refresh loop and
// by Stop.
type Controller struct {
	broker  broker.Broker
	clock   clock.Clock
	refresh Toggle
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu         sync.Mutex
	latest     string
	generation uint64
	stop       context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source for the refresh timer.
func WithClock(c clock.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

// WithRefresh sets the quote-refresh feature toggle. Refresh is enabled by
// default.
func WithRefresh(t Toggle) Option { return func(ctl *Controller) { ctl.refresh = t } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(ctl *Controller) { ctl.log = l.Named("lifecycle") } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(ctl *Controller) { ctl.metrics = m } }

// WithTracer sets the tracer used for create cycles.
func WithTracer(t trace.Tracer) Option { return func(ctl *Controller) { ctl.tracer = t } }

// New creates a Controller backed by b.
func New(b broker.Broker, opts ...Option) *Controller {
	c := &Controller{
		broker:  b,
		clock:   clock.Real{},
		refresh: func() bool { return true },
		log:     zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestPendingOrderID returns the most recent order created by the
// controller, or "" when none is known.
func (c *Controller) LatestPendingOrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// CreateOrderAndStartQuoteFetching cancels any running refresh loop, then
// creates a new order superseding the latest known one. The first result
// is sent immediately; while refresh is enabled a new order and quote are
// created each time the previous quote expires.
//
// The returned channel is closed when the loop ends: on Stop, on a later
// call, when ctx is done, or after the first result if refresh is off.
func (c *Controller) CreateOrderAndStartQuoteFetching(ctx context.Context, req Request) <-chan Result {
	loopCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stop != nil {
		c.stop()
	}
	c.generation++
	gen := c.generation
	c.stop = cancel
	supersede := c.latest
	if supersede == "" {
		supersede = req.PreviousOrderID
	}
	c.mu.Unlock()

	out := make(chan Result, 1)
	go c.loop(loopCtx, gen, supersede, req, out)
	return out
}

// Stop ends the refresh loop. With clearLatest set the latest pending order
// reference is forgotten too. A remote cancel already in flight is not
// interrupted.
func (c *Controller) Stop(clearLatest bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.generation++
	if clearLatest {
		c.latest = ""
	}
}

func (c *Controller) loop(ctx context.Context, gen uint64, supersede string, req Request, out chan<- Result) {
	defer close(out)

	var period time.Duration
	first := true
	for {
		if !first {
			c.metrics.QuoteRefreshed()
		}
		first = false

		res, cancelled := c.cycle(ctx, gen, supersede, req)
		if ctx.Err() != nil {
			return
		}
		if res.Err == nil {
			supersede = res.Order.ID
		} else if cancelled {
			supersede = ""
		}

		select {
		case out <- res:
		case <-ctx.Done():
			return
		}

		if !c.refresh() {
			return
		}
		if res.Err == nil {
			period = res.Quote.TTL(c.clock.Now())
		}
		if period <= 0 {
			// No live quote has ever been created, so there is no period
			// to wait for. The consumer is expected to stop the flow.
			return
		}

		c.log.Debug("quote refresh scheduled",
			zap.String("superseded_order", supersede),
			zap.Duration("in", period),
		)
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(period):
		}
	}
}

// cycle cancels the superseded order and creates a new quote and order. The
// boolean reports whether the superseded order was cancelled.
func (c *Controller) cycle(ctx context.Context, gen uint64, supersede string, req Request) (Result, bool) {
	ctx, span := c.tracer.Start(ctx, "lifecycle.create_order",
		trace.WithAttributes(
			attribute.String("buyflow.asset", string(req.Asset)),
			attribute.String("buyflow.amount", req.Amount.String()),
			attribute.String("buyflow.superseded_order", supersede),
		))
	defer span.End()

	fail := func(err error, cancelled bool) (Result, bool) {
		c.metrics.LifecycleError()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("order create cycle failed", zap.String("superseded_order", supersede), zap.Error(err))
		return Result{Err: err}, cancelled
	}

	cancelled := false
	if supersede != "" {
		// The remote cancel outlives a stop of the refresh loop.
		if err := c.broker.CancelOrder(context.WithoutCancel(ctx), supersede); err != nil {
			return fail(fmt.Errorf("cancel order %s: %w", supersede, err), false)
		}
		cancelled = true
		c.metrics.OrderCancelled()
		c.log.Debug("superseded order cancelled", zap.String("order_id", supersede))
	}

	pair := broker.Pair{Asset: req.Asset, Fiat: req.Amount.Currency}
	pmID, _ := req.PaymentMethod.ConcreteID()

	q, err := c.broker.CreateQuote(ctx, broker.QuoteRequest{
		Pair:              pair,
		Amount:            req.Amount,
		PaymentMethodType: req.PaymentMethod.Type,
		PaymentMethodID:   pmID,
	})
	if err != nil {
		return fail(fmt.Errorf("create quote: %w", err), cancelled)
	}

	o, err := c.broker.CreateOrder(ctx, broker.OrderRequest{
		QuoteID:         q.ID,
		Pair:            pair,
		Amount:          req.Amount,
		PaymentMethodID: pmID,
		Period:          req.Frequency,
	})
	if err != nil {
		return fail(fmt.Errorf("create order: %w", err), cancelled)
	}

	c.mu.Lock()
	stale := c.generation != gen
	if !stale {
		c.latest = o.ID
	}
	c.mu.Unlock()

	if stale {
		// Nobody will receive this order, so it must not stay live.
		if err := c.broker.CancelOrder(context.WithoutCancel(ctx), o.ID); err != nil {
			c.log.Warn("cancel stale order failed", zap.String("order_id", o.ID), zap.Error(err))
		}
		return fail(errStale, cancelled)
	}

	c.metrics.OrderCreated()
	span.SetAttributes(attribute.String("buyflow.order_id", o.ID), attribute.String("buyflow.quote_id", q.ID))
	c.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("quote_id", q.ID),
		zap.Int64("quote_ttl_ms", q.MillisToExpire(c.clock.Now())),
	)
	return Result{Order: o, Quote: q}, cancelled
}
