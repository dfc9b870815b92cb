// Package effects performs the asynchronous work triggered by intents.
//
// The Runner never mutates state. It receives the state as it was before an
// intent was applied, talks to the remote collaborators and reports every
// outcome by dispatching further intents. Tasks are grouped by concern;
// starting a task cancels the running task of the same concern, so a new
// amount supersedes an in-flight validation and a new order supersedes the
// previous refresh loop.
package effects

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/lifecycle"
	"github.com/roach88/buyflow/internal/metrics"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/poll"
)

const tracerName = "github.com/roach88/buyflow/internal/effects"

// Dispatcher accepts intents produced by effects. Dispatch reports false
// when the intent could not be queued, for example after shutdown.
type Dispatcher interface {
	Dispatch(in intent.Intent) bool
}

// OrderLifecycle is the part of the lifecycle controller the runner drives.
type OrderLifecycle interface {
	CreateOrderAndStartQuoteFetching(ctx context.Context, req lifecycle.Request) <-chan lifecycle.Result
	Stop(clearLatest bool)
}

// Collaborators are the remote services effects talk to.
type Collaborators struct {
	Broker      broker.Broker
	KYC         broker.KYC
	Instruments broker.Instruments
	Limits      broker.Limits
}

// Concern groups tasks that supersede each other.
type Concern string

const (
	ConcernNone       Concern = ""
	ConcernOrder      Concern = "order"
	ConcernPolling    Concern = "polling"
	ConcernKyc        Concern = "kyc"
	ConcernBankLink   Concern = "bank_link"
	ConcernValidation Concern = "validation"
)

// Task is a running effect.
type Task struct {
	Concern Concern
	Intent  string

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the task. Intents it has already dispatched stay dispatched.
func (t *Task) Cancel() { t.cancel() }

// Done is closed when the task has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Runner maps intents to effects.
//
// Thread-safety: PerformEffect and Close may be called concurrently. Effects
// run on their own goroutines and only communicate through the Dispatcher.
type Runner struct {
	collab  Collaborators
	orders  OrderLifecycle
	poller  *poll.Poller
	short   poll.Config
	long    poll.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	mu      sync.Mutex
	running map[Concern]*Task
	closed  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithPoller sets the poller used for status checks.
func WithPoller(p *poll.Poller) Option { return func(r *Runner) { r.poller = p } }

// WithPollBudgets overrides the short and long poll budgets.
func WithPollBudgets(short, long poll.Config) Option {
	return func(r *Runner) { r.short, r.long = short, long }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.log = l.Named("effects") } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithTracer sets the tracer used for effect spans.
func WithTracer(t trace.Tracer) Option { return func(r *Runner) { r.tracer = t } }

// New creates a Runner.
func New(c Collaborators, orders OrderLifecycle, opts ...Option) *Runner {
	r := &Runner{
		collab:  c,
		orders:  orders,
		short:   poll.Short(),
		long:    poll.Long(),
		log:     zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		running: make(map[Concern]*Task),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.poller == nil {
		r.poller = &poll.Poller{Observer: r.metrics.PollObserver()}
	}
	return r
}

// PerformEffect starts the effect for in, given the state before in was
// applied. It returns the started task, or nil when in has no asynchronous
// effect.
func (r *Runner) PerformEffect(ctx context.Context, prev order.State, in intent.Intent, d Dispatcher) *Task {
	switch in := in.(type) {
	case intent.AmountUpdated:
		next := prev
		next.Amount = in.Amount
		return r.start(ctx, ConcernValidation, in, func(ctx context.Context) {
			r.validate(ctx, next, d)
		})

	case intent.ValidateAmount:
		return r.start(ctx, ConcernValidation, in, func(ctx context.Context) {
			r.validate(ctx, prev, d)
		})

	case intent.SelectedPaymentMethodUpdated:
		next := prev
		m := in.Method
		next.SelectedPaymentMethod = &m
		return r.start(ctx, ConcernValidation, in, func(ctx context.Context) {
			r.validate(ctx, next, d)
		})

	case intent.FetchBuyLimits:
		return r.start(ctx, ConcernValidation, in, func(ctx context.Context) {
			if l, err := r.buyLimits(ctx, prev); err != nil {
				r.fail(ctx, d, in, err)
			} else {
				d.Dispatch(intent.BuyLimitsUpdated{Limits: l})
			}
		})

	case intent.FetchKycState:
		return r.start(ctx, ConcernKyc, in, func(ctx context.Context) {
			r.pollKyc(ctx, d)
		})

	case intent.BuyButtonClicked:
		return r.start(ctx, ConcernKyc, in, func(ctx context.Context) {
			state, err := r.kycState(ctx)
			if err != nil {
				r.log.Warn("tier check failed", zap.Error(err))
				d.Dispatch(intent.ErrorIntent{Kind: order.BuyErrorGeneric})
				return
			}
			d.Dispatch(intent.KycStateUpdated{State: state})
		})

	case intent.PaymentSucceeded:
		return r.start(ctx, ConcernKyc, in, func(ctx context.Context) {
			state, err := r.kycState(ctx)
			if err != nil {
				r.log.Warn("upsell tier check failed", zap.Error(err))
				return
			}
			if state != order.KycVerifiedAndEligible {
				d.Dispatch(intent.UnlockHigherLimits{})
			}
		})

	case intent.CancelOrderIfAnyAndCreatePendingOne:
		if prev.SelectedPaymentMethod == nil {
			return r.invariant(d, in, "order requested without a payment method")
		}
		return r.start(ctx, ConcernOrder, in, func(ctx context.Context) {
			r.createOrder(ctx, prev, d)
		})

	case intent.StopQuotesUpdate:
		r.cancel(ConcernOrder)
		r.orders.Stop(in.ResetOrder)
		return nil

	case intent.ConfirmOrder:
		if prev.ID == "" {
			return r.invariant(d, in, "confirm requested without an order id")
		}
		if prev.SelectedPaymentMethod == nil {
			return r.invariant(d, in, "confirm requested without a payment method")
		}
		r.orders.Stop(false)
		return r.start(ctx, ConcernOrder, in, func(ctx context.Context) {
			r.confirmOrder(ctx, prev, d)
		})

	case intent.MakePayment:
		return r.start(ctx, ConcernPolling, in, func(ctx context.Context) {
			r.makePayment(ctx, in.OrderID, d)
		})

	case intent.FetchAuthorisationURL:
		return r.start(ctx, ConcernPolling, in, func(ctx context.Context) {
			r.pollAuthorisationURL(ctx, in.OrderID, d)
		})

	case intent.CheckOrderStatus:
		return r.start(ctx, ConcernPolling, in, func(ctx context.Context) {
			r.pollOrderStatus(ctx, prev.ID, d)
		})

	case intent.CheckBankLinkStatus:
		return r.start(ctx, ConcernBankLink, in, func(ctx context.Context) {
			r.pollBankLink(ctx, in.BankID, d)
		})

	case intent.CreateRecurringBuy:
		if prev.SelectedPaymentMethod == nil {
			return r.invariant(d, in, "recurring buy requested without a payment method")
		}
		return r.start(ctx, ConcernNone, in, func(ctx context.Context) {
			r.createRecurringBuy(ctx, prev, d)
		})

	case intent.CancelOrder:
		r.cancel(ConcernOrder)
		return r.start(ctx, ConcernNone, in, func(ctx context.Context) {
			r.cancelOrder(ctx, prev, d)
		})
	}
	return nil
}

// Close cancels every running task. PerformEffect starts nothing afterwards.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for c, t := range r.running {
		t.cancel()
		delete(r.running, c)
	}
}

func (r *Runner) start(ctx context.Context, c Concern, in intent.Intent, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{Concern: c, Intent: in.Name(), cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		close(t.done)
		return nil
	}
	if c != ConcernNone {
		if prev, ok := r.running[c]; ok {
			prev.cancel()
		}
		r.running[c] = t
	}
	r.mu.Unlock()

	go func() {
		defer close(t.done)
		defer r.finish(t)

		ctx, span := r.tracer.Start(ctx, "effects."+in.Name(),
			trace.WithAttributes(attribute.String("buyflow.concern", string(c))))
		defer span.End()
		fn(ctx)
	}()
	return t
}

func (r *Runner) finish(t *Task) {
	t.cancel()
	if t.Concern == ConcernNone {
		return
	}
	r.mu.Lock()
	if r.running[t.Concern] == t {
		delete(r.running, t.Concern)
	}
	r.mu.Unlock()
}

func (r *Runner) cancel(c Concern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.running[c]; ok {
		t.cancel()
		delete(r.running, c)
	}
}

// invariant reports a caller-contract violation. Development loggers panic;
// in production the user sees a generic error instead of a stuck flow.
func (r *Runner) invariant(d Dispatcher, in intent.Intent, msg string) *Task {
	err := fmt.Errorf("%w: %s", ErrInvariant, msg)
	r.log.DPanic("effect rejected", zap.String("intent", in.Name()), zap.Error(err))
	d.Dispatch(intent.ErrorIntent{Kind: order.BuyErrorGeneric})
	return nil
}

// fail reports a collaborator error unless the task was cancelled.
func (r *Runner) fail(ctx context.Context, d Dispatcher, in intent.Intent, err error) {
	if ctx.Err() != nil || isCancellation(err) {
		return
	}
	kind := KindForError(err)
	r.log.Warn("effect failed",
		zap.String("intent", in.Name()),
		zap.String("buy_error", string(kind)),
		zap.Error(err),
	)
	d.Dispatch(intent.ErrorIntent{Kind: kind})
}
