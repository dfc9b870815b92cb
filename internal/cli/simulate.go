package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/buyflow/internal/broker/memory"
	"github.com/roach88/buyflow/internal/effects"
	"github.com/roach88/buyflow/internal/engine"
	"github.com/roach88/buyflow/internal/harness"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/lifecycle"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/reconcile"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Asset    string
	Fiat     string
	Amount   string
	Method   string
	QuoteTTL time.Duration
	Duration time.Duration
	Timeout  time.Duration
	Confirm  bool
	Record   bool

	// Flow names the flow. With --record, a flow that is already recorded
	// is continued after its last transition.
	Flow string

	// FlowIDs overrides the flow id generator (for testing).
	FlowIDs engine.FlowIDGenerator
}

// Simulation outcomes.
const (
	OutcomeOrderCreated = "order_created"
	OutcomeSettled      = "settled"
	OutcomeAwaitingUser = "awaiting_authorisation"
	OutcomePending      = "payment_pending"
	OutcomeFailed       = "failed"
	OutcomeTimedOut     = "timed_out"
	OutcomeInterrupted  = "interrupted"
)

const (
	eventBuffer          = 256
	defaultSimulateLimit = 2 * time.Minute
)

// SimulateResult is the JSON form of a simulation.
type SimulateResult struct {
	FlowID     string               `json:"flow_id"`
	Resumed    reconcile.Source     `json:"resumed"`
	Outcome    string               `json:"outcome"`
	OrderID    string               `json:"order_id,omitempty"`
	Lifecycle  order.Lifecycle      `json:"lifecycle"`
	BuyError   order.BuyErrorKind   `json:"buy_error,omitempty"`
	LiveOrders int                  `json:"live_orders"`
	Trace      []harness.TraceEvent `json:"trace"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a buy flow against the in-memory broker",
		Long: `Run one buy flow end to end against an in-memory broker.

The persisted snapshot is reconciled first, so a flow interrupted by an
earlier run resumes where it stopped. The simulator then selects the pair,
amount and payment method and creates a pending order. With --confirm it
also confirms the order and follows it until it settles.

Every processed intent is printed as it happens. --duration keeps the flow
running after the scripted steps, which shows quote refreshes.

Examples:
  buyflow simulate --asset BTC --fiat USD --amount 100 --method card
  buyflow simulate --amount 250 --method bank --confirm
  buyflow simulate --quote-ttl 5s --duration 12s --record
  buyflow simulate --record --flow checkout-1 --confirm`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Asset, "asset", "BTC", "crypto-asset to buy")
	cmd.Flags().StringVar(&opts.Fiat, "fiat", "USD", "fiat currency to pay with")
	cmd.Flags().StringVar(&opts.Amount, "amount", "100", "fiat amount")
	cmd.Flags().StringVar(&opts.Method, "method", MethodCard, "payment method (card|bank|funds)")
	cmd.Flags().DurationVar(&opts.QuoteTTL, "quote-ttl", memory.DefaultQuoteTTL, "lifetime of broker quotes")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "keep the flow running this long after the scripted steps")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", defaultSimulateLimit, "give up on the scripted steps after this long")
	cmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "confirm the order and wait for it to settle")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record every transition in the SQLite transition log")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow id to use instead of a new UUIDv7")

	return cmd
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	amount, err := order.ParseMoney(opts.Fiat, opts.Amount)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeFlow, "invalid amount", err)
	}
	if !amount.IsPositive() {
		return f.Fail(ExitCommandError, ErrCodeFlow, "amount must be positive", nil)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := newApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "startup failed", err)
	}
	defer a.close(context.Background())

	b := memory.New(
		memory.WithQuoteTTL(opts.QuoteTTL),
		memory.WithAuthorisationURL(simulatedAuthURL),
		memory.WithSettlement(settleAfterPolls, order.LifecycleFinished, ""),
	)
	method, err := paymentMethod(b, opts.Method, amount.Currency)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeFlow, "invalid payment method", err)
	}

	if _, _, err := seedFromSnapshot(ctx, b, a.snapshots, time.Now()); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read snapshot", err)
	}
	resumed, err := reconcile.New(a.snapshots, b, b,
		reconcile.WithLogger(a.log),
		reconcile.WithMetrics(a.metrics),
	).Reconcile(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "reconciliation failed", err)
	}
	f.VerboseLog("reconciled from %s: order=%q lifecycle=%s", resumed.Source, resumed.State.ID, resumed.State.Lifecycle)

	sim, err := newSimulation(ctx, a, b, resumed.State, opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to start flow", err)
	}

	var live io.Writer = io.Discard
	if !f.JSON() {
		live = f.Writer
		fmt.Fprintf(live, "Flow %s (resumed from %s)\n", sim.engine.FlowID(), resumed.Source)
	}

	outcome, err := sim.run(ctx, simulationScript(resumed.State, opts, amount, method), live)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeFlow, "simulation failed", err)
	}

	final := sim.engine.State()
	result := SimulateResult{
		FlowID:     sim.engine.FlowID(),
		Resumed:    resumed.Source,
		Outcome:    outcome,
		OrderID:    final.ID,
		Lifecycle:  final.Lifecycle,
		BuyError:   final.BuyError,
		LiveOrders: len(b.LiveOrders()),
		Trace:      harness.TraceFrom(sim.engine.Transitions()),
	}

	if f.JSON() {
		if outcome == OutcomeFailed {
			_ = f.Error(ErrCodeFlow, fmt.Sprintf("flow failed: %s", final.BuyError), result)
			return NewExitError(ExitFailure, fmt.Sprintf("flow failed: %s", final.BuyError))
		}
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Outcome: %s\n", outcome)
	if final.ID != "" {
		fmt.Fprintf(w, "Order: %s (%s)\n", final.ID, final.Lifecycle)
	}
	if final.AuthorisationURL != "" {
		fmt.Fprintf(w, "Authorise at: %s\n", final.AuthorisationURL)
	}
	fmt.Fprintf(w, "Live orders at broker: %d\n", result.LiveOrders)
	if err := a.writeMetrics(w); err != nil {
		a.log.Warn("metrics summary failed", zap.Error(err))
	}
	if outcome == OutcomeFailed {
		return f.Fail(ExitFailure, ErrCodeFlow, fmt.Sprintf("flow failed: %s", final.BuyError), nil)
	}
	return nil
}

// simulation is one wired engine with its collaborators.
type simulation struct {
	engine  *engine.Engine
	runner  *effects.Runner
	orders  *lifecycle.Controller
	events  chan engine.Transition
	printed chan struct{} // closed when the trace printer exits
	opts    *SimulateOptions
	log     *zap.Logger
}

func newSimulation(ctx context.Context, a *app, b *memory.Broker, initial order.State, opts *SimulateOptions) (*simulation, error) {
	s := &simulation{
		events:  make(chan engine.Transition, eventBuffer),
		printed: make(chan struct{}),
		opts:    opts,
		log:     a.log,
	}

	// Checked before anything starts.
	var recordOpts []engine.Option
	if opts.Record {
		st, ok := a.transitionLog()
		if !ok {
			return nil, errors.New("--record needs the sqlite store backend")
		}
		recordOpts = append(recordOpts, engine.WithTransitionHook(engine.RecordTransitions(st, a.log)))

		if opts.Flow != "" {
			recs, err := st.Transitions(ctx, opts.Flow)
			if err != nil {
				return nil, fmt.Errorf("read recorded flow: %w", err)
			}
			if n := len(recs); n > 0 {
				a.log.Info("continuing recorded flow", zap.String("flow_id", opts.Flow), zap.Int64("after_seq", recs[n-1].Seq))
				recordOpts = append(recordOpts, engine.WithClock(engine.NewClockAt(recs[n-1].Seq)))
			}
		}
	}

	refresh := a.cfg.Quotes.RefreshEnabled
	s.orders = lifecycle.New(b,
		lifecycle.WithRefresh(func() bool { return refresh }),
		lifecycle.WithLogger(a.log),
		lifecycle.WithMetrics(a.metrics),
	)

	s.runner = effects.New(
		effects.Collaborators{Broker: b, KYC: b, Instruments: b, Limits: b},
		s.orders,
		effects.WithPollBudgets(a.cfg.ShortPoll(), a.cfg.LongPoll()),
		effects.WithLogger(a.log),
		effects.WithMetrics(a.metrics),
	)

	var flowIDs engine.FlowIDGenerator = engine.UUIDv7Generator{}
	switch {
	case opts.Flow != "":
		flowIDs = engine.NewFixedGenerator(opts.Flow)
	case opts.FlowIDs != nil:
		flowIDs = opts.FlowIDs
	}
	engineOpts := []engine.Option{
		engine.WithEffects(s.runner),
		engine.WithFlowID(flowIDs),
		engine.WithLogger(a.log),
		engine.WithMetrics(a.metrics),
		engine.WithStateHook(engine.PersistSnapshots(a.snapshots, a.log, a.metrics)),
		engine.WithTransitionHook(s.publish),
	}
	engineOpts = append(engineOpts, recordOpts...)
	s.engine = engine.New(initial, engineOpts...)
	return s, nil
}

// publish hands a transition to the trace printer. It runs on the engine
// goroutine and only blocks while the buffer is full.
func (s *simulation) publish(_ context.Context, _ string, t engine.Transition) {
	select {
	case s.events <- t:
	case <-s.printed:
	}
}

// step is one scripted intent and the state that ends the wait after it.
// A nil until submits the next step straight away.
type step struct {
	intent intent.Intent
	until  func(before, s order.State) bool
}

func simulationScript(resumed order.State, opts *SimulateOptions, amount order.Money, method order.PaymentMethodRef) []step {
	// An order already being executed is followed, not replaced.
	if resumed.Lifecycle == order.LifecyclePendingExecution || resumed.Lifecycle == order.LifecycleAwaitingFunds {
		return []step{{intent: intent.CheckOrderStatus{}, until: settled}}
	}

	script := []step{
		{intent: intent.InitialiseSelectedAssetAndFiat{Asset: order.AssetID(opts.Asset), Fiat: amount.Currency}},
		{intent: intent.AmountUpdated{Amount: amount}},
		{intent: intent.SelectedPaymentMethodUpdated{Method: method}},
		{intent: intent.CancelOrderIfAnyAndCreatePendingOne{}, until: orderCreated},
	}
	if opts.Confirm {
		script = append(script, step{intent: intent.ConfirmOrder{}, until: settled})
	}
	return script
}

func orderCreated(before, s order.State) bool {
	return s.ID != "" && s.ID != before.ID && s.Lifecycle == order.LifecyclePendingConfirmation
}

func settled(_, s order.State) bool {
	return s.PaymentSucceeded || s.PaymentPending || s.AuthorisationURL != "" || s.Lifecycle.IsTerminal()
}

// run drives the flow with three goroutines: the engine loop, the scripted
// driver and the trace printer. It returns once the script finished and
// --duration elapsed, or ctx is done.
func (s *simulation) run(ctx context.Context, script []step, live io.Writer) (string, error) {
	defer s.runner.Close()
	defer s.orders.Stop(false)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		err := s.engine.Run(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	var outcome string
	g.Go(func() error {
		defer stop()
		var err error
		outcome, err = s.drive(gctx, script)
		if err != nil || outcome == OutcomeFailed || outcome == OutcomeInterrupted {
			return err
		}
		if s.opts.Duration > 0 {
			s.log.Info("watching flow", zap.Duration("duration", s.opts.Duration))
			select {
			case <-time.After(s.opts.Duration):
			case <-gctx.Done():
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(s.printed)
		for {
			select {
			case t := <-s.events:
				fmt.Fprintf(live, "  %s\n", harness.EventFrom(t))
			case <-gctx.Done():
				for {
					select {
					case t := <-s.events:
						fmt.Fprintf(live, "  %s\n", harness.EventFrom(t))
					default:
						return nil
					}
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	return outcome, nil
}

// drive submits the script, waiting after each step that names a goal.
func (s *simulation) drive(ctx context.Context, script []step) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	outcome := OutcomeOrderCreated
	for _, st := range script {
		if st.until == nil {
			if err := s.engine.Submit(st.intent); err != nil {
				return "", fmt.Errorf("submit %s: %w", st.intent.Name(), err)
			}
			continue
		}

		// Subscribe first so no state the intent produces is missed.
		before := s.engine.State()
		mark := len(s.engine.Transitions())
		states, unsubscribe := s.engine.Subscribe()
		if err := s.engine.Submit(st.intent); err != nil {
			unsubscribe()
			return "", fmt.Errorf("submit %s: %w", st.intent.Name(), err)
		}
		reached, err := s.waitFor(ctx, states, before, mark, st.until)
		unsubscribe()

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return OutcomeTimedOut, nil
		case err != nil:
			return OutcomeInterrupted, nil
		case reached.BuyError != order.BuyErrorNone:
			return OutcomeFailed, nil
		}
		outcome = outcomeOf(reached)
	}
	return outcome, nil
}

func outcomeOf(s order.State) string {
	switch {
	case s.PaymentSucceeded || s.Lifecycle == order.LifecycleFinished:
		return OutcomeSettled
	case s.PaymentPending:
		return OutcomePending
	case s.AuthorisationURL != "":
		return OutcomeAwaitingUser
	case s.Lifecycle.IsTerminal():
		return OutcomeFailed
	default:
		return OutcomeOrderCreated
	}
}

// waitFor blocks until a state published after mark ends the step or
// carries a buy error. The channel only holds the newest state, so each
// wakeup also checks the transitions recorded since mark.
func (s *simulation) waitFor(ctx context.Context, states <-chan order.State, before order.State, mark int, done func(before, s order.State) bool) (order.State, error) {
	for {
		select {
		case <-ctx.Done():
			return s.engine.State(), ctx.Err()
		case st, ok := <-states:
			if !ok {
				return st, context.Canceled
			}
			history := s.engine.Transitions()
			if reached, found := firstReached(history[mark:], before, done); found {
				return reached, nil
			}
			mark = len(history)
			if st.BuyError != order.BuyErrorNone || done(before, st) {
				return st, nil
			}
		}
	}
}

// firstReached returns the earliest applied state in ts that ends the step
// or carries a buy error.
func firstReached(ts []engine.Transition, before order.State, done func(before, s order.State) bool) (order.State, bool) {
	for _, t := range ts {
		if !t.Applied {
			continue
		}
		if t.State.BuyError != order.BuyErrorNone || done(before, t.State) {
			return t.State, true
		}
	}
	return order.State{}, false
}

// signalContext returns the command context, cancelled on SIGINT or
// SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
