package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/broker/memory"
	"github.com/roach88/buyflow/internal/effects"
	"github.com/roach88/buyflow/internal/engine"
	"github.com/roach88/buyflow/internal/lifecycle"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/poll"
	"github.com/roach88/buyflow/internal/reconcile"
	"github.com/roach88/buyflow/internal/store"
	"github.com/roach88/buyflow/internal/testutil"
)

// Start is the wall-clock time every scenario runs at.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultStepTimeout bounds how long a single step may take to settle.
const DefaultStepTimeout = 5 * time.Second

type options struct {
	log         *zap.Logger
	recorder    engine.Recorder
	stepTimeout time.Duration
}

// Option configures a run.
type Option func(*options)

// WithLogger sets the logger used by the engine and its collaborators.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithRecorder persists every processed intent of the run.
func WithRecorder(r engine.Recorder) Option { return func(o *options) { o.recorder = r } }

// WithStepTimeout overrides DefaultStepTimeout.
func WithStepTimeout(d time.Duration) Option { return func(o *options) { o.stepTimeout = d } }

// Harness holds the collaborators of one scenario run.
type Harness struct {
	clock     *testutil.ManualClock
	broker    *memory.Broker
	snapshots *store.Memory
	runner    *effects.Runner
	engine    *engine.Engine
	log       *zap.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory broker and snapshot store.
// Execution flow:
//  1. Configure the broker and build the initial state
//  2. Reconcile the initial state first when the scenario resumes a flow
//  3. Submit each step and wait for it and its effects to settle
//  4. Evaluate the assertions against the trace and final state
//
// An error is returned when the scenario cannot be set up or a step does
// not settle. Failed assertions are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{log: zap.NewNop(), stepTimeout: DefaultStepTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	initial, err := scenario.Initial.state()
	if err != nil {
		return nil, fmt.Errorf("initial: %w", err)
	}

	h := &Harness{
		clock:     testutil.NewManualClock(Start),
		snapshots: store.NewMemory(),
		log:       o.log,
	}
	h.broker, err = scenario.Broker.build(h.clock)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if scenario.Resume {
		initial, err = h.resume(ctx, initial)
		if err != nil {
			return nil, err
		}
	}

	flowID := scenario.FlowID
	if flowID == "" {
		flowID = "flow-" + scenario.Name
	}
	h.wire(initial, flowID, o.recorder)
	defer h.runner.Close()

	done := make(chan error, 1)
	go func() { done <- h.engine.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	for i, step := range scenario.Steps {
		in, err := decodeIntent(step.Intent, step.Args)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := h.engine.Submit(in); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := h.settle(o.stepTimeout); err != nil {
			return nil, fmt.Errorf("steps[%d] %s did not settle: %w", i, step.Intent, err)
		}
	}

	result := NewResult()
	result.FlowID = h.engine.FlowID()
	result.Trace = TraceFrom(h.engine.Transitions())
	result.State = h.engine.State()
	result.LiveOrders = len(h.broker.LiveOrders())
	_, result.SnapshotSaved, _ = h.snapshots.Load(ctx)

	for i, a := range scenario.Assertions {
		if err := check(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return result, nil
}

// wire builds the effect runner and engine the way the CLI does, with
// deterministic ids, zero-interval polling and quote refresh disabled.
func (h *Harness) wire(initial order.State, flowID string, rec engine.Recorder) {
	ctl := lifecycle.New(h.broker,
		lifecycle.WithClock(h.clock),
		lifecycle.WithRefresh(func() bool { return false }),
		lifecycle.WithLogger(h.log),
	)
	h.runner = effects.New(
		effects.Collaborators{Broker: h.broker, KYC: h.broker, Instruments: h.broker, Limits: h.broker},
		ctl,
		effects.WithPoller(&poll.Poller{Clock: h.clock}),
		effects.WithPollBudgets(
			poll.Config{Attempts: poll.RetriesShort},
			poll.Config{Attempts: poll.RetriesDefault},
		),
		effects.WithLogger(h.log),
	)

	opts := []engine.Option{
		engine.WithEffects(h.runner),
		engine.WithFlowID(engine.NewFixedGenerator(flowID)),
		engine.WithLogger(h.log),
		engine.WithStateHook(engine.PersistSnapshots(h.snapshots, h.log, nil)),
	}
	if rec != nil {
		opts = append(opts, engine.WithTransitionHook(engine.RecordTransitions(rec, h.log)))
	}
	h.engine = engine.New(initial, opts...)
}

// resume persists initial as the previous session's snapshot and returns
// the state reconciliation settles on.
func (h *Harness) resume(ctx context.Context, initial order.State) (order.State, error) {
	if err := h.snapshots.Save(ctx, initial); err != nil {
		return order.State{}, fmt.Errorf("resume: %w", err)
	}
	out, err := reconcile.New(h.snapshots, h.broker, h.broker, reconcile.WithLogger(h.log)).Reconcile(ctx)
	if err != nil {
		return order.State{}, fmt.Errorf("resume: %w", err)
	}
	return out.State, nil
}

func (h *Harness) settle(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return h.engine.Drain(ctx)
}

func (in InitialState) state() (order.State, error) {
	s := order.State{
		ID:                    in.OrderID,
		SelectedAsset:         order.AssetID(in.Asset),
		FiatCurrency:          in.Fiat,
		RecurringBuyFrequency: order.RecurringBuyFrequency(in.Frequency),
	}
	if in.Amount != "" {
		m, err := order.ParseMoney(in.Fiat, in.Amount)
		if err != nil {
			return order.State{}, err
		}
		s.Amount = m
	}
	if in.Lifecycle != "" {
		l, err := order.ParseLifecycle(in.Lifecycle)
		if err != nil {
			return order.State{}, err
		}
		s.Lifecycle = l
	}
	if pm := in.PaymentMethod; pm != nil {
		s.SelectedPaymentMethod = &order.PaymentMethodRef{
			ID:         pm.ID,
			Type:       order.PaymentMethodType(pm.Type),
			Label:      pm.Label,
			IsEligible: pm.Eligible,
		}
	}
	return s, nil
}

var tierLevels = map[string]broker.TierLevel{
	"bronze": broker.TierBronze,
	"silver": broker.TierSilver,
	"gold":   broker.TierGold,
}

func (b BrokerSetup) build(clk *testutil.ManualClock) (*memory.Broker, error) {
	opts := []memory.Option{
		memory.WithClock(clk),
		memory.WithIDs(memory.NewSequentialGenerator()),
	}
	if b.PendingLimit > 0 {
		opts = append(opts, memory.WithPendingLimit(b.PendingLimit))
	}
	if st := b.Settlement; st != nil {
		l, err := order.ParseLifecycle(st.Lifecycle)
		if err != nil {
			return nil, err
		}
		opts = append(opts, memory.WithSettlement(st.Polls, l, broker.ApprovalError(st.Approval)))
	}
	if b.AuthorisationURL != "" {
		opts = append(opts, memory.WithAuthorisationURL(b.AuthorisationURL))
	}
	m := memory.New(opts...)

	if t := b.Tier; t != nil {
		level, ok := tierLevels[t.Level]
		if !ok {
			return nil, fmt.Errorf("unknown tier level %q", t.Level)
		}
		state := broker.TierStateVerified
		if t.State != "" {
			state = broker.TierState(t.State)
		}
		m.SetTier(broker.Tier{Level: level, State: state})
	}
	if b.Eligible != nil {
		m.SetEligible(*b.Eligible)
	}

	for _, c := range b.Cards {
		status := broker.CardActive
		if c.Status != "" {
			status = broker.CardStatus(c.Status)
		}
		m.AddCard(broker.Card{ID: c.ID, Label: c.Label, Partner: c.Partner, Status: status})
	}
	for _, bank := range b.Banks {
		state := broker.BankActive
		if bank.State != "" {
			state = broker.BankState(bank.State)
		}
		m.AddBank(broker.LinkedBank{
			ID:        bank.ID,
			Name:      bank.Name,
			Account:   bank.Account,
			State:     state,
			ErrorCode: broker.BankLinkError(bank.ErrorCode),
		})
	}

	for i, so := range b.Orders {
		amount, err := decimal.NewFromString(so.Amount)
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		money, err := order.NewMoney(so.Fiat, amount)
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		l, err := order.ParseLifecycle(so.Lifecycle)
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		m.Seed(broker.Order{
			ID:              so.ID,
			Pair:            broker.Pair{Asset: order.AssetID(so.Asset), Fiat: money.Currency},
			Amount:          money,
			Lifecycle:       l,
			PaymentMethodID: so.PaymentMethodID,
			CreatedAt:       clk.Now().Add(time.Duration(i) * time.Second),
			ExpiresAt:       clk.Now().Add(memory.DefaultQuoteTTL + time.Duration(i)*time.Second),
		})
	}

	for _, f := range b.Failures {
		m.FailNext(memory.Op(f.Op), &broker.Error{Code: broker.ErrorCode(f.Code), Message: f.Message})
	}
	return m, nil
}
