package cli

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buyflow/internal/effects"
	"github.com/roach88/buyflow/internal/engine"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/reconcile"
)

func simulateOptions(env testEnv, format string) *SimulateOptions {
	return &SimulateOptions{
		RootOptions: &RootOptions{ConfigPath: env.config, Format: format},
		Asset:       "BTC",
		Fiat:        "USD",
		Amount:      "100",
		Method:      MethodCard,
		QuoteTTL:    time.Minute,
		Timeout:     10 * time.Second,
		FlowIDs:     engine.NewFixedGenerator("flow-sim"),
	}
}

func simulate(t *testing.T, opts *SimulateOptions) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	err := runSimulate(opts, cmd)
	return out.String(), err
}

func TestSimulate_CreatesPendingOrder(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := simulate(t, simulateOptions(env, "json"))
	require.NoError(t, err, out)

	var result SimulateResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "flow-sim", result.FlowID)
	assert.Equal(t, reconcile.SourceNone, result.Resumed)
	assert.Equal(t, OutcomeOrderCreated, result.Outcome)
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, order.LifecyclePendingConfirmation, result.Lifecycle)
	assert.Equal(t, 1, result.LiveOrders)
	require.NotEmpty(t, result.Trace)
	assert.Equal(t, "InitialiseSelectedAssetAndFiat", result.Trace[0].Intent)

	s, ok, err := env.openStore(t).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "an unconfirmed order stays resumable")
	assert.Equal(t, result.OrderID, s.ID)
	assert.Equal(t, order.LifecyclePendingConfirmation, s.Lifecycle)
}

func TestSimulate_ConfirmSettles(t *testing.T) {
	env := newTestEnv(t, "")
	opts := simulateOptions(env, "json")
	opts.Confirm = true

	out, err := simulate(t, opts)
	require.NoError(t, err, out)

	var result SimulateResult
	decodeResponse(t, out, &result)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, order.LifecycleFinished, result.Lifecycle)
	assert.Empty(t, result.BuyError)

	_, ok, err := env.openStore(t).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "a finished order leaves nothing to resume")
}

func TestSimulate_ResumesPreviousRun(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := simulate(t, simulateOptions(env, "json"))
	require.NoError(t, err)

	opts := simulateOptions(env, "text")
	opts.FlowIDs = engine.NewFixedGenerator("flow-resumed")
	out, err := simulate(t, opts)
	require.NoError(t, err, out)

	assert.Contains(t, out, "Flow flow-resumed (resumed from local)")
	assert.Contains(t, out, "Outcome: order_created")
}

func TestSimulate_RecordsTransitions(t *testing.T) {
	env := newTestEnv(t, "")
	opts := simulateOptions(env, "json")
	opts.Record = true

	out, err := simulate(t, opts)
	require.NoError(t, err, out)

	recs, err := env.openStore(t).Transitions(context.Background(), "flow-sim")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "InitialiseSelectedAssetAndFiat", recs[0].Intent)

	var created bool
	for _, rec := range recs {
		if rec.Intent == "OrderCreated" && rec.Applied {
			created = true
			assert.Equal(t, order.LifecyclePendingConfirmation, rec.To)
		}
	}
	assert.True(t, created, "OrderCreated recorded")
}

func TestSimulate_RecordNeedsSQLite(t *testing.T) {
	env := newTestEnv(t, "")
	env.config = writeConfig(t, "log:\n  level: error\nstore:\n  backend: none\n")
	opts := simulateOptions(env, "text")
	opts.Record = true

	_, err := simulate(t, opts)

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--record needs the sqlite store backend")
}

func TestSimulate_TextPrintsTraceAndMetrics(t *testing.T) {
	env := newTestEnv(t, "metrics:\n  enabled: true\n")

	out, err := simulate(t, simulateOptions(env, "text"))
	require.NoError(t, err, out)

	assert.Contains(t, out, "Flow flow-sim (resumed from none)")
	assert.Contains(t, out, "AmountUpdated")
	assert.Contains(t, out, "Live orders at broker: 1")
	assert.Contains(t, out, "Metrics:")
	assert.Contains(t, out, "buyflow_orders_created_total 1")
}

func TestSimulate_InvalidInput(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name   string
		modify func(*SimulateOptions)
	}{
		{"unknown method", func(o *SimulateOptions) { o.Method = "cheque" }},
		{"unparseable amount", func(o *SimulateOptions) { o.Amount = "lots" }},
		{"zero amount", func(o *SimulateOptions) { o.Amount = "0" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := simulateOptions(env, "text")
			tt.modify(opts)

			_, err := simulate(t, opts)

			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestPaymentMethod(t *testing.T) {
	tests := []struct {
		method string
		want   order.PaymentMethodType
	}{
		{MethodCard, order.PaymentMethodCard},
		{"BANK", order.PaymentMethodBankTransfer},
		{MethodFunds, order.PaymentMethodFunds},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			ref, err := paymentMethod(newBroker(), tt.method, "EUR")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ref.Type)
			assert.True(t, ref.IsEligible)
		})
	}

	ref, err := paymentMethod(newBroker(), MethodFunds, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "funds-EUR", ref.ID)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeSettled, outcomeOf(order.State{Lifecycle: order.LifecycleFinished}))
	assert.Equal(t, OutcomePending, outcomeOf(order.State{PaymentPending: true}))
	assert.Equal(t, OutcomeAwaitingUser, outcomeOf(order.State{AuthorisationURL: simulatedAuthURL}))
	assert.Equal(t, OutcomeFailed, outcomeOf(order.State{Lifecycle: order.LifecycleFailed}))
	assert.Equal(t, OutcomeOrderCreated, outcomeOf(order.State{Lifecycle: order.LifecyclePendingConfirmation}))
}

func TestSimulationScript(t *testing.T) {
	opts := &SimulateOptions{Asset: "BTC"}
	amount := order.MustMoney("USD", "100")
	method := order.PaymentMethodRef{ID: "card-1", Type: order.PaymentMethodCard}

	script := simulationScript(order.State{}, opts, amount, method)
	require.Len(t, script, 4)
	assert.Equal(t, "CancelOrderIfAnyAndCreatePendingOne", script[3].intent.Name())

	opts.Confirm = true
	script = simulationScript(order.State{}, opts, amount, method)
	require.Len(t, script, 5)
	assert.Equal(t, "ConfirmOrder", script[4].intent.Name())

	script = simulationScript(order.State{Lifecycle: order.LifecyclePendingExecution}, opts, amount, method)
	require.Len(t, script, 1)
	assert.Equal(t, "CheckOrderStatus", script[0].intent.Name())
}

func TestSimulate_ContinuesRecordedFlow(t *testing.T) {
	env := newTestEnv(t, "")

	first := simulateOptions(env, "json")
	first.Record = true
	first.Flow = "checkout-1"
	_, err := simulate(t, first)
	require.NoError(t, err)

	st := env.openStore(t)
	before, err := st.Transitions(context.Background(), "checkout-1")
	require.NoError(t, err)
	require.NotEmpty(t, before)
	last := before[len(before)-1].Seq

	second := simulateOptions(env, "json")
	second.Record = true
	second.Flow = "checkout-1"
	out, err := simulate(t, second)
	require.NoError(t, err, out)

	var result SimulateResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "checkout-1", result.FlowID)
	require.NotEmpty(t, result.Trace)
	assert.Equal(t, last+1, result.Trace[0].Seq)
}

// overwrite answers the first amount with a second one, so the first is
// applied and replaced without any pause in between.
type overwrite struct{ first, second order.Money }

func (o overwrite) PerformEffect(_ context.Context, _ order.State, in intent.Intent, d effects.Dispatcher) *effects.Task {
	if u, ok := in.(intent.AmountUpdated); ok && u.Amount.Equal(o.first) {
		d.Dispatch(intent.AmountUpdated{Amount: o.second})
	}
	return nil
}

func TestDrive_SeesGoalReplacedBeforeWakeup(t *testing.T) {
	first := order.MustMoney("USD", "100")
	second := order.MustMoney("USD", "200")
	e := engine.New(order.State{}, engine.WithEffects(overwrite{first: first, second: second}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	s := &simulation{engine: e, opts: &SimulateOptions{Timeout: 5 * time.Second}}
	script := []step{{
		intent: intent.AmountUpdated{Amount: first},
		until:  func(_, st order.State) bool { return st.Amount.Equal(first) },
	}}

	outcome, err := s.drive(ctx, script)

	require.NoError(t, err)
	assert.Equal(t, OutcomeOrderCreated, outcome)
	require.NoError(t, e.Drain(ctx))
	assert.True(t, e.State().Amount.Equal(second))
}

func TestFirstReached(t *testing.T) {
	goal := func(_, st order.State) bool { return st.Lifecycle == order.LifecyclePendingConfirmation }
	ts := []engine.Transition{
		{Seq: 1, Applied: false, State: order.State{Lifecycle: order.LifecyclePendingConfirmation}},
		{Seq: 2, Applied: true, State: order.State{Lifecycle: order.LifecycleInitialised}},
		{Seq: 3, Applied: true, State: order.State{Lifecycle: order.LifecyclePendingConfirmation, ID: "o-1"}},
		{Seq: 4, Applied: true, State: order.State{Lifecycle: order.LifecyclePendingExecution}},
	}

	got, found := firstReached(ts, order.State{}, goal)
	require.True(t, found)
	assert.Equal(t, "o-1", got.ID)

	_, found = firstReached(ts[:2], order.State{}, goal)
	assert.False(t, found)

	failed := []engine.Transition{{Applied: true, State: order.State{BuyError: order.BuyErrorGeneric}}}
	got, found = firstReached(failed, order.State{}, goal)
	require.True(t, found)
	assert.Equal(t, order.BuyErrorGeneric, got.BuyError)
}
