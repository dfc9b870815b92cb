package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker/memory"
	"github.com/roach88/buyflow/internal/effects"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/lifecycle"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/poll"
	"github.com/roach88/buyflow/internal/store"
	"github.com/roach88/buyflow/internal/testutil"
)

const waitTimeout = 2 * time.Second

func usd(v string) order.Money { return order.MustMoney("USD", v) }

// chain is a stand-in effect runner: when the intent named by a key is
// applied it dispatches the mapped intent.
type chain map[string]intent.Intent

func (c chain) PerformEffect(_ context.Context, _ order.State, in intent.Intent, d effects.Dispatcher) *effects.Task {
	if next, ok := c[in.Name()]; ok {
		d.Dispatch(next)
	}
	return nil
}

// start runs e until the test ends.
func start(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func drain(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, e.Drain(ctx))
}

func names(ts []Transition) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Intent)
	}
	return out
}

func TestEngine_AppliesIntentsInOrder(t *testing.T) {
	e := New(order.Empty(), WithFlowID(NewFixedGenerator("flow-1")))
	start(t, e)

	e.Dispatch(intent.InitialiseSelectedAssetAndFiat{Asset: "BTC", Fiat: "USD"})
	e.Dispatch(intent.AmountUpdated{Amount: usd("100")})
	e.Dispatch(intent.AmountUpdated{Amount: usd("100")})
	e.Dispatch(intent.FlowScreenUpdated{Screen: order.ScreenCheckout})
	drain(t, e)

	got := e.Transitions()
	require.Len(t, got, 4)
	for i, tr := range got {
		assert.Equal(t, int64(i+1), tr.Seq)
	}
	assert.Equal(t, []bool{true, true, false, true},
		[]bool{got[0].Applied, got[1].Applied, got[2].Applied, got[3].Applied},
		"repeating the current amount is skipped")

	s := e.State()
	assert.Equal(t, order.AssetID("BTC"), s.SelectedAsset)
	assert.True(t, s.Amount.Equal(usd("100")))
	assert.Equal(t, order.ScreenCheckout, s.Screen)
	assert.Equal(t, "flow-1", e.FlowID())
}

func TestEngine_EffectResultsReenterTheLoop(t *testing.T) {
	e := New(order.Empty(), WithEffects(chain{
		"AmountUpdated": intent.FlowScreenUpdated{Screen: order.ScreenCheckout},
	}))
	start(t, e)

	e.Dispatch(intent.AmountUpdated{Amount: usd("5")})
	drain(t, e)

	assert.Equal(t, []string{"AmountUpdated", "FlowScreenUpdated"}, names(e.Transitions()))
	assert.Equal(t, order.ScreenCheckout, e.State().Screen)
}

func TestEngine_RejectedIntentRunsNoEffect(t *testing.T) {
	initial := order.State{BuyError: order.BuyErrorGeneric}
	var hooked int
	e := New(initial,
		WithEffects(chain{"AmountUpdated": intent.FlowScreenUpdated{Screen: order.ScreenCheckout}}),
		WithStateHook(func(context.Context, order.State) { hooked++ }),
	)
	start(t, e)

	e.Dispatch(intent.AmountUpdated{Amount: usd("5")})
	drain(t, e)

	got := e.Transitions()
	require.Len(t, got, 1)
	assert.False(t, got[0].Applied)
	assert.Equal(t, initial, e.State())
	assert.Zero(t, hooked, "state hooks only see applied intents")
}

func TestEngine_StopAppliesQueuedIntents(t *testing.T) {
	e := New(order.Empty())
	e.Dispatch(intent.AmountUpdated{Amount: usd("1")})
	e.Dispatch(intent.AmountUpdated{Amount: usd("2")})
	e.Stop()

	require.NoError(t, e.Run(context.Background()))
	assert.Len(t, e.Transitions(), 2)
	assert.True(t, e.State().Amount.Equal(usd("2")))

	assert.False(t, e.Dispatch(intent.ValidateAmount{}))
	err := e.Submit(intent.ValidateAmount{})
	assert.True(t, IsQueueClosedError(err))
	assert.Zero(t, e.Pending())
}

func TestEngine_RunReturnsContextError(t *testing.T) {
	e := New(order.Empty())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, e.Drain(context.Background()))
	assert.False(t, e.Dispatch(intent.ValidateAmount{}))
}

func TestEngine_SubscribeSeesLatestState(t *testing.T) {
	e := New(order.Empty())
	ch, unsubscribe := e.Subscribe()

	initial := <-ch
	assert.True(t, initial.IsEmpty())

	start(t, e)
	e.Dispatch(intent.AmountUpdated{Amount: usd("1")})
	e.Dispatch(intent.AmountUpdated{Amount: usd("2")})
	e.Dispatch(intent.AmountUpdated{Amount: usd("3")})
	drain(t, e)

	latest := <-ch
	assert.True(t, latest.Amount.Equal(usd("3")), "a slow reader skips to the newest state")

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestCheckTransition(t *testing.T) {
	at := func(l order.Lifecycle) order.State { return order.State{Lifecycle: l} }
	tests := []struct {
		name     string
		in       intent.Intent
		from, to order.Lifecycle
		wantErr  bool
	}{
		{"forward", intent.BuyButtonClicked{}, order.LifecycleUninitialised, order.LifecycleInitialised, false},
		{"unchanged", intent.AmountUpdated{}, order.LifecyclePendingConfirmation, order.LifecyclePendingConfirmation, false},
		{"reset", intent.ClearState{}, order.LifecycleFinished, order.LifecycleUninitialised, false},
		{"cancel after failure", intent.OrderCanceled{}, order.LifecycleFailed, order.LifecycleCanceled, false},
		{"regression", intent.AmountUpdated{}, order.LifecyclePendingExecution, order.LifecycleInitialised, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTransition("flow-1", tt.in, at(tt.from), at(tt.to))
			if tt.wantErr {
				assert.True(t, IsInvariantError(err))
				assert.ErrorContains(t, err, "PENDING_EXECUTION to INITIALISED")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEngine_ClearStateKeepsOrderMidConfirmation(t *testing.T) {
	pc := order.State{ID: "order-1", Lifecycle: order.LifecyclePendingConfirmation, FiatCurrency: "USD"}
	e := New(pc)
	start(t, e)

	e.Dispatch(intent.ClearState{})
	drain(t, e)

	assert.Equal(t, pc, e.State())
	assert.False(t, e.Transitions()[0].Applied)
}

// A full create cycle: the effect runner asks the lifecycle controller for
// an order, the result comes back as OrderCreated and the persistence hook
// saves it.
func TestEngine_CreatesOrderThroughEffects(t *testing.T) {
	clk := testutil.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := memory.New(memory.WithClock(clk), memory.WithIDs(memory.NewSequentialGenerator()))
	ctl := lifecycle.New(b, lifecycle.WithClock(clk), lifecycle.WithRefresh(func() bool { return false }))
	fast := poll.Config{Interval: 0, Attempts: 3}
	runner := effects.New(effects.Collaborators{Broker: b, KYC: b, Instruments: b, Limits: b}, ctl,
		effects.WithPoller(&poll.Poller{Clock: clk}),
		effects.WithPollBudgets(fast, fast),
	)
	t.Cleanup(runner.Close)

	snapshots := store.NewMemory()
	initial := order.State{
		FiatCurrency:          "USD",
		Amount:                usd("100"),
		SelectedAsset:         "BTC",
		SelectedPaymentMethod: &order.PaymentMethodRef{ID: "card-1", Type: order.PaymentMethodCard, IsEligible: true},
	}
	e := New(initial,
		WithEffects(runner),
		WithStateHook(PersistSnapshots(snapshots, zap.NewNop(), nil)),
	)
	start(t, e)

	require.NoError(t, e.Submit(intent.CancelOrderIfAnyAndCreatePendingOne{}))
	drain(t, e)

	s := e.State()
	assert.Equal(t, "order-1", s.ID)
	assert.Equal(t, order.LifecyclePendingConfirmation, s.Lifecycle)
	require.NotNil(t, s.Quote)
	assert.Equal(t, "quote-1", s.Quote.ID)

	saved, ok, err := snapshots.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "order-1", saved.ID)
	assert.Len(t, b.LiveOrders(), 1)
}
