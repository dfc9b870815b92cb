package intent

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buyflow/internal/order"
)

func populated() order.State {
	return order.State{
		ID:                    "order-1",
		FiatCurrency:          "USD",
		Amount:                order.MustMoney("USD", "100"),
		SelectedAsset:         "BTC",
		Lifecycle:             order.LifecycleInitialised,
		SelectedPaymentMethod: &order.PaymentMethodRef{ID: "card-1", Type: order.PaymentMethodCard},
		PaymentOptions: []order.PaymentMethod{{
			Ref: order.PaymentMethodRef{ID: "card-1", Type: order.PaymentMethodCard},
		}},
		Quote:                       &order.Quote{ID: "quote-1", Price: order.MustMoney("USD", "50000")},
		BuyLimits:                   &order.Limits{Min: order.MustMoney("USD", "5"), Max: order.MustMoney("USD", "1000")},
		RecurringBuyFrequency:       order.FrequencyWeekly,
		ConfirmationActionRequested: true,
	}
}

// TestIntentSet_Exhaustive fails when a new intent type is declared without
// being registered in All.
func TestIntentSet_Exhaustive(t *testing.T) {
	declared := declaredIntentTypes(t)

	registered := Names()
	sort.Strings(registered)

	assert.Equal(t, declared, registered)
}

func declaredIntentTypes(t *testing.T) []string {
	t.Helper()

	fset := token.NewFileSet()
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)

	var names []string
	for _, path := range files {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		src, err := os.ReadFile(path)
		require.NoError(t, err)
		f, err := parser.ParseFile(fset, path, src, 0)
		require.NoError(t, err)

		ast.Inspect(f, func(n ast.Node) bool {
			spec, ok := n.(*ast.TypeSpec)
			if !ok {
				return true
			}
			st, ok := spec.Type.(*ast.StructType)
			if !ok {
				return false
			}
			for _, field := range st.Fields.List {
				ident, ok := field.Type.(*ast.Ident)
				if ok && len(field.Names) == 0 && (ident.Name == "guarded" || ident.Name == "always") {
					names = append(names, spec.Name.Name)
				}
			}
			return false
		})
	}
	sort.Strings(names)
	return names
}

func TestReduce_NeverMutatesInput(t *testing.T) {
	for _, in := range samples() {
		t.Run(in.Name(), func(t *testing.T) {
			before := populated()
			_ = in.Reduce(before)
			assert.Equal(t, populated(), before)
		})
	}
}

func TestReduce_RejectedIntentIsNoop(t *testing.T) {
	s := populated()
	s.BuyError = order.BuyErrorGeneric

	next, applied := Reduce(s, AmountUpdated{Amount: order.MustMoney("USD", "250")})

	assert.False(t, applied)
	assert.Equal(t, s, next)
}

func TestErrorIntent_AlwaysDeliverable(t *testing.T) {
	s := populated()
	s.BuyError = order.BuyErrorDailyLimitExceeded
	s.IsLoading = true

	next, applied := Reduce(s, ErrorIntent{Kind: order.BuyErrorGeneric})

	require.True(t, applied)
	assert.Equal(t, order.BuyErrorGeneric, next.BuyError)
	assert.False(t, next.IsLoading)
	assert.False(t, next.ConfirmationActionRequested)
}

func TestClearError_OnlyWhenSet(t *testing.T) {
	_, applied := Reduce(populated(), ClearError{})
	assert.False(t, applied)

	s := populated()
	s.BuyError = order.BuyErrorGeneric
	next, applied := Reduce(s, ClearError{})
	assert.True(t, applied)
	assert.Equal(t, order.BuyErrorNone, next.BuyError)
}

func TestClearState_GatedByLifecycle(t *testing.T) {
	s := populated()
	s.Lifecycle = order.LifecyclePendingConfirmation
	next, applied := Reduce(s, ClearState{})
	assert.False(t, applied)
	assert.Equal(t, s, next)

	s.Lifecycle = order.LifecyclePendingExecution
	_, applied = Reduce(s, ClearState{})
	assert.False(t, applied)

	s.Lifecycle = order.LifecycleFinished
	next, applied = Reduce(s, ClearState{})
	assert.True(t, applied)
	assert.Equal(t, order.Empty(), next)
}

func TestAmountUpdated_SkipsSameAmount(t *testing.T) {
	s := populated()
	_, applied := Reduce(s, AmountUpdated{Amount: order.MustMoney("USD", "100.00")})
	assert.False(t, applied)

	next, applied := Reduce(s, AmountUpdated{Amount: order.MustMoney("USD", "120")})
	assert.True(t, applied)
	assert.True(t, next.Amount.Equal(order.MustMoney("USD", "120")))
}

func TestSelectedPaymentMethodUpdated_RejectsUndefinedBankAccount(t *testing.T) {
	undefined := order.PaymentMethodRef{ID: order.UndefinedBankAccountID, Type: order.PaymentMethodBankAccount}
	_, applied := Reduce(populated(), SelectedPaymentMethodUpdated{Method: undefined})
	assert.False(t, applied)

	s := populated()
	s.BuyError = order.BuyErrorGeneric
	_, applied = Reduce(s, SelectedPaymentMethodUpdated{Method: order.PaymentMethodRef{ID: "card-2", Type: order.PaymentMethodCard}})
	assert.False(t, applied, "no payment method update once a terminal error is set")
}

func TestCancelOrderIfAnyAndCreatePendingOne_Guard(t *testing.T) {
	s := populated()
	assert.True(t, CancelOrderIfAnyAndCreatePendingOne{}.IsValidFor(s))

	s.Lifecycle = order.LifecyclePendingExecution
	assert.False(t, CancelOrderIfAnyAndCreatePendingOne{}.IsValidFor(s))
	s.Lifecycle = order.LifecycleAwaitingFunds
	assert.False(t, CancelOrderIfAnyAndCreatePendingOne{}.IsValidFor(s))

	s = populated()
	s.SelectedAsset = ""
	assert.False(t, CancelOrderIfAnyAndCreatePendingOne{}.IsValidFor(s))

	s = populated()
	s.Amount = order.Zero("USD")
	assert.False(t, CancelOrderIfAnyAndCreatePendingOne{}.IsValidFor(s))

	next := CancelOrderIfAnyAndCreatePendingOne{}.Reduce(populated())
	assert.True(t, next.IsLoading)
}

func TestOrderCreated_ReplacesQuoteWithOrder(t *testing.T) {
	s := populated()
	q := order.Quote{ID: "quote-2", Price: order.MustMoney("USD", "51000"), ExpiresAt: time.Unix(30, 0)}

	next, applied := Reduce(s, OrderCreated{ID: "order-2", Lifecycle: order.LifecyclePendingConfirmation, Quote: q, RecurringBuyID: "rb-1"})

	require.True(t, applied)
	assert.Equal(t, "order-2", next.ID)
	assert.Equal(t, "quote-2", next.Quote.ID)
	assert.True(t, next.HasQuoteChanged)
	assert.Equal(t, order.LifecyclePendingConfirmation, next.Lifecycle)
	assert.Equal(t, order.RecurringBuyActive, next.RecurringBuyState)
	assert.False(t, next.PaymentSucceeded)
}

func TestNavigationHandled_AppliesOnce(t *testing.T) {
	next, applied := Reduce(populated(), NavigationHandled{})
	require.True(t, applied)
	_, applied = Reduce(next, NavigationHandled{})
	assert.False(t, applied)
}

func TestCreateRecurringBuy_AtMostOnce(t *testing.T) {
	s := populated()
	assert.True(t, CreateRecurringBuy{}.IsValidFor(s))

	s.RecurringBuyState = order.RecurringBuyActive
	assert.False(t, CreateRecurringBuy{}.IsValidFor(s))

	s = populated()
	s.RecurringBuyFrequency = order.FrequencyOneTime
	assert.False(t, CreateRecurringBuy{}.IsValidFor(s))
}

func TestOrderCanceled_ResetsToCanceled(t *testing.T) {
	next, applied := Reduce(populated(), OrderCanceled{})
	require.True(t, applied)
	assert.Equal(t, order.State{Lifecycle: order.LifecycleCanceled}, next)
}

// Outside explicit resets, no sequence of intents moves the lifecycle back.
func TestReduce_LifecycleNeverRegresses(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pool := samples()

	for run := 0; run < 200; run++ {
		s := order.Empty()
		for step := 0; step < 40; step++ {
			in := pool[rng.Intn(len(pool))]
			next, applied := Reduce(s, in)
			switch in.(type) {
			case ClearState, OrderCanceled:
				s = next
				continue
			}
			if applied {
				assert.False(t, next.Lifecycle.Precedes(s.Lifecycle),
					"%s moved lifecycle from %s to %s", in.Name(), s.Lifecycle, next.Lifecycle)
			}
			s = next
		}
	}
}

func samples() []Intent {
	q := order.Quote{ID: "quote-9", Price: order.MustMoney("USD", "49000")}
	card := order.PaymentMethodRef{ID: "card-2", Type: order.PaymentMethodCard}
	return []Intent{
		AmountUpdated{Amount: order.MustMoney("USD", "75")},
		InitialiseSelectedAssetAndFiat{Asset: "ETH", Fiat: "EUR"},
		FlowScreenUpdated{Screen: order.ScreenCheckout},
		SelectedPaymentMethodUpdated{Method: card},
		PaymentMethodsUpdated{Available: []order.PaymentMethod{{Ref: card}}, Selected: &card},
		ClearAnySelectedPaymentMethods{},
		BuyLimitsUpdated{Limits: order.Limits{Unbounded: true}},
		RecurringBuyFrequencyUpdated{Frequency: order.FrequencyDaily},
		ValidationStateUpdated{State: order.ValidationBelowMinLimit},
		KycStateUpdated{State: order.KycVerifiedAndEligible},
		AuthorisationURLUpdated{URL: "https://bank.example"},
		BankLinkStarted{BankID: "bank-1"},
		BankLinkCompleted{Method: order.PaymentMethodRef{ID: "bank-1", Type: order.PaymentMethodBankTransfer}},
		RecurringBuyCreated{ID: "rb-1", State: order.RecurringBuyActive},
		NavigationHandled{},
		UnlockHigherLimits{},
		ValidateAmount{},
		FetchBuyLimits{},
		FetchKycState{},
		BuyButtonClicked{},
		CancelOrderIfAnyAndCreatePendingOne{},
		StopQuotesUpdate{ResetOrder: true},
		ConfirmOrder{},
		MakePayment{OrderID: "order-1"},
		FetchAuthorisationURL{OrderID: "order-1"},
		CheckOrderStatus{},
		CheckBankLinkStatus{BankID: "bank-1"},
		CreateRecurringBuy{},
		CancelOrder{},
		OrderCreated{ID: "order-2", Lifecycle: order.LifecyclePendingConfirmation, Quote: q},
		OrderConfirmed{ID: "order-2", Lifecycle: order.LifecyclePendingExecution},
		OrderCanceled{},
		PaymentSucceeded{},
		PaymentPending{},
		ErrorIntent{Kind: order.BuyErrorGeneric},
		ClearError{},
		ClearState{},
	}
}

func TestGuards_DeliverableWhileErrored(t *testing.T) {
	s := populated()
	s.BuyError = order.BuyErrorGeneric

	for _, in := range []Intent{
		ErrorIntent{Kind: order.BuyErrorPaymentFailed},
		ClearError{},
		CancelOrder{},
		OrderCanceled{},
		StopQuotesUpdate{},
		CancelOrderIfAnyAndCreatePendingOne{},
		NavigationHandled{},
		UnlockHigherLimits{},
	} {
		assert.True(t, in.IsValidFor(s), in.Name())
	}

	for _, in := range []Intent{
		AmountUpdated{Amount: order.MustMoney("USD", "250")},
		FetchBuyLimits{},
		CheckOrderStatus{},
	} {
		assert.False(t, in.IsValidFor(s), in.Name())
	}
}
