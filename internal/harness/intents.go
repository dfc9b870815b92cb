package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/order"
)

// args is the argument map of a scripted step.
type args map[string]any

func (a args) str(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (a args) flag(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// builder turns step arguments into an intent. keys lists every argument
// the intent accepts.
type builder struct {
	keys  []string
	build func(a args) (intent.Intent, error)
}

func plain(in intent.Intent) builder {
	return builder{build: func(args) (intent.Intent, error) { return in, nil }}
}

// builders covers every intent a user or an external caller can submit.
// Intents that carry broker results are produced by effects only.
var builders = map[string]builder{
	"AmountUpdated": {keys: []string{"amount", "currency"}, build: func(a args) (intent.Intent, error) {
		m, err := order.ParseMoney(a.str("currency"), a.str("amount"))
		if err != nil {
			return nil, err
		}
		return intent.AmountUpdated{Amount: m}, nil
	}},
	"InitialiseSelectedAssetAndFiat": {keys: []string{"asset", "fiat"}, build: func(a args) (intent.Intent, error) {
		return intent.InitialiseSelectedAssetAndFiat{Asset: order.AssetID(a.str("asset")), Fiat: a.str("fiat")}, nil
	}},
	"FlowScreenUpdated": {keys: []string{"screen"}, build: func(a args) (intent.Intent, error) {
		return intent.FlowScreenUpdated{Screen: order.FlowScreen(a.str("screen"))}, nil
	}},
	"SelectedPaymentMethodUpdated": {keys: []string{"id", "type", "label", "eligible"}, build: func(a args) (intent.Intent, error) {
		return intent.SelectedPaymentMethodUpdated{Method: order.PaymentMethodRef{
			ID:         a.str("id"),
			Type:       order.PaymentMethodType(a.str("type")),
			Label:      a.str("label"),
			IsEligible: a.flag("eligible"),
		}}, nil
	}},
	"RecurringBuyFrequencyUpdated": {keys: []string{"frequency"}, build: func(a args) (intent.Intent, error) {
		return intent.RecurringBuyFrequencyUpdated{Frequency: order.RecurringBuyFrequency(a.str("frequency"))}, nil
	}},
	"AuthorisationURLUpdated": {keys: []string{"url"}, build: func(a args) (intent.Intent, error) {
		return intent.AuthorisationURLUpdated{URL: a.str("url")}, nil
	}},
	"BankLinkStarted": {keys: []string{"bank_id"}, build: func(a args) (intent.Intent, error) {
		return intent.BankLinkStarted{BankID: a.str("bank_id")}, nil
	}},
	"CheckBankLinkStatus": {keys: []string{"bank_id"}, build: func(a args) (intent.Intent, error) {
		return intent.CheckBankLinkStatus{BankID: a.str("bank_id")}, nil
	}},
	"StopQuotesUpdate": {keys: []string{"reset_order"}, build: func(a args) (intent.Intent, error) {
		return intent.StopQuotesUpdate{ResetOrder: a.flag("reset_order")}, nil
	}},
	"MakePayment": {keys: []string{"order_id"}, build: func(a args) (intent.Intent, error) {
		return intent.MakePayment{OrderID: a.str("order_id")}, nil
	}},
	"FetchAuthorisationURL": {keys: []string{"order_id"}, build: func(a args) (intent.Intent, error) {
		return intent.FetchAuthorisationURL{OrderID: a.str("order_id")}, nil
	}},
	"ErrorIntent": {keys: []string{"kind"}, build: func(a args) (intent.Intent, error) {
		kind := order.BuyErrorKind(a.str("kind"))
		if kind == order.BuyErrorNone {
			return nil, fmt.Errorf("kind is required")
		}
		return intent.ErrorIntent{Kind: kind}, nil
	}},
	"KycStateUpdated": {keys: []string{"state"}, build: func(a args) (intent.Intent, error) {
		return intent.KycStateUpdated{State: order.KycState(a.str("state"))}, nil
	}},

	"ClearAnySelectedPaymentMethods":      plain(intent.ClearAnySelectedPaymentMethods{}),
	"NavigationHandled":                   plain(intent.NavigationHandled{}),
	"UnlockHigherLimits":                  plain(intent.UnlockHigherLimits{}),
	"ValidateAmount":                      plain(intent.ValidateAmount{}),
	"FetchBuyLimits":                      plain(intent.FetchBuyLimits{}),
	"FetchKycState":                       plain(intent.FetchKycState{}),
	"BuyButtonClicked":                    plain(intent.BuyButtonClicked{}),
	"CancelOrderIfAnyAndCreatePendingOne": plain(intent.CancelOrderIfAnyAndCreatePendingOne{}),
	"ConfirmOrder":                        plain(intent.ConfirmOrder{}),
	"CheckOrderStatus":                    plain(intent.CheckOrderStatus{}),
	"CreateRecurringBuy":                  plain(intent.CreateRecurringBuy{}),
	"CancelOrder":                         plain(intent.CancelOrder{}),
	"OrderCanceled":                       plain(intent.OrderCanceled{}),
	"PaymentSucceeded":                    plain(intent.PaymentSucceeded{}),
	"PaymentPending":                      plain(intent.PaymentPending{}),
	"ClearError":                          plain(intent.ClearError{}),
	"ClearState":                          plain(intent.ClearState{}),
}

// knownIntent reports whether name is an intent variant.
func knownIntent(name string) bool {
	for _, n := range intent.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// decodeIntent builds the intent a step names.
func decodeIntent(name string, raw map[string]any) (intent.Intent, error) {
	b, ok := builders[name]
	if !ok {
		if knownIntent(name) {
			return nil, fmt.Errorf("intent %s is produced by effects and cannot be scripted", name)
		}
		return nil, fmt.Errorf("unknown intent %q", name)
	}

	allowed := make(map[string]bool, len(b.keys))
	for _, k := range b.keys {
		allowed[k] = true
	}
	var unknown []string
	for k := range raw {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%s: unknown args %s", name, strings.Join(unknown, ", "))
	}

	in, err := b.build(args(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return in, nil
}

// ScriptableIntents returns the names of the intents a scenario may submit.
func ScriptableIntents() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
