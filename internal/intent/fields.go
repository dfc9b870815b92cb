package intent

import "github.com/roach88/buyflow/internal/order"

// AmountUpdated records a new fiat amount typed by the user.
type AmountUpdated struct {
	guarded
	Amount order.Money
}

func (AmountUpdated) Name() string { return "AmountUpdated" }

func (i AmountUpdated) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && !s.Amount.Equal(i.Amount)
}

func (i AmountUpdated) Reduce(s order.State) order.State {
	s.Amount = i.Amount
	if i.Amount.Currency != "" {
		s.FiatCurrency = i.Amount.Currency
	}
	return s
}

// InitialiseSelectedAssetAndFiat sets the pair being bought.
type InitialiseSelectedAssetAndFiat struct {
	guarded
	Asset order.AssetID
	Fiat  string
}

func (InitialiseSelectedAssetAndFiat) Name() string { return "InitialiseSelectedAssetAndFiat" }

func (i InitialiseSelectedAssetAndFiat) Reduce(s order.State) order.State {
	if s.FiatCurrency != i.Fiat {
		s.Amount = order.Zero(i.Fiat)
	}
	s.SelectedAsset = i.Asset
	s.FiatCurrency = i.Fiat
	return s
}

// FlowScreenUpdated records the step the user is on.
type FlowScreenUpdated struct {
	guarded
	Screen order.FlowScreen
}

func (FlowScreenUpdated) Name() string { return "FlowScreenUpdated" }

func (i FlowScreenUpdated) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && s.Screen != i.Screen
}

func (i FlowScreenUpdated) Reduce(s order.State) order.State {
	s.Screen = i.Screen
	return s
}

// SelectedPaymentMethodUpdated selects a payment method. The undefined bank
// account placeholder is never selectable.
type SelectedPaymentMethodUpdated struct {
	guarded
	Method order.PaymentMethodRef
}

func (SelectedPaymentMethodUpdated) Name() string { return "SelectedPaymentMethodUpdated" }

func (i SelectedPaymentMethodUpdated) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && !i.Method.IsUndefinedBankAccount()
}

func (i SelectedPaymentMethodUpdated) Reduce(s order.State) order.State {
	m := i.Method
	s.SelectedPaymentMethod = &m
	return s
}

// PaymentMethodsUpdated replaces the offered payment methods, optionally
// selecting one of them.
type PaymentMethodsUpdated struct {
	guarded
	Available []order.PaymentMethod
	Selected  *order.PaymentMethodRef
}

func (PaymentMethodsUpdated) Name() string { return "PaymentMethodsUpdated" }

func (i PaymentMethodsUpdated) Reduce(s order.State) order.State {
	s.PaymentOptions = append([]order.PaymentMethod(nil), i.Available...)
	if i.Selected != nil {
		m := *i.Selected
		s.SelectedPaymentMethod = &m
	}
	s.IsLoading = false
	return s
}

// ClearAnySelectedPaymentMethods drops the current selection.
type ClearAnySelectedPaymentMethods struct{ guarded }

func (ClearAnySelectedPaymentMethods) Name() string { return "ClearAnySelectedPaymentMethods" }

func (i ClearAnySelectedPaymentMethods) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && s.SelectedPaymentMethod != nil
}

func (ClearAnySelectedPaymentMethods) Reduce(s order.State) order.State {
	s.SelectedPaymentMethod = nil
	return s
}

// BuyLimitsUpdated records the platform limits for the current pair.
type BuyLimitsUpdated struct {
	guarded
	Limits order.Limits
}

func (BuyLimitsUpdated) Name() string { return "BuyLimitsUpdated" }

func (i BuyLimitsUpdated) Reduce(s order.State) order.State {
	l := i.Limits
	s.BuyLimits = &l
	return s
}

// RecurringBuyFrequencyUpdated selects how often the purchase repeats.
type RecurringBuyFrequencyUpdated struct {
	guarded
	Frequency order.RecurringBuyFrequency
}

func (RecurringBuyFrequencyUpdated) Name() string { return "RecurringBuyFrequencyUpdated" }

func (i RecurringBuyFrequencyUpdated) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && s.RecurringBuyFrequency != i.Frequency
}

func (i RecurringBuyFrequencyUpdated) Reduce(s order.State) order.State {
	s.RecurringBuyFrequency = i.Frequency
	return s
}

// ValidationStateUpdated records the outcome of amount validation.
type ValidationStateUpdated struct {
	guarded
	State order.ValidationError
}

func (ValidationStateUpdated) Name() string { return "ValidationStateUpdated" }

func (i ValidationStateUpdated) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && s.ErrorState != i.State
}

func (i ValidationStateUpdated) Reduce(s order.State) order.State {
	s.ErrorState = i.State
	return s
}

// KycStateUpdated records the user's verification outcome.
type KycStateUpdated struct {
	guarded
	State order.KycState
}

func (KycStateUpdated) Name() string { return "KycStateUpdated" }

func (i KycStateUpdated) Reduce(s order.State) order.State {
	s.KycState = i.State
	s.IsLoading = false
	return s
}

// AuthorisationURLUpdated records the bank URL the user must visit to
// approve a payment.
type AuthorisationURLUpdated struct {
	guarded
	URL string
}

func (AuthorisationURLUpdated) Name() string { return "AuthorisationURLUpdated" }

func (i AuthorisationURLUpdated) Reduce(s order.State) order.State {
	s.AuthorisationURL = i.URL
	s.IsLoading = false
	return s
}

// BankLinkStarted records the bank account being linked.
type BankLinkStarted struct {
	guarded
	BankID string
}

func (BankLinkStarted) Name() string { return "BankLinkStarted" }

func (i BankLinkStarted) Reduce(s order.State) order.State {
	s.LinkingBankID = i.BankID
	s.IsLoading = true
	return s
}

// BankLinkCompleted selects a freshly linked bank account.
type BankLinkCompleted struct {
	guarded
	Method order.PaymentMethodRef
}

func (BankLinkCompleted) Name() string { return "BankLinkCompleted" }

func (i BankLinkCompleted) Reduce(s order.State) order.State {
	m := i.Method
	s.SelectedPaymentMethod = &m
	s.LinkingBankID = ""
	s.IsLoading = false
	return s
}

// RecurringBuyCreated records the standing instruction created for the
// purchase, or its failure as an inactive state.
type RecurringBuyCreated struct {
	guarded
	ID    string
	State order.RecurringBuyState
}

func (RecurringBuyCreated) Name() string { return "RecurringBuyCreated" }

func (i RecurringBuyCreated) Reduce(s order.State) order.State {
	s.RecurringBuyID = i.ID
	s.RecurringBuyState = i.State
	return s
}

// NavigationHandled acknowledges an outstanding confirmation action.
type NavigationHandled struct{ guarded }

func (NavigationHandled) Name() string { return "NavigationHandled" }

func (NavigationHandled) IsValidFor(s order.State) bool {
	return s.ConfirmationActionRequested
}

func (NavigationHandled) Reduce(s order.State) order.State {
	s.ConfirmationActionRequested = false
	return s
}

// UnlockHigherLimits flags that the user should be offered a tier upgrade.
type UnlockHigherLimits struct{ guarded }

func (UnlockHigherLimits) Name() string { return "UnlockHigherLimits" }

func (UnlockHigherLimits) IsValidFor(s order.State) bool {
	return !s.ShouldUpsellHigherLimits
}

func (UnlockHigherLimits) Reduce(s order.State) order.State {
	s.ShouldUpsellHigherLimits = true
	return s
}
