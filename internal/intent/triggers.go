package intent

import "github.com/roach88/buyflow/internal/order"

// The intents in this file mostly exist to start an effect. Their state
// change, if any, is a loading flag.

// ValidateAmount re-checks the current amount against every limit source.
type ValidateAmount struct{ guarded }

func (ValidateAmount) Name() string                     { return "ValidateAmount" }
func (ValidateAmount) Reduce(s order.State) order.State { return s }

// FetchBuyLimits refreshes the platform limits for the selected pair and
// payment method.
type FetchBuyLimits struct{ guarded }

func (FetchBuyLimits) Name() string { return "FetchBuyLimits" }

func (FetchBuyLimits) IsValidFor(s order.State) bool {
	return s.BuyError == order.BuyErrorNone && s.SelectedAsset != "" && s.FiatCurrency != ""
}

func (FetchBuyLimits) Reduce(s order.State) order.State { return s }

// FetchKycState starts polling for a verification decision.
type FetchKycState struct{ guarded }

func (FetchKycState) Name() string { return "FetchKycState" }

func (FetchKycState) Reduce(s order.State) order.State {
	s.KycState = order.KycPending
	return s
}

// BuyButtonClicked is the user's request to proceed to checkout.
type BuyButtonClicked struct{ guarded }

func (BuyButtonClicked) Name() string { return "BuyButtonClicked" }

func (BuyButtonClicked) Reduce(s order.State) order.State {
	s.ConfirmationActionRequested = true
	s.Lifecycle = s.Lifecycle.Advance(order.LifecycleInitialised)
	return s
}

// CancelOrderIfAnyAndCreatePendingOne supersedes any existing order with a
// fresh one for the current amount, asset and payment method.
type CancelOrderIfAnyAndCreatePendingOne struct{ always }

func (CancelOrderIfAnyAndCreatePendingOne) Name() string {
	return "CancelOrderIfAnyAndCreatePendingOne"
}

func (CancelOrderIfAnyAndCreatePendingOne) IsValidFor(s order.State) bool {
	return s.SelectedAsset != "" &&
		s.Amount.IsPositive() &&
		s.Lifecycle != order.LifecycleAwaitingFunds &&
		s.Lifecycle != order.LifecyclePendingExecution
}

func (CancelOrderIfAnyAndCreatePendingOne) Reduce(s order.State) order.State {
	s.IsLoading = true
	return s
}

// StopQuotesUpdate stops the quote refresh loop. With ResetOrder set the
// lifecycle controller also forgets its latest pending order.
type StopQuotesUpdate struct {
	always
	ResetOrder bool
}

func (StopQuotesUpdate) Name() string                     { return "StopQuotesUpdate" }
func (StopQuotesUpdate) Reduce(s order.State) order.State { return s }

// ConfirmOrder confirms the pending order with the selected payment method.
type ConfirmOrder struct{ guarded }

func (ConfirmOrder) Name() string { return "ConfirmOrder" }

func (ConfirmOrder) Reduce(s order.State) order.State {
	s.IsLoading = true
	return s
}

// MakePayment starts payment for a confirmed order.
type MakePayment struct {
	guarded
	OrderID string
}

func (MakePayment) Name() string { return "MakePayment" }

func (MakePayment) Reduce(s order.State) order.State {
	s.IsLoading = true
	return s
}

// FetchAuthorisationURL waits for the bank authorisation URL of an order.
type FetchAuthorisationURL struct {
	guarded
	OrderID string
}

func (FetchAuthorisationURL) Name() string { return "FetchAuthorisationURL" }

func (FetchAuthorisationURL) Reduce(s order.State) order.State {
	s.IsLoading = true
	return s
}

// CheckOrderStatus waits for the order to settle.
type CheckOrderStatus struct{ guarded }

func (CheckOrderStatus) Name() string { return "CheckOrderStatus" }

func (i CheckOrderStatus) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && s.ID != ""
}

func (CheckOrderStatus) Reduce(s order.State) order.State {
	s.IsLoading = true
	return s
}

// CheckBankLinkStatus waits for a bank account link to complete.
type CheckBankLinkStatus struct {
	guarded
	BankID string
}

func (CheckBankLinkStatus) Name() string { return "CheckBankLinkStatus" }

func (i CheckBankLinkStatus) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) && i.BankID != ""
}

func (i CheckBankLinkStatus) Reduce(s order.State) order.State {
	s.LinkingBankID = i.BankID
	s.IsLoading = true
	return s
}

// CreateRecurringBuy creates the single standing instruction a purchase
// may carry.
type CreateRecurringBuy struct{ guarded }

func (CreateRecurringBuy) Name() string { return "CreateRecurringBuy" }

func (i CreateRecurringBuy) IsValidFor(s order.State) bool {
	return i.guarded.IsValidFor(s) &&
		s.RecurringBuyFrequency.IsRecurring() &&
		s.RecurringBuyState != order.RecurringBuyActive
}

func (CreateRecurringBuy) Reduce(s order.State) order.State { return s }

// CancelOrder abandons the current order.
type CancelOrder struct{ always }

func (CancelOrder) Name() string                     { return "CancelOrder" }
func (CancelOrder) Reduce(s order.State) order.State { return s }
