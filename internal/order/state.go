package order

// AssetID names a crypto-asset, for example "BTC".
type AssetID string

// FlowScreen is the step of the buy flow the user is currently on.
type FlowScreen string

const (
	ScreenEnterAmount   FlowScreen = "ENTER_AMOUNT"
	ScreenKyc           FlowScreen = "KYC"
	ScreenCheckout      FlowScreen = "CHECKOUT"
	ScreenPaymentStatus FlowScreen = "PAYMENT_STATUS"
)

// State is the single source of truth for the in-flight purchase.
//
// State values are replaced wholesale on every transition. Slices and
// pointers held by a State are never mutated after it is published; a
// reducer that needs a different value assigns a new one.
type State struct {
	ID                    string
	FiatCurrency          string
	Amount                Money
	SelectedAsset         AssetID
	Lifecycle             Lifecycle
	SelectedPaymentMethod *PaymentMethodRef
	PaymentOptions        []PaymentMethod
	Quote                 *Quote
	BuyLimits             *Limits
	RecurringBuyFrequency RecurringBuyFrequency
	RecurringBuyState     RecurringBuyState
	RecurringBuyID        string
	ErrorState            ValidationError
	BuyError              BuyErrorKind
	KycState              KycState
	Screen                FlowScreen

	// Transient.
	IsLoading                   bool
	ConfirmationActionRequested bool
	PaymentSucceeded            bool
	PaymentPending              bool
	HasQuoteChanged             bool
	ShouldUpsellHigherLimits    bool
	AuthorisationURL            string
	LinkingBankID               string
}

// Empty returns the state a flow starts from.
func Empty() State {
	return State{}
}

// IsEmpty reports whether s carries nothing worth persisting.
func (s State) IsEmpty() bool {
	return s.ID == "" &&
		s.Lifecycle == LifecycleUninitialised &&
		s.SelectedAsset == "" &&
		s.SelectedPaymentMethod == nil &&
		s.Amount.IsZero() &&
		s.FiatCurrency == ""
}

// HasLiveOrder reports whether s references a remote order that has not
// reached a terminal lifecycle.
func (s State) HasLiveOrder() bool {
	return s.ID != "" && !s.Lifecycle.IsTerminal()
}

// CanClear reports whether s may be reset. An order in the middle of
// confirmation or execution cannot be silently dropped.
func (s State) CanClear() bool {
	return s.Lifecycle.Precedes(LifecyclePendingConfirmation) ||
		LifecyclePendingExecution.Precedes(s.Lifecycle)
}
