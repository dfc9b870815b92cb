package order

// PaymentMethodType is the category of instrument used to pay for an order.
type PaymentMethodType string

const (
	PaymentMethodCard         PaymentMethodType = "PAYMENT_CARD"
	PaymentMethodBankTransfer PaymentMethodType = "BANK_TRANSFER"
	PaymentMethodFunds        PaymentMethodType = "FUNDS"
	PaymentMethodBankAccount  PaymentMethodType = "BANK_ACCOUNT"
	PaymentMethodGooglePay    PaymentMethodType = "GOOGLE_PAY"
)

// Placeholder ids for payment method categories the user has not linked a
// concrete instrument for yet.
const (
	UndefinedCardID         = "UNDEFINED_CARD_PAYMENT_ID"
	UndefinedBankTransferID = "UNDEFINED_BANK_TRANSFER_PAYMENT_ID"
	UndefinedBankAccountID  = "UNDEFINED_BANK_ACCOUNT_ID"
	FundsID                 = "FUNDS_PAYMENT_ID"
	GooglePayID             = "GOOGLE_PAY_PAYMENT_ID"
)

// PaymentMethodRef identifies the payment method selected for an order.
type PaymentMethodRef struct {
	ID         string            `json:"id"`
	Type       PaymentMethodType `json:"type"`
	Label      string            `json:"label,omitempty"`
	Partner    string            `json:"partner,omitempty"`
	IsEligible bool              `json:"isEligible"`
}

func (p PaymentMethodRef) isDefinedCard() bool {
	return p.Type == PaymentMethodCard && p.ID != UndefinedCardID
}

func (p PaymentMethodRef) isDefinedBankTransfer() bool {
	return p.Type == PaymentMethodBankTransfer && p.ID != UndefinedBankTransferID
}

// ConcreteID returns the instrument id when p is a linked card or linked
// bank transfer. Undefined categories, funds and wallets have no concrete id.
func (p PaymentMethodRef) ConcreteID() (string, bool) {
	if p.isDefinedCard() || p.isDefinedBankTransfer() {
		return p.ID, true
	}
	return "", false
}

// IsActive reports whether p can be charged right now.
func (p PaymentMethodRef) IsActive() bool {
	if _, ok := p.ConcreteID(); ok {
		return true
	}
	return p.Type == PaymentMethodFunds && p.ID == FundsID
}

// IsBank reports whether p settles through a bank rail.
func (p PaymentMethodRef) IsBank() bool {
	return p.Type == PaymentMethodBankTransfer || p.Type == PaymentMethodBankAccount
}

// IsUndefinedBankAccount reports whether p is the bank-account placeholder,
// which is never a selectable method on its own.
func (p PaymentMethodRef) IsUndefinedBankAccount() bool {
	return p.Type == PaymentMethodBankAccount && p.ID == UndefinedBankAccountID
}

// PaymentMethod is one option offered to the user, with its own limits and,
// for funds, the balance available to spend.
type PaymentMethod struct {
	Ref              PaymentMethodRef `json:"ref"`
	Limits           Limits           `json:"limits"`
	AvailableBalance *Money           `json:"availableBalance,omitempty"`
}
