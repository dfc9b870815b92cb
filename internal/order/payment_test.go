package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentMethodRef_ConcreteID(t *testing.T) {
	card := PaymentMethodRef{ID: "card-1", Type: PaymentMethodCard}
	id, ok := card.ConcreteID()
	assert.True(t, ok)
	assert.Equal(t, "card-1", id)

	bank := PaymentMethodRef{ID: "bank-1", Type: PaymentMethodBankTransfer}
	id, ok = bank.ConcreteID()
	assert.True(t, ok)
	assert.Equal(t, "bank-1", id)

	for _, ref := range []PaymentMethodRef{
		{ID: UndefinedCardID, Type: PaymentMethodCard},
		{ID: UndefinedBankTransferID, Type: PaymentMethodBankTransfer},
		{ID: FundsID, Type: PaymentMethodFunds},
		{ID: GooglePayID, Type: PaymentMethodGooglePay},
	} {
		_, ok := ref.ConcreteID()
		assert.False(t, ok, ref.ID)
	}
}

func TestPaymentMethodRef_IsActive(t *testing.T) {
	assert.True(t, PaymentMethodRef{ID: "card-1", Type: PaymentMethodCard}.IsActive())
	assert.True(t, PaymentMethodRef{ID: FundsID, Type: PaymentMethodFunds}.IsActive())
	assert.False(t, PaymentMethodRef{ID: UndefinedCardID, Type: PaymentMethodCard}.IsActive())
	assert.False(t, PaymentMethodRef{ID: "other", Type: PaymentMethodFunds}.IsActive())
}

func TestPaymentMethodRef_IsUndefinedBankAccount(t *testing.T) {
	assert.True(t, PaymentMethodRef{ID: UndefinedBankAccountID, Type: PaymentMethodBankAccount}.IsUndefinedBankAccount())
	assert.False(t, PaymentMethodRef{ID: "bank-1", Type: PaymentMethodBankAccount}.IsUndefinedBankAccount())
}

func TestDerive_CombinedLimits(t *testing.T) {
	s := State{
		FiatCurrency:          "USD",
		SelectedPaymentMethod: &PaymentMethodRef{ID: "card-1", Type: PaymentMethodCard},
		PaymentOptions: []PaymentMethod{{
			Ref:    PaymentMethodRef{ID: "card-1", Type: PaymentMethodCard},
			Limits: Limits{Min: MustMoney("USD", "10"), Max: MustMoney("USD", "500")},
		}},
		BuyLimits: &Limits{Min: MustMoney("USD", "5"), Max: MustMoney("USD", "1000")},
	}

	max, ok := CombinedMax(s)
	assert.True(t, ok)
	assert.True(t, max.Equal(MustMoney("USD", "500")))
	assert.True(t, CombinedMin(s).Equal(MustMoney("USD", "10")))

	s.SelectedPaymentMethod = nil
	assert.True(t, SelectedPaymentMethodLimits(s).Unbounded)
	max, ok = CombinedMax(s)
	assert.True(t, ok)
	assert.True(t, max.Equal(MustMoney("USD", "1000")))
}
