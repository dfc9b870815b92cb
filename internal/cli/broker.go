package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/broker/memory"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/store"
)

// Payment methods the simulator can pay with.
const (
	MethodCard  = "card"
	MethodBank  = "bank"
	MethodFunds = "funds"
)

// simulatedAuthURL is where bank-transfer orders send the user to approve.
const simulatedAuthURL = "https://bank.example/authorise"

// settleAfterPolls is how many status lookups an executing order takes to
// settle. Reconciling a resumed order costs one of them.
const settleAfterPolls = 2

// paymentMethod returns the reference for a --method value and registers
// the matching instrument with b.
func paymentMethod(b *memory.Broker, method, fiat string) (order.PaymentMethodRef, error) {
	switch strings.ToLower(method) {
	case MethodCard:
		b.AddCard(broker.Card{ID: "card-1", Label: "Visa 4242", Partner: "EVERYPAY", Status: broker.CardActive})
		return order.PaymentMethodRef{
			ID: "card-1", Type: order.PaymentMethodCard, Label: "Visa 4242", Partner: "EVERYPAY", IsEligible: true,
		}, nil
	case MethodBank:
		b.AddBank(broker.LinkedBank{ID: "bank-1", Name: "Example Bank", Account: "****1234", State: broker.BankActive})
		return order.PaymentMethodRef{
			ID: "bank-1", Type: order.PaymentMethodBankTransfer, Label: "Example Bank ****1234", IsEligible: true,
		}, nil
	case MethodFunds:
		return order.PaymentMethodRef{
			ID: "funds-" + fiat, Type: order.PaymentMethodFunds, Label: fiat + " balance", IsEligible: true,
		}, nil
	default:
		return order.PaymentMethodRef{}, fmt.Errorf("unknown payment method %q: must be one of card, bank, funds", method)
	}
}

// seedFromSnapshot gives a fresh in-memory broker the order a previous run
// left in the snapshot, so reconciliation has a remote counterpart to find.
// The seeded order keeps the snapshot's lifecycle and instrument.
func seedFromSnapshot(ctx context.Context, b *memory.Broker, snapshots store.Backend, now time.Time) (order.State, bool, error) {
	s, ok, err := snapshots.Load(ctx)
	if err != nil || !ok {
		return s, ok, err
	}
	if s.ID == "" {
		return s, true, nil
	}

	o := broker.Order{
		ID:        s.ID,
		Pair:      broker.Pair{Asset: s.SelectedAsset, Fiat: s.FiatCurrency},
		Amount:    s.Amount,
		Lifecycle: s.Lifecycle,
		CreatedAt: now,
		ExpiresAt: now.Add(memory.DefaultQuoteTTL),
	}
	if pm := s.SelectedPaymentMethod; pm != nil {
		o.PaymentMethodID = pm.ID
		o.PaymentMethodType = pm.Type
		switch pm.Type {
		case order.PaymentMethodCard:
			b.AddCard(broker.Card{ID: pm.ID, Label: pm.Label, Partner: pm.Partner, Status: broker.CardActive})
		case order.PaymentMethodBankTransfer, order.PaymentMethodBankAccount:
			b.AddBank(broker.LinkedBank{ID: pm.ID, Name: pm.Label, State: broker.BankActive})
		}
	}
	if q := s.Quote; q != nil {
		o.QuoteID = q.ID
	}
	b.Seed(o)
	return s, true, nil
}
