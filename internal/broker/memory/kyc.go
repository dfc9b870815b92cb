package memory

import (
	"context"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/order"
)

// SetTier replaces the user's KYC tier.
func (b *Broker) SetTier(t broker.Tier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tier = t
}

// SetEligible sets the buy eligibility flag.
func (b *Broker) SetEligible(eligible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eligible = eligible
}

func (b *Broker) CurrentTier(ctx context.Context) (broker.Tier, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpCurrentTier); err != nil {
		return broker.Tier{}, err
	}
	return b.tier, nil
}

func (b *Broker) IsEligibleForBuy(ctx context.Context, _ bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpIsEligible); err != nil {
		return false, err
	}
	return b.eligible, nil
}

// AddCard links a card.
func (b *Broker) AddCard(c broker.Card) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cards[c.ID] = c
}

// AddBank links a bank account.
func (b *Broker) AddBank(bank broker.LinkedBank) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banks[bank.ID] = bank
}

func (b *Broker) GetCardDetails(ctx context.Context, id string) (broker.Card, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpGetCard); err != nil {
		return broker.Card{}, err
	}
	c, ok := b.cards[id]
	if !ok {
		return broker.Card{}, broker.NewError(broker.CodeInternal, "card %s not linked", id)
	}
	return c, nil
}

func (b *Broker) GetLinkedBank(ctx context.Context, id string) (broker.LinkedBank, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpGetLinkedBank); err != nil {
		return broker.LinkedBank{}, err
	}
	bank, ok := b.banks[id]
	if !ok {
		return broker.LinkedBank{}, broker.NewError(broker.CodeInternal, "bank %s not linked", id)
	}
	return bank, nil
}

// SetLimits sets the platform limits returned for a payment method type.
func (b *Broker) SetLimits(method order.PaymentMethodType, l order.Limits) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[method] = l
}

func (b *Broker) BuyLimits(ctx context.Context, pair broker.Pair, method order.PaymentMethodType) (order.Limits, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpBuyLimits); err != nil {
		return order.Limits{}, err
	}
	if l, ok := b.limits[method]; ok {
		return l, nil
	}
	return order.Limits{Min: order.Zero(pair.Fiat), Unbounded: true}, nil
}
