// Package memory is an in-process implementation of every broker
// collaborator. It backs the CLI simulator and the package tests, and
// supports fault injection and manual settlement.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/clock"
	"github.com/roach88/buyflow/internal/order"
)

// Op names a collaborator call for fault injection and call counting.
type Op string

const (
	OpCreateQuote        Op = "createQuote"
	OpCreateOrder        Op = "createOrder"
	OpCancelOrder        Op = "cancelOrder"
	OpGetOrder           Op = "getOrder"
	OpListOutstanding    Op = "listOutstandingOrders"
	OpConfirmOrder       Op = "confirmOrder"
	OpCreateRecurringBuy Op = "createRecurringBuy"
	OpCurrentTier        Op = "currentTier"
	OpIsEligible         Op = "isEligibleForBuy"
	OpGetCard            Op = "getCardDetails"
	OpGetLinkedBank      Op = "getLinkedBank"
	OpBuyLimits          Op = "buyLimits"
)

// DefaultQuoteTTL is how long quotes live unless overridden.
const DefaultQuoteTTL = 30 * time.Second

// Broker is an in-memory broker, KYC, instrument and limits service.
//
// Thread-safety: Broker is safe for concurrent use.
type Broker struct {
	mu sync.Mutex

	clock        clock.Clock
	ids          IDGenerator
	quoteTTL     time.Duration
	prices       map[order.AssetID]decimal.Decimal
	feeRate      decimal.Decimal
	pendingLimit int
	confirmTo    order.Lifecycle
	settleAfter  int
	settleTo     order.Lifecycle
	approval     broker.ApprovalError
	authURL      string

	orders   map[string]*storedOrder
	sequence []string
	quotes   map[string]order.Quote

	tier     broker.Tier
	eligible bool
	cards    map[string]broker.Card
	banks    map[string]broker.LinkedBank
	limits   map[order.PaymentMethodType]order.Limits

	failures map[Op][]error
	calls    map[Op]int
}

type storedOrder struct {
	broker.Order
	polls int
}

// Option configures a Broker.
type Option func(*Broker)

// WithClock sets the time source for quote expiry.
func WithClock(c clock.Clock) Option {
	return func(b *Broker) { b.clock = c }
}

// WithIDs sets the id generator.
func WithIDs(g IDGenerator) Option {
	return func(b *Broker) { b.ids = g }
}

// WithQuoteTTL sets the lifetime of created quotes.
func WithQuoteTTL(d time.Duration) Option {
	return func(b *Broker) { b.quoteTTL = d }
}

// WithPrice sets the fiat price of one unit of asset.
func WithPrice(asset order.AssetID, price decimal.Decimal) Option {
	return func(b *Broker) { b.prices[asset] = price }
}

// WithPendingLimit rejects order creation once n live orders exist.
// Zero means unlimited.
func WithPendingLimit(n int) Option {
	return func(b *Broker) { b.pendingLimit = n }
}

// WithSettlement makes GetOrder move a confirmed order to lifecycle after
// it has been fetched polls times.
func WithSettlement(polls int, lifecycle order.Lifecycle, approval broker.ApprovalError) Option {
	return func(b *Broker) {
		b.settleAfter = polls
		b.settleTo = lifecycle
		b.approval = approval
	}
}

// WithAuthorisationURL attaches url to bank-transfer orders on confirmation.
func WithAuthorisationURL(url string) Option {
	return func(b *Broker) { b.authURL = url }
}

// New creates a Broker with a gold, eligible user and no linked instruments.
func New(opts ...Option) *Broker {
	b := &Broker{
		clock:       clock.Real{},
		ids:         UUIDv7Generator{},
		quoteTTL:    DefaultQuoteTTL,
		prices:      map[order.AssetID]decimal.Decimal{"BTC": decimal.NewFromInt(50000), "ETH": decimal.NewFromInt(2500)},
		feeRate:     decimal.RequireFromString("0.01"),
		confirmTo:   order.LifecyclePendingExecution,
		settleAfter: 1,
		settleTo:    order.LifecycleFinished,
		orders:      make(map[string]*storedOrder),
		quotes:      make(map[string]order.Quote),
		tier:        broker.Tier{Level: broker.TierGold, State: broker.TierStateVerified},
		eligible:    true,
		cards:       make(map[string]broker.Card),
		banks:       make(map[string]broker.LinkedBank),
		limits:      make(map[order.PaymentMethodType]order.Limits),
		failures:    make(map[Op][]error),
		calls:       make(map[Op]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	_ broker.Broker      = (*Broker)(nil)
	_ broker.KYC         = (*Broker)(nil)
	_ broker.Instruments = (*Broker)(nil)
	_ broker.Limits      = (*Broker)(nil)
)

// FailNext queues err to be returned by the next call to op.
func (b *Broker) FailNext(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

// Calls returns how many times op has been invoked.
func (b *Broker) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// enter records a call and pops any injected failure. Callers hold b.mu.
func (b *Broker) enter(ctx context.Context, op Op) error {
	b.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if q := b.failures[op]; len(q) > 0 {
		b.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

// Seed stores o as if the broker had created it.
func (b *Broker) Seed(o broker.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[o.ID]; !ok {
		b.sequence = append(b.sequence, o.ID)
	}
	b.orders[o.ID] = &storedOrder{Order: o}
}

// SetOrderLifecycle moves an order to l, for tests simulating server-side
// progress.
func (b *Broker) SetOrderLifecycle(id string, l order.Lifecycle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return broker.NewError(broker.CodeOrderNotFound, "order %s", id)
	}
	o.Lifecycle = l
	return nil
}

// Orders returns every order in creation order.
func (b *Broker) Orders() []broker.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.Order, 0, len(b.sequence))
	for _, id := range b.sequence {
		out = append(out, b.orders[id].Order)
	}
	return out
}

// LiveOrders returns orders that are not terminal.
func (b *Broker) LiveOrders() []broker.Order {
	var live []broker.Order
	for _, o := range b.Orders() {
		if !o.Lifecycle.IsTerminal() {
			live = append(live, o)
		}
	}
	return live
}

func (b *Broker) CreateQuote(ctx context.Context, req broker.QuoteRequest) (order.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpCreateQuote); err != nil {
		return order.Quote{}, err
	}

	price, ok := b.prices[req.Pair.Asset]
	if !ok {
		return order.Quote{}, errors.Errorf("no price for %s", req.Pair)
	}
	if !req.Amount.IsPositive() {
		return order.Quote{}, errors.Errorf("quote amount must be positive, got %s", req.Amount)
	}

	now := b.clock.Now()
	fee := req.Amount.Amount.Mul(b.feeRate).Round(2)
	q := order.Quote{
		ID:           b.ids.Generate("quote"),
		FiatAmount:   req.Amount,
		CryptoAmount: req.Amount.Amount.Sub(fee).DivRound(price, 8),
		Price:        order.Money{Currency: req.Amount.Currency, Amount: price},
		Fee:          order.Money{Currency: req.Amount.Currency, Amount: fee},
		ExpiresAt:    now.Add(b.quoteTTL),
	}
	b.quotes[q.ID] = q
	return q, nil
}

func (b *Broker) CreateOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpCreateOrder); err != nil {
		return broker.Order{}, err
	}

	q, ok := b.quotes[req.QuoteID]
	if !ok {
		return broker.Order{}, broker.NewError(broker.CodeQuoteExpired, "unknown quote %s", req.QuoteID)
	}
	now := b.clock.Now()
	if now.After(q.ExpiresAt) {
		return broker.Order{}, broker.NewError(broker.CodeQuoteExpired, "quote %s expired", req.QuoteID)
	}
	if b.pendingLimit > 0 && b.liveCountLocked() >= b.pendingLimit {
		return broker.Order{}, broker.NewError(broker.CodePendingOrdersLimitReached, "%d live orders", b.pendingLimit)
	}

	o := broker.Order{
		ID:              b.ids.Generate("order"),
		Pair:            req.Pair,
		Amount:          req.Amount,
		CryptoAmount:    q.CryptoAmount,
		Lifecycle:       order.LifecyclePendingConfirmation,
		PaymentMethodID: req.PaymentMethodID,
		QuoteID:         q.ID,
		CreatedAt:       now,
		ExpiresAt:       q.ExpiresAt,
	}
	b.orders[o.ID] = &storedOrder{Order: o}
	b.sequence = append(b.sequence, o.ID)
	return o, nil
}

func (b *Broker) liveCountLocked() int {
	n := 0
	for _, o := range b.orders {
		if !o.Lifecycle.IsTerminal() {
			n++
		}
	}
	return n
}

func (b *Broker) CancelOrder(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpCancelOrder); err != nil {
		return err
	}

	o, ok := b.orders[id]
	if !ok {
		return broker.NewError(broker.CodeOrderNotFound, "order %s", id)
	}
	switch o.Lifecycle {
	case order.LifecycleCanceled:
		return nil
	case order.LifecycleInitialised, order.LifecyclePendingConfirmation, order.LifecycleAwaitingFunds:
		o.Lifecycle = order.LifecycleCanceled
		return nil
	default:
		return broker.NewError(broker.CodeOrderNotCancellable, "order %s is %s", id, o.Lifecycle)
	}
}

func (b *Broker) GetOrder(ctx context.Context, id string) (broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpGetOrder); err != nil {
		return broker.Order{}, err
	}

	o, ok := b.orders[id]
	if !ok {
		return broker.Order{}, broker.NewError(broker.CodeOrderNotFound, "order %s", id)
	}
	if o.Lifecycle == order.LifecyclePendingExecution && b.settleAfter > 0 {
		o.polls++
		if o.polls >= b.settleAfter {
			o.Lifecycle = b.settleTo
			if b.settleTo == order.LifecycleFailed {
				o.ApprovalError = b.approval
			}
		}
	}
	return o.Order, nil
}

func (b *Broker) ListOutstandingOrders(ctx context.Context) ([]broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpListOutstanding); err != nil {
		return nil, err
	}

	var out []broker.Order
	for _, id := range b.sequence {
		if o := b.orders[id]; o.Lifecycle.IsPending() {
			out = append(out, o.Order)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (b *Broker) ConfirmOrder(ctx context.Context, id, paymentMethodID string, attrs broker.ConfirmAttributes) (broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpConfirmOrder); err != nil {
		return broker.Order{}, err
	}

	o, ok := b.orders[id]
	if !ok {
		return broker.Order{}, broker.NewError(broker.CodeOrderNotFound, "order %s", id)
	}
	if o.Lifecycle != order.LifecyclePendingConfirmation {
		return broker.Order{}, broker.NewError(broker.CodeInternal, "order %s is %s, not awaiting confirmation", id, o.Lifecycle)
	}
	if paymentMethodID != "" {
		o.PaymentMethodID = paymentMethodID
	}
	if attrs.PaymentMethodID != "" {
		o.PaymentMethodType = order.PaymentMethodBankTransfer
		o.AuthorisationURL = b.authURL
	}
	o.Lifecycle = b.confirmTo
	return o.Order, nil
}

func (b *Broker) CreateRecurringBuy(ctx context.Context, req broker.RecurringBuyRequest) (broker.RecurringBuy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter(ctx, OpCreateRecurringBuy); err != nil {
		return broker.RecurringBuy{}, err
	}
	if !req.Frequency.IsRecurring() {
		return broker.RecurringBuy{}, errors.Errorf("frequency %q does not recur", req.Frequency)
	}

	rb := broker.RecurringBuy{
		ID:        b.ids.Generate("recurring"),
		Frequency: req.Frequency,
		State:     order.RecurringBuyActive,
	}
	if o, ok := b.orders[req.OrderID]; ok {
		o.RecurringBuyID = rb.ID
	}
	return rb, nil
}
