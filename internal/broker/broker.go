// Package broker declares the remote collaborators the buy engine consumes:
// the custodial broker, the KYC service, the card/bank instrument service
// and the limits service. Only their request/response contracts live here.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/buyflow/internal/order"
)

// Pair is a crypto asset priced in a fiat currency.
type Pair struct {
	Asset order.AssetID
	Fiat  string
}

func (p Pair) String() string { return string(p.Asset) + "-" + p.Fiat }

// QuoteRequest asks the broker to price an amount.
type QuoteRequest struct {
	Pair              Pair
	Amount            order.Money
	PaymentMethodType order.PaymentMethodType
	PaymentMethodID   string
}

// OrderRequest places an order against a quote.
type OrderRequest struct {
	QuoteID         string
	Pair            Pair
	Amount          order.Money
	PaymentMethodID string
	Period          order.RecurringBuyFrequency
}

// Order is the broker's authoritative view of a purchase.
type Order struct {
	ID                string
	Pair              Pair
	Amount            order.Money
	CryptoAmount      decimal.Decimal
	Lifecycle         order.Lifecycle
	PaymentMethodID   string
	PaymentMethodType order.PaymentMethodType
	QuoteID           string
	RecurringBuyID    string
	AuthorisationURL  string
	ApprovalError     ApprovalError
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// ConfirmAttributes carries payment-specific confirmation parameters.
type ConfirmAttributes struct {
	RedirectURL string
	// PaymentMethodID is the concrete bank id for bank-rail confirmations.
	PaymentMethodID string
}

// RecurringBuyRequest creates a standing instruction for a purchase.
type RecurringBuyRequest struct {
	OrderID           string
	Pair              Pair
	Amount            order.Money
	PaymentMethodID   string
	PaymentMethodType order.PaymentMethodType
	Frequency         order.RecurringBuyFrequency
}

// RecurringBuy is a created standing instruction.
type RecurringBuy struct {
	ID        string
	Frequency order.RecurringBuyFrequency
	State     order.RecurringBuyState
}

// Broker is the custodial broker.
type Broker interface {
	CreateQuote(ctx context.Context, req QuoteRequest) (order.Quote, error)
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	CancelOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOutstandingOrders(ctx context.Context) ([]Order, error)
	ConfirmOrder(ctx context.Context, id, paymentMethodID string, attrs ConfirmAttributes) (Order, error)
	CreateRecurringBuy(ctx context.Context, req RecurringBuyRequest) (RecurringBuy, error)
}

// TierLevel is the user's KYC verification level.
type TierLevel int

const (
	TierBronze TierLevel = iota
	TierSilver
	TierGold
)

func (l TierLevel) String() string {
	switch l {
	case TierSilver:
		return "SILVER"
	case TierGold:
		return "GOLD"
	default:
		return "BRONZE"
	}
}

// TierState is the review status of the highest tier applied for.
type TierState string

const (
	TierStateNone        TierState = "NONE"
	TierStatePending     TierState = "PENDING"
	TierStateUnderReview TierState = "UNDER_REVIEW"
	TierStateRejected    TierState = "REJECTED"
	TierStateVerified    TierState = "VERIFIED"
)

// Tier is the user's verified level and the state of any pending review.
type Tier struct {
	Level TierLevel
	State TierState
}

// IsGold reports whether the user is verified at the highest tier.
func (t Tier) IsGold() bool {
	return t.Level == TierGold && t.State == TierStateVerified
}

// KYC is the identity verification service.
type KYC interface {
	CurrentTier(ctx context.Context) (Tier, error)
	IsEligibleForBuy(ctx context.Context, forceRefresh bool) (bool, error)
}

// CardStatus is the state of a linked card.
type CardStatus string

const (
	CardActive  CardStatus = "ACTIVE"
	CardBlocked CardStatus = "BLOCKED"
	CardExpired CardStatus = "EXPIRED"
	CardPending CardStatus = "PENDING"
)

// Card is a linked payment card.
type Card struct {
	ID      string
	Label   string
	Partner string
	Status  CardStatus
}

// BankState is the state of a linked bank account.
type BankState string

const (
	BankPending BankState = "PENDING"
	BankActive  BankState = "ACTIVE"
	BankBlocked BankState = "BLOCKED"
)

// LinkedBank is a linked bank account.
type LinkedBank struct {
	ID        string
	Name      string
	Account   string
	Partner   string
	State     BankState
	ErrorCode BankLinkError
}

// Label renders the bank as shown in payment method lists.
func (b LinkedBank) Label() string {
	if b.Account == "" {
		return b.Name
	}
	return b.Name + " " + b.Account
}

// Instruments is the card and bank instrument service.
type Instruments interface {
	GetCardDetails(ctx context.Context, id string) (Card, error)
	GetLinkedBank(ctx context.Context, id string) (LinkedBank, error)
}

// Limits is the platform buy-limits service.
type Limits interface {
	BuyLimits(ctx context.Context, pair Pair, method order.PaymentMethodType) (order.Limits, error)
}
