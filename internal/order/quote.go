package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a time-boxed price and fee commitment backing exactly one order.
type Quote struct {
	ID           string          `json:"id"`
	FiatAmount   Money           `json:"fiatAmount"`
	CryptoAmount decimal.Decimal `json:"cryptoAmount"`
	Price        Money           `json:"price"`
	Fee          Money           `json:"fee"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

// MillisToExpire returns the milliseconds left before expiry, floored at 0.
func (q Quote) MillisToExpire(now time.Time) int64 {
	return q.TTL(now).Milliseconds()
}

// TTL returns the time left before expiry, floored at 0.
func (q Quote) TTL(now time.Time) time.Duration {
	d := q.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
