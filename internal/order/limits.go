package order

// Limits bounds a buy amount. A Limits with Unbounded set has no maximum.
type Limits struct {
	Min       Money `json:"min"`
	Max       Money `json:"max"`
	Unbounded bool  `json:"unbounded,omitempty"`
}

// IsAmountUnderMin reports whether amount is below the minimum.
func (l Limits) IsAmountUnderMin(amount Money) bool {
	return amount.LessThan(l.Min)
}

// IsAmountOverMax reports whether amount exceeds the maximum.
func (l Limits) IsAmountOverMax(amount Money) bool {
	if l.Unbounded {
		return false
	}
	return amount.GreaterThan(l.Max)
}

// WithoutMax returns l with the maximum removed.
func (l Limits) WithoutMax() Limits {
	l.Max = Money{}
	l.Unbounded = true
	return l
}
