package order

// SelectedPaymentMethodOption returns the offered option matching the
// selected payment method.
func SelectedPaymentMethodOption(s State) (PaymentMethod, bool) {
	if s.SelectedPaymentMethod == nil {
		return PaymentMethod{}, false
	}
	for _, pm := range s.PaymentOptions {
		if pm.Ref.ID == s.SelectedPaymentMethod.ID && pm.Ref.Type == s.SelectedPaymentMethod.Type {
			return pm, true
		}
	}
	return PaymentMethod{}, false
}

// SelectedPaymentMethodLimits returns the limits of the selected payment
// method, or unbounded limits in the order's currency when none is known.
func SelectedPaymentMethodLimits(s State) Limits {
	if pm, ok := SelectedPaymentMethodOption(s); ok {
		return pm.Limits
	}
	return Limits{Min: Zero(s.FiatCurrency), Unbounded: true}
}

// CombinedMax returns the lower of the platform and payment method maximum.
// The second result is false when neither bounds the amount.
func CombinedMax(s State) (Money, bool) {
	pm := SelectedPaymentMethodLimits(s)
	if s.BuyLimits == nil || s.BuyLimits.Unbounded {
		if pm.Unbounded {
			return Money{}, false
		}
		return pm.Max, true
	}
	if pm.Unbounded || s.BuyLimits.Max.LessThan(pm.Max) {
		return s.BuyLimits.Max, true
	}
	return pm.Max, true
}

// CombinedMin returns the higher of the platform and payment method minimum.
func CombinedMin(s State) Money {
	pm := SelectedPaymentMethodLimits(s)
	if s.BuyLimits == nil || pm.Min.GreaterThan(s.BuyLimits.Min) {
		return pm.Min
	}
	return s.BuyLimits.Min
}
