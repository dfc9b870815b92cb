package effects

import "github.com/roach88/buyflow/internal/order"

// ValidateAmount checks amount against the available balance, the platform
// limits and the payment method limits, reporting only the first violation
// in that order of precedence. isGold is consulted only when the platform
// maximum is exceeded.
//
// A balance in another currency cannot fund the amount and counts as
// insufficient. Limits in another currency belong to a previous fiat
// selection and are not applied; a fresh limits fetch revalidates.
func ValidateAmount(
	amount order.Money,
	balance *order.Money,
	platform order.Limits,
	method order.Limits,
	isGold func() bool,
) order.ValidationError {
	switch {
	case balance != nil && (balance.Currency != amount.Currency || balance.LessThan(amount)):
		return order.ValidationInsufficientFunds
	case platform.IsAmountUnderMin(amount):
		return order.ValidationBelowMinLimit
	case platform.IsAmountOverMax(amount):
		if isGold != nil && isGold() {
			return order.ValidationOverGoldTierLimit
		}
		return order.ValidationOverSilverTierLimit
	case method.IsAmountOverMax(amount):
		return order.ValidationAboveMaxPaymentMethodLimit
	case method.IsAmountUnderMin(amount):
		return order.ValidationBelowMinPaymentMethodLimit
	default:
		return order.ValidationNone
	}
}
