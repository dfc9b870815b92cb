package order

// ValidationError is a local, recoverable problem with the entered amount.
// The zero value means the amount is acceptable.
type ValidationError string

const (
	ValidationNone                       ValidationError = ""
	ValidationInsufficientFunds          ValidationError = "INSUFFICIENT_FUNDS"
	ValidationBelowMinLimit              ValidationError = "BELOW_MIN_LIMIT"
	ValidationOverGoldTierLimit          ValidationError = "OVER_GOLD_TIER_LIMIT"
	ValidationOverSilverTierLimit        ValidationError = "OVER_SILVER_TIER_LIMIT"
	ValidationAboveMaxPaymentMethodLimit ValidationError = "ABOVE_MAX_PAYMENT_METHOD_LIMIT"
	ValidationBelowMinPaymentMethodLimit ValidationError = "BELOW_MIN_PAYMENT_METHOD_LIMIT"
)

// BuyErrorKind is a terminal or remote error that ends the current order
// attempt. The zero value means no error.
type BuyErrorKind string

const (
	BuyErrorNone BuyErrorKind = ""

	BuyErrorGeneric              BuyErrorKind = "GENERIC"
	BuyErrorInternetConnection   BuyErrorKind = "INTERNET_CONNECTION"
	BuyErrorDailyLimitExceeded   BuyErrorKind = "DAILY_LIMIT_EXCEEDED"
	BuyErrorWeeklyLimitExceeded  BuyErrorKind = "WEEKLY_LIMIT_EXCEEDED"
	BuyErrorYearlyLimitExceeded  BuyErrorKind = "YEARLY_LIMIT_EXCEEDED"
	BuyErrorExistingPendingOrder BuyErrorKind = "EXISTING_PENDING_ORDER"
	BuyErrorPaymentFailed        BuyErrorKind = "PAYMENT_FAILED"

	BuyErrorInsufficientCardFunds   BuyErrorKind = "INSUFFICIENT_CARD_FUNDS"
	BuyErrorCardBankDeclined        BuyErrorKind = "CARD_BANK_DECLINED"
	BuyErrorCardDuplicated          BuyErrorKind = "CARD_DUPLICATED"
	BuyErrorCardBlockchainDeclined  BuyErrorKind = "CARD_BLOCKCHAIN_DECLINED"
	BuyErrorCardAcquirerDeclined    BuyErrorKind = "CARD_ACQUIRER_DECLINED"
	BuyErrorCardPaymentNotSupported BuyErrorKind = "CARD_PAYMENT_NOT_SUPPORTED"
	BuyErrorCardCreateFailed        BuyErrorKind = "CARD_CREATE_FAILED"
	BuyErrorCardPaymentFailed       BuyErrorKind = "CARD_PAYMENT_FAILED"
	BuyErrorCardCreateAbandoned     BuyErrorKind = "CARD_CREATE_ABANDONED"
	BuyErrorCardCreateExpired       BuyErrorKind = "CARD_CREATE_EXPIRED"
	BuyErrorCardCreateBankDeclined  BuyErrorKind = "CARD_CREATE_BANK_DECLINED"
	BuyErrorCardCreateDebitOnly     BuyErrorKind = "CARD_CREATE_DEBIT_ONLY"
	BuyErrorCardPaymentDebitOnly    BuyErrorKind = "CARD_PAYMENT_DEBIT_ONLY"
	BuyErrorCardNoToken             BuyErrorKind = "CARD_NO_TOKEN"

	BuyErrorApprovedBankInvalid           BuyErrorKind = "APPROVED_BANK_INVALID"
	BuyErrorApprovedBankFailed            BuyErrorKind = "APPROVED_BANK_FAILED"
	BuyErrorApprovedBankDeclined          BuyErrorKind = "APPROVED_BANK_DECLINED"
	BuyErrorApprovedBankRejected          BuyErrorKind = "APPROVED_BANK_REJECTED"
	BuyErrorApprovedBankExpired           BuyErrorKind = "APPROVED_BANK_EXPIRED"
	BuyErrorApprovedBankLimitedExceed     BuyErrorKind = "APPROVED_BANK_LIMITED_EXCEED"
	BuyErrorApprovedBankAccountInvalid    BuyErrorKind = "APPROVED_BANK_ACCOUNT_INVALID"
	BuyErrorApprovedBankFailedInternal    BuyErrorKind = "APPROVED_BANK_FAILED_INTERNAL"
	BuyErrorApprovedBankInsufficientFunds BuyErrorKind = "APPROVED_BANK_INSUFFICIENT_FUNDS"
	BuyErrorApprovedBankUndefined         BuyErrorKind = "APPROVED_BANK_UNDEFINED_ERROR"

	BuyErrorBankLinkingTimeout      BuyErrorKind = "BANK_LINKING_TIMEOUT"
	BuyErrorLinkedBankNotSupported  BuyErrorKind = "LINKED_BANK_NOT_SUPPORTED"
	BuyErrorLinkedBankAlreadyLinked BuyErrorKind = "LINKED_BANK_ALREADY_LINKED"
	BuyErrorLinkedBankNamesMismatch BuyErrorKind = "LINKED_BANK_NAMES_MISMATCHED"
	BuyErrorLinkedBankRejected      BuyErrorKind = "LINKED_BANK_REJECTED"
	BuyErrorLinkedBankExpired       BuyErrorKind = "LINKED_BANK_EXPIRED"
	BuyErrorLinkedBankFailure       BuyErrorKind = "LINKED_BANK_FAILURE"
)
