package broker

import (
	"errors"
	"fmt"
)

// ErrorCode is a broker error code.
type ErrorCode string

const (
	CodeDailyLimitExceeded        ErrorCode = "DAILY_LIMIT_EXCEEDED"
	CodeWeeklyLimitExceeded       ErrorCode = "WEEKLY_LIMIT_EXCEEDED"
	CodeAnnualLimitExceeded       ErrorCode = "ANNUAL_LIMIT_EXCEEDED"
	CodePendingOrdersLimitReached ErrorCode = "PENDING_ORDERS_LIMIT_REACHED"
	CodeInsufficientCardFunds     ErrorCode = "INSUFFICIENT_CARD_FUNDS"
	CodeCardBankDeclined          ErrorCode = "CARD_BANK_DECLINED"
	CodeCardDuplicate             ErrorCode = "CARD_DUPLICATE"
	CodeCardBlockchainDecline     ErrorCode = "CARD_BLOCKCHAIN_DECLINE"
	CodeCardAcquirerDecline       ErrorCode = "CARD_ACQUIRER_DECLINE"
	CodeCardPaymentNotSupported   ErrorCode = "CARD_PAYMENT_NOT_SUPPORTED"
	CodeCardCreateFailed          ErrorCode = "CARD_CREATE_FAILED"
	CodeCardPaymentFailed         ErrorCode = "CARD_PAYMENT_FAILED"
	CodeCardCreateAbandoned       ErrorCode = "CARD_CREATE_ABANDONED"
	CodeCardCreateExpired         ErrorCode = "CARD_CREATE_EXPIRED"
	CodeCardCreateBankDeclined    ErrorCode = "CARD_CREATE_BANK_DECLINED"
	CodeCardCreateDebitOnly       ErrorCode = "CARD_CREATE_DEBIT_ONLY"
	CodeCardPaymentDebitOnly      ErrorCode = "CARD_PAYMENT_DEBIT_ONLY"
	CodeCardCreateNoToken         ErrorCode = "CARD_CREATE_NO_TOKEN"
	CodeOrderNotFound             ErrorCode = "ORDER_NOT_FOUND"
	CodeOrderNotCancellable       ErrorCode = "ORDER_NOT_CANCELLABLE"
	CodeQuoteExpired              ErrorCode = "QUOTE_EXPIRED"
	CodeInternal                  ErrorCode = "INTERNAL_SERVER_ERROR"
)

// Error is a failure reported by a remote collaborator.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the broker code carried by err, if any.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) (ErrorCode, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Code, true
	}
	return "", false
}

// IsNotFound reports whether err means the requested order does not exist.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeOrderNotFound
}

// ApprovalError is why a bank or card settlement was not approved.
type ApprovalError string

const (
	ApprovalNone              ApprovalError = ""
	ApprovalInvalid           ApprovalError = "INVALID"
	ApprovalFailed            ApprovalError = "FAILED"
	ApprovalDeclined          ApprovalError = "DECLINED"
	ApprovalRejected          ApprovalError = "REJECTED"
	ApprovalExpired           ApprovalError = "EXPIRED"
	ApprovalLimitedExceed     ApprovalError = "LIMITED_EXCEED"
	ApprovalAccountInvalid    ApprovalError = "ACCOUNT_INVALID"
	ApprovalFailedInternal    ApprovalError = "FAILED_INTERNAL"
	ApprovalInsufficientFunds ApprovalError = "INSUFFICIENT_FUNDS"
	ApprovalCardPaymentFailed ApprovalError = "CARD_PAYMENT_FAILED"
	ApprovalCardAcquirer      ApprovalError = "CARD_ACQUIRER_DECLINE"
	ApprovalUndefined         ApprovalError = "UNDEFINED"
)

// BankLinkError is why linking a bank account did not complete.
type BankLinkError string

const (
	BankLinkNone                   BankLinkError = ""
	BankLinkAlreadyLinked          BankLinkError = "ALREADY_LINKED"
	BankLinkNamesMismatched        BankLinkError = "NAMES_MISMATCHED"
	BankLinkAccountTypeUnsupported BankLinkError = "ACCOUNT_TYPE_UNSUPPORTED"
	BankLinkRejected               BankLinkError = "REJECTED"
	BankLinkExpired                BankLinkError = "EXPIRED"
	BankLinkFailure                BankLinkError = "FAILURE"
)
