package effects

import (
	"context"
	"errors"
	"net"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/order"
)

// ErrInvariant marks a caller-contract violation, such as confirming an
// order that has no id. These are bugs, not user-facing conditions.
var ErrInvariant = errors.New("programmer invariant violated")

var codeKinds = map[broker.ErrorCode]order.BuyErrorKind{
	broker.CodeDailyLimitExceeded:        order.BuyErrorDailyLimitExceeded,
	broker.CodeWeeklyLimitExceeded:       order.BuyErrorWeeklyLimitExceeded,
	broker.CodeAnnualLimitExceeded:       order.BuyErrorYearlyLimitExceeded,
	broker.CodePendingOrdersLimitReached: order.BuyErrorExistingPendingOrder,
	broker.CodeInsufficientCardFunds:     order.BuyErrorInsufficientCardFunds,
	broker.CodeCardBankDeclined:          order.BuyErrorCardBankDeclined,
	broker.CodeCardDuplicate:             order.BuyErrorCardDuplicated,
	broker.CodeCardBlockchainDecline:     order.BuyErrorCardBlockchainDeclined,
	broker.CodeCardAcquirerDecline:       order.BuyErrorCardAcquirerDeclined,
	broker.CodeCardPaymentNotSupported:   order.BuyErrorCardPaymentNotSupported,
	broker.CodeCardCreateFailed:          order.BuyErrorCardCreateFailed,
	broker.CodeCardPaymentFailed:         order.BuyErrorCardPaymentFailed,
	broker.CodeCardCreateAbandoned:       order.BuyErrorCardCreateAbandoned,
	broker.CodeCardCreateExpired:         order.BuyErrorCardCreateExpired,
	broker.CodeCardCreateBankDeclined:    order.BuyErrorCardCreateBankDeclined,
	broker.CodeCardCreateDebitOnly:       order.BuyErrorCardCreateDebitOnly,
	broker.CodeCardPaymentDebitOnly:      order.BuyErrorCardPaymentDebitOnly,
	broker.CodeCardCreateNoToken:         order.BuyErrorCardNoToken,
}

// KindForError maps a collaborator failure to the buy error shown to the
// user. Unmapped broker codes and unknown errors become BuyErrorGeneric.
func KindForError(err error) order.BuyErrorKind {
	if code, ok := broker.CodeOf(err); ok {
		if kind, ok := codeKinds[code]; ok {
			return kind
		}
		return order.BuyErrorGeneric
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return order.BuyErrorInternetConnection
	}
	return order.BuyErrorGeneric
}

var approvalKinds = map[broker.ApprovalError]order.BuyErrorKind{
	broker.ApprovalInvalid:           order.BuyErrorApprovedBankInvalid,
	broker.ApprovalFailed:            order.BuyErrorApprovedBankFailed,
	broker.ApprovalDeclined:          order.BuyErrorApprovedBankDeclined,
	broker.ApprovalRejected:          order.BuyErrorApprovedBankRejected,
	broker.ApprovalExpired:           order.BuyErrorApprovedBankExpired,
	broker.ApprovalLimitedExceed:     order.BuyErrorApprovedBankLimitedExceed,
	broker.ApprovalAccountInvalid:    order.BuyErrorApprovedBankAccountInvalid,
	broker.ApprovalFailedInternal:    order.BuyErrorApprovedBankFailedInternal,
	broker.ApprovalInsufficientFunds: order.BuyErrorApprovedBankInsufficientFunds,
	broker.ApprovalCardPaymentFailed: order.BuyErrorCardPaymentFailed,
	broker.ApprovalCardAcquirer:      order.BuyErrorCardAcquirerDeclined,
	broker.ApprovalUndefined:         order.BuyErrorApprovedBankUndefined,
}

// KindForApproval maps the approval error of a failed settlement. A failure
// without an approval code is a plain payment failure.
func KindForApproval(a broker.ApprovalError) order.BuyErrorKind {
	if a == broker.ApprovalNone {
		return order.BuyErrorPaymentFailed
	}
	if kind, ok := approvalKinds[a]; ok {
		return kind
	}
	return order.BuyErrorApprovedBankUndefined
}

// KindForBankLink maps the error of a blocked bank link.
func KindForBankLink(e broker.BankLinkError) order.BuyErrorKind {
	switch e {
	case broker.BankLinkAlreadyLinked:
		return order.BuyErrorLinkedBankAlreadyLinked
	case broker.BankLinkNamesMismatched:
		return order.BuyErrorLinkedBankNamesMismatch
	case broker.BankLinkAccountTypeUnsupported:
		return order.BuyErrorLinkedBankNotSupported
	case broker.BankLinkRejected:
		return order.BuyErrorLinkedBankRejected
	case broker.BankLinkExpired:
		return order.BuyErrorLinkedBankExpired
	default:
		return order.BuyErrorLinkedBankFailure
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
