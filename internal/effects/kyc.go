package effects

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/broker"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/poll"
)

// kycState derives the flow's view of verification from the user's tier and
// buy eligibility.
func (r *Runner) kycState(ctx context.Context) (order.KycState, error) {
	tier, err := r.collab.KYC.CurrentTier(ctx)
	if err != nil {
		return order.KycUnknown, err
	}
	if tier.IsGold() {
		eligible, err := r.collab.KYC.IsEligibleForBuy(ctx, true)
		if err != nil {
			return order.KycUnknown, err
		}
		if eligible {
			return order.KycVerifiedAndEligible, nil
		}
		return order.KycVerifiedButNotEligible, nil
	}
	switch tier.State {
	case broker.TierStateRejected:
		return order.KycFailed, nil
	case broker.TierStateUnderReview:
		return order.KycInReview, nil
	default:
		return order.KycPending, nil
	}
}

func (r *Runner) pollKyc(ctx context.Context, d Dispatcher) {
	res, err := poll.Until(ctx, r.poller, "kyc", r.short, r.kycState, order.KycState.IsDecided)
	if err != nil {
		r.fail(ctx, d, intent.FetchKycState{}, err)
		return
	}
	switch res.Outcome {
	case poll.OutcomeFinal:
		d.Dispatch(intent.KycStateUpdated{State: res.Value})
	case poll.OutcomeTimeout:
		d.Dispatch(intent.KycStateUpdated{State: order.KycUndecided})
	}
}

// buyLimits fetches the platform limits for the state's pair and payment
// method. Below silver the platform imposes no maximum of its own.
func (r *Runner) buyLimits(ctx context.Context, s order.State) (order.Limits, error) {
	method := order.PaymentMethodFunds
	if s.SelectedPaymentMethod != nil {
		method = s.SelectedPaymentMethod.Type
	}
	limits, err := r.collab.Limits.BuyLimits(ctx, broker.Pair{Asset: s.SelectedAsset, Fiat: s.FiatCurrency}, method)
	if err != nil {
		return order.Limits{}, err
	}
	tier, err := r.collab.KYC.CurrentTier(ctx)
	if err != nil {
		return order.Limits{}, err
	}
	if tier.Level == broker.TierBronze {
		return limits.WithoutMax(), nil
	}
	return limits, nil
}

// validate refreshes the platform limits when the pair is known and then
// checks the amount of s against every limit source.
func (r *Runner) validate(ctx context.Context, s order.State, d Dispatcher) {
	platform := order.Limits{Min: order.Zero(s.FiatCurrency), Unbounded: true}
	if s.BuyLimits != nil {
		platform = *s.BuyLimits
	}
	if s.SelectedAsset != "" && s.FiatCurrency != "" {
		l, err := r.buyLimits(ctx, s)
		if err != nil {
			r.fail(ctx, d, intent.ValidateAmount{}, err)
			return
		}
		platform = l
		d.Dispatch(intent.BuyLimitsUpdated{Limits: l})
	}

	var balance *order.Money
	if pm, ok := order.SelectedPaymentMethodOption(s); ok {
		balance = pm.AvailableBalance
	}

	isGold := func() bool {
		tier, err := r.collab.KYC.CurrentTier(ctx)
		if err != nil {
			r.log.Debug("tier lookup failed during validation", zap.Error(err))
			return false
		}
		return tier.IsGold()
	}

	result := ValidateAmount(s.Amount, balance, platform, order.SelectedPaymentMethodLimits(s), isGold)
	if ctx.Err() != nil {
		return
	}
	d.Dispatch(intent.ValidationStateUpdated{State: result})
}

func (r *Runner) pollBankLink(ctx context.Context, id string, d Dispatcher) {
	res, err := poll.Until(ctx, r.poller, "bank_link", r.long,
		func(ctx context.Context) (broker.LinkedBank, error) { return r.collab.Instruments.GetLinkedBank(ctx, id) },
		func(b broker.LinkedBank) bool { return b.State != broker.BankPending },
	)
	if err != nil {
		r.fail(ctx, d, intent.CheckBankLinkStatus{}, err)
		return
	}

	bank := res.Value
	switch res.Outcome {
	case poll.OutcomeFinal:
		if bank.State == broker.BankActive {
			d.Dispatch(intent.BankLinkCompleted{Method: order.PaymentMethodRef{
				ID:         bank.ID,
				Type:       order.PaymentMethodBankTransfer,
				Label:      bank.Label(),
				Partner:    bank.Partner,
				IsEligible: true,
			}})
			return
		}
		kind := KindForBankLink(bank.ErrorCode)
		r.log.Info("bank link blocked", zap.String("bank_id", id), zap.String("buy_error", string(kind)))
		d.Dispatch(intent.ErrorIntent{Kind: kind})
	case poll.OutcomeTimeout:
		d.Dispatch(intent.ErrorIntent{Kind: order.BuyErrorBankLinkingTimeout})
	}
}
