package order

// KycState summarises the user's verification outcome as seen by the flow.
type KycState string

const (
	KycUnknown                KycState = ""
	KycPending                KycState = "PENDING"
	KycFailed                 KycState = "FAILED"
	KycInReview               KycState = "IN_REVIEW"
	KycUndecided              KycState = "UNDECIDED"
	KycVerifiedAndEligible    KycState = "VERIFIED_AND_ELIGIBLE"
	KycVerifiedButNotEligible KycState = "VERIFIED_BUT_NOT_ELIGIBLE"
)

// IsDecided reports whether polling for a KYC outcome can stop.
func (k KycState) IsDecided() bool {
	switch k {
	case KycFailed, KycInReview, KycVerifiedAndEligible, KycVerifiedButNotEligible:
		return true
	}
	return false
}

// RecurringBuyFrequency is how often a purchase repeats. The zero value
// behaves as a one-time buy.
type RecurringBuyFrequency string

const (
	FrequencyOneTime  RecurringBuyFrequency = "ONE_TIME"
	FrequencyDaily    RecurringBuyFrequency = "DAILY"
	FrequencyWeekly   RecurringBuyFrequency = "WEEKLY"
	FrequencyBiWeekly RecurringBuyFrequency = "BI_WEEKLY"
	FrequencyMonthly  RecurringBuyFrequency = "MONTHLY"
)

// IsRecurring reports whether f schedules repeated purchases.
func (f RecurringBuyFrequency) IsRecurring() bool {
	return f != "" && f != FrequencyOneTime
}

// RecurringBuyState tracks the standing instruction created for a purchase.
type RecurringBuyState string

const (
	RecurringBuyUninitialised RecurringBuyState = ""
	RecurringBuyActive        RecurringBuyState = "ACTIVE"
	RecurringBuyInactive      RecurringBuyState = "INACTIVE"
)
