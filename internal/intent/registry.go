package intent

// All returns one zero-valued instance of every intent variant, in a
// stable order.
func All() []Intent {
	return []Intent{
		AmountUpdated{},
		InitialiseSelectedAssetAndFiat{},
		FlowScreenUpdated{},
		SelectedPaymentMethodUpdated{},
		PaymentMethodsUpdated{},
		ClearAnySelectedPaymentMethods{},
		BuyLimitsUpdated{},
		RecurringBuyFrequencyUpdated{},
		ValidationStateUpdated{},
		KycStateUpdated{},
		AuthorisationURLUpdated{},
		BankLinkStarted{},
		BankLinkCompleted{},
		RecurringBuyCreated{},
		NavigationHandled{},
		UnlockHigherLimits{},
		ValidateAmount{},
		FetchBuyLimits{},
		FetchKycState{},
		BuyButtonClicked{},
		CancelOrderIfAnyAndCreatePendingOne{},
		StopQuotesUpdate{},
		ConfirmOrder{},
		MakePayment{},
		FetchAuthorisationURL{},
		CheckOrderStatus{},
		CheckBankLinkStatus{},
		CreateRecurringBuy{},
		CancelOrder{},
		OrderCreated{},
		OrderConfirmed{},
		OrderCanceled{},
		PaymentSucceeded{},
		PaymentPending{},
		ErrorIntent{},
		ClearError{},
		ClearState{},
	}
}

// Names returns the name of every intent variant.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, in := range all {
		names[i] = in.Name()
	}
	return names
}
