package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/buyflow/internal/order"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testState returns a resumable state with every persisted field set.
func testState() order.State {
	return order.State{
		ID:            "order-1",
		FiatCurrency:  "USD",
		Amount:        order.MustMoney("USD", "100"),
		SelectedAsset: "BTC",
		Lifecycle:     order.LifecyclePendingConfirmation,
		SelectedPaymentMethod: &order.PaymentMethodRef{
			ID:         "card-1",
			Type:       order.PaymentMethodCard,
			Label:      "Visa 4242",
			IsEligible: true,
		},
		RecurringBuyFrequency: order.FrequencyWeekly,
		IsLoading:             true,
		AuthorisationURL:      "https://bank.example/a",
	}
}
