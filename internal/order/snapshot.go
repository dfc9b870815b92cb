package order

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotVersion is the current snapshot encoding version.
const SnapshotVersion = 1

// ErrCorruptSnapshot marks a persisted blob that cannot be turned back into
// a State. Callers treat it as "no snapshot".
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot is the persisted projection of a State. Transient fields are not
// part of it.
type Snapshot struct {
	Version               int                   `json:"version"`
	ID                    string                `json:"id,omitempty"`
	FiatCurrency          string                `json:"fiatCurrency,omitempty"`
	Amount                Money                 `json:"amount"`
	SelectedAsset         AssetID               `json:"selectedAsset,omitempty"`
	Lifecycle             Lifecycle             `json:"lifecycle"`
	SelectedPaymentMethod *PaymentMethodRef     `json:"selectedPaymentMethod,omitempty"`
	RecurringBuyFrequency RecurringBuyFrequency `json:"recurringBuyFrequency,omitempty"`
	RecurringBuyState     RecurringBuyState     `json:"recurringBuyState,omitempty"`
	RecurringBuyID        string                `json:"recurringBuyId,omitempty"`
}

// SnapshotOf projects the persistent fields of s.
func SnapshotOf(s State) Snapshot {
	var pm *PaymentMethodRef
	if s.SelectedPaymentMethod != nil {
		ref := *s.SelectedPaymentMethod
		pm = &ref
	}
	return Snapshot{
		Version:               SnapshotVersion,
		ID:                    s.ID,
		FiatCurrency:          s.FiatCurrency,
		Amount:                s.Amount,
		SelectedAsset:         s.SelectedAsset,
		Lifecycle:             s.Lifecycle,
		SelectedPaymentMethod: pm,
		RecurringBuyFrequency: s.RecurringBuyFrequency,
		RecurringBuyState:     s.RecurringBuyState,
		RecurringBuyID:        s.RecurringBuyID,
	}
}

// State rebuilds a State with all transient fields at their zero value.
func (sn Snapshot) State() State {
	return State{
		ID:                    sn.ID,
		FiatCurrency:          sn.FiatCurrency,
		Amount:                sn.Amount,
		SelectedAsset:         sn.SelectedAsset,
		Lifecycle:             sn.Lifecycle,
		SelectedPaymentMethod: sn.SelectedPaymentMethod,
		RecurringBuyFrequency: sn.RecurringBuyFrequency,
		RecurringBuyState:     sn.RecurringBuyState,
		RecurringBuyID:        sn.RecurringBuyID,
	}
}

// EncodeSnapshot serializes the persistent fields of s.
func EncodeSnapshot(s State) ([]byte, error) {
	b, err := json.Marshal(SnapshotOf(s))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses a blob written by EncodeSnapshot. Every failure wraps
// ErrCorruptSnapshot.
func DecodeSnapshot(b []byte) (State, error) {
	var sn Snapshot
	if err := json.Unmarshal(b, &sn); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if sn.Version != SnapshotVersion {
		return State{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, sn.Version)
	}
	return sn.State(), nil
}
