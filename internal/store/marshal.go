package store

import (
	"github.com/pkg/errors"

	"github.com/roach88/buyflow/internal/order"
)

// marshalState projects s to its persisted fields and encodes it as JSON
// TEXT for storage.
func marshalState(s order.State) (string, error) {
	data, err := order.EncodeSnapshot(s)
	if err != nil {
		return "", errors.Wrap(err, "marshal state")
	}
	return string(data), nil
}

// unmarshalState decodes a stored snapshot. Any failure wraps
// order.ErrCorruptSnapshot.
func unmarshalState(data string) (order.State, error) {
	return order.DecodeSnapshot([]byte(data))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
