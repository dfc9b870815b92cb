package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{"bare", &RuntimeError{Code: ErrCodeQueueClosed, Message: "engine stopped"}, "QUEUE_CLOSED: engine stopped"},
		{"flow", &RuntimeError{Code: ErrCodeQueueClosed, Message: "engine stopped", FlowID: "f"}, "QUEUE_CLOSED: engine stopped (flow=f)"},
		{"flow and intent", NewInvariantError("f", "AmountUpdated", "bad"), "INVARIANT_VIOLATION: bad (flow=f, intent=AmountUpdated)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsXError_Wrapped(t *testing.T) {
	inv := fmt.Errorf("apply: %w", NewInvariantError("f", "X", "bad"))
	closed := fmt.Errorf("submit: %w", NewQueueClosedError("f", "X"))

	assert.True(t, IsInvariantError(inv))
	assert.False(t, IsQueueClosedError(inv))
	assert.True(t, IsQueueClosedError(closed))
	assert.False(t, IsInvariantError(closed))
	assert.False(t, IsInvariantError(errors.New("plain")))
}
