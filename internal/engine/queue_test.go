package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/order"
)

func TestMailbox_FIFO(t *testing.T) {
	q := newMailbox()

	screens := []order.FlowScreen{order.ScreenEnterAmount, order.ScreenKyc, order.ScreenCheckout}
	for _, s := range screens {
		require.True(t, q.Enqueue(intent.FlowScreenUpdated{Screen: s}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range screens {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.(intent.FlowScreenUpdated).Screen)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty mailbox should return false")
}

func TestMailbox_SignalsOnEnqueue(t *testing.T) {
	q := newMailbox()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(intent.ValidateAmount{})
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	_, ok := q.TryDequeue()
	assert.True(t, ok)
}

func TestMailbox_Close(t *testing.T) {
	q := newMailbox()
	q.Enqueue(intent.ValidateAmount{})
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(intent.FetchBuyLimits{}), "closed mailbox rejects intents")

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed mailbox should wake waiters")
	}

	_, ok := q.TryDequeue()
	assert.True(t, ok, "queued intents survive close")
	assert.Zero(t, q.Len())
}

func TestMailbox_ResetsBackingArray(t *testing.T) {
	q := newMailbox()
	for i := 0; i < 10; i++ {
		q.Enqueue(intent.ValidateAmount{})
	}
	for i := 0; i < 10; i++ {
		q.TryDequeue()
	}
	assert.Zero(t, len(q.intents))
	assert.GreaterOrEqual(t, cap(q.intents), 10)
}
