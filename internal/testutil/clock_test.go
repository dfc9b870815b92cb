package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualClock_StartsFrozen(t *testing.T) {
	clock := NewManualClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestManualClock_FiresAtDeadline(t *testing.T) {
	clock := NewManualClock(epoch)
	ch := clock.After(30 * time.Second)

	clock.Advance(29 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case fired := <-ch:
		assert.Equal(t, epoch.Add(30*time.Second), fired)
	default:
		t.Fatal("timer did not fire at deadline")
	}
	assert.Equal(t, 0, clock.Waiters())
}

func TestManualClock_NonPositiveFiresImmediately(t *testing.T) {
	clock := NewManualClock(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("zero duration should fire immediately")
	}
}

func TestManualClock_BlockUntil(t *testing.T) {
	clock := NewManualClock(epoch)

	go func() {
		time.Sleep(10 * time.Millisecond)
		clock.After(time.Minute)
	}()

	require.True(t, clock.BlockUntil(1, time.Second))
	assert.False(t, clock.BlockUntil(2, 20*time.Millisecond))
}
