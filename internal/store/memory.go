package store

import (
	"context"
	"sync"

	"github.com/roach88/buyflow/internal/order"
)

// Memory is an in-process snapshot store. It encodes snapshots exactly as
// the durable backends do, so a round trip drops transient fields.
type Memory struct {
	mu   sync.Mutex
	body []byte
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (order.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.body == nil {
		return order.State{}, false, nil
	}
	st, err := order.DecodeSnapshot(m.body)
	if err != nil {
		m.body = nil
		return order.State{}, false, nil
	}
	return st, true, nil
}

func (m *Memory) Save(_ context.Context, st order.State) error {
	body, err := order.EncodeSnapshot(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = nil
	return nil
}

// Raw replaces the stored bytes, for tests that need a corrupt snapshot.
func (m *Memory) Raw(body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
}

func (m *Memory) Close() error { return nil }
