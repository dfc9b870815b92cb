package engine

import (
	"sync"

	"github.com/google/uuid"
)

// FlowIDGenerator names one run of the buy flow. The id keys the flow's
// rows in the transition log.
type FlowIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 flow ids, so recorded
// flows list in the order they started.
type UUIDv7Generator struct{}

// Generate panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined flow ids, for golden traces.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. It panics once every id has been used,
// which catches a test that starts more flows than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
