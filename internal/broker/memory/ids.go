package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints ids for orders, quotes and recurring buys.
type IDGenerator interface {
	Generate(kind string) string
}

// UUIDv7Generator generates time-sortable ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. kind is ignored.
func (UUIDv7Generator) Generate(string) string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialGenerator returns "<kind>-<n>" with a counter per kind, so the
// same scenario always produces the same ids.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequentialGenerator creates a generator whose counters start at 1.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{counters: make(map[string]int)}
}

func (g *SequentialGenerator) Generate(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[kind]++
	return fmt.Sprintf("%s-%d", kind, g.counters[kind])
}
