// Package poll waits for asynchronous server-side transitions by calling a
// producer on a fixed interval until a predicate holds or the attempt budget
// runs out.
//
// There is no backoff: attempts are spaced by a constant interval and the
// ceiling is hard. Exhausting it is the Timeout outcome, not an error.
package poll

import (
	"context"
	"time"

	"github.com/roach88/buyflow/internal/clock"
)

// Interval between attempts for the standard budgets.
const Interval = 5 * time.Second

const (
	RetriesShort   = 6
	RetriesDefault = 12
)

// Config bounds a poll.
type Config struct {
	Interval time.Duration
	Attempts int
}

// Short is used for fast state checks such as KYC and order status.
func Short() Config { return Config{Interval: Interval, Attempts: RetriesShort} }

// Long is used for bank-link completion.
func Long() Config { return Config{Interval: Interval, Attempts: RetriesDefault} }

// Outcome is how a poll ended.
type Outcome int

const (
	// OutcomeFinal means the predicate held for Value.
	OutcomeFinal Outcome = iota + 1
	// OutcomeTimeout means the attempts ran out; Value is the last one seen.
	OutcomeTimeout
	// OutcomeCancel means the caller cancelled the context.
	OutcomeCancel
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinal:
		return "final"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Result is the outcome of a poll together with the last observed value.
type Result[V any] struct {
	Outcome  Outcome
	Value    V
	Attempts int
}

// Done reports whether the predicate held.
func (r Result[V]) Done() bool { return r.Outcome == OutcomeFinal }

// Observer is notified once per finished poll.
type Observer func(name string, outcome Outcome, attempts int)

// Poller carries the clock and observer shared by every poll of a component.
// The zero Poller uses the system clock and observes nothing.
type Poller struct {
	Clock    clock.Clock
	Observer Observer
}

// Until calls fetch up to cfg.Attempts times, cfg.Interval apart, stopping
// as soon as done returns true. The first call is made immediately.
//
// A fetch error aborts the poll and is returned as is. Cancellation of ctx
// yields OutcomeCancel with a nil error.
func Until[V any](
	ctx context.Context,
	p *Poller,
	name string,
	cfg Config,
	fetch func(context.Context) (V, error),
	done func(V) bool,
) (Result[V], error) {
	var (
		clk      clock.Clock
		observer Observer
	)
	if p != nil {
		clk, observer = p.Clock, p.Observer
	}
	clk = clock.OrReal(clk)

	res, err := until(ctx, clk, cfg, fetch, done)
	if err == nil && observer != nil {
		observer(name, res.Outcome, res.Attempts)
	}
	return res, err
}

func until[V any](
	ctx context.Context,
	clk clock.Clock,
	cfg Config,
	fetch func(context.Context) (V, error),
	done func(V) bool,
) (Result[V], error) {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last V
	for i := 1; i <= attempts; i++ {
		if ctx.Err() != nil {
			return Result[V]{Outcome: OutcomeCancel, Value: last, Attempts: i - 1}, nil
		}

		v, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Result[V]{Outcome: OutcomeCancel, Value: last, Attempts: i}, nil
			}
			return Result[V]{Value: last, Attempts: i}, err
		}
		last = v

		if done(v) {
			return Result[V]{Outcome: OutcomeFinal, Value: v, Attempts: i}, nil
		}
		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return Result[V]{Outcome: OutcomeCancel, Value: last, Attempts: i}, nil
		case <-clk.After(cfg.Interval):
		}
	}
	return Result[V]{Outcome: OutcomeTimeout, Value: last, Attempts: attempts}, nil
}
