package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/effects"
	"github.com/roach88/buyflow/internal/intent"
	"github.com/roach88/buyflow/internal/metrics"
	"github.com/roach88/buyflow/internal/order"
)

// Effects starts the asynchronous work implied by an applied intent.
// *effects.Runner implements it.
type Effects interface {
	PerformEffect(ctx context.Context, prev order.State, in intent.Intent, d effects.Dispatcher) *effects.Task
}

// Transition is one processed intent.
type Transition struct {
	Seq    int64
	Intent string
	// Applied is false when the intent's guard rejected the state.
	Applied bool
	From    order.Lifecycle
	To      order.Lifecycle
	// State is the state after the intent.
	State order.State
}

// StateHook observes every state the engine publishes. Hooks run on the
// Run goroutine, in registration order, before subscribers see the state
// and before the intent's effect starts. Their context is not cancelled
// when Run stops.
type StateHook func(ctx context.Context, s order.State)

// TransitionHook observes every processed intent, applied or not. It runs
// after the state hooks, under the same rules.
type TransitionHook func(ctx context.Context, flowID string, t Transition)

// Engine is the single-writer reducer loop.
//
// Thread-safety model:
//   - Dispatch, Submit, State, Transitions, Subscribe, Drain: any goroutine
//   - Run: exactly one goroutine
type Engine struct {
	flowID          string
	clock           *Clock
	queue           *mailbox
	effects         Effects
	stateHooks      []StateHook
	transitionHooks []TransitionHook
	log             *zap.Logger
	metrics         *metrics.Metrics

	mu      sync.RWMutex
	state   order.State
	history []Transition
	subs    map[int]chan order.State
	nextSub int

	// busy counts queued intents plus running effect tasks. Drain waits for
	// it to reach zero.
	busyMu sync.Mutex
	busy   int
	idle   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithEffects sets the effect runner. Without one the engine only reduces.
func WithEffects(fx Effects) Option { return func(e *Engine) { e.effects = fx } }

// WithClock sets the sequence clock, for appending to a recorded flow.
func WithClock(c *Clock) Option { return func(e *Engine) { e.clock = c } }

// WithFlowID names the flow using gen.
func WithFlowID(gen FlowIDGenerator) Option { return func(e *Engine) { e.flowID = gen.Generate() } }

// WithStateHook adds an onStateUpdate hook.
func WithStateHook(h StateHook) Option {
	return func(e *Engine) { e.stateHooks = append(e.stateHooks, h) }
}

// WithTransitionHook adds a hook that sees every processed intent.
func WithTransitionHook(h TransitionHook) Option {
	return func(e *Engine) { e.transitionHooks = append(e.transitionHooks, h) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l.Named("engine") } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New creates an Engine that starts from initial, typically the outcome of
// reconciliation.
func New(initial order.State, opts ...Option) *Engine {
	e := &Engine{
		clock: NewClock(),
		queue: newMailbox(),
		log:   zap.NewNop(),
		state: initial,
		subs:  make(map[int]chan order.State),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.flowID == "" {
		e.flowID = UUIDv7Generator{}.Generate()
	}
	return e
}

// FlowID returns the id of this run of the flow.
func (e *Engine) FlowID() string { return e.flowID }

// Dispatch queues an intent. It reports false once the engine has stopped.
// Implements effects.Dispatcher.
func (e *Engine) Dispatch(in intent.Intent) bool {
	e.begin()
	if !e.queue.Enqueue(in) {
		e.end()
		return false
	}
	return true
}

// Submit is Dispatch for callers that want an error.
func (e *Engine) Submit(in intent.Intent) error {
	if !e.Dispatch(in) {
		return NewQueueClosedError(e.flowID, in.Name())
	}
	return nil
}

// State returns the current state.
func (e *Engine) State() order.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Transitions returns every processed intent in sequence order.
func (e *Engine) Transitions() []Transition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Transition(nil), e.history...)
}

// Pending returns the number of queued intents.
func (e *Engine) Pending() int { return e.queue.Len() }

// Subscribe returns a channel that receives the current state and then
// every new state. The channel holds only the latest state: a slow reader
// skips intermediate states but always sees the newest one. Call the
// returned function to unsubscribe; it closes the channel.
func (e *Engine) Subscribe() (<-chan order.State, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan order.State, 1)
	ch <- e.state
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

// Run processes intents until ctx is cancelled or Stop is called. After
// Stop, intents already queued are still applied before Run returns nil.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine starting", zap.String("flow_id", e.flowID))

	for {
		if in, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, in)
			e.end()
			continue
		}

		select {
		case <-ctx.Done():
			e.log.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.discard()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Close, so a stopped and
			// drained mailbox wakes this case immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.log.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the mailbox. Run returns once the queued intents are applied.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Drain blocks until no intent is queued and no effect task is running, or
// ctx is done. A running quote refresh loop keeps the engine busy until it
// is stopped.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		e.busyMu.Lock()
		if e.busy == 0 {
			e.busyMu.Unlock()
			return nil
		}
		idle := e.idle
		e.busyMu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
		}
	}
}

// process applies one intent.
// Called only from the Run goroutine.
func (e *Engine) process(ctx context.Context, in intent.Intent) {
	seq := e.clock.Next()
	prev := e.State()

	next, applied := intent.Reduce(prev, in)
	if applied {
		if err := checkTransition(e.flowID, in, prev, next); err != nil {
			e.log.DPanic("reduction rejected", zap.Int64("seq", seq), zap.Error(err))
			next, applied = prev, false
		}
	}

	t := Transition{
		Seq:     seq,
		Intent:  in.Name(),
		Applied: applied,
		From:    prev.Lifecycle,
		To:      next.Lifecycle,
		State:   next,
	}
	e.metrics.IntentProcessed(t.Intent, applied)

	// Hooks finish before anyone observes the transition, and a shutdown
	// does not abort their writes.
	hookCtx := context.WithoutCancel(ctx)

	if !applied {
		e.log.Debug("intent skipped",
			zap.Int64("seq", seq),
			zap.String("intent", t.Intent),
			zap.Stringer("lifecycle", prev.Lifecycle),
		)
		e.runTransitionHooks(hookCtx, t)
		e.mu.Lock()
		e.history = append(e.history, t)
		e.mu.Unlock()
		return
	}

	e.log.Debug("intent applied",
		zap.Int64("seq", seq),
		zap.String("intent", t.Intent),
		zap.Stringer("lifecycle", next.Lifecycle),
	)
	for _, h := range e.stateHooks {
		h(hookCtx, next)
	}
	e.runTransitionHooks(hookCtx, t)

	e.mu.Lock()
	e.history = append(e.history, t)
	e.state = next
	e.publishLocked(next)
	e.mu.Unlock()

	if e.effects == nil {
		return
	}
	if task := e.effects.PerformEffect(ctx, prev, in, e); task != nil {
		e.track(task)
	}
}

func (e *Engine) runTransitionHooks(ctx context.Context, t Transition) {
	for _, h := range e.transitionHooks {
		h(ctx, e.flowID, t)
	}
}

// publishLocked offers s to every subscriber, replacing a state the
// subscriber has not read yet. Must hold e.mu.
func (e *Engine) publishLocked(s order.State) {
	for _, ch := range e.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// checkTransition enforces that the lifecycle only moves backwards through
// a reset.
func checkTransition(flowID string, in intent.Intent, prev, next order.State) error {
	if !next.Lifecycle.Precedes(prev.Lifecycle) {
		return nil
	}
	switch in.(type) {
	case intent.ClearState, intent.OrderCanceled:
		return nil
	}
	return NewInvariantError(flowID, in.Name(),
		"lifecycle moved from "+prev.Lifecycle.String()+" to "+next.Lifecycle.String())
}

func (e *Engine) track(t *effects.Task) {
	e.begin()
	go func() {
		<-t.Done()
		e.end()
	}()
}

func (e *Engine) begin() {
	e.busyMu.Lock()
	defer e.busyMu.Unlock()
	if e.busy == 0 {
		e.idle = make(chan struct{})
	}
	e.busy++
}

func (e *Engine) end() {
	e.busyMu.Lock()
	defer e.busyMu.Unlock()
	e.busy--
	if e.busy == 0 {
		close(e.idle)
	}
}

// discard drops intents left in a closed mailbox.
func (e *Engine) discard() {
	for {
		in, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		e.log.Debug("intent dropped", zap.String("intent", in.Name()))
		e.end()
	}
}
