// Package engine runs the buy flow's single-writer reducer loop.
//
// The engine owns the current order.State. Intents arrive through Dispatch
// from any goroutine (the UI, effect tasks, the quote refresh loop) and are
// applied one at a time, in arrival order, by the goroutine running Run.
// Because only that goroutine ever replaces the state, no lock protects the
// reduction itself; readers get a copy through State or Subscribe.
//
// Processing one intent:
//
//  1. Stamp it with the next sequence number from Clock.
//  2. Evaluate its guard against the current state. A rejected intent is
//     logged, passed to the transition hooks and recorded, and nothing
//     else happens.
//  3. Reduce, then run the state hooks (the snapshot persistence policy
//     lives here) and the transition hooks.
//  4. Publish the new state to State and the subscribers.
//  5. Hand the intent and the previous state to the effect runner, whose
//     results come back through Dispatch.
//
// Sequence numbers come from a logical clock, never from wall time, so a
// recorded flow replays in the same order.
package engine
