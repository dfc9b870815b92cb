// Package intent defines the closed set of intents that may change the buy
// flow's state, and the pure reducer that applies them.
//
// Every intent answers two questions about the state it is applied to:
//
//   - IsValidFor: may the intent be applied at all? A rejected intent is a
//     no-op: state is unchanged and no effect runs.
//   - Reduce: what is the next state? Reduce is total, performs no I/O and
//     never mutates its input, so any sequence of intents can be replayed.
//
// Intents come in three shapes: field updates that copy the state with one
// field changed, error signals that are always deliverable, and resets that
// replace the whole state. The set is closed by an unexported marker
// method; see TestIntentSet_Exhaustive for the variant registry check.
package intent
