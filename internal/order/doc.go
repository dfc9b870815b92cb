// Package order defines the in-flight purchase state held by the buy engine.
//
// State is an immutable value: every transition produces a new State and the
// previous one is never mutated. Fields fall into two groups:
//
//   - Persistent fields (order id, amount, currency, asset, lifecycle,
//     selected payment method, recurring-buy fields) survive process death
//     through a Snapshot.
//   - Transient fields (loading flags, navigation flags, in-flight URLs)
//     exist only for the running flow and are dropped by Snapshot.
//
// Lifecycle is totally ordered. Reconciliation compares lifecycles by
// ordinal, so the declaration order of the Lifecycle constants is part of
// the contract.
package order
