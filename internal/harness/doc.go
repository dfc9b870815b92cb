// Package harness runs scripted buy flows against the in-memory broker and
// checks the resulting transition trace.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: card_purchase_settles
//	description: "What this scenario validates"
//	flow_id: flow-card
//	initial:
//	  asset: BTC
//	  fiat: USD
//	  amount: "100"
//	  payment_method: { id: card-1, type: PAYMENT_CARD, eligible: true }
//	broker:
//	  tier: { level: gold, state: VERIFIED }
//	  cards: [{ id: card-1, label: "Visa 4242", status: ACTIVE }]
//	  failures: [{ op: createOrder, code: PENDING_ORDERS_LIMIT_REACHED }]
//	steps:
//	  - intent: CancelOrderIfAnyAndCreatePendingOne
//	  - intent: AmountUpdated
//	    args: { amount: "250", currency: USD }
//	assertions:
//	  - type: trace_contains
//	    intent: OrderCreated
//	  - type: final_state
//	    expect: { lifecycle: PENDING_CONFIRMATION, id: order-1 }
//
// Files are checked against an embedded CUE schema before they are decoded,
// so a misspelt key or a lifecycle name that does not exist is reported with
// its line number.
//
// # Assertion Types
//
//   - trace_contains: an intent appears in the trace, optionally applied or skipped
//   - trace_order: intents appear in the given order, not necessarily adjacent
//   - trace_count: an intent appears exactly N times
//   - final_state: fields of the final state have the given values
//
// # Deterministic Runs
//
// Every run uses a manual wall clock, sequential broker ids, the scenario's
// flow id and zero-interval polling. Each step is submitted only after the
// previous one and all the effects it started have settled, so the trace of a
// scenario is the same on every run and can be compared with a golden file.
package harness
