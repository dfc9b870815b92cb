package harness

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  %s\n", ev)
	}
	return buf.String()
}

// check evaluates one assertion against a finished run.
func check(r *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(r.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	case AssertFinalState:
		return assertFinalState(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertTraceContains checks that the intent appears, applied or skipped
// as requested.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Intent == a.Intent && (a.Applied == nil || *a.Applied == ev.Applied) {
			return nil
		}
	}

	expected := "intent " + a.Intent
	if a.Applied != nil {
		if *a.Applied {
			expected += " applied"
		} else {
			expected += " skipped"
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the intents appear
// in the given order. Intervening intents are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Intent]; !seen {
			positions[ev.Intent] = i + 1
		}
	}

	for _, name := range a.Intents {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all intents present: %v", a.Intents),
				Actual:   fmt.Sprintf("missing intent: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Intents); i++ {
		prev, curr := a.Intents[i-1], a.Intents[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("intents in order: %v", a.Intents),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the intent appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Intent == a.Intent {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d time(s)", a.Intent, a.Count),
			Actual:   fmt.Sprintf("%s appears %d time(s)", a.Intent, count),
			Trace:    trace,
		}
	}
	return nil
}

// stateFields renders the fields final_state assertions may name.
var stateFields = map[string]func(r *Result) string{
	"id":                  func(r *Result) string { return r.State.ID },
	"lifecycle":           func(r *Result) string { return r.State.Lifecycle.String() },
	"asset":               func(r *Result) string { return string(r.State.SelectedAsset) },
	"fiat":                func(r *Result) string { return r.State.FiatCurrency },
	"amount":              func(r *Result) string { return r.State.Amount.Amount.String() },
	"buy_error":           func(r *Result) string { return string(r.State.BuyError) },
	"error_state":         func(r *Result) string { return string(r.State.ErrorState) },
	"kyc_state":           func(r *Result) string { return string(r.State.KycState) },
	"screen":              func(r *Result) string { return string(r.State.Screen) },
	"recurring_buy_id":    func(r *Result) string { return r.State.RecurringBuyID },
	"recurring_buy_state": func(r *Result) string { return string(r.State.RecurringBuyState) },
	"authorisation_url":   func(r *Result) string { return r.State.AuthorisationURL },
	"is_loading":          func(r *Result) string { return strconv.FormatBool(r.State.IsLoading) },
	"payment_succeeded":   func(r *Result) string { return strconv.FormatBool(r.State.PaymentSucceeded) },
	"payment_pending":     func(r *Result) string { return strconv.FormatBool(r.State.PaymentPending) },
	"upsell":              func(r *Result) string { return strconv.FormatBool(r.State.ShouldUpsellHigherLimits) },
	"confirmation_requested": func(r *Result) string {
		return strconv.FormatBool(r.State.ConfirmationActionRequested)
	},
	"payment_method": func(r *Result) string {
		if r.State.SelectedPaymentMethod == nil {
			return ""
		}
		return r.State.SelectedPaymentMethod.ID
	},
	"quote_id": func(r *Result) string {
		if r.State.Quote == nil {
			return ""
		}
		return r.State.Quote.ID
	},
	"live_orders":    func(r *Result) string { return strconv.Itoa(r.LiveOrders) },
	"snapshot_saved": func(r *Result) string { return strconv.FormatBool(r.SnapshotSaved) },
}

// StateFields returns the field names final_state assertions accept.
func StateFields() []string {
	names := make([]string, 0, len(stateFields))
	for name := range stateFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// assertFinalState compares the rendered value of each expected field.
func assertFinalState(r *Result, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, field := range keys {
		render, ok := stateFields[field]
		if !ok {
			return fmt.Errorf("unknown state field %q", field)
		}
		want := fmt.Sprint(a.Expect[field])
		if got := render(r); got != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%q (want %q)", field, got, want))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   strings.Join(mismatches, ", "),
			Trace:    r.Trace,
		}
	}
	return nil
}
