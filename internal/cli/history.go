package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buyflow/internal/harness"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Intent string // optional filter
}

// HistoryEvent is one recorded transition of a flow.
type HistoryEvent struct {
	harness.TraceEvent
	OrderID string `json:"order_id,omitempty"`
}

// HistoryResult is the recorded transition log of one flow.
type HistoryResult struct {
	FlowID    string          `json:"flow_id"`
	Events    []HistoryEvent  `json:"events"`
	Applied   int             `json:"applied"`
	Skipped   int             `json:"skipped"`
	Lifecycle order.Lifecycle `json:"lifecycle"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [flow-id]",
		Short: "Show recorded flows and their transitions",
		Long: `Show the transition log written by "buyflow simulate --record".

Without an argument it lists the recorded flows. With a flow id it prints
every processed intent of that flow in sequence order, applied or skipped,
with the lifecycle before and after.

The transition log is kept by the sqlite store backend only.

Examples:
  buyflow history
  buyflow history 0190c8a4-5b2e-7c3d-9f10-2a4b6c8d0e1f
  buyflow history 0190c8a4-5b2e-7c3d-9f10-2a4b6c8d0e1f --intent OrderCreated`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListFlows(opts, cmd)
			}
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Intent, "intent", "", "only show this intent")

	return cmd
}

func openTransitionLog(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*app, *store.Store, error) {
	a, err := newApp(cmd.Context(), opts, cmd)
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeConfig, "startup failed", err)
	}
	st, ok := a.transitionLog()
	if !ok {
		a.close(cmd.Context())
		return nil, nil, f.Fail(ExitCommandError, ErrCodeStore,
			fmt.Sprintf("store backend %q keeps no transition log", a.cfg.Store.Backend), nil)
	}
	return a, st, nil
}

func runListFlows(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	a, st, err := openTransitionLog(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	flows, err := st.Flows(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to list flows", err)
	}

	if f.JSON() {
		return f.Success(map[string][]string{"flows": flows})
	}
	if len(flows) == 0 {
		fmt.Fprintln(f.Writer, "No recorded flows")
		return nil
	}
	fmt.Fprintf(f.Writer, "Recorded flows (%d):\n", len(flows))
	for _, id := range flows {
		fmt.Fprintf(f.Writer, "  %s\n", id)
	}
	return nil
}

func runHistory(opts *HistoryOptions, flowID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	a, st, err := openTransitionLog(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	records, err := st.Transitions(ctx, flowID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read transitions", err)
	}
	if len(records) == 0 {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no transitions recorded for flow %s", flowID), nil)
	}

	result := buildHistory(flowID, records, opts.Intent)
	if f.JSON() {
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintf(w, "Flow: %s\n\n", result.FlowID)
	if len(result.Events) == 0 {
		fmt.Fprintf(w, "No %s transitions\n", opts.Intent)
	}
	for _, ev := range result.Events {
		line := ev.TraceEvent.String()
		if ev.OrderID != "" {
			line += "  order=" + ev.OrderID
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "\n%d applied, %d skipped, ended %s\n", result.Applied, result.Skipped, result.Lifecycle)
	return nil
}

// buildHistory summarises records. The counts and final lifecycle cover
// the whole flow; the filter only narrows Events.
func buildHistory(flowID string, records []store.TransitionRecord, only string) HistoryResult {
	result := HistoryResult{FlowID: flowID, Events: []HistoryEvent{}}
	for _, rec := range records {
		if rec.Applied {
			result.Applied++
		} else {
			result.Skipped++
		}
		result.Lifecycle = rec.To
		if only != "" && rec.Intent != only {
			continue
		}
		result.Events = append(result.Events, HistoryEvent{
			TraceEvent: harness.TraceEvent{
				Seq:     rec.Seq,
				Intent:  rec.Intent,
				Applied: rec.Applied,
				From:    rec.From,
				To:      rec.To,
			},
			OrderID: rec.State.ID,
		})
	}
	return result
}
