package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/buyflow/internal/order"
)

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or clear the persisted snapshot",
		Long: `Inspect or clear the snapshot a flow persists between runs.

The snapshot holds the resumable part of the order state. It lives in the
configured store backend (store.backend: sqlite, redis or none).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the persisted snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotShow(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Delete the persisted snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotClear(rootOpts, cmd)
		},
	})

	return cmd
}

func runSnapshotShow(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(ctx, opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "startup failed", err)
	}
	defer a.close(ctx)

	s, ok, err := a.snapshots.Load(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to load snapshot", err)
	}
	if !ok {
		return f.Fail(ExitFailure, ErrCodeNotFound, "no snapshot", nil)
	}

	if f.JSON() {
		return f.Success(order.SnapshotOf(s))
	}
	writeState(f, s)
	return nil
}

func runSnapshotClear(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	a, err := newApp(ctx, opts, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "startup failed", err)
	}
	defer a.close(ctx)

	if err := a.snapshots.Clear(ctx); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to clear snapshot", err)
	}
	if f.JSON() {
		return f.Success(map[string]bool{"cleared": true})
	}
	return f.Success("Snapshot cleared")
}

// writeState prints the persisted fields of s, skipping empty ones.
func writeState(f *OutputFormatter, s order.State) {
	w := f.Writer
	row := func(label string, value any) {
		if v := fmt.Sprint(value); v != "" {
			fmt.Fprintf(w, "  %-12s %s\n", label+":", v)
		}
	}

	fmt.Fprintln(w, "Snapshot:")
	row("Order", s.ID)
	row("Lifecycle", s.Lifecycle)
	row("Asset", s.SelectedAsset)
	row("Fiat", s.FiatCurrency)
	if !s.Amount.IsZero() {
		row("Amount", s.Amount)
	}
	if pm := s.SelectedPaymentMethod; pm != nil {
		row("Payment", fmt.Sprintf("%s %s", pm.Type, pm.ID))
	}
	if q := s.Quote; q != nil {
		row("Quote", fmt.Sprintf("%s (expires %s)", q.ID, q.ExpiresAt.Format("15:04:05")))
	}
	row("Frequency", s.RecurringBuyFrequency)
	row("Recurring", s.RecurringBuyID)
}
