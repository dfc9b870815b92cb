package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/buyflow/internal/broker/memory"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	CancelAbandoned bool
	// Lifecycle, when set, is the lifecycle the seeded remote order reports.
	Lifecycle string
}

// ReconcileResult is the JSON form of a reconciliation.
type ReconcileResult struct {
	Source    reconcile.Source `json:"source"`
	Found     bool             `json:"found"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Enriched  bool             `json:"enriched"`
	OrderID   string           `json:"order_id,omitempty"`
	Lifecycle order.Lifecycle  `json:"lifecycle"`
	Asset     order.AssetID    `json:"asset,omitempty"`
	Amount    string           `json:"amount,omitempty"`
	Method    string           `json:"payment_method,omitempty"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve the persisted snapshot against the broker",
		Long: `Reconcile the persisted snapshot the way a restarted flow does.

The in-memory broker is seeded with the snapshot's order. --lifecycle makes
that remote order report a later lifecycle, to show remote progress being
adopted. --cancel-abandoned first drops an order left awaiting confirmation.

The resolved state is saved back, or the snapshot is cleared when nothing
is left to resume.

Examples:
  buyflow reconcile
  buyflow reconcile --lifecycle PENDING_EXECUTION
  buyflow reconcile --cancel-abandoned --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.CancelAbandoned, "cancel-abandoned", false, "cancel an order still awaiting confirmation instead of resuming it")
	cmd.Flags().StringVar(&opts.Lifecycle, "lifecycle", "", "lifecycle reported by the broker for the snapshot's order")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	var remote order.Lifecycle
	if opts.Lifecycle != "" {
		l, err := order.ParseLifecycle(opts.Lifecycle)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeFlow, "invalid lifecycle", err)
		}
		remote = l
	}

	a, err := newApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "startup failed", err)
	}
	defer a.close(ctx)

	// Orders never settle on their own here: the broker reports exactly the
	// seeded lifecycle.
	b := memory.New(memory.WithSettlement(0, order.LifecycleFinished, ""))
	local, ok, err := seedFromSnapshot(ctx, b, a.snapshots, time.Now())
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read snapshot", err)
	}
	if ok && local.ID != "" && opts.Lifecycle != "" {
		if err := b.SetOrderLifecycle(local.ID, remote); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to seed broker", err)
		}
	}

	rec := reconcile.New(a.snapshots, b, b, reconcile.WithLogger(a.log), reconcile.WithMetrics(a.metrics))

	result := ReconcileResult{}
	if opts.CancelAbandoned {
		result.Cancelled, err = rec.CancelAnyPendingConfirmationOrder(ctx)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to cancel abandoned order", err)
		}
	}

	out, err := rec.Reconcile(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "reconciliation failed", err)
	}
	result.Source = out.Source
	result.Found = out.Found()
	result.Enriched = out.Enriched
	result.OrderID = out.State.ID
	result.Lifecycle = out.State.Lifecycle
	result.Asset = out.State.SelectedAsset
	if !out.State.Amount.IsZero() {
		result.Amount = out.State.Amount.String()
	}
	if pm := out.State.SelectedPaymentMethod; pm != nil {
		result.Method = pm.ID
	}

	if f.JSON() {
		return f.Success(result)
	}

	w := f.Writer
	if result.Cancelled {
		fmt.Fprintln(w, "Cancelled an order abandoned awaiting confirmation")
	}
	if !result.Found {
		fmt.Fprintln(w, "Nothing to resume")
		return a.writeMetrics(w)
	}
	fmt.Fprintf(w, "Resumed from %s\n", result.Source)
	fmt.Fprintf(w, "  Order:     %s\n", result.OrderID)
	fmt.Fprintf(w, "  Lifecycle: %s\n", result.Lifecycle)
	if result.Asset != "" {
		fmt.Fprintf(w, "  Buying:    %s for %s\n", result.Asset, result.Amount)
	}
	if result.Method != "" {
		fmt.Fprintf(w, "  Paying by: %s (details refreshed: %t)\n", result.Method, result.Enriched)
	}
	return a.writeMetrics(w)
}
