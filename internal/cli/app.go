package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/config"
	"github.com/roach88/buyflow/internal/logger"
	"github.com/roach88/buyflow/internal/metrics"
	"github.com/roach88/buyflow/internal/store"
	"github.com/roach88/buyflow/internal/tracing"
)

// app is what a command needs from the configuration: a logger, the
// snapshot store, metrics and the tracer provider.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	snapshots store.Backend
	shutdown  tracing.Shutdown
}

// newApp loads the configuration and opens everything a command uses.
// The caller must call close. Commands report a failure here as
// ErrCodeConfig with ExitCommandError.
func newApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	lc := cfg.Logger()
	if opts.Verbose {
		lc.Level = "debug"
	}
	log, err := logger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	shutdown, err := tracing.Init(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Writer:  cmd.ErrOrStderr(),
		Version: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("start tracing: %w", err)
	}

	a := &app{cfg: cfg, log: log, shutdown: shutdown}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(a.registry)
	}

	a.snapshots, err = store.OpenBackend(ctx, cfg.Backend(), log)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	log.Debug("snapshot store open", zap.String("backend", cfg.Store.Backend))
	return a, nil
}

// transitionLog returns the SQLite store when it is the configured backend.
// Only SQLite keeps the transition log.
func (a *app) transitionLog() (*store.Store, bool) {
	st, ok := a.snapshots.(*store.Store)
	return st, ok
}

func (a *app) close(ctx context.Context) {
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			a.log.Warn("close snapshot store failed", zap.Error(err))
		}
	}
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = a.log.Sync()
}

// writeMetrics prints every non-zero sample gathered so far, one per line.
// It prints nothing when metrics are disabled.
func (a *app) writeMetrics(w io.Writer) error {
	if a.registry == nil {
		return nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			if value == 0 {
				continue
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("  %s %g", name, value))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	sort.Strings(lines)
	fmt.Fprintln(w, "Metrics:")
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return nil
}
