package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/metrics"
	"github.com/roach88/buyflow/internal/order"
	"github.com/roach88/buyflow/internal/store"
)

// Snapshots is where the persistence policy writes.
type Snapshots interface {
	Save(ctx context.Context, s order.State) error
	Clear(ctx context.Context) error
}

// Recorder appends processed intents to a transition log.
type Recorder interface {
	AppendTransition(ctx context.Context, rec store.TransitionRecord) error
}

// ShouldClearSnapshot reports whether s leaves nothing to resume: the order
// settled, it was cancelled, or the flow was reset.
func ShouldClearSnapshot(s order.State) bool {
	return s.Lifecycle == order.LifecycleFinished ||
		s.Lifecycle == order.LifecycleCanceled ||
		s.IsEmpty()
}

// PersistSnapshots returns the onStateUpdate hook that saves every state
// and clears the snapshot once nothing is left to resume. Store failures
// are logged; the flow continues on the in-memory state.
func PersistSnapshots(s Snapshots, log *zap.Logger, m *metrics.Metrics) StateHook {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("persist")
	return func(ctx context.Context, st order.State) {
		if ShouldClearSnapshot(st) {
			if err := s.Clear(ctx); err != nil {
				m.SnapshotFailed("clear")
				log.Warn("clear snapshot failed", zap.Error(err))
			}
			return
		}
		if err := s.Save(ctx, st); err != nil {
			m.SnapshotFailed("save")
			log.Warn("save snapshot failed", zap.String("order_id", st.ID), zap.Error(err))
		}
	}
}

// RecordTransitions returns a hook that appends every processed intent to r.
func RecordTransitions(r Recorder, log *zap.Logger) TransitionHook {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, flowID string, t Transition) {
		err := r.AppendTransition(ctx, store.TransitionRecord{
			FlowID:  flowID,
			Seq:     t.Seq,
			Intent:  t.Intent,
			Applied: t.Applied,
			From:    t.From,
			To:      t.To,
			State:   t.State,
		})
		if err != nil {
			log.Warn("record transition failed",
				zap.String("flow_id", flowID),
				zap.Int64("seq", t.Seq),
				zap.Error(err),
			)
		}
	}
}
