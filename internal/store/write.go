package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/roach88/buyflow/internal/order"
)

// Save replaces the persisted snapshot with the resumable fields of st.
func (s *Store) Save(ctx context.Context, st order.State) error {
	body, err := marshalState(st)
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, body)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body
	`, s.key, body)
	if err != nil {
		return errors.Wrap(err, "save snapshot")
	}
	return nil
}

// Clear removes the persisted snapshot. Clearing an absent snapshot is not
// an error.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, s.key); err != nil {
		return errors.Wrap(err, "clear snapshot")
	}
	return nil
}

// TransitionRecord is one logged reducer step of a flow.
type TransitionRecord struct {
	FlowID  string
	Seq     int64
	Intent  string
	Applied bool
	From    order.Lifecycle
	To      order.Lifecycle
	// State holds the persisted fields of the state after the step.
	State order.State
}

// AppendTransition records a reducer step. Uses ON CONFLICT DO NOTHING for
// idempotency - re-recording the same (flow, seq) is silently ignored.
func (s *Store) AppendTransition(ctx context.Context, rec TransitionRecord) error {
	state, err := marshalState(rec.State)
	if err != nil {
		return errors.Wrap(err, "append transition")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transitions
		(flow_id, seq, intent, applied, from_lifecycle, to_lifecycle, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_id, seq) DO NOTHING
	`,
		rec.FlowID,
		rec.Seq,
		rec.Intent,
		boolToInt(rec.Applied),
		rec.From.String(),
		rec.To.String(),
		state,
	)
	if err != nil {
		return errors.Wrap(err, "append transition")
	}
	return nil
}
