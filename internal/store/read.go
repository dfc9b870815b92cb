package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roach88/buyflow/internal/order"
)

// Load returns the persisted snapshot. A corrupt snapshot is cleared and
// reported as absent.
func (s *Store) Load(ctx context.Context) (order.State, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE key = ?`, s.key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return order.State{}, false, nil
	}
	if err != nil {
		return order.State{}, false, errors.Wrap(err, "load snapshot")
	}

	st, err := unmarshalState(body)
	if err != nil {
		s.log.Warn("discarding corrupt snapshot", zap.String("key", s.key), zap.Error(err))
		if cerr := s.Clear(ctx); cerr != nil {
			return order.State{}, false, cerr
		}
		return order.State{}, false, nil
	}
	return st, true, nil
}

// Transitions returns the logged steps of a flow ordered by sequence.
//
// Returns an empty slice (not nil) if the flow has no records.
func (s *Store) Transitions(ctx context.Context, flowID string) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_id, seq, intent, applied, from_lifecycle, to_lifecycle, state
		FROM transitions
		WHERE flow_id = ?
		ORDER BY seq ASC
	`, flowID)
	if err != nil {
		return nil, errors.Wrap(err, "query transitions")
	}
	defer rows.Close()

	records := []TransitionRecord{}
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate transitions")
	}
	return records, nil
}

// Flows returns the ids of every recorded flow, sorted.
func (s *Store) Flows(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT flow_id FROM transitions ORDER BY flow_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query flows")
	}
	defer rows.Close()

	flows := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan flow")
		}
		flows = append(flows, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate flows")
	}
	return flows, nil
}

func scanTransition(rows *sql.Rows) (TransitionRecord, error) {
	var (
		rec      TransitionRecord
		applied  int
		from, to string
		state    string
	)
	if err := rows.Scan(&rec.FlowID, &rec.Seq, &rec.Intent, &applied, &from, &to, &state); err != nil {
		return TransitionRecord{}, errors.Wrap(err, "scan transition")
	}
	rec.Applied = applied == 1

	var err error
	if rec.From, err = order.ParseLifecycle(from); err != nil {
		return TransitionRecord{}, errors.Wrapf(err, "transition %s/%d", rec.FlowID, rec.Seq)
	}
	if rec.To, err = order.ParseLifecycle(to); err != nil {
		return TransitionRecord{}, errors.Wrapf(err, "transition %s/%d", rec.FlowID, rec.Seq)
	}
	if rec.State, err = unmarshalState(state); err != nil {
		return TransitionRecord{}, errors.Wrapf(err, "transition %s/%d", rec.FlowID, rec.Seq)
	}
	return rec, nil
}
