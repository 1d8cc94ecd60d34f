package store

import (
	"context"
	"fmt"
)

// ReadAll returns every record in the trace log ordered by sequence
// number, then call ID for records sharing a sequence.
func (s *Store) ReadAll(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, call_id, session_id, function, args, outcome, attempt, text
		FROM invocations
		ORDER BY seq ASC, call_id COLLATE BINARY ASC`)
}

// ReadBySession returns the records for one session in trace order.
func (s *Store) ReadBySession(ctx context.Context, sessionID string) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, call_id, session_id, function, args, outcome, attempt, text
		FROM invocations
		WHERE session_id = ?
		ORDER BY seq ASC, call_id COLLATE BINARY ASC`, sessionID)
}

// ReadByFunction returns the records for one function in trace order.
func (s *Store) ReadByFunction(ctx context.Context, function string) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, call_id, session_id, function, args, outcome, attempt, text
		FROM invocations
		WHERE function = ?
		ORDER BY seq ASC, call_id COLLATE BINARY ASC`, function)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Seq, &rec.CallID, &rec.SessionID, &rec.Function,
			&rec.Args, &rec.Outcome, &rec.Attempt, &rec.Text); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
