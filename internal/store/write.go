package store

import (
	"context"
	"fmt"
)

// Record is one row of the invocation trace log.
type Record struct {
	// Seq is the caller-assigned monotonic sequence number. Together
	// with CallID it identifies a record.
	Seq int64

	// CallID identifies the invocation.
	CallID string

	// SessionID identifies the conversation the invocation belongs to.
	SessionID string

	// Function is the name of the invoked function.
	Function string

	// Args is the raw argument JSON the caller supplied.
	Args string

	// Outcome records how the pipeline resolved: expression match,
	// attempt success, or all attempts failed.
	Outcome string

	// Attempt is the zero-based index of the succeeding attempt, or
	// -1 when no attempt ran or none succeeded.
	Attempt int

	// Text is the final output text returned to the caller.
	Text string
}

// WriteRecord appends one record to the trace log. Replaying the same
// (seq, call_id) pair is a no-op, so retries after partial failures
// are safe.
func (s *Store) WriteRecord(ctx context.Context, rec Record) error {
	if rec.CallID == "" {
		return fmt.Errorf("write record: empty call_id")
	}

	args := rec.Args
	if args == "" {
		args = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (seq, call_id, session_id, function, args, outcome, attempt, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (seq, call_id) DO NOTHING`,
		rec.Seq, rec.CallID, rec.SessionID, rec.Function, args, rec.Outcome, rec.Attempt, rec.Text,
	)
	if err != nil {
		return fmt.Errorf("write record seq=%d call=%s: %w", rec.Seq, rec.CallID, err)
	}
	return nil
}
