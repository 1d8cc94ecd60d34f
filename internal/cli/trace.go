package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Session  string
	Function string
}

// TraceRecord is the JSON shape of one trace-log row.
type TraceRecord struct {
	Seq       int64  `json:"seq"`
	CallID    string `json:"call_id"`
	SessionID string `json:"session_id"`
	Function  string `json:"function"`
	Args      string `json:"args"`
	Outcome   string `json:"outcome"`
	Attempt   int    `json:"attempt"`
	Text      string `json:"text"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <trace-db>",
		Short: "Inspect the invocation trace log",
		Long: `Read the append-only invocation trace log written by invoke --trace-db,
in sequence order. Filter by session or function.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "only records for this session")
	cmd.Flags().StringVar(&opts.Function, "function", "", "only records for this function")
	cmd.MarkFlagsMutuallyExclusive("session", "function")

	return cmd
}

func runTrace(opts *TraceOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("trace database not found: %s", dbPath), nil)
		return NewExitError(ExitCommandError, "trace database not found: "+dbPath)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening trace database", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	var recs []store.Record
	switch {
	case opts.Session != "":
		recs, err = db.ReadBySession(ctx, opts.Session)
	case opts.Function != "":
		recs, err = db.ReadByFunction(ctx, opts.Function)
	default:
		recs, err = db.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "reading trace log", err)
	}

	if formatter.Format == "json" {
		out := make([]TraceRecord, 0, len(recs))
		for _, rec := range recs {
			out = append(out, TraceRecord{
				Seq:       rec.Seq,
				CallID:    rec.CallID,
				SessionID: rec.SessionID,
				Function:  rec.Function,
				Args:      rec.Args,
				Outcome:   rec.Outcome,
				Attempt:   rec.Attempt,
				Text:      rec.Text,
			})
		}
		return formatter.Success(out)
	}

	if len(recs) == 0 {
		fmt.Fprintln(formatter.Writer, "no records")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(formatter.Writer, "%6d  %-36s  %-20s  %-15s  attempt=%-2d  %s\n",
			rec.Seq, rec.CallID, rec.Function, rec.Outcome, rec.Attempt, rec.Text)
	}
	return nil
}
