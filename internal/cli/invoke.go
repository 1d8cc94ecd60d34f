package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/store"
	"github.com/weftlabs/weft/internal/token"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args       string
	RawArgs    string
	GlobalData string
	MetaData   string
	SessionID  string
	CallID     string
	Token      string
	TraceDB    string
	Timeout    time.Duration
}

// InvokeResponse is the JSON shape of an invocation result.
type InvokeResponse struct {
	CallID       string `json:"call_id"`
	Outcome      string `json:"outcome"`
	AttemptIndex int    `json:"attempt_index"`
	Text         string `json:"text"`
	Actions      []any  `json:"actions,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <specs-dir> <function>",
		Short: "Invoke a function spec",
		Long: `Load function specs from a directory and run one through the full
pipeline: expression matching, webhook attempts, array post-processing,
and output building.

Example:
  weft invoke ./specs search_docs --args '{"query":"pagination"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "function arguments as JSON")
	cmd.Flags().StringVar(&opts.RawArgs, "raw-args", "", "raw argument text for expression matching (defaults to --args)")
	cmd.Flags().StringVar(&opts.GlobalData, "global-data", "{}", "global data as JSON")
	cmd.Flags().StringVar(&opts.MetaData, "meta-data", "{}", "call metadata as JSON")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session identifier (generated when empty)")
	cmd.Flags().StringVar(&opts.CallID, "call-id", "", "call identifier (generated when empty)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "call token; validated against WEFT_TOKEN_SECRET")
	cmd.Flags().StringVar(&opts.TraceDB, "trace-db", "", "append the invocation to this trace database")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", engine.DefaultAttemptTimeout, "per-attempt HTTP timeout")

	return cmd
}

func runInvoke(opts *InvokeOptions, specsDir, function string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	req := engine.Request{
		Function:     function,
		RawArguments: opts.RawArgs,
		CallID:       opts.CallID,
		SessionID:    opts.SessionID,
	}
	if err := json.Unmarshal([]byte(opts.Args), &req.Arguments); err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}
	if err := json.Unmarshal([]byte(opts.GlobalData), &req.GlobalData); err != nil {
		return WrapExitError(ExitCommandError, "invalid --global-data JSON", err)
	}
	if err := json.Unmarshal([]byte(opts.MetaData), &req.MetaData); err != nil {
		return WrapExitError(ExitCommandError, "invalid --meta-data JSON", err)
	}

	reg, _, loadErrors := LoadRegistry(specsDir)
	if len(loadErrors) > 0 {
		first := loadErrors[0]
		var loadErr *LoadError
		if errors.As(first, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Message)
		}
		return WrapExitError(ExitCommandError, "loading specs", first)
	}

	engineOpts := []engine.Option{
		engine.WithExecutor(engine.NewExecutor(engine.WithTimeout(opts.Timeout))),
	}

	if opts.Token != "" {
		secret := os.Getenv("WEFT_TOKEN_SECRET")
		if secret == "" {
			return NewExitError(ExitCommandError, "--token requires WEFT_TOKEN_SECRET to be set")
		}
		issuer, err := token.NewIssuer([]byte(secret))
		if err != nil {
			return WrapExitError(ExitCommandError, "building token issuer", err)
		}
		engineOpts = append(engineOpts, engine.WithIssuer(issuer))
	}

	if opts.TraceDB != "" {
		db, err := store.Open(opts.TraceDB)
		if err != nil {
			return WrapExitError(ExitCommandError, "opening trace database", err)
		}
		defer db.Close()
		engineOpts = append(engineOpts, engine.WithTraceLog(db))
	}

	eng := engine.New(reg, engineOpts...)

	var (
		res *engine.Result
		err error
	)
	if opts.Token != "" {
		res, err = eng.InvokeSecured(cmd.Context(), opts.Token, req)
	} else {
		res, err = eng.Invoke(cmd.Context(), req)
	}
	if err != nil {
		var ie *engine.InvocationError
		if errors.As(err, &ie) {
			_ = formatter.Error(string(ie.Code), ie.Error(), nil)
			return NewExitError(ExitFailure, ie.Error())
		}
		return WrapExitError(ExitFailure, "invocation failed", err)
	}

	return outputInvokeResult(formatter, res)
}

func outputInvokeResult(formatter *OutputFormatter, res *engine.Result) error {
	if formatter.Format == "json" {
		resp := InvokeResponse{
			CallID:       res.CallID,
			Outcome:      string(res.Outcome),
			AttemptIndex: res.AttemptIndex,
			Text:         res.Text,
		}
		for _, action := range res.SideEffects {
			resp.Actions = append(resp.Actions, map[string]any{action.Type: action.Params})
		}
		return formatter.Success(resp)
	}

	fmt.Fprintln(formatter.Writer, res.Text)
	formatter.VerboseLog("call_id=%s outcome=%s attempt=%d actions=%d",
		res.CallID, res.Outcome, res.AttemptIndex, len(res.SideEffects))
	return nil
}
