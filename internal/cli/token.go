package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/token"
)

// TokenIssueOptions holds flags for "token issue".
type TokenIssueOptions struct {
	*RootOptions
	Function  string
	SessionID string
	TTL       time.Duration
	BaseURL   string
}

// TokenVerifyOptions holds flags for "token verify".
type TokenVerifyOptions struct {
	*RootOptions
	Function  string
	SessionID string
}

// NewTokenCommand creates the token command group.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and verify call tokens",
		Long: `Call tokens are stateless HMAC-signed credentials binding a function
name, session, and expiry. The signing secret is read from the
WEFT_TOKEN_SECRET environment variable.`,
	}

	cmd.AddCommand(newTokenIssueCommand(rootOpts))
	cmd.AddCommand(newTokenVerifyCommand(rootOpts))

	return cmd
}

func newTokenIssueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenIssueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a call token",
		Long: `Issue a signed call token for one function and session.

Example:
  WEFT_TOKEN_SECRET=s3cret weft token issue --function search_docs --session sess-1 --ttl 1h`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenIssue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "function name the token authorizes")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session the token is bound to")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&opts.BaseURL, "url", "", "emit a signed URL with the token as a query parameter")
	cmd.MarkFlagRequired("function")
	cmd.MarkFlagRequired("session")

	return cmd
}

func newTokenVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenVerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "verify <token>",
		Short:         "Verify a call token",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "expected function name")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "expected session")
	cmd.MarkFlagRequired("function")
	cmd.MarkFlagRequired("session")

	return cmd
}

func issuerFromEnv() (*token.Issuer, error) {
	secret := os.Getenv("WEFT_TOKEN_SECRET")
	if secret == "" {
		return nil, NewExitError(ExitCommandError, "WEFT_TOKEN_SECRET is not set")
	}
	issuer, err := token.NewIssuer([]byte(secret))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "building token issuer", err)
	}
	return issuer, nil
}

func runTokenIssue(opts *TokenIssueOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	issuer, err := issuerFromEnv()
	if err != nil {
		return err
	}

	now := time.Now()

	if opts.BaseURL != "" {
		signed, err := token.SecureURL(opts.BaseURL, issuer, opts.Function, opts.SessionID, opts.TTL, now)
		if err != nil {
			return WrapExitError(ExitCommandError, "signing URL", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(map[string]any{"url": signed})
		}
		fmt.Fprintln(formatter.Writer, signed)
		return nil
	}

	tok, err := issuer.Issue(opts.Function, opts.SessionID, opts.TTL, now)
	if err != nil {
		return WrapExitError(ExitCommandError, "issuing token", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"token":      tok,
			"function":   opts.Function,
			"session_id": opts.SessionID,
			"expires_at": now.Add(opts.TTL).UTC().Format(time.RFC3339),
		})
	}
	fmt.Fprintln(formatter.Writer, tok)
	return nil
}

func runTokenVerify(opts *TokenVerifyOptions, tok string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	issuer, err := issuerFromEnv()
	if err != nil {
		return err
	}

	if err := issuer.Validate(tok, opts.Function, opts.SessionID, time.Now()); err != nil {
		code := ErrCodeGeneric
		var ve *token.ValidationError
		if errors.As(err, &ve) {
			code = string(ve.Code)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	claims, err := token.Decode(tok)
	if err != nil {
		return WrapExitError(ExitFailure, "decoding token", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"valid":      true,
			"function":   claims.Function,
			"session_id": claims.SessionID,
			"issued_at":  claims.IssuedAt,
			"expires_at": claims.ExpiresAt,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ token valid for %s (session %s)\n", claims.Function, claims.SessionID)
	return nil
}
