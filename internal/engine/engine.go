package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftlabs/weft/internal/spec"
	"github.com/weftlabs/weft/internal/store"
	"github.com/weftlabs/weft/internal/token"
)

// Outcome names how an invocation produced its result.
type Outcome string

const (
	// OutcomeExpression means an expression pattern matched and the
	// call pipeline was skipped.
	OutcomeExpression Outcome = "expression"

	// OutcomeAttemptSuccess means one of the call attempts succeeded.
	OutcomeAttemptSuccess Outcome = "attempt_success"

	// OutcomeAllFailed means every attempt failed and the fallback (or
	// generic failure text) was rendered.
	OutcomeAllFailed Outcome = "all_failed"
)

// Request is the invocation contract from caller to engine.
type Request struct {
	// Function names the registered spec to execute.
	Function string

	// Arguments are the caller-supplied parameters, validated against
	// the spec's parameter schema.
	Arguments map[string]any

	// RawArguments is the text expression patterns match against.
	// Empty defaults to the compact JSON of Arguments.
	RawArguments string

	// CallID and SessionID identify the call; generated when empty.
	CallID    string
	SessionID string

	// MetaData and GlobalData are read-only scope layers supplied by
	// the surrounding system. The engine never mutates them.
	MetaData   map[string]any
	GlobalData map[string]any
}

// Result is what an invocation returns: fully-resolved text plus any
// opaque side-effect directives the matched template carried.
type Result struct {
	Text        string
	SideEffects []spec.Action

	// CallID echoes (or supplies) the call identifier.
	CallID string

	// Outcome reports which pipeline stage produced the text.
	Outcome Outcome

	// AttemptIndex is the successful attempt's position in declaration
	// order, or -1 when no attempt ran or succeeded.
	AttemptIndex int
}

// Engine executes registered function specs.
//
// Each invocation is logically single-threaded: a fresh Scope is
// created per call and discarded at the end. Concurrent invocations are
// fully independent - the only shared inputs are the immutable compiled
// specs, the signing secret, and the pooled HTTP client, all safe for
// concurrent use.
type Engine struct {
	registry *spec.Registry
	executor *Executor
	issuer   *token.Issuer
	trace    *store.Store
	clock    *Clock
	idGen    IDGenerator
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithExecutor replaces the default executor (custom timeout or
// transport).
func WithExecutor(x *Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// WithIssuer enables InvokeSecured with the given token issuer.
func WithIssuer(i *token.Issuer) Option {
	return func(e *Engine) { e.issuer = i }
}

// WithTraceLog appends one record per invocation to the given store.
func WithTraceLog(s *store.Store) Option {
	return func(e *Engine) { e.trace = s }
}

// WithIDGenerator replaces the UUID generator. Tests use
// NewFixedGenerator for deterministic identifiers.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithNow replaces the wall clock used for token validation. Tests use
// a fixed time.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over a registry of compiled specs.
func New(registry *spec.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		executor: NewExecutor(),
		clock:    NewClock(),
		idGen:    UUIDv7Generator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invoke runs the pipeline for one request:
//
//	expression matcher -> call attempt executor -> array processor ->
//	output builder
//
// The returned error is non-nil only for pre-pipeline rejections
// (unknown function, invalid arguments). All-attempts-failed is a
// normal Result carrying the fallback or generic failure text.
func (e *Engine) Invoke(ctx context.Context, req Request) (*Result, error) {
	fn, ok := e.registry.Lookup(req.Function)
	if !ok {
		return nil, &InvocationError{
			Code:     ErrCodeUnknownFunction,
			Function: req.Function,
			Message:  "no function registered under this name",
		}
	}

	if err := fn.ValidateArgs(req.Arguments); err != nil {
		return nil, &InvocationError{
			Code:     ErrCodeInvalidArguments,
			Function: req.Function,
			Message:  "arguments violate the parameter schema",
			Err:      err,
		}
	}

	if req.CallID == "" {
		req.CallID = e.idGen.Generate()
	}
	if req.SessionID == "" {
		req.SessionID = e.idGen.Generate()
	}

	slog.Debug("invoking function",
		"function", req.Function,
		"call_id", req.CallID,
	)

	result := e.runPipeline(ctx, fn, &req)
	result.CallID = req.CallID

	e.record(ctx, &req, result)

	slog.Info("invocation complete",
		"function", req.Function,
		"call_id", req.CallID,
		"outcome", result.Outcome,
		"attempt", result.AttemptIndex,
	)

	return result, nil
}

// InvokeSecured validates a call token before running the pipeline.
// Token rejections are always surfaced as authorization errors, never
// downgraded into fallback text.
func (e *Engine) InvokeSecured(ctx context.Context, tok string, req Request) (*Result, error) {
	if e.issuer == nil {
		return nil, &InvocationError{
			Code:     ErrCodeUnauthorized,
			Function: req.Function,
			Message:  "engine has no token issuer configured",
		}
	}
	if err := e.issuer.Validate(tok, req.Function, req.SessionID, e.now()); err != nil {
		return nil, &InvocationError{
			Code:     ErrCodeUnauthorized,
			Function: req.Function,
			Message:  "call token rejected",
			Err:      err,
		}
	}
	return e.Invoke(ctx, req)
}

// runPipeline executes the matcher/executor/foreach/output stages.
// Total by construction: every path renders a Result.
func (e *Engine) runPipeline(ctx context.Context, fn *spec.CompiledFunction, req *Request) *Result {
	s := fn.Spec()
	scope := NewScope(req.Arguments, req.GlobalData, req.MetaData)

	// Stage 1: expression shortcuts. First match wins and skips the
	// entire call pipeline.
	if template, matched := Match(fn.Expressions(), e.rawArgs(req)); matched {
		out := BuildOutput(template, scope)
		return &Result{
			Text:         out.Text,
			SideEffects:  out.SideEffects,
			Outcome:      OutcomeExpression,
			AttemptIndex: -1,
		}
	}

	// Stage 2: ordered call attempts.
	outcome, ok := e.executor.Execute(ctx, s, scope)
	if !ok {
		out := buildFailureOutput(s, scope)
		return &Result{
			Text:         out.Text,
			SideEffects:  out.SideEffects,
			Outcome:      OutcomeAllFailed,
			AttemptIndex: -1,
		}
	}

	// Stage 3: array post-processing of the successful response.
	ProcessForeach(s.Foreach, scope)

	// Stage 4: output building.
	out := buildSuccessOutput(s, outcome, scope)
	return &Result{
		Text:         out.Text,
		SideEffects:  out.SideEffects,
		Outcome:      OutcomeAttemptSuccess,
		AttemptIndex: outcome.Index,
	}
}

// rawArgs returns the text expression patterns are matched against.
func (e *Engine) rawArgs(req *Request) string {
	if req.RawArguments != "" {
		return req.RawArguments
	}
	if len(req.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Sprintf("%v", req.Arguments)
	}
	return string(b)
}

// record appends a trace-log record when a store is configured.
// Log-and-continue: a trace write failure never fails the invocation.
func (e *Engine) record(ctx context.Context, req *Request, res *Result) {
	if e.trace == nil {
		return
	}

	argsJSON, err := json.Marshal(req.Arguments)
	if err != nil {
		argsJSON = []byte("{}")
	}

	rec := store.Record{
		CallID:    req.CallID,
		SessionID: req.SessionID,
		Function:  req.Function,
		Args:      string(argsJSON),
		Outcome:   string(res.Outcome),
		Attempt:   res.AttemptIndex,
		Text:      res.Text,
		Seq:       e.clock.Next(),
	}
	if err := e.trace.WriteRecord(ctx, rec); err != nil {
		slog.Error("trace record write failed",
			"error", err,
			"function", req.Function,
			"call_id", req.CallID,
		)
	}
}
