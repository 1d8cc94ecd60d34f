package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/weftlabs/weft/internal/spec"
	"github.com/weftlabs/weft/internal/value"
)

// DefaultAttemptTimeout bounds each outbound call so a hung upstream
// cannot stall the invoker indefinitely. A timed-out attempt is a
// failure; the pipeline proceeds to the next attempt.
const DefaultAttemptTimeout = 30 * time.Second

// AttemptOutcome reports which attempt succeeded and with what parsed
// response.
type AttemptOutcome struct {
	// Attempt is the spec of the call that succeeded.
	Attempt *spec.AttemptSpec

	// Index is the attempt's position in declaration order.
	Index int

	// Response is the parsed response body.
	Response any
}

// Executor issues the candidate outbound calls of a spec, strictly in
// declaration order, stopping at the first success.
//
// Safe for concurrent use: the resty client pools connections
// internally and the executor holds no per-invocation state.
type Executor struct {
	client *resty.Client
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(x *Executor) {
		x.client.SetTimeout(d)
	}
}

// WithTransport replaces the HTTP transport. Tests use this to serve
// scripted responses without a network.
func WithTransport(rt http.RoundTripper) ExecutorOption {
	return func(x *Executor) {
		x.client.SetTransport(rt)
	}
}

// NewExecutor creates an executor with the default per-attempt timeout.
func NewExecutor(opts ...ExecutorOption) *Executor {
	x := &Executor{client: resty.New().SetTimeout(DefaultAttemptTimeout)}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute tries each attempt in order:
//
//  1. Expand URL, header, and body templates against the scope.
//  2. Issue the HTTP request with the bounded timeout.
//  3. Classify the outcome. An attempt fails on transport error, a
//     status outside 200-299, a parse_error/protocol_error key in the
//     body, or any key from the attempt's effective error-key set.
//  4. On failure, advance to the next attempt without touching the
//     scope. On success, store the parsed response into the scope and
//     stop.
//
// Returns the successful outcome, or ok=false when every attempt
// failed. All-failed is a normal, representable result - the output
// builder renders the fallback template for it.
func (x *Executor) Execute(ctx context.Context, s *spec.FunctionSpec, scope *Scope) (AttemptOutcome, bool) {
	for i := range s.Attempts {
		attempt := &s.Attempts[i]

		parsed, ok := x.tryAttempt(ctx, s, attempt, scope)
		if !ok {
			slog.Debug("attempt failed, advancing",
				"function", s.Name,
				"attempt", i,
				"of", len(s.Attempts),
			)
			continue
		}

		// Success: only now does the response enter the scope, so a
		// failed attempt's body can never leak into the final output.
		scope.SetResponse(parsed)
		return AttemptOutcome{Attempt: attempt, Index: i, Response: parsed}, true
	}

	return AttemptOutcome{}, false
}

// tryAttempt issues one call and classifies the result. The boolean is
// false for any of the failure conditions; the parsed body is returned
// only on success.
func (x *Executor) tryAttempt(ctx context.Context, s *spec.FunctionSpec, attempt *spec.AttemptSpec, scope *Scope) (any, bool) {
	url := Expand(attempt.URL, scope)
	method := strings.ToUpper(attempt.Method)
	if method == "" {
		method = http.MethodPost
	}

	req := x.client.R().SetContext(ctx)
	for k, v := range attempt.Headers {
		req.SetHeader(k, Expand(v, scope))
	}
	if attempt.Body != nil {
		req.SetBody(ExpandValue(attempt.Body, scope))
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		// Transport failure: timeout, DNS, connection refused.
		slog.Debug("attempt transport error",
			"function", s.Name,
			"method", method,
			"url", url,
			"error", err,
		)
		return nil, false
	}

	parsed := parseBody(resp.Body(), resp.StatusCode())

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		slog.Debug("attempt returned non-2xx status",
			"function", s.Name,
			"url", url,
			"status", resp.StatusCode(),
		)
		return nil, false
	}

	if key, failed := errorKeyPresent(parsed, s.EffectiveErrorKeys(attempt)); failed {
		slog.Debug("attempt response carries error key",
			"function", s.Name,
			"url", url,
			"error_key", key,
		)
		return nil, false
	}

	return parsed, true
}

// parseBody decodes a JSON response body. An unparseable body is
// wrapped in an object that carries the raw text and a parse_error
// marker, which the error-key check then treats as a failure - the
// same shape the upstream server produces.
func parseBody(body []byte, status int) any {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return map[string]any{
			"text":         string(body),
			"status_code":  float64(status),
			"parse_error":  true,
			"raw_response": string(body),
		}
	}
	return parsed
}

// builtinErrorKeys always mark a response as failed, independent of
// spec configuration.
var builtinErrorKeys = []string{"parse_error", "protocol_error"}

// errorKeyPresent checks the built-in error keys followed by the
// attempt's effective set. Only top-level keys of object responses
// count; bare-array responses have no keys to inspect.
func errorKeyPresent(parsed any, effective []string) (string, bool) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range builtinErrorKeys {
		if v, exists := obj[key]; exists && value.Truthy(v) {
			return key, true
		}
	}
	for _, key := range effective {
		if v, exists := obj[key]; exists && value.Truthy(v) {
			return key, true
		}
	}
	return "", false
}
