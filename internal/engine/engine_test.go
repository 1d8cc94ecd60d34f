package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/spec"
	"github.com/weftlabs/weft/internal/store"
	"github.com/weftlabs/weft/internal/testutil"
	"github.com/weftlabs/weft/internal/token"
)

func newTestEngine(t *testing.T, specs []*spec.FunctionSpec, opts ...Option) *Engine {
	t.Helper()
	reg := spec.NewRegistry()
	for _, s := range specs {
		_, err := reg.Register(s)
		require.NoError(t, err)
	}
	return New(reg, opts...)
}

func TestInvokeExpressionShortCircuits(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "echo",
		Expressions: []spec.Expression{
			{Pattern: `question`, Output: spec.Result{Response: "Got: ${args.q}"}},
		},
		Attempts: []spec.AttemptSpec{{Method: "GET", URL: srv.URL}},
	}})

	res, err := e.Invoke(context.Background(), Request{
		Function:  "echo",
		Arguments: map[string]any{"q": "a question"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Got: a question", res.Text)
	assert.Equal(t, OutcomeExpression, res.Outcome)
	assert.Equal(t, -1, res.AttemptIndex)

	// No outbound call was made.
	assert.Equal(t, int64(0), calls.Load())
}

func TestInvokeRawArgumentsOverrideMatchText(t *testing.T) {
	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "raw",
		Expressions: []spec.Expression{
			{Pattern: `verbatim`, Output: spec.Result{Response: "matched"}},
		},
	}})

	res, err := e.Invoke(context.Background(), Request{
		Function:     "raw",
		Arguments:    map[string]any{"q": "nothing relevant"},
		RawArguments: "verbatim text",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpression, res.Outcome)
	assert.Equal(t, "matched", res.Text)
}

func TestInvokeFullPipeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"title":"Alpha"},{"title":"Beta"},{"title":"Gamma"}]}`))
	}))
	defer srv.Close()

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "search",
		Attempts: []spec.AttemptSpec{
			{Method: "GET", URL: srv.URL + "?q=${args.q}"},
		},
		Foreach: &spec.ForeachSpec{
			Source:    "response.results",
			OutputKey: "titles",
			Append:    "* ${this.title}\n",
			Max:       2,
		},
		Output: &spec.Result{Response: "Results for ${args.q}:\n${titles}"},
	}})

	res, err := e.Invoke(context.Background(), Request{
		Function:  "search",
		Arguments: map[string]any{"q": "greek"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttemptSuccess, res.Outcome)
	assert.Equal(t, 0, res.AttemptIndex)
	assert.Equal(t, "Results for greek:\n* Alpha\n* Beta\n", res.Text)
}

func TestInvokeFailoverToSecondAttempt(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"down"}`, http.StatusBadGateway)
	}))
	defer failing.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"from backup"}`))
	}))
	defer working.Close()

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "resilient",
		Attempts: []spec.AttemptSpec{
			{Method: "GET", URL: failing.URL},
			{Method: "GET", URL: working.URL},
		},
		Output: &spec.Result{Response: "${response.answer}"},
	}})

	res, err := e.Invoke(context.Background(), Request{Function: "resilient"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttemptSuccess, res.Outcome)
	assert.Equal(t, 1, res.AttemptIndex)
	assert.Equal(t, "from backup", res.Text)
}

func TestInvokeAllFailedUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name:     "flaky",
		Attempts: []spec.AttemptSpec{{Method: "GET", URL: srv.URL}},
		Fallback: &spec.Result{Response: "Service unavailable for ${args.q}."},
	}})

	res, err := e.Invoke(context.Background(), Request{
		Function:  "flaky",
		Arguments: map[string]any{"q": "news"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllFailed, res.Outcome)
	assert.Equal(t, -1, res.AttemptIndex)
	assert.Equal(t, "Service unavailable for news.", res.Text)
}

func TestInvokeAllFailedGenericText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name:     "bare",
		Attempts: []spec.AttemptSpec{{Method: "GET", URL: srv.URL}},
	}})

	res, err := e.Invoke(context.Background(), Request{Function: "bare"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllFailed, res.Outcome)
	assert.Equal(t, GenericFailureText, res.Text)
}

func TestInvokeUnknownFunction(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Invoke(context.Background(), Request{Function: "ghost"})
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeUnknownFunction))
}

func TestInvokeInvalidArguments(t *testing.T) {
	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "typed",
		Parameters: []spec.Parameter{
			{Name: "count", Type: "number", Required: true},
		},
		Expressions: []spec.Expression{
			{Pattern: `.`, Output: spec.Result{Response: "ok"}},
		},
	}})

	_, err := e.Invoke(context.Background(), Request{
		Function:  "typed",
		Arguments: map[string]any{"count": "not a number"},
	})
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeInvalidArguments))

	_, err = e.Invoke(context.Background(), Request{
		Function:  "typed",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeInvalidArguments))
}

func TestInvokeGeneratesIDs(t *testing.T) {
	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "ids",
		Expressions: []spec.Expression{
			{Pattern: `.`, Output: spec.Result{Response: "ok"}},
		},
	}}, WithIDGenerator(NewFixedGenerator("call-1", "sess-1")))

	res, err := e.Invoke(context.Background(), Request{
		Function:  "ids",
		Arguments: map[string]any{"q": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "call-1", res.CallID)
}

func TestInvokeSecured(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("test-secret"))
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "secured",
		Expressions: []spec.Expression{
			{Pattern: `.`, Output: spec.Result{Response: "granted"}},
		},
	}}, WithIssuer(issuer), WithNow(func() time.Time { return now }))

	tok, err := issuer.Issue("secured", "sess-1", time.Hour, now)
	require.NoError(t, err)

	res, err := e.InvokeSecured(context.Background(), tok, Request{
		Function:  "secured",
		SessionID: "sess-1",
		Arguments: map[string]any{"q": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "granted", res.Text)

	// Same token, different session: rejected before the pipeline runs.
	_, err = e.InvokeSecured(context.Background(), tok, Request{
		Function:  "secured",
		SessionID: "sess-2",
		Arguments: map[string]any{"q": "x"},
	})
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeUnauthorized))

	// Garbage token.
	_, err = e.InvokeSecured(context.Background(), "not-a-token", Request{
		Function:  "secured",
		SessionID: "sess-1",
	})
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeUnauthorized))
}

func TestInvokeSecuredTokenExpires(t *testing.T) {
	issuer, err := token.NewIssuer([]byte("test-secret"))
	require.NoError(t, err)
	clk := testutil.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "timed",
		Expressions: []spec.Expression{
			{Pattern: `.`, Output: spec.Result{Response: "ok"}},
		},
	}}, WithIssuer(issuer), WithNow(clk.Now))

	tok, err := issuer.Issue("timed", "sess-1", time.Hour, clk.Now())
	require.NoError(t, err)

	req := Request{Function: "timed", SessionID: "sess-1", Arguments: map[string]any{"q": "x"}}

	_, err = e.InvokeSecured(context.Background(), tok, req)
	require.NoError(t, err)

	// Same token after the validity window has passed.
	clk.Advance(2 * time.Hour)
	_, err = e.InvokeSecured(context.Background(), tok, req)
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeUnauthorized))
	assert.True(t, token.IsValidationError(err, token.CodeExpired))
}

func TestInvokeSecuredWithoutIssuer(t *testing.T) {
	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "open",
		Expressions: []spec.Expression{
			{Pattern: `.`, Output: spec.Result{Response: "ok"}},
		},
	}})

	_, err := e.InvokeSecured(context.Background(), "any", Request{Function: "open"})
	require.Error(t, err)
	assert.True(t, IsInvocationError(err, ErrCodeUnauthorized))
}

func TestInvokeWritesTraceRecord(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer db.Close()

	e := newTestEngine(t, []*spec.FunctionSpec{{
		Name: "traced",
		Expressions: []spec.Expression{
			{Pattern: `.`, Output: spec.Result{Response: "done"}},
		},
	}},
		WithTraceLog(db),
		WithIDGenerator(NewFixedGenerator("call-1", "sess-1")),
	)

	_, err = e.Invoke(context.Background(), Request{
		Function:  "traced",
		Arguments: map[string]any{"q": "x"},
	})
	require.NoError(t, err)

	recs, err := db.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "call-1", recs[0].CallID)
	assert.Equal(t, "sess-1", recs[0].SessionID)
	assert.Equal(t, "traced", recs[0].Function)
	assert.Equal(t, `{"q":"x"}`, recs[0].Args)
	assert.Equal(t, string(OutcomeExpression), recs[0].Outcome)
	assert.Equal(t, -1, recs[0].Attempt)
	assert.Equal(t, "done", recs[0].Text)
	assert.Equal(t, int64(1), recs[0].Seq)
}

func TestClockMonotonic(t *testing.T) {
	c := NewClockAt(10)
	assert.Equal(t, int64(10), c.Current())
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, int64(12), c.Next())
	assert.Equal(t, int64(12), c.Current())
}
