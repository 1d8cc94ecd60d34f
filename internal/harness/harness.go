package harness

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/weftlabs/weft/internal/compiler"
	"github.com/weftlabs/weft/internal/engine"
	"github.com/weftlabs/weft/internal/spec"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates every expect clause matched.
	Pass bool `json:"pass"`

	// Steps records one entry per flow step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains expect-clause mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// StepResult is the recorded outcome of one flow step.
type StepResult struct {
	Function string           `json:"function"`
	CallID   string           `json:"call_id"`
	Outcome  string           `json:"outcome"`
	Attempt  int              `json:"attempt"`
	Text     string           `json:"text"`
	Actions  []map[string]any `json:"actions,omitempty"`
}

// AddError records an expect mismatch and marks the run failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario: load and register the specs, start the
// scripted mock upstream (when responses are declared), and run each
// flow step through the engine, checking expect clauses.
//
// A returned error means the scenario could not run at all (bad spec,
// rejected invocation). Expect mismatches are reported in the Result,
// not as errors.
func Run(scenario *Scenario) (*Result, error) {
	registry, err := loadSpecFiles(scenario.Specs)
	if err != nil {
		return nil, err
	}

	globalData := make(map[string]any, len(scenario.GlobalData)+1)
	for k, v := range scenario.GlobalData {
		globalData[k] = v
	}

	if len(scenario.Responses) > 0 {
		upstream := newScriptedUpstream(scenario.Responses)
		srv := httptest.NewServer(upstream)
		defer srv.Close()
		if _, set := globalData["base_url"]; !set {
			globalData["base_url"] = srv.URL
		}
	}

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = "session-1"
	}

	eng := engine.New(registry)
	result := &Result{Pass: true}

	for i, step := range scenario.Flow {
		res, err := eng.Invoke(context.Background(), engine.Request{
			Function:     step.Invoke,
			Arguments:    step.Args,
			RawArguments: step.RawArgs,
			CallID:       fmt.Sprintf("call-%d", i+1),
			SessionID:    sessionID,
			GlobalData:   globalData,
			MetaData:     scenario.MetaData,
		})
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}

		sr := StepResult{
			Function: step.Invoke,
			CallID:   res.CallID,
			Outcome:  string(res.Outcome),
			Attempt:  res.AttemptIndex,
			Text:     res.Text,
		}
		for _, action := range res.SideEffects {
			sr.Actions = append(sr.Actions, map[string]any{action.Type: action.Params})
		}
		result.Steps = append(result.Steps, sr)

		checkExpect(result, i, step.Expect, &sr)
	}

	return result, nil
}

// checkExpect validates one step result against its expect clause.
func checkExpect(result *Result, index int, expect *ExpectClause, sr *StepResult) {
	if expect == nil {
		return
	}
	if expect.Outcome != "" && expect.Outcome != sr.Outcome {
		result.AddError("flow[%d] %s: outcome %q, want %q", index, sr.Function, sr.Outcome, expect.Outcome)
	}
	if expect.Attempt != nil && *expect.Attempt != sr.Attempt {
		result.AddError("flow[%d] %s: attempt %d, want %d", index, sr.Function, sr.Attempt, *expect.Attempt)
	}
	if expect.Text != nil && *expect.Text != sr.Text {
		result.AddError("flow[%d] %s: text %q, want %q", index, sr.Function, sr.Text, *expect.Text)
	}
	if expect.TextContains != "" && !strings.Contains(sr.Text, expect.TextContains) {
		result.AddError("flow[%d] %s: text %q does not contain %q", index, sr.Function, sr.Text, expect.TextContains)
	}
}

// loadSpecFiles compiles and registers every function spec in the
// given CUE files.
func loadSpecFiles(paths []string) (*spec.Registry, error) {
	ctx := cuecontext.New()
	registry := spec.NewRegistry()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", path, err)
		}
		v := ctx.CompileBytes(data)
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile spec %s: %w", path, err)
		}

		funcsVal := v.LookupPath(cue.ParsePath("function"))
		if !funcsVal.Exists() {
			return nil, fmt.Errorf("spec %s declares no functions", path)
		}
		iter, err := funcsVal.Fields()
		if err != nil {
			return nil, fmt.Errorf("spec %s: %w", path, err)
		}
		for iter.Next() {
			fn, err := compiler.CompileFunction(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("spec %s: %w", path, err)
			}
			if _, err := registry.Register(fn); err != nil {
				return nil, fmt.Errorf("spec %s: %w", path, err)
			}
		}
	}

	return registry, nil
}

// scriptedUpstream serves scripted responses in request order.
type scriptedUpstream struct {
	mu        sync.Mutex
	responses []MockResponse
	next      int
}

func newScriptedUpstream(responses []MockResponse) *scriptedUpstream {
	return &scriptedUpstream{responses: responses}
}

func (u *scriptedUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.next >= len(u.responses) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"no scripted response left"}`)
		return
	}

	resp := u.responses[u.next]
	u.next++

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, resp.Body)
}
