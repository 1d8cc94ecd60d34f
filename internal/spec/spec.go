package spec

import (
	"strings"
)

// FunctionSpec is the declarative description of one callable function:
// its parameter schema, pattern-match expressions, candidate outbound
// calls, array post-processing, and output templates.
//
// A FunctionSpec is built once (by the compiler or by hand in tests),
// validated and frozen at registration time, and never mutated
// afterwards. Compiled specs are safe for concurrent reads.
//
// INVARIANT: at least one of Expressions or Attempts must be non-empty.
// A spec with neither has no way to produce a result and is rejected at
// registration.
type FunctionSpec struct {
	// Name uniquely identifies the function in a registry.
	Name string

	// Description is the human-readable purpose, surfaced in the
	// rendered function definition.
	Description string

	// Parameters declares caller arguments in declaration order.
	Parameters []Parameter

	// Expressions are pattern-match shortcuts evaluated before any
	// outbound call, in declaration order. First match wins.
	Expressions []Expression

	// Attempts are candidate outbound calls, tried in order until one
	// succeeds.
	Attempts []AttemptSpec

	// Foreach optionally post-processes an array extracted from the
	// successful response.
	Foreach *ForeachSpec

	// Output is the spec-level output template, used when the
	// successful attempt declares none of its own.
	Output *Result

	// Fallback is expanded when every attempt fails. When nil the
	// engine returns a fixed generic failure text instead.
	Fallback *Result

	// ErrorKeys are response-body field names whose presence marks an
	// otherwise-2xx response as a logical failure. Attempt-level keys
	// union with these.
	ErrorKeys []string
}

// Parameter declares one caller argument.
type Parameter struct {
	Name        string
	Type        string // JSON schema type: string, number, boolean, array, object
	Description string
	Required    bool
	Enum        []string
}

// Expression pairs a regular expression with the result returned when
// it matches the raw call arguments.
type Expression struct {
	// Pattern is the regular expression source text.
	Pattern string

	// CaseInsensitive compiles the pattern with (?i).
	CaseInsensitive bool

	// Output is returned verbatim (after template expansion) on match.
	Output Result
}

// AttemptSpec is one candidate outbound HTTP call. URL, header values,
// and body string leaves are templates expanded against the invocation
// scope before sending.
type AttemptSpec struct {
	Method  string
	URL     string
	Headers map[string]string

	// Body is the request body template. String leaves are expanded;
	// nested objects and arrays are walked recursively. Nil means no
	// body.
	Body map[string]any

	// ErrorKeys extend the spec-level error-key set for this attempt.
	ErrorKeys []string

	// Output overrides the spec-level output template for this attempt.
	Output *Result
}

// ForeachSpec describes array post-processing of a successful response:
// resolve Source against the scope, expand Append once per element, and
// store the concatenation back into the scope under OutputKey.
type ForeachSpec struct {
	// Source is a scope path to the array, e.g. "response.results" or
	// "array". The compiler also accepts a bare response key.
	Source string

	// OutputKey is the scope key the concatenated text is stored under.
	// Defaults to "result".
	OutputKey string

	// Append is the per-item template. The current element is bound as
	// "this" (and "foreach" as a synonym). Defaults to "${this.value}".
	Append string

	// Max bounds the number of processed elements. Zero or negative
	// means unbounded.
	Max int
}

// Result is a response template: the text the caller should receive
// plus opaque side-effect directives passed through after expansion of
// their string leaves.
type Result struct {
	Response string
	Actions  []Action
}

// Action is one opaque side-effect directive attached to a result.
type Action struct {
	Type   string
	Params map[string]any
}

// EffectiveErrorKeys returns the union of the spec-level and
// attempt-level error keys, preserving first-seen order.
func (s *FunctionSpec) EffectiveErrorKeys(attempt *AttemptSpec) []string {
	seen := make(map[string]bool, len(s.ErrorKeys)+len(attempt.ErrorKeys))
	keys := make([]string, 0, len(s.ErrorKeys)+len(attempt.ErrorKeys))
	for _, k := range s.ErrorKeys {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range attempt.ErrorKeys {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// NormalizeForeach fills in defaults for omitted foreach fields.
func NormalizeForeach(f *ForeachSpec) *ForeachSpec {
	if f == nil {
		return nil
	}
	out := *f
	if out.OutputKey == "" {
		out.OutputKey = "result"
	}
	if out.Append == "" {
		out.Append = "${this.value}"
	}
	// "${response.results}" and "results" are accepted spellings for
	// "response.results".
	out.Source = normalizeSource(out.Source)
	return &out
}

// normalizeSource strips an optional ${...} wrapper and prefixes bare
// response keys with "response.".
func normalizeSource(src string) string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "${") && strings.HasSuffix(src, "}") {
		src = src[2 : len(src)-1]
	} else if strings.HasPrefix(src, "%{") && strings.HasSuffix(src, "}") {
		src = src[2 : len(src)-1]
	}
	if src == "" {
		return src
	}
	layer := src
	if i := strings.IndexAny(src, ".["); i >= 0 {
		layer = src[:i]
	}
	switch layer {
	case "response", "array", "this", "foreach", "args", "global_data", "meta_data":
		return src
	default:
		return "response." + src
	}
}
