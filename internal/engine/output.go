package engine

import (
	"github.com/weftlabs/weft/internal/spec"
	"github.com/weftlabs/weft/internal/value"
)

// GenericFailureText is returned when every attempt failed and the spec
// declares no fallback template. End users get a graceful message, not
// a broken call.
const GenericFailureText = "The request could not be completed. Please try again later."

// BuildOutput expands a result template against the final scope. The
// response text and every string leaf of the action params are
// expanded; actions otherwise pass through opaque.
func BuildOutput(template *spec.Result, scope *Scope) Result {
	out := Result{Text: Expand(template.Response, scope)}
	for _, action := range template.Actions {
		expanded := spec.Action{Type: action.Type}
		if action.Params != nil {
			expanded.Params = ExpandValue(action.Params, scope).(map[string]any)
		}
		out.SideEffects = append(out.SideEffects, expanded)
	}
	return out
}

// buildSuccessOutput renders the result for a successful attempt. The
// attempt's own output template wins; the spec-level template is the
// fallback. An attempt with neither renders the parsed response
// directly, so a spec author can omit templates for passthrough APIs.
func buildSuccessOutput(s *spec.FunctionSpec, outcome AttemptOutcome, scope *Scope) Result {
	template := outcome.Attempt.Output
	if template == nil {
		template = s.Output
	}
	if template == nil {
		return Result{Text: value.Stringify(outcome.Response)}
	}
	return BuildOutput(template, scope)
}

// buildFailureOutput renders the result when every attempt failed:
// the declared fallback template, or the fixed generic failure text.
// All-attempts-failed is a normal outcome, never an error to the
// caller.
func buildFailureOutput(s *spec.FunctionSpec, scope *Scope) Result {
	if s.Fallback != nil {
		return BuildOutput(s.Fallback, scope)
	}
	return Result{Text: GenericFailureText}
}
