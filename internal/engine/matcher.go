package engine

import (
	"github.com/weftlabs/weft/internal/spec"
)

// Match checks compiled expressions against the raw call arguments in
// declaration order. The first matching expression wins and its result
// template is returned; the rest of the pipeline (including every call
// attempt) is skipped by the caller.
//
// No match returns false, which falls through to the call attempt
// executor. Patterns were compiled at registration time, so matching
// cannot fail here.
func Match(exprs []spec.CompiledExpression, rawArgs string) (*spec.Result, bool) {
	for _, expr := range exprs {
		if expr.Pattern.MatchString(rawArgs) {
			out := expr.Output
			return &out, true
		}
	}
	return nil, false
}
