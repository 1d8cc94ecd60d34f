package engine

import (
	"strings"

	"github.com/weftlabs/weft/internal/spec"
)

// ProcessForeach expands a per-item template across an array extracted
// from the response and stores the concatenation back into the scope
// under the foreach output key.
//
// The source path is resolved against the current scope (typically
// "response.<field>" or "array"). A path that does not resolve to an
// array skips the step entirely - not every response shape requires
// iteration, so this is not an error. Iteration is bounded by Max when
// positive.
//
// Each element is bound as "this" in a copy of the scope, so item
// bindings never leak into the parent.
func ProcessForeach(f *spec.ForeachSpec, scope *Scope) {
	if f == nil {
		return
	}
	nf := spec.NormalizeForeach(f)

	src, ok := scope.Lookup(nf.Source)
	if !ok {
		return
	}
	arr, ok := src.([]any)
	if !ok {
		return
	}

	limit := len(arr)
	if nf.Max > 0 && nf.Max < limit {
		limit = nf.Max
	}

	var acc strings.Builder
	for _, item := range arr[:limit] {
		itemScope := scope.Clone()
		itemScope.BindItem(item)
		acc.WriteString(Expand(nf.Append, itemScope))
	}

	scope.SetOutput(nf.OutputKey, acc.String())
}
