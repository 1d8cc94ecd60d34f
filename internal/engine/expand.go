package engine

import (
	"regexp"

	"github.com/weftlabs/weft/internal/value"
)

// placeholderPattern matches both placeholder spellings: ${path} and
// %{path}. The two are synonyms.
var placeholderPattern = regexp.MustCompile(`[$%]\{([^}]+)\}`)

// Expand rewrites a template by substituting every placeholder with the
// value its path resolves to in the scope.
//
// Expansion is total: a placeholder whose path does not resolve is
// rendered as the literal marker "MISSING:<path>" instead of raising,
// which keeps missing-data bugs visible in output rather than silently
// dropped. Scalars are stringified bare; objects and arrays interpolate
// as compact JSON.
//
// Substitution is a single pass over the template - values containing
// placeholder-looking text are never re-expanded, so expansion is
// idempotent on fully-resolved output.
func Expand(template string, scope *Scope) string {
	if template == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		path := m[2 : len(m)-1]
		v, ok := scope.Lookup(path)
		if !ok {
			return "MISSING:" + path
		}
		return value.Stringify(v)
	})
}

// ExpandValue walks a template value tree (request bodies, action
// params) and expands every string leaf. Non-string scalars pass
// through unchanged. The input is never mutated.
func ExpandValue(v any, scope *Scope) any {
	switch val := v.(type) {
	case string:
		return Expand(val, scope)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ExpandValue(elem, scope)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ExpandValue(elem, scope)
		}
		return out
	default:
		return v
	}
}
