package engine

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/spec"
)

func compiledExprs(t *testing.T, exprs ...spec.Expression) []spec.CompiledExpression {
	t.Helper()
	out := make([]spec.CompiledExpression, 0, len(exprs))
	for _, e := range exprs {
		src := e.Pattern
		if e.CaseInsensitive {
			src = "(?i)" + src
		}
		re, err := regexp.Compile(src)
		require.NoError(t, err)
		out = append(out, spec.CompiledExpression{Pattern: re, Output: e.Output})
	}
	return out
}

func TestMatchFirstWins(t *testing.T) {
	exprs := compiledExprs(t,
		spec.Expression{Pattern: `help`, Output: spec.Result{Response: "first"}},
		spec.Expression{Pattern: `help me`, Output: spec.Result{Response: "second"}},
	)

	res, ok := Match(exprs, `{"q":"help me"}`)
	require.True(t, ok)
	assert.Equal(t, "first", res.Response)
}

func TestMatchNone(t *testing.T) {
	exprs := compiledExprs(t,
		spec.Expression{Pattern: `weather`, Output: spec.Result{Response: "w"}},
	)

	res, ok := Match(exprs, `{"q":"news"}`)
	assert.False(t, ok)
	assert.Nil(t, res)
}

func TestMatchCaseInsensitive(t *testing.T) {
	exprs := compiledExprs(t,
		spec.Expression{Pattern: `weather`, CaseInsensitive: true, Output: spec.Result{Response: "w"}},
	)

	_, ok := Match(exprs, `{"q":"WEATHER now"}`)
	assert.True(t, ok)

	// Without the flag the same input does not match.
	strict := compiledExprs(t,
		spec.Expression{Pattern: `weather`, Output: spec.Result{Response: "w"}},
	)
	_, ok = Match(strict, `{"q":"WEATHER now"}`)
	assert.False(t, ok)
}

func TestMatchEmptyExpressionList(t *testing.T) {
	_, ok := Match(nil, `{"q":"x"}`)
	assert.False(t, ok)
}
