package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/spec"
)

func compileString(t *testing.T, src, path string) cue.Value {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return v.LookupPath(cue.ParsePath(path))
}

func TestCompileFunctionFull(t *testing.T) {
	v := compileString(t, `
function: search_docs: {
	description: "Search the documentation"
	parameters: {
		query: {
			type:        "string"
			description: "Search terms"
			required:    true
		}
		scope: {
			type: "string"
			enum: ["api", "guides"]
		}
	}
	expressions: [{
		pattern: "help"
		nocase:  true
		output: response: "How can I help?"
	}]
	webhooks: [{
		method: "GET"
		url:    "https://docs.example.com/search?q=${args.query}"
		headers: Authorization: "Bearer ${global_data.api_key}"
		error_keys: ["err_msg"]
	}]
	foreach: {
		input_key:  "results"
		output_key: "summary"
		append:     "- ${this.title}\n"
		max:        5
	}
	output: {
		response: "Found:\n${summary}"
		action: [{say: {text: "${summary}"}}]
	}
	fallback_output: response: "Search is unavailable."
	error_keys: ["error"]
}
`, "function.search_docs")

	fn, err := CompileFunction(v)
	require.NoError(t, err)

	assert.Equal(t, "search_docs", fn.Name)
	assert.Equal(t, "Search the documentation", fn.Description)

	require.Len(t, fn.Parameters, 2)
	assert.Equal(t, spec.Parameter{
		Name:        "query",
		Type:        "string",
		Description: "Search terms",
		Required:    true,
	}, fn.Parameters[0])
	assert.Equal(t, []string{"api", "guides"}, fn.Parameters[1].Enum)

	require.Len(t, fn.Expressions, 1)
	assert.Equal(t, "help", fn.Expressions[0].Pattern)
	assert.True(t, fn.Expressions[0].CaseInsensitive)
	assert.Equal(t, "How can I help?", fn.Expressions[0].Output.Response)

	require.Len(t, fn.Attempts, 1)
	attempt := fn.Attempts[0]
	assert.Equal(t, "GET", attempt.Method)
	assert.Equal(t, "https://docs.example.com/search?q=${args.query}", attempt.URL)
	assert.Equal(t, map[string]string{"Authorization": "Bearer ${global_data.api_key}"}, attempt.Headers)
	assert.Equal(t, []string{"err_msg"}, attempt.ErrorKeys)

	require.NotNil(t, fn.Foreach)
	assert.Equal(t, "results", fn.Foreach.Source)
	assert.Equal(t, "summary", fn.Foreach.OutputKey)
	assert.Equal(t, "- ${this.title}\n", fn.Foreach.Append)
	assert.Equal(t, 5, fn.Foreach.Max)

	require.NotNil(t, fn.Output)
	assert.Equal(t, "Found:\n${summary}", fn.Output.Response)
	require.Len(t, fn.Output.Actions, 1)
	assert.Equal(t, "say", fn.Output.Actions[0].Type)
	assert.Equal(t, map[string]any{"text": "${summary}"}, fn.Output.Actions[0].Params)

	require.NotNil(t, fn.Fallback)
	assert.Equal(t, "Search is unavailable.", fn.Fallback.Response)
	assert.Equal(t, []string{"error"}, fn.ErrorKeys)
}

func TestCompileFunctionMinimal(t *testing.T) {
	v := compileString(t, `
function: ping: {
	webhooks: [{url: "https://example.com/ping"}]
}
`, "function.ping")

	fn, err := CompileFunction(v)
	require.NoError(t, err)
	assert.Equal(t, "ping", fn.Name)
	assert.Empty(t, fn.Parameters)
	assert.Empty(t, fn.Expressions)
	require.Len(t, fn.Attempts, 1)
	assert.Empty(t, fn.Attempts[0].Method)
	assert.Nil(t, fn.Foreach)
	assert.Nil(t, fn.Output)
	assert.Nil(t, fn.Fallback)
}

func TestCompileFunctionBodyDecodes(t *testing.T) {
	v := compileString(t, `
function: create: {
	webhooks: [{
		url: "https://example.com/items"
		body: {
			name:  "${args.name}"
			count: 3
			tags: ["a", "b"]
		}
	}]
}
`, "function.create")

	fn, err := CompileFunction(v)
	require.NoError(t, err)
	body := fn.Attempts[0].Body
	assert.Equal(t, "${args.name}", body["name"])
	assert.Equal(t, []any{"a", "b"}, body["tags"])
}

func TestCompileFunctionRequiresPipeline(t *testing.T) {
	v := compileString(t, `
function: empty: {
	description: "nothing to do"
}
`, "function.empty")

	_, err := CompileFunction(v)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "expression or webhook")
}

func TestCompileFunctionWebhookRequiresURL(t *testing.T) {
	v := compileString(t, `
function: broken: {
	webhooks: [{method: "GET"}]
}
`, "function.broken")

	_, err := CompileFunction(v)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "webhooks[0].url", ce.Field)
}

func TestCompileFunctionExpressionRequiresPattern(t *testing.T) {
	v := compileString(t, `
function: broken: {
	expressions: [{output: response: "x"}]
}
`, "function.broken")

	_, err := CompileFunction(v)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "expressions[0].pattern", ce.Field)
}

func TestCompileFunctionRejectsUnknownParameterType(t *testing.T) {
	v := compileString(t, `
function: broken: {
	parameters: q: type: "float"
	webhooks: [{url: "https://example.com"}]
}
`, "function.broken")

	_, err := CompileFunction(v)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "parameters.q.type", ce.Field)
}

func TestCompileFunctionActionMustBeSingleKey(t *testing.T) {
	v := compileString(t, `
function: broken: {
	expressions: [{
		pattern: "x"
		output: {
			response: "y"
			action: [{say: {text: "a"}, stop: {}}]
		}
	}]
}
`, "function.broken")

	_, err := CompileFunction(v)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "exactly one key")
}

func TestCompileFunctionScalarActionWrapped(t *testing.T) {
	v := compileString(t, `
function: bye: {
	expressions: [{
		pattern: "goodbye"
		output: {
			response: "Bye!"
			action: [{hangup: true}]
		}
	}]
}
`, "function.bye")

	fn, err := CompileFunction(v)
	require.NoError(t, err)
	require.Len(t, fn.Expressions[0].Output.Actions, 1)
	action := fn.Expressions[0].Output.Actions[0]
	assert.Equal(t, "hangup", action.Type)
	assert.Equal(t, map[string]any{"value": true}, action.Params)
}
