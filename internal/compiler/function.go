package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/weftlabs/weft/internal/spec"
)

// CompileFunction parses a CUE value into a FunctionSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the function struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`function: search_docs: { ... }`)
//	fn, err := CompileFunction(v.LookupPath(cue.ParsePath("function.search_docs")))
func CompileFunction(v cue.Value) (*spec.FunctionSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	fn := &spec.FunctionSpec{}

	// Function name comes from the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		fn.Name = labels[len(labels)-1].String()
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fn.Description = desc
	}

	var err error
	fn.Parameters, err = parseParameters(v)
	if err != nil {
		return nil, err
	}

	fn.Expressions, err = parseExpressions(v)
	if err != nil {
		return nil, err
	}

	fn.Attempts, err = parseWebhooks(v)
	if err != nil {
		return nil, err
	}

	if len(fn.Expressions) == 0 && len(fn.Attempts) == 0 {
		return nil, &CompileError{
			Field:   "function",
			Message: "at least one expression or webhook is required",
			Pos:     v.Pos(),
		}
	}

	fn.Foreach, err = parseForeach(v)
	if err != nil {
		return nil, err
	}

	fn.Output, err = parseOptionalResult(v, "output")
	if err != nil {
		return nil, err
	}
	fn.Fallback, err = parseOptionalResult(v, "fallback_output")
	if err != nil {
		return nil, err
	}

	fn.ErrorKeys, err = parseStringList(v, "error_keys")
	if err != nil {
		return nil, err
	}

	return fn, nil
}

// parseParameters extracts caller argument declarations. Parameters are
// optional; a function without them accepts any argument object.
func parseParameters(v cue.Value) ([]spec.Parameter, error) {
	paramsVal := v.LookupPath(cue.ParsePath("parameters"))
	if !paramsVal.Exists() {
		return nil, nil
	}

	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []spec.Parameter
	for iter.Next() {
		p := spec.Parameter{Name: iter.Label()}
		pv := iter.Value()

		typVal := pv.LookupPath(cue.ParsePath("type"))
		if !typVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("parameters.%s.type", p.Name),
				Message: "parameter type is required",
				Pos:     pv.Pos(),
			}
		}
		typ, err := typVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch typ {
		case "string", "number", "integer", "boolean", "array", "object":
			p.Type = typ
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("parameters.%s.type", p.Name),
				Message: fmt.Sprintf("unsupported parameter type %q", typ),
				Pos:     typVal.Pos(),
			}
		}

		if descVal := pv.LookupPath(cue.ParsePath("description")); descVal.Exists() {
			desc, err := descVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			p.Description = desc
		}

		if reqVal := pv.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
			req, err := reqVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			p.Required = req
		}

		enum, err := parseStringList(pv, "enum")
		if err != nil {
			return nil, err
		}
		p.Enum = enum

		params = append(params, p)
	}
	return params, nil
}

// parseExpressions extracts pattern-match shortcuts in declaration
// order.
func parseExpressions(v cue.Value) ([]spec.Expression, error) {
	exprsVal := v.LookupPath(cue.ParsePath("expressions"))
	if !exprsVal.Exists() {
		return nil, nil
	}

	iter, err := exprsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var exprs []spec.Expression
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		expr := spec.Expression{}

		pattern, err := ev.LookupPath(cue.ParsePath("pattern")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("expressions[%d].pattern", i),
				Message: "pattern is required and must be a string",
				Pos:     ev.Pos(),
			}
		}
		expr.Pattern = pattern

		if ncVal := ev.LookupPath(cue.ParsePath("nocase")); ncVal.Exists() {
			nc, err := ncVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			expr.CaseInsensitive = nc
		}

		out, err := parseResult(ev.LookupPath(cue.ParsePath("output")))
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("expressions[%d].output", i),
				Message: "expression output is required",
				Pos:     ev.Pos(),
			}
		}
		expr.Output = *out

		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// parseWebhooks extracts candidate outbound calls in declaration order.
func parseWebhooks(v cue.Value) ([]spec.AttemptSpec, error) {
	hooksVal := v.LookupPath(cue.ParsePath("webhooks"))
	if !hooksVal.Exists() {
		return nil, nil
	}

	iter, err := hooksVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attempts []spec.AttemptSpec
	for i := 0; iter.Next(); i++ {
		hv := iter.Value()
		attempt := spec.AttemptSpec{}

		url, err := hv.LookupPath(cue.ParsePath("url")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("webhooks[%d].url", i),
				Message: "url is required and must be a string",
				Pos:     hv.Pos(),
			}
		}
		attempt.URL = url

		if mVal := hv.LookupPath(cue.ParsePath("method")); mVal.Exists() {
			method, err := mVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			attempt.Method = method
		}

		if hVal := hv.LookupPath(cue.ParsePath("headers")); hVal.Exists() {
			headers := map[string]string{}
			if err := hVal.Decode(&headers); err != nil {
				return nil, formatCUEError(err)
			}
			attempt.Headers = headers
		}

		if bVal := hv.LookupPath(cue.ParsePath("body")); bVal.Exists() {
			body := map[string]any{}
			if err := bVal.Decode(&body); err != nil {
				return nil, formatCUEError(err)
			}
			attempt.Body = body
		}

		attempt.ErrorKeys, err = parseStringList(hv, "error_keys")
		if err != nil {
			return nil, err
		}

		attempt.Output, err = parseOptionalResult(hv, "output")
		if err != nil {
			return nil, err
		}

		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

// parseForeach extracts the optional array post-processing step.
// Unset fields keep their zero values; the engine fills in defaults.
func parseForeach(v cue.Value) (*spec.ForeachSpec, error) {
	feVal := v.LookupPath(cue.ParsePath("foreach"))
	if !feVal.Exists() {
		return nil, nil
	}

	fe := &spec.ForeachSpec{}

	src, err := feVal.LookupPath(cue.ParsePath("input_key")).String()
	if err != nil {
		return nil, &CompileError{
			Field:   "foreach.input_key",
			Message: "input_key is required and must be a string",
			Pos:     feVal.Pos(),
		}
	}
	fe.Source = src

	if okVal := feVal.LookupPath(cue.ParsePath("output_key")); okVal.Exists() {
		key, err := okVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fe.OutputKey = key
	}

	if apVal := feVal.LookupPath(cue.ParsePath("append")); apVal.Exists() {
		tmpl, err := apVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fe.Append = tmpl
	}

	if maxVal := feVal.LookupPath(cue.ParsePath("max")); maxVal.Exists() {
		n, err := maxVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fe.Max = int(n)
	}

	return fe, nil
}

// parseOptionalResult parses a result template at the given field.
func parseOptionalResult(v cue.Value, field string) (*spec.Result, error) {
	return parseResult(v.LookupPath(cue.ParsePath(field)))
}

// parseResult parses a result template: a response string plus optional
// side-effect actions.
func parseResult(v cue.Value) (*spec.Result, error) {
	if !v.Exists() {
		return nil, nil
	}

	res := &spec.Result{}

	if respVal := v.LookupPath(cue.ParsePath("response")); respVal.Exists() {
		resp, err := respVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		res.Response = resp
	}

	actVal := v.LookupPath(cue.ParsePath("action"))
	if !actVal.Exists() {
		return res, nil
	}

	iter, err := actVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		av := iter.Value()

		// Each action is a single-key object: {say: {...}} becomes
		// Action{Type: "say", Params: {...}}.
		fields, err := av.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		count := 0
		for fields.Next() {
			count++
			action := spec.Action{Type: fields.Label()}
			fv := fields.Value()
			if fv.IncompleteKind() == cue.StructKind {
				params := map[string]any{}
				if err := fv.Decode(&params); err != nil {
					return nil, formatCUEError(err)
				}
				action.Params = params
			} else {
				var scalar any
				if err := fv.Decode(&scalar); err != nil {
					return nil, formatCUEError(err)
				}
				action.Params = map[string]any{"value": scalar}
			}
			res.Actions = append(res.Actions, action)
		}
		if count != 1 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("action[%d]", i),
				Message: "each action must be an object with exactly one key",
				Pos:     av.Pos(),
			}
		}
	}

	return res, nil
}

// parseStringList parses an optional list of strings at the given
// field.
func parseStringList(v cue.Value, field string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
