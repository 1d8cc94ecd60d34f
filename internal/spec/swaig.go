package spec

import "strings"

// Definition renders the spec as a serialized SWAIG-style function
// document: the shape consumed by configuration tooling and emitted by
// "weft render".
//
//	{
//	  "function": "...",
//	  "description": "...",
//	  "parameters": {"type": "object", "properties": {...}, "required": [...]},
//	  "data_map": {"expressions": [...], "webhooks": [...], ...}
//	}
func (s *FunctionSpec) Definition() map[string]any {
	description := s.Description
	if description == "" {
		description = "Execute " + s.Name
	}

	var parameters map[string]any
	if len(s.Parameters) > 0 {
		parameters = parameterSchemaDoc(s.Parameters)
	} else {
		parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	return map[string]any{
		"function":    s.Name,
		"description": description,
		"parameters":  parameters,
		"data_map":    s.dataMapDoc(),
	}
}

func (s *FunctionSpec) dataMapDoc() map[string]any {
	doc := map[string]any{}

	if len(s.Expressions) > 0 {
		exprs := make([]any, len(s.Expressions))
		for i, expr := range s.Expressions {
			e := map[string]any{
				"string": expr.Pattern,
				"output": resultDoc(expr.Output),
			}
			if expr.CaseInsensitive {
				e["nocase"] = true
			}
			exprs[i] = e
		}
		doc["expressions"] = exprs
	}

	if len(s.Attempts) > 0 {
		webhooks := make([]any, len(s.Attempts))
		for i, a := range s.Attempts {
			webhooks[i] = attemptDoc(&a)
		}
		doc["webhooks"] = webhooks
	}

	if s.Foreach != nil {
		doc["foreach"] = foreachDoc(s.Foreach)
	}
	if s.Output != nil {
		doc["output"] = resultDoc(*s.Output)
	}
	if s.Fallback != nil {
		doc["fallback_output"] = resultDoc(*s.Fallback)
	}
	if len(s.ErrorKeys) > 0 {
		doc["error_keys"] = toAnySlice(s.ErrorKeys)
	}

	return doc
}

func attemptDoc(a *AttemptSpec) map[string]any {
	doc := map[string]any{
		"url":    a.URL,
		"method": strings.ToUpper(a.Method),
	}
	if len(a.Headers) > 0 {
		headers := make(map[string]any, len(a.Headers))
		for k, v := range a.Headers {
			headers[k] = v
		}
		doc["headers"] = headers
	}
	if a.Body != nil {
		doc["body"] = a.Body
	}
	if len(a.ErrorKeys) > 0 {
		doc["error_keys"] = toAnySlice(a.ErrorKeys)
	}
	if a.Output != nil {
		doc["output"] = resultDoc(*a.Output)
	}
	return doc
}

func foreachDoc(f *ForeachSpec) map[string]any {
	normalized := NormalizeForeach(f)
	doc := map[string]any{
		// The wire format names the array relative to the response.
		"input_key":  strings.TrimPrefix(normalized.Source, "response."),
		"output_key": normalized.OutputKey,
		"append":     normalized.Append,
	}
	if normalized.Max > 0 {
		doc["max"] = normalized.Max
	}
	return doc
}

// resultDoc renders a Result in the SWAIG function response shape.
func resultDoc(r Result) map[string]any {
	actions := make([]any, len(r.Actions))
	for i, a := range r.Actions {
		action := map[string]any{"type": a.Type}
		for k, v := range a.Params {
			action[k] = v
		}
		actions[i] = action
	}
	return map[string]any{
		"status": "ok",
		"result": map[string]any{
			"response": r.Response,
			"action":   actions,
		},
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
