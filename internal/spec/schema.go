package spec

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compileParameterSchema builds a JSON schema document from declared
// parameters and compiles it. Specs without parameters get no schema
// (any argument object is accepted).
func compileParameterSchema(s *FunctionSpec) (*jsonschema.Schema, error) {
	if len(s.Parameters) == 0 {
		return nil, nil
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("parameters.json", parameterSchemaDoc(s.Parameters)); err != nil {
		return nil, err
	}
	return c.Compile("parameters.json")
}

// parameterSchemaDoc renders parameters as a JSON schema object, the
// same shape the rendered function definition carries.
func parameterSchemaDoc(params []Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []any

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// toSchemaValue round-trips a value through encoding/json so the
// validator sees canonical decoded types (float64 numbers, []any
// arrays) regardless of how callers constructed the argument map.
func toSchemaValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
