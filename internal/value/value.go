package value

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Stringify renders a resolved value for interpolation into a string
// position of a template.
//
// Scalars are rendered bare: strings as-is, booleans as true/false,
// numbers without a trailing ".0" when they are integral (JSON decoding
// produces float64 for every number). Objects and arrays are serialized
// as compact JSON without HTML escaping. nil renders as "null".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		return compactJSON(v)
	}
}

// compactJSON serializes composites without HTML escaping. Falls back
// to an empty object on marshal failure, which only happens for values
// that did not come from JSON decoding in the first place.
func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	// Encoder appends a newline.
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// IsArray reports whether v is a decoded JSON array.
func IsArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// IsObject reports whether v is a decoded JSON object.
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// Truthy reports whether a response-body value marks an error key as
// set. JSON false, null, 0, "", {} and [] all count as unset; anything
// else counts as set.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	default:
		return true
	}
}
