package engine

import (
	"strings"

	"github.com/weftlabs/weft/internal/value"
)

// Scope is the per-invocation layered variable environment used for
// template resolution.
//
// Ownership: a Scope is created fresh for each invocation, owned
// exclusively by it, and discarded afterwards. It is never shared
// across invocations or goroutines, so no locking is needed. The maps
// it references (args, global_data, meta_data) are read-only from the
// engine's perspective; the engine only ever writes Response, Array,
// This, and foreach outputs.
type Scope struct {
	// Args are the caller-supplied parameters.
	Args map[string]any

	// GlobalData is engine-external shared configuration.
	GlobalData map[string]any

	// MetaData is call/session metadata.
	MetaData map[string]any

	// Response is the current attempt's parsed response body. When the
	// top-level value is a bare array, Response and Array are populated
	// together.
	Response any

	// Array is the parsed response when its top level is a bare array.
	Array []any

	// This is the current element during foreach iteration.
	// "foreach" is accepted as a synonym layer name.
	This any

	// outputs holds foreach accumulator results keyed by output key.
	outputs map[string]string
}

// NewScope builds the scope for one invocation. Nil maps are replaced
// with empty ones so lookups stay total.
func NewScope(args, globalData, metaData map[string]any) *Scope {
	if args == nil {
		args = map[string]any{}
	}
	if globalData == nil {
		globalData = map[string]any{}
	}
	if metaData == nil {
		metaData = map[string]any{}
	}
	return &Scope{
		Args:       args,
		GlobalData: globalData,
		MetaData:   metaData,
	}
}

// Lookup resolves a template path against the scope.
//
// The first path element selects a layer (args, response, array,
// this/foreach, global_data, meta_data); the remainder is resolved
// against that layer's value tree. A path that names no layer is
// resolved as a bare name: foreach outputs first, then the layers in
// precedence order (this, response, meta_data, global_data, args).
func (s *Scope) Lookup(path string) (any, bool) {
	layer, rest := splitLayer(path)

	switch layer {
	case "args":
		return value.Resolve(s.Args, rest)
	case "global_data":
		return value.Resolve(s.GlobalData, rest)
	case "meta_data":
		return value.Resolve(s.MetaData, rest)
	case "response":
		if s.Response == nil {
			return nil, false
		}
		return value.Resolve(s.Response, rest)
	case "array":
		if s.Array == nil {
			return nil, false
		}
		return value.Resolve(s.Array, rest)
	case "this", "foreach":
		if s.This == nil {
			return nil, false
		}
		return value.Resolve(s.This, rest)
	default:
		return s.lookupBare(path)
	}
}

// lookupBare resolves a path with no layer prefix. Highest-precedence
// layer wins; foreach outputs shadow everything because they are the
// most recently bound values.
func (s *Scope) lookupBare(path string) (any, bool) {
	if s.outputs != nil {
		name, rest := splitLayer(path)
		if text, ok := s.outputs[name]; ok && rest == "" {
			return text, true
		}
	}

	if s.This != nil {
		if v, ok := value.Resolve(s.This, path); ok {
			return v, true
		}
	}
	if s.Response != nil {
		if v, ok := value.Resolve(s.Response, path); ok {
			return v, true
		}
	}
	if v, ok := value.Resolve(s.MetaData, path); ok {
		return v, true
	}
	if v, ok := value.Resolve(s.GlobalData, path); ok {
		return v, true
	}
	return value.Resolve(s.Args, path)
}

// SetResponse stores a successful attempt's parsed body. A bare array
// response populates both the response and array layers (the observed
// behavior of the source format).
func (s *Scope) SetResponse(parsed any) {
	s.Response = parsed
	if arr, ok := parsed.([]any); ok {
		s.Array = arr
	}
}

// SetOutput stores a foreach accumulator under its output key, making
// it resolvable as a bare name.
func (s *Scope) SetOutput(key, text string) {
	if s.outputs == nil {
		s.outputs = make(map[string]string, 1)
	}
	s.outputs[key] = text
}

// Output returns a stored foreach accumulator.
func (s *Scope) Output(key string) (string, bool) {
	text, ok := s.outputs[key]
	return text, ok
}

// Clone returns a copy for foreach item binding. Layer maps are shared
// (read-only); only the copy's This binding differs, so writes to the
// clone cannot leak into the parent.
func (s *Scope) Clone() *Scope {
	clone := *s
	if s.outputs != nil {
		clone.outputs = make(map[string]string, len(s.outputs))
		for k, v := range s.outputs {
			clone.outputs[k] = v
		}
	}
	return &clone
}

// BindItem binds a foreach element as the "this" layer. Non-object
// elements are wrapped as {"value": item} so ${this.value} addresses
// them uniformly.
func (s *Scope) BindItem(item any) {
	if value.IsObject(item) {
		s.This = item
		return
	}
	s.This = map[string]any{"value": item}
}

// splitLayer separates the first path element from the remainder.
// "array[0].joke" splits into ("array", "[0].joke"); "args.location"
// into ("args", "location").
func splitLayer(path string) (string, string) {
	i := strings.IndexAny(path, ".[")
	if i < 0 {
		return path, ""
	}
	if path[i] == '[' {
		return path[:i], path[i:]
	}
	return path[:i], path[i+1:]
}
