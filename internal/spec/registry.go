package spec

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CompiledExpression is a registration-time compiled expression. The
// regexp is compiled exactly once; a pattern that fails to compile
// prevents the whole spec from being registered.
type CompiledExpression struct {
	Pattern *regexp.Regexp
	Output  Result
}

// CompiledFunction is an immutable, validated FunctionSpec ready for
// invocation: expression patterns are compiled and the parameter schema
// is compiled to a JSON schema validator.
//
// Safe for concurrent use; nothing is mutated after Register returns.
type CompiledFunction struct {
	spec        *FunctionSpec
	expressions []CompiledExpression
	argsSchema  *jsonschema.Schema
}

// Spec returns the underlying spec. Callers must not mutate it.
func (f *CompiledFunction) Spec() *FunctionSpec {
	return f.spec
}

// Expressions returns the compiled expressions in declaration order.
func (f *CompiledFunction) Expressions() []CompiledExpression {
	return f.expressions
}

// ValidateArgs checks caller arguments against the declared parameter
// schema. Specs without parameters accept any argument object.
func (f *CompiledFunction) ValidateArgs(args map[string]any) error {
	if f.argsSchema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := f.argsSchema.Validate(toSchemaValue(args)); err != nil {
		return fmt.Errorf("arguments for %s: %w", f.spec.Name, err)
	}
	return nil
}

// Registry holds compiled function specs keyed by name. Registration
// happens at startup; lookups are concurrent-safe afterwards.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*CompiledFunction
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*CompiledFunction)}
}

// Register validates and compiles a spec, then makes it available for
// lookup. Fails fast with a RegistrationError on:
//   - missing or duplicate function name
//   - neither expressions nor attempts declared
//   - an expression pattern that does not compile
//   - a parameter schema that does not compile
func (r *Registry) Register(s *FunctionSpec) (*CompiledFunction, error) {
	if s.Name == "" {
		return nil, &RegistrationError{
			Code:    ErrCodeMissingName,
			Message: "function spec has no name",
		}
	}
	if len(s.Expressions) == 0 && len(s.Attempts) == 0 {
		return nil, &RegistrationError{
			Code:     ErrCodeEmptyPipeline,
			Function: s.Name,
			Message:  "spec declares neither expressions nor attempts",
		}
	}

	compiled, err := compileFunction(s)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[s.Name]; exists {
		return nil, &RegistrationError{
			Code:     ErrCodeDuplicateName,
			Function: s.Name,
			Message:  "function name already registered",
		}
	}
	r.funcs[s.Name] = compiled
	return compiled, nil
}

// Lookup returns the compiled function for a name.
func (r *Registry) Lookup(name string) (*CompiledFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[name]
	return f, ok
}

// Names returns all registered function names. Order is unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// compileFunction compiles patterns and the parameter schema for a
// spec. The spec itself is not copied - registration freezes it by
// convention (the compiler and builders hand over ownership).
func compileFunction(s *FunctionSpec) (*CompiledFunction, error) {
	exprs := make([]CompiledExpression, 0, len(s.Expressions))
	for i, expr := range s.Expressions {
		src := expr.Pattern
		if expr.CaseInsensitive {
			src = "(?i)" + src
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, &RegistrationError{
				Code:     ErrCodeBadPattern,
				Function: s.Name,
				Message:  fmt.Sprintf("expression %d: invalid pattern %q", i, expr.Pattern),
				Err:      err,
			}
		}
		exprs = append(exprs, CompiledExpression{Pattern: re, Output: expr.Output})
	}

	schema, err := compileParameterSchema(s)
	if err != nil {
		return nil, &RegistrationError{
			Code:     ErrCodeBadSchema,
			Function: s.Name,
			Message:  "parameter schema does not compile",
			Err:      err,
		}
	}

	return &CompiledFunction{
		spec:        s,
		expressions: exprs,
		argsSchema:  schema,
	}, nil
}
