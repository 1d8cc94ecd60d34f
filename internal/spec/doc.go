// Package spec defines the declarative function specification model and
// its registry.
//
// A FunctionSpec describes one callable function: parameter schema,
// expression shortcuts, ordered call attempts, foreach post-processing,
// and output templates. Registration compiles expression patterns and
// the parameter JSON schema up front, so a malformed spec can never be
// invoked - compile failures are registration errors, not invocation
// errors.
//
// Compiled specs are immutable and safe for concurrent reads; the
// engine shares them across invocations without locking.
package spec
