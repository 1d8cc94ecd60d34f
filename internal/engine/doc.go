// Package engine executes declarative function specs.
//
// An invocation runs the pipeline:
//
//	expression matcher -> (no match) call attempt executor ->
//	array processor (foreach) -> output builder
//
// ARCHITECTURE:
//
// Stateless per-invocation execution:
// Every invocation gets a fresh Scope and discards it at the end.
// Nothing is shared between invocations except the immutable compiled
// specs and the signing secret, so concurrent invocations need no
// locks.
//
// Sequential attempts:
// The executor tries call attempts strictly in declaration order and
// stops at the first success. This is a deliberate correctness choice:
// first-success-wins keeps fallback ordering meaningful and output
// deterministic. Attempts are never raced in parallel.
//
// Total pipeline:
// Once a spec passes registration, invocation cannot raise for data
// reasons. Unresolvable placeholders render as MISSING:<path> markers,
// failed attempts advance to the next attempt, and exhausting every
// attempt produces the fallback (or generic) text. The only invocation
// errors are unknown function, invalid arguments, and authorization
// rejections.
package engine
