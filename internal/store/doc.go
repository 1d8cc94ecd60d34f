// Package store provides the durable invocation trace log.
//
// Every engine invocation can be appended as one record: function name,
// call/session identifiers, arguments, outcome, and the rendered text.
// The log is append-only and purely observational - the engine never
// reads it back during execution, so it cannot influence results.
//
// Uses SQLite with WAL mode so the trace CLI can read concurrently
// while an engine writes.
package store
