// Package value provides the JSON value-tree primitives shared by the
// engine: path resolution against decoded JSON documents, scalar
// stringification for template interpolation, and RFC 8785 canonical
// JSON serialization.
//
// Values are plain decoded JSON: map[string]any, []any, string, bool,
// float64/int64, and nil. The package never mutates its inputs.
//
// Canonical JSON is used ONLY for byte-stable serialization of token
// payloads before signing. Key ordering follows RFC 8785 (UTF-16 code
// units, not UTF-8 bytes) and strings are NFC normalized, so the same
// logical payload always signs to the same bytes regardless of which
// process produced it.
package value
