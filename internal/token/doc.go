// Package token implements the stateless call-token scheme that gates
// remote invocation of registered functions.
//
// Tokens are self-contained: a canonical-JSON claims payload plus an
// HMAC-SHA256 signature under a server-held secret, base64url encoded.
// There is no issuance table and no per-token cleanup - a token remains
// valid until its natural expiry and "consuming" it changes nothing
// server-side. Validation recomputes the signature over the canonical
// payload bytes and compares in constant time (hmac.Equal) to avoid
// timing side channels.
package token
