package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/value"
)

// Claims is the signed token payload binding a function name, a
// session identifier, and a validity window. Times are unix seconds.
type Claims struct {
	Function  string `json:"fn"`
	SessionID string `json:"sid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Issuer mints and validates stateless call tokens.
//
// A token is base64url(canonical payload) + "." + base64url(HMAC-SHA256
// over those same canonical bytes). Nothing is stored server-side:
// validity is a pure function of the token bytes, the secret, and the
// current time, which is what allows horizontal scaling and
// restart-resilience without shared state.
//
// The secret never appears in the token. Safe for concurrent use.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an issuer from a server-held secret.
func NewIssuer(secret []byte) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token issuer requires a non-empty secret")
	}
	return &Issuer{secret: secret}, nil
}

// Issue mints a token authorizing invocation of function within
// session for ttl from now.
func (i *Issuer) Issue(function, sessionID string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Function:  function,
		SessionID: sessionID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	payload, err := canonicalPayload(claims)
	if err != nil {
		return "", fmt.Errorf("issue token for %s: %w", function, err)
	}

	sig := i.sign(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(sig), nil
}

// Validate checks a token against the expected function and session at
// the given time. Returns nil on success, or a ValidationError whose
// code is exactly one of Malformed, BadSignature, Expired,
// WrongFunction, WrongSession.
//
// The signature is recomputed over the decoded payload's canonical
// bytes and compared in constant time before any field is trusted.
func (i *Issuer) Validate(tok, expectedFunction, expectedSession string, now time.Time) error {
	payloadPart, sigPart, found := strings.Cut(tok, ".")
	if !found {
		return newValidationError(CodeMalformed, "token has no signature separator")
	}

	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return newValidationError(CodeMalformed, "payload is not valid base64url")
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return newValidationError(CodeMalformed, "signature is not valid base64url")
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return newValidationError(CodeMalformed, "payload is not a claims object")
	}

	// Signature is verified over the canonical re-serialization of the
	// decoded claims, so tokens that decode to the same claims but were
	// encoded differently cannot smuggle a reused signature.
	canonical, err := canonicalPayload(claims)
	if err != nil {
		return newValidationError(CodeMalformed, "claims cannot be canonicalized")
	}
	if !hmac.Equal(sig, i.sign(canonical)) {
		return newValidationError(CodeBadSignature, "signature mismatch")
	}

	if claims.Function != expectedFunction {
		return newValidationError(CodeWrongFunction,
			fmt.Sprintf("token is for %q, not %q", claims.Function, expectedFunction))
	}
	if claims.SessionID != expectedSession {
		return newValidationError(CodeWrongSession,
			fmt.Sprintf("token is for session %q, not %q", claims.SessionID, expectedSession))
	}
	if now.Unix() > claims.ExpiresAt {
		return newValidationError(CodeExpired, "token has expired")
	}

	return nil
}

// Decode extracts claims without verifying the signature. For
// diagnostics only - never use the result for authorization.
func Decode(tok string) (Claims, error) {
	payloadPart, _, found := strings.Cut(tok, ".")
	if !found {
		return Claims{}, newValidationError(CodeMalformed, "token has no signature separator")
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return Claims{}, newValidationError(CodeMalformed, "payload is not valid base64url")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, newValidationError(CodeMalformed, "payload is not a claims object")
	}
	return claims, nil
}

// SecureURL appends a freshly minted token as the "token" query
// parameter of a URL referencing a securable function.
func SecureURL(base string, i *Issuer, function, sessionID string, ttl time.Duration, now time.Time) (string, error) {
	tok, err := i.Issue(function, sessionID, ttl, now)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("secure url: %w", err)
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// canonicalPayload serializes claims as RFC 8785 canonical JSON. These
// are the exact bytes both signing and verification operate on.
func canonicalPayload(c Claims) ([]byte, error) {
	return value.MarshalCanonical(map[string]any{
		"fn":  c.Function,
		"sid": c.SessionID,
		"iat": c.IssuedAt,
		"exp": c.ExpiresAt,
	})
}

func (i *Issuer) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, i.secret)
	h.Write(payload)
	return h.Sum(nil)
}
