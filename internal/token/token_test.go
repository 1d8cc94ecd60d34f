package token

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0)

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer([]byte("test-secret"))
	require.NoError(t, err)
	return i
}

func TestNewIssuer_EmptySecretRejected(t *testing.T) {
	_, err := NewIssuer(nil)
	assert.Error(t, err)
}

func TestIssueValidate_RoundTrip(t *testing.T) {
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", 10*time.Minute, testNow)
	require.NoError(t, err)

	err = i.Validate(tok, "get_weather", "sess-1", testNow.Add(time.Minute))
	assert.NoError(t, err)
}

func TestValidate_ExpiryBoundaries(t *testing.T) {
	i := testIssuer(t)
	ttl := 600 * time.Second
	tok, err := i.Issue("get_weather", "sess-1", ttl, testNow)
	require.NoError(t, err)

	// Valid one second before expiry.
	err = i.Validate(tok, "get_weather", "sess-1", testNow.Add(ttl-time.Second))
	assert.NoError(t, err)

	// Expired one second after.
	err = i.Validate(tok, "get_weather", "sess-1", testNow.Add(ttl+time.Second))
	assert.True(t, IsValidationError(err, CodeExpired), "got %v", err)
}

func TestValidate_WrongFunction(t *testing.T) {
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	err = i.Validate(tok, "get_joke", "sess-1", testNow)
	assert.True(t, IsValidationError(err, CodeWrongFunction), "got %v", err)
}

func TestValidate_WrongSession(t *testing.T) {
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	err = i.Validate(tok, "get_weather", "sess-2", testNow)
	assert.True(t, IsValidationError(err, CodeWrongSession), "got %v", err)
}

func TestValidate_TamperedPayload(t *testing.T) {
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	other, err := i.Issue("get_joke", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	// Splice the payload of one token onto the signature of another.
	payload, _, _ := strings.Cut(other, ".")
	_, sig, _ := strings.Cut(tok, ".")
	forged := payload + "." + sig

	err = i.Validate(forged, "get_joke", "sess-1", testNow)
	assert.True(t, IsValidationError(err, CodeBadSignature), "got %v", err)
}

func TestValidate_WrongSecret(t *testing.T) {
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	other, err := NewIssuer([]byte("different-secret"))
	require.NoError(t, err)

	err = other.Validate(tok, "get_weather", "sess-1", testNow)
	assert.True(t, IsValidationError(err, CodeBadSignature), "got %v", err)
}

func TestValidate_Malformed(t *testing.T) {
	i := testIssuer(t)

	tests := []struct {
		name string
		tok  string
	}{
		{"empty", ""},
		{"no separator", "abcdef"},
		{"bad base64 payload", "!!!.c2ln"},
		{"bad base64 signature", "eyJmbiI6ImEifQ.!!!"},
		{"payload not json", "bm90LWpzb24.c2ln"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := i.Validate(tt.tok, "get_weather", "sess-1", testNow)
			assert.True(t, IsValidationError(err, CodeMalformed), "got %v", err)
		})
	}
}

func TestValidate_NeverStoresState(t *testing.T) {
	// A token validated twice is accepted twice: "consuming" a
	// stateless token changes nothing server-side.
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	assert.NoError(t, i.Validate(tok, "get_weather", "sess-1", testNow))
	assert.NoError(t, i.Validate(tok, "get_weather", "sess-1", testNow))
}

func TestDecode(t *testing.T) {
	i := testIssuer(t)
	tok, err := i.Issue("get_weather", "sess-1", 600*time.Second, testNow)
	require.NoError(t, err)

	claims, err := Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", claims.Function)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, testNow.Unix(), claims.IssuedAt)
	assert.Equal(t, testNow.Unix()+600, claims.ExpiresAt)
}

func TestSecureURL(t *testing.T) {
	i := testIssuer(t)
	secured, err := SecureURL("https://agent.test/tools/get_weather", i, "get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	u, err := url.Parse(secured)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)

	assert.NoError(t, i.Validate(tok, "get_weather", "sess-1", testNow))
}

func TestIssue_Deterministic(t *testing.T) {
	// Canonical payload serialization makes issuance a pure function of
	// (claims, secret): two issuers with the same secret agree.
	a := testIssuer(t)
	b := testIssuer(t)

	tokA, err := a.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)
	tokB, err := b.Issue("get_weather", "sess-1", time.Minute, testNow)
	require.NoError(t, err)

	assert.Equal(t, tokA, tokB)
}
