package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeysUTF16(t *testing.T) {
	obj := map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
	}
	b, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zebra":1}`, string(b))
}

func TestMarshalCanonical_SupplementaryPlaneOrdering(t *testing.T) {
	// U+1D306 (surrogate pair in UTF-16) must sort after U+FB00 by
	// UTF-16 code units, even though UTF-8 bytes would say otherwise.
	obj := map[string]any{
		"\U0001D306": int64(1),
		"ﬀ":          int64(2),
	}
	b, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"ﬀ\":2,\"\U0001D306\":1}", string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"k": "<a>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<a>&</a>"}`, string(b))
}

func TestMarshalCanonical_LineSeparatorsUnescaped(t *testing.T) {
	b, err := MarshalCanonical("a b c")
	require.NoError(t, err)
	assert.Equal(t, "\"a b c\"", string(b))
}

func TestMarshalCanonical_LiteralBackslashU2028Preserved(t *testing.T) {
	// A literal backslash followed by the text "u2028" must remain an
	// escaped backslash, not a line separator.
	b, err := MarshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(b))
}

func TestMarshalCanonical_Scalars(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{true, "true"},
		{false, "false"},
		{int64(42), "42"},
		{7, "7"},
		{"hi", `"hi"`},
		{[]any{"a", int64(1)}, `["a",1]`},
	}
	for _, tt := range tests {
		b, err := MarshalCanonical(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(b))
	}
}

func TestMarshalCanonical_FloatsRejected(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := map[string]any{
		"fn":  "get_weather",
		"sid": "sess-1",
		"iat": int64(1700000000),
		"exp": int64(1700000600),
	}
	a, err := MarshalCanonical(obj)
	require.NoError(t, err)
	b, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
