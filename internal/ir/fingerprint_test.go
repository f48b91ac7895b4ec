package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"sorted keys", map[string]any{"zebra": 1, "alpha": 2}, `{"alpha":2,"zebra":1}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"control chars", "a\nb\x01", `"a\nb\u0001"`},
		{"line separator kept", "a\u2028b", "\"a\u2028b\""},
		{"nested", map[string]any{"b": []any{1, "x"}, "a": map[string]any{"d": false}}, `{"a":{"d":false},"b":[1,"x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)
	_, err = MarshalCanonical([]any{struct{}{}})
	assert.Error(t, err)
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// e + combining acute accent normalizes to the precomposed form.
	got, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestCompareKeysUTF16(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in UTF-16.
	assert.Equal(t, 1, compareKeysRFC8785("\uFF61", "\U0001F600"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "b"))
	assert.Equal(t, 0, compareKeysRFC8785("k", "k"))
}

func TestFingerprintIgnoresLocations(t *testing.T) {
	ctx := newTestContext(t)

	a := buildAddFunc(t, ctx, "add")
	b := buildAddFunc(t, ctx, "add")
	b.Lookup("add").SetLocation(NameLoc("elsewhere"))

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)
}

func TestFingerprintDetectsChanges(t *testing.T) {
	ctx := newTestContext(t)

	a := buildAddFunc(t, ctx, "add")
	b := buildAddFunc(t, ctx, "twice")

	assert.NotEqual(t, MustFingerprint(a), MustFingerprint(b))

	fp, err := OperationFingerprint(a.Lookup("add"))
	require.NoError(t, err)
	assert.NotEqual(t, MustFingerprint(a), fp)
}

func TestCanonicalFormNumbersValues(t *testing.T) {
	ctx := newTestContext(t)
	m := buildAddFunc(t, ctx, "add")

	data, err := CanonicalForm(m.Lookup("add"))
	require.NoError(t, err)

	assert.Contains(t, string(data), `"args":[{"id":0,"type":"i32"}]`)
	assert.Contains(t, string(data), `"name":"test.add","operands":[0,0]`)
}
