package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeysAndOmitsWhitespace(t *testing.T) {
	got, err := Marshal(map[string]any{
		"qty":        2,
		"product_id": "p1",
		"nested":     map[string]any{"b": true, "a": int64(-3)},
		"list":       []any{"x", 1},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"list":["x",1],"nested":{"a":-3,"b":true},"product_id":"p1","qty":2}`, string(got))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	got, err := Marshal("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshal_NFCNormalizes(t *testing.T) {
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestMarshal_LineSeparatorsUnescaped(t *testing.T) {
	got, err := Marshal("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// A literal backslash followed by "u2028" must stay escaped.
	got, err = Marshal(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshal_RejectsFloatsAndNull(t *testing.T) {
	_, err := Marshal(1.5)
	assert.Error(t, err)

	_, err = Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"price": 1.25})
	assert.Error(t, err)
}

func TestFromStruct_KeepsIntegerPrecision(t *testing.T) {
	type rec struct {
		ID    string `json:"id"`
		Total int64  `json:"total"`
	}
	v, err := FromStruct(rec{ID: "s1", Total: 1 << 60})
	require.NoError(t, err)

	got, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"s1","total":1152921504606846976}`, string(got))
}

func TestFingerprint_StableAndDomainSeparated(t *testing.T) {
	v := map[string]any{"a": 1, "b": "two"}
	reordered := map[string]any{"b": "two", "a": 1}

	fp1 := MustFingerprint(DomainCatalog, v)
	fp2 := MustFingerprint(DomainCatalog, reordered)
	fp3 := MustFingerprint("offpos/other/v1", v)

	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, fp1, fp3)
	assert.Len(t, fp1, 64)
}
