package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_PreservesKeyOrder(t *testing.T) {
	v, err := Decode([]byte(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)

	require.Equal(t, Map, v.Kind())
	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())
}

func TestDecode_Nested(t *testing.T) {
	v, err := Decode([]byte(`{"a":{"b":[1,"two",true,null]}}`))
	require.NoError(t, err)

	a, ok := v.Get("a")
	require.True(t, ok)
	b, ok := a.Get("b")
	require.True(t, ok)
	require.Equal(t, Sequence, b.Kind())
	require.Equal(t, 4, b.Len())

	assert.Equal(t, 1.0, b.Items()[0].Number())
	assert.Equal(t, "two", b.Items()[1].Str())
	assert.True(t, b.Items()[2].Bool())
	assert.Equal(t, Null, b.Items()[3].Kind())
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{`{`, `{"a":}`, `[1,]`, `{"a":1} trailing`} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, "input %s", raw)
	}
}

func TestSet_ReplaceKeepsPosition(t *testing.T) {
	m := NewMap()
	m.Set("a", NewNumber(1))
	m.Set("b", NewNumber(2))
	m.Set("a", NewNumber(3))

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	got, _ := m.Get("a")
	assert.Equal(t, 3.0, got.Number())
}

func TestLiteral(t *testing.T) {
	v, err := Decode([]byte(`{"c": 1, "s": "x", "arr": [1, 2]}`))
	require.NoError(t, err)

	assert.Equal(t, `{"c": 1, "s": "x", "arr": [1, 2]}`, v.Literal())
}

func TestScalarString(t *testing.T) {
	assert.Equal(t, "", NewNull().ScalarString())
	assert.Equal(t, "true", NewBool(true).ScalarString())
	assert.Equal(t, "7", NewNumber(7).ScalarString())
	assert.Equal(t, "3.5", NewNumber(3.5).ScalarString())
	assert.Equal(t, "plain", NewString("plain").ScalarString())
}
