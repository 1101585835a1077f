package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONColumns(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  any
	}{
		{name: "array", value: "[1,2]", want: []any{int64(1), int64(2)}},
		{name: "empty array", value: "[]", want: []any{}},
		{name: "object", value: `{"b":1,"a":"x"}`, want: FromPairs("b", int64(1), "a", "x")},
		{name: "nested", value: `[{"k":[1.5]}]`, want: []any{FromPairs("k", []any{1.5})}},
		{name: "malformed object", value: "{bad json", want: "{bad json"},
		{name: "malformed array", value: "[1,", want: "[1,"},
		{name: "trailing data", value: "[1] [2]", want: "[1] [2]"},
		{name: "scalar string", value: "hello", want: "hello"},
		{name: "numeric string", value: "42", want: "42"},
		{name: "json scalar without prefix", value: `"quoted"`, want: `"quoted"`},
		{name: "leading space", value: " [1]", want: " [1]"},
		{name: "not a string", value: int64(5), want: int64(5)},
		{name: "nil", value: nil, want: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := FromPairs("col", tc.value)
			DecodeJSONColumns(r)
			got := r.Value("col")
			if want, ok := tc.want.(*Record); ok {
				gotRecord, ok := got.(*Record)
				require.True(t, ok)
				assert.True(t, Equal(want, gotRecord))
				return
			}
			assert.True(t, equalValue(tc.want, got), "got %#v", got)
		})
	}
}

func TestDecodeJSONColumns_Idempotent(t *testing.T) {
	r := FromPairs("id", int64(1), "tags", `["a","b"]`, "meta", `{"x":{"y":2}}`, "bad", "{oops")
	once := DecodeJSONColumns(r.Clone())
	twice := DecodeJSONColumns(DecodeJSONColumns(r.Clone()))
	assert.True(t, Equal(once, twice))
	assert.Equal(t, "{oops", once.Value("bad"))
	assert.Equal(t, int64(1), once.Value("id"))
}

func TestDecodeJSONColumns_KeepsColumnOrder(t *testing.T) {
	r := FromPairs("a", "[1]", "b", "x", "c", "{}")
	DecodeJSONColumns(r)
	assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
	assert.Nil(t, DecodeJSONColumns(nil))
}

func TestDecodeValue(t *testing.T) {
	v, ok := DecodeValue("[true,null]")
	require.True(t, ok)
	assert.Equal(t, []any{true, nil}, v)

	v, ok = DecodeValue("{")
	assert.False(t, ok)
	assert.Equal(t, "{", v)
}
