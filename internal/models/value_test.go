package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		a        Value
		b        Value
		name     string
		expected bool
	}{
		{name: "nil and null", a: nil, b: Null{}, expected: true},
		{name: "null and value", a: Null{}, b: String(""), expected: false},
		{name: "same strings", a: String("a"), b: String("a"), expected: true},
		{name: "different strings", a: String("a"), b: String("b"), expected: false},
		{
			name:     "NFC and NFD forms are equal",
			a:        String("caf\u00e9"),
			b:        String("cafe\u0301"),
			expected: true,
		},
		{name: "int and integral float", a: Int(1), b: Float(1.0), expected: true},
		{name: "int and fractional float", a: Int(1), b: Float(1.5), expected: false},
		{name: "int and string", a: Int(1), b: String("1"), expected: false},
		{name: "ints above 2^53", a: Int(1<<53 + 1), b: Int(1 << 53), expected: false},
		{name: "int above 2^53 and float", a: Int(1<<53 + 1), b: Float(1 << 53), expected: false},
		{name: "int and float at 2^53", a: Int(1 << 53), b: Float(1 << 53), expected: true},
		{name: "max int and 2^63 float", a: Int(math.MaxInt64), b: Float(1 << 63), expected: false},
		{name: "min int and -2^63 float", a: Int(math.MinInt64), b: Float(-(1 << 63)), expected: true},
		{name: "NaN", a: Float(math.NaN()), b: Float(math.NaN()), expected: false},
		{name: "bools", a: Bool(true), b: Bool(true), expected: true},
		{name: "bytes", a: Bytes{1, 2}, b: Bytes{1, 2}, expected: true},
		{name: "bytes differ", a: Bytes{1, 2}, b: Bytes{2, 1}, expected: false},
		{
			name:     "list order matters",
			a:        List{String("a"), String("b")},
			b:        List{String("b"), String("a")},
			expected: false,
		},
		{
			name:     "object key order does not matter",
			a:        Object{"x": Int(1), "y": Int(2)},
			b:        Object{"y": Int(2), "x": Int(1)},
			expected: true,
		},
		{
			name:     "null key equals absent key",
			a:        Object{"x": Int(1), "y": Null{}},
			b:        Object{"x": Int(1)},
			expected: true,
		},
		{
			name:     "absent key vs value",
			a:        Object{"x": Int(1)},
			b:        Object{"x": Int(1), "y": Int(2)},
			expected: false,
		},
		{
			name:     "nested objects",
			a:        Object{"o": Object{"a": List{Int(1), Object{"k": String("v")}}}},
			b:        Object{"o": Object{"a": List{Float(1), Object{"k": String("v")}}}},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Equal(tt.a, tt.b))
			assert.Equal(t, tt.expected, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestCanonical_ConsistentWithEqual(t *testing.T) {
	a := Object{"b": List{Int(1), String("café")}, "a": Float(2), "n": Null{}}
	b := Object{"a": Int(2), "b": List{Float(1), String("café")}}

	require.True(t, Equal(a, b))
	assert.Equal(t, Canonical(a), Canonical(b))
	assert.Equal(t, `{"a":2,"b":[1,"café"]}`, string(Canonical(a)))
}

func TestCanonical_LargeIntegers(t *testing.T) {
	assert.Equal(t, Canonical(Int(1<<53)), Canonical(Float(1<<53)))
	assert.NotEqual(t, Canonical(Int(1<<53+1)), Canonical(Float(1<<53)))
	assert.NotEqual(t, Canonical(Int(1<<53+1)), Canonical(Int(1<<53)))
	assert.Equal(t, "-9223372036854775808", string(Canonical(Float(-(1 << 63)))))
}

func TestCompareOrdered(t *testing.T) {
	tests := []struct {
		a       Value
		b       Value
		name    string
		want    int
		wantErr bool
	}{
		{name: "ints", a: Int(1), b: Int(2), want: -1},
		{name: "int and float", a: Int(3), b: Float(2.5), want: 1},
		{name: "equal numbers", a: Int(2), b: Float(2), want: 0},
		{name: "ints above 2^53", a: Int(1 << 53), b: Int(1<<53 + 1), want: -1},
		{name: "int above float at 2^53", a: Int(1<<53 + 1), b: Float(1 << 53), want: 1},
		{name: "float below int above 2^53", a: Float(1 << 53), b: Int(1<<53 + 1), want: -1},
		{name: "negative fraction", a: Int(-2), b: Float(-2.5), want: 1},
		{name: "float beyond int64", a: Int(math.MaxInt64), b: Float(1e19), want: -1},
		{name: "NaN not ordered", a: Int(1), b: Float(math.NaN()), wantErr: true},
		{name: "strings", a: String("b"), b: String("a"), want: 1},
		{name: "null loses", a: Null{}, b: Int(-100), want: -1},
		{name: "both null", a: nil, b: Null{}, want: 0},
		{name: "bools not ordered", a: Bool(true), b: Bool(false), wantErr: true},
		{name: "mixed kinds", a: Int(1), b: String("1"), wantErr: true},
		{name: "lists not ordered", a: List{}, b: List{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareOrdered(tt.a, tt.b)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotOrdered)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny(t *testing.T) {
	var decoded any
	require.NoError(t, json.Unmarshal([]byte(`{"n":1,"f":1.5,"s":"x","b":true,"l":[1,"a"],"z":null}`), &decoded))

	value, err := FromAny(decoded)
	require.NoError(t, err)

	expected := Object{
		"n": Int(1),
		"f": Float(1.5),
		"s": String("x"),
		"b": Bool(true),
		"l": List{Int(1), String("a")},
		"z": Null{},
	}
	assert.True(t, Equal(expected, value))

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestValueJSON_RoundTrip(t *testing.T) {
	values := []Value{
		Null{},
		Bool(true),
		Int(42),
		Float(3.25),
		String("hello"),
		Bytes{0, 1, 255},
		List{Int(1), List{String("nested")}},
		Object{"a": Int(1), "b": Object{"c": Bool(false)}},
	}

	for _, v := range values {
		t.Run(string(v.Kind()), func(t *testing.T) {
			data, err := MarshalValue(v)
			require.NoError(t, err)

			decoded, err := UnmarshalValue(data)
			require.NoError(t, err)
			assert.Equal(t, v.Kind(), decoded.Kind())
			assert.True(t, Equal(v, decoded))
		})
	}
}

func TestUnmarshalValue_UnknownKind(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"kind":"date","value":"2026-01-01"}`))
	assert.Error(t, err)
}

func TestCloneValue_Independent(t *testing.T) {
	original := Object{"l": List{Bytes{1}}}
	clone := CloneValue(original).(Object)

	original["l"].(List)[0].(Bytes)[0] = 7
	assert.Equal(t, byte(1), clone["l"].(List)[0].(Bytes)[0])
}
