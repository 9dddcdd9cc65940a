package jsonconv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/encoder"
	"github.com/d122y/fleecekit/fleece/jsonconv"
	"github.com/d122y/fleecekit/fleece/jsonenc"
)

func encode(t *testing.T, src string) fleece.Value {
	t.Helper()
	buf, err := jsonconv.EncodeJSONString(src, encoder.DefaultOptions(), nil)
	require.NoError(t, err)
	v, err := fleece.FromData(buf)
	require.NoError(t, err)
	return v
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string // canonical serialization after the round trip
	}{
		{"null", `null`, `null`},
		{"bool", `true`, `true`},
		{"int", `42`, `42`},
		{"negative", `-17`, `-17`},
		{"float", `2.5`, `2.5`},
		{"string", `"hello world"`, `"hello world"`},
		{"escapes", `"tab\there"`, `"tab\there"`},
		{"empty array", `[]`, `[]`},
		{"empty dict", `{}`, `{}`},
		{"nested", `{"a":{"b":[1,[2,{"c":null}]]}}`, `{"a":{"b":[1,[2,{"c":null}]]}}`},
		{"whitespace", " [ 1 , 2 ] ", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := encode(t, tt.src)
			out, err := jsonenc.Serialize(v, nil, false, true)
			require.NoError(t, err)
			require.Equal(t, tt.want, string(out))
		})
	}
}

func TestNumbersKeepTheirClass(t *testing.T) {
	v := encode(t, `[1, 1.0, 2.5, 9223372036854775807, 18446744073709551615]`)
	a, _ := v.AsArray()

	e0, _ := a.Get(0)
	require.Equal(t, fleece.TypeInt, e0.Type())

	// "1.0" is a float literal: it stays a float.
	e1, _ := a.Get(1)
	require.Equal(t, fleece.TypeDouble, e1.Type())
	require.Equal(t, 1.0, e1.AsDouble())

	e2, _ := a.Get(2)
	require.Equal(t, fleece.TypeDouble, e2.Type())

	e3, _ := a.Get(3)
	require.Equal(t, int64(9223372036854775807), e3.AsInt())

	e4, _ := a.Get(4)
	require.True(t, e4.IsUnsigned())
	require.Equal(t, uint64(18446744073709551615), e4.AsUnsigned())
}

func TestMalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"truncated", `{"a":`},
		{"bare brace", `{`},
		{"bad literal", `treu`},
		{"trailing data", `1 2`},
		{"unterminated string", `"abc`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jsonconv.EncodeJSONString(tt.src, encoder.DefaultOptions(), nil)
			require.Error(t, err)
			var fe *fleece.Error
			require.ErrorAs(t, err, &fe)
			require.Equal(t, fleece.JSONError, fe.Code)
		})
	}
}

func TestConvertIntoOpenContainer(t *testing.T) {
	// Convert drives an encoder the caller still owns: embed a parsed
	// document inside a larger one.
	enc := encoder.NewDefault()
	enc.BeginDict(2)
	enc.WriteKey("payload")
	require.NoError(t, jsonconv.Convert([]byte(`{"x":1}`), enc))
	enc.WriteKey("version")
	enc.WriteInt(2)
	enc.EndDict()
	buf, err := enc.ExtractOutput()
	require.NoError(t, err)

	v, err := fleece.FromData(buf)
	require.NoError(t, err)
	out, err := jsonenc.Serialize(v, nil, false, true)
	require.NoError(t, err)
	require.Equal(t, `{"payload":{"x":1},"version":2}`, string(out))
}

func TestDuplicateStringsDedup(t *testing.T) {
	buf, err := jsonconv.EncodeJSONString(
		`["a common string","a common string","a common string"]`,
		encoder.DefaultOptions(), nil)
	require.NoError(t, err)

	count := 0
	for i := 0; i+15 <= len(buf); i++ {
		if string(buf[i:i+15]) == "a common string" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
