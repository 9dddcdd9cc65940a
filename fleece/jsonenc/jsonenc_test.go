package jsonenc_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/encoder"
	"github.com/d122y/fleecekit/fleece/jsonconv"
	"github.com/d122y/fleecekit/fleece/jsonenc"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
)

func TestEventStream(t *testing.T) {
	e := jsonenc.New(64)
	e.BeginDict()
	e.WriteKey("a")
	e.BeginArray()
	e.WriteInt(1)
	e.WriteBool(true)
	e.WriteNull()
	e.WriteString([]byte("x"))
	e.EndArray()
	e.WriteKey("n")
	e.WriteUInt(18446744073709551615)
	e.EndDict()
	out, err := e.ExtractOutput()
	require.NoError(t, err)
	require.Equal(t, `{"a":[1,true,null,"x"],"n":18446744073709551615}`, string(out))
}

func TestStringEscaping(t *testing.T) {
	e := jsonenc.New(0)
	e.WriteString([]byte("a\"b\\c\nd\x02"))
	out, err := e.ExtractOutput()
	require.NoError(t, err)
	require.Equal(t, `"a\"b\\c\nd\u0002"`, string(out))
}

func TestFloatFormatting(t *testing.T) {
	t.Run("default precision", func(t *testing.T) {
		e := jsonenc.New(0)
		e.WriteDouble(1.0 / 3.0)
		out, err := e.ExtractOutput()
		require.NoError(t, err)
		require.Equal(t, "0.33333333333333331", string(out))
	})
	t.Run("canonical shortest", func(t *testing.T) {
		e := jsonenc.New(0)
		e.SetCanonical(true)
		e.WriteDouble(0.1)
		out, err := e.ExtractOutput()
		require.NoError(t, err)
		require.Equal(t, "0.1", string(out))
	})
	t.Run("non-finite", func(t *testing.T) {
		e := jsonenc.New(0)
		e.BeginArray()
		e.WriteDouble(math.NaN())
		e.WriteDouble(math.Inf(1))
		e.WriteDouble(math.Inf(-1))
		e.EndArray()
		out, err := e.ExtractOutput()
		require.NoError(t, err)
		require.Equal(t, "[NaN,Infinity,-Infinity]", string(out))
	})
}

func TestBlobAsBase64(t *testing.T) {
	e := jsonenc.New(0)
	e.WriteData([]byte("hello"))
	out, err := e.ExtractOutput()
	require.NoError(t, err)
	require.Equal(t, `"aGVsbG8="`, string(out))
}

func TestJSON5Keys(t *testing.T) {
	e := jsonenc.New(0)
	e.SetJSON5(true)
	e.BeginDict()
	e.WriteKey("plain$_0")
	e.WriteInt(1)
	e.WriteKey("needs quoting")
	e.WriteInt(2)
	e.WriteKey("0starts")
	e.WriteInt(3)
	e.EndDict()
	out, err := e.ExtractOutput()
	require.NoError(t, err)
	require.Equal(t, `{plain$_0:1,"needs quoting":2,"0starts":3}`, string(out))
}

func roundTrip(t *testing.T, src string, sk *sharedkeys.SharedKeys) fleece.Value {
	t.Helper()
	buf, err := jsonconv.EncodeJSONString(src, encoder.DefaultOptions(), sk)
	require.NoError(t, err)
	v, err := fleece.FromData(buf)
	require.NoError(t, err)
	return v
}

func TestWriteValue(t *testing.T) {
	v := roundTrip(t, `{"b":[1,2.5,"s"],"a":null}`, nil)
	out, err := jsonenc.Serialize(v, nil, false, false)
	require.NoError(t, err)
	// Keys come back in the encoder's sorted order.
	require.Equal(t, `{"a":null,"b":[1,2.5,"s"]}`, string(out))
}

func TestWriteValueCanonicalSortsKeys(t *testing.T) {
	// An unsorted buffer still serializes canonically.
	opts := encoder.DefaultOptions()
	opts.SortKeys = false
	buf, err := jsonconv.EncodeJSONString(`{"z":1,"a":2}`, opts, nil)
	require.NoError(t, err)
	v, err := fleece.FromData(buf)
	require.NoError(t, err)

	out, err := jsonenc.Serialize(v, nil, false, true)
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"z":1}`, string(out))

	out, err = jsonenc.Serialize(v, nil, false, false)
	require.NoError(t, err)
	require.Equal(t, `{"z":1,"a":2}`, string(out))
}

func TestWriteValueSharedKeys(t *testing.T) {
	sk := sharedkeys.New()
	v := roundTrip(t, `{"name":"Jo"}`, sk)
	out, err := jsonenc.Serialize(v, sk, false, false)
	require.NoError(t, err)
	require.Equal(t, `{"name":"Jo"}`, string(out))

	// Without the table the integer code is all there is to print.
	out, err = jsonenc.Serialize(v, nil, false, false)
	require.NoError(t, err)
	require.Equal(t, `{"0":"Jo"}`, string(out))
}

func TestWriteValueUndefinedFails(t *testing.T) {
	e := jsonenc.New(0)
	e.WriteValue(fleece.Value{})
	_, err := e.ExtractOutput()
	require.Error(t, err)
	var fe *fleece.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, fleece.JSONError, fe.Code)
}

func TestResetAndReuse(t *testing.T) {
	e := jsonenc.New(0)
	e.WriteInt(1)
	require.False(t, e.IsEmpty())
	e.Reset()
	require.True(t, e.IsEmpty())
	e.WriteInt(2)
	out, err := e.ExtractOutput()
	require.NoError(t, err)
	require.Equal(t, "2", string(out))
}
