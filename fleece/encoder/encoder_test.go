package encoder_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/encoder"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
)

func extract(t *testing.T, e *encoder.Encoder) []byte {
	t.Helper()
	out, err := e.ExtractOutput()
	require.NoError(t, err)
	return out
}

func decode(t *testing.T, buf []byte) fleece.Value {
	t.Helper()
	v, err := fleece.FromData(buf)
	require.NoError(t, err)
	return v
}

func TestEncodeScalars(t *testing.T) {
	tests := []struct {
		name  string
		write func(e *encoder.Encoder)
		check func(t *testing.T, v fleece.Value)
	}{
		{"null", func(e *encoder.Encoder) { e.WriteNull() },
			func(t *testing.T, v fleece.Value) { require.Equal(t, fleece.TypeNull, v.Type()) }},
		{"false", func(e *encoder.Encoder) { e.WriteBool(false) },
			func(t *testing.T, v fleece.Value) {
				require.Equal(t, fleece.TypeBool, v.Type())
				require.False(t, v.AsBool())
			}},
		{"short int", func(e *encoder.Encoder) { e.WriteInt(-8) },
			func(t *testing.T, v fleece.Value) { require.Equal(t, int64(-8), v.AsInt()) }},
		{"byte int", func(e *encoder.Encoder) { e.WriteInt(100) },
			func(t *testing.T, v fleece.Value) { require.Equal(t, int64(100), v.AsInt()) }},
		{"wide int", func(e *encoder.Encoder) { e.WriteInt(-123456789) },
			func(t *testing.T, v fleece.Value) { require.Equal(t, int64(-123456789), v.AsInt()) }},
		{"uint byte", func(e *encoder.Encoder) { e.WriteUInt(200) },
			func(t *testing.T, v fleece.Value) { require.Equal(t, uint64(200), v.AsUnsigned()) }},
		{"uint max", func(e *encoder.Encoder) { e.WriteUInt(^uint64(0)) },
			func(t *testing.T, v fleece.Value) {
				require.True(t, v.IsUnsigned())
				require.Equal(t, ^uint64(0), v.AsUnsigned())
			}},
		{"float32", func(e *encoder.Encoder) { e.WriteFloat(2.5) },
			func(t *testing.T, v fleece.Value) {
				require.False(t, v.IsDouble())
				require.Equal(t, float32(2.5), v.AsFloat())
			}},
		{"float64", func(e *encoder.Encoder) { e.WriteDouble(0.1) },
			func(t *testing.T, v fleece.Value) {
				require.True(t, v.IsDouble())
				require.Equal(t, 0.1, v.AsDouble())
			}},
		{"narrowing double", func(e *encoder.Encoder) { e.WriteDouble(2.5) },
			func(t *testing.T, v fleece.Value) {
				require.False(t, v.IsDouble())
				require.Equal(t, 2.5, v.AsDouble())
			}},
		{"blob", func(e *encoder.Encoder) { e.WriteData([]byte{1, 2, 3}) },
			func(t *testing.T, v fleece.Value) {
				require.Equal(t, fleece.TypeBlob, v.Type())
				require.Equal(t, []byte{1, 2, 3}, v.AsData())
			}},
		{"long string", func(e *encoder.Encoder) { e.WriteString("a string longer than fourteen bytes") },
			func(t *testing.T, v fleece.Value) {
				require.Equal(t, "a string longer than fourteen bytes", string(v.AsString()))
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := encoder.NewDefault()
			tt.write(e)
			tt.check(t, decode(t, extract(t, e)))
		})
	}
}

func TestEncodeSimpleDictLayout(t *testing.T) {
	e := encoder.NewDefault()
	e.BeginDict(1)
	e.WriteKey("hi")
	e.WriteInt(123)
	e.EndDict()
	buf := extract(t, e)

	// Layout is deterministic: the interned "hi" cell, the dict header,
	// a key backpointer, the inline int, and the trailing root pointer.
	require.Equal(t, []byte{
		0x42, 'h', 'i', 0x00, // string cell "hi" + pad
		0x70, 0x01, // dict header, count 1
		0x80, 0x04, // key slot: pointer 4 words back to "hi"
		0x18, 0x7B, // value slot: inline signed int 123
		0x80, 0x04, // root pointer to the dict header
	}, buf)

	d, ok := decode(t, buf).AsDict()
	require.True(t, ok)
	v, ok := d.Get("hi")
	require.True(t, ok)
	require.Equal(t, int64(123), v.AsInt())
}

func TestStringDedup(t *testing.T) {
	e := encoder.NewDefault()
	e.BeginArray(3)
	for i := 0; i < 3; i++ {
		e.WriteString("repeated-string")
	}
	e.EndArray()
	buf := extract(t, e)

	require.Equal(t, 1, bytes.Count(buf, []byte("repeated-string")))

	a, _ := decode(t, buf).AsArray()
	for i := uint32(0); i < 3; i++ {
		v, ok := a.Get(i)
		require.True(t, ok)
		require.Equal(t, "repeated-string", string(v.AsString()))
	}
}

func TestNoDedupWhenDisabled(t *testing.T) {
	opts := encoder.DefaultOptions()
	opts.UniqueStrings = false
	e := encoder.New(opts)
	e.BeginArray(2)
	e.WriteString("twice-written")
	e.WriteString("twice-written")
	e.EndArray()
	buf := extract(t, e)
	require.Equal(t, 2, bytes.Count(buf, []byte("twice-written")))
}

func TestBlobsNeverAliasStrings(t *testing.T) {
	e := encoder.NewDefault()
	e.BeginArray(2)
	e.WriteString("same-bytes-here")
	e.WriteData([]byte("same-bytes-here"))
	e.EndArray()
	buf := extract(t, e)
	require.Equal(t, 2, bytes.Count(buf, []byte("same-bytes-here")))

	a, _ := decode(t, buf).AsArray()
	s, _ := a.Get(0)
	b, _ := a.Get(1)
	require.Equal(t, fleece.TypeString, s.Type())
	require.Equal(t, fleece.TypeBlob, b.Type())
}

func TestSortKeysInvariant(t *testing.T) {
	e := encoder.NewDefault()
	e.BeginDict(4)
	for _, k := range []string{"delta", "alpha", "charlie", "bravo"} {
		e.WriteKey(k)
		e.WriteInt(1)
	}
	e.EndDict()
	d, _ := decode(t, extract(t, e)).AsDict()

	var keys []string
	for it := d.Iterator(); it.Valid(); it.Next() {
		k, _ := it.KeyString(nil)
		keys = append(keys, k)
	}
	require.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, keys)
}

func TestMixedKeySorting(t *testing.T) {
	// Shared codes for some keys, strings for the rest: codes sort first.
	sk := sharedkeys.New()
	sk.Encode("zeta")
	sk.Encode("eta")

	e := encoder.NewDefault()
	e.SetSharedKeys(sk)
	e.BeginDict(3)
	e.WriteKey("a key that is far too long to ever be shared")
	e.WriteInt(1)
	e.WriteKey("zeta")
	e.WriteInt(2)
	e.WriteKey("eta")
	e.WriteInt(3)
	e.EndDict()
	d, _ := decode(t, extract(t, e)).AsDict()

	it := d.Iterator()
	require.Equal(t, fleece.TypeInt, it.Key().Type())
	require.Equal(t, int64(0), it.Key().AsInt()) // "zeta"
	it.Next()
	require.Equal(t, int64(1), it.Key().AsInt()) // "eta"
	it.Next()
	require.Equal(t, fleece.TypeString, it.Key().Type())

	v, ok := d.GetWithSharedKeys("eta", sk)
	require.True(t, ok)
	require.Equal(t, int64(3), v.AsInt())
	v, ok = d.Get("a key that is far too long to ever be shared")
	require.True(t, ok)
	require.Equal(t, int64(1), v.AsInt())
}

func TestEncoderGrammarErrors(t *testing.T) {
	tests := []struct {
		name  string
		drive func(e *encoder.Encoder)
	}{
		{"end without begin", func(e *encoder.Encoder) { e.EndArray() }},
		{"mismatched end", func(e *encoder.Encoder) { e.BeginArray(0); e.EndDict() }},
		{"key outside dict", func(e *encoder.Encoder) { e.WriteKey("k") }},
		{"value without key", func(e *encoder.Encoder) { e.BeginDict(0); e.WriteInt(1) }},
		{"two keys in a row", func(e *encoder.Encoder) { e.BeginDict(0); e.WriteKey("a"); e.WriteKey("b") }},
		{"dangling key", func(e *encoder.Encoder) { e.BeginDict(0); e.WriteKey("a"); e.EndDict() }},
		{"unclosed container", func(e *encoder.Encoder) { e.BeginArray(0); e.WriteInt(1) }},
		{"two top-level values", func(e *encoder.Encoder) { e.WriteInt(1); e.WriteInt(2) }},
		{"nothing written", func(_ *encoder.Encoder) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := encoder.NewDefault()
			tt.drive(e)
			_, err := e.ExtractOutput()
			require.Error(t, err)
			var fe *fleece.Error
			require.ErrorAs(t, err, &fe)
			require.Equal(t, fleece.EncodeError, fe.Code)
		})
	}
}

func TestStickyError(t *testing.T) {
	e := encoder.NewDefault()
	e.EndArray() // latches
	require.Error(t, e.Error())

	// Subsequent writes are no-ops; the first error is reported.
	e.WriteInt(1)
	e.BeginArray(0)
	e.EndArray()
	_, err := e.ExtractOutput()
	require.Error(t, err)

	// After ExtractOutput the encoder is reusable.
	e.WriteInt(7)
	buf := extract(t, e)
	require.Equal(t, int64(7), decode(t, buf).AsInt())
}

func TestWriteValueIdempotentReencode(t *testing.T) {
	// Keys are written pre-sorted so the first encoding is canonical:
	// WriteValue then replays the identical event sequence.
	e := encoder.NewDefault()
	e.BeginDict(3)
	e.WriteKey("name")
	e.WriteString("a value long enough to be out of line")
	e.WriteKey("ok")
	e.WriteBool(true)
	e.WriteKey("tags")
	e.BeginArray(3)
	e.WriteInt(1)
	e.WriteDouble(0.5)
	e.WriteString("tag-one")
	e.EndArray()
	e.EndDict()
	buf1 := extract(t, e)

	v1 := decode(t, buf1)
	e2 := encoder.NewDefault()
	e2.WriteValue(v1)
	buf2 := extract(t, e2)

	require.Equal(t, buf1, buf2)
	require.True(t, decode(t, buf2).IsEqual(v1))
}

func TestWriteValueReKeysSharedKeys(t *testing.T) {
	srcSK := sharedkeys.New()
	srcSK.Encode("padding") // skew the code assignment
	srcSK.Encode("name")

	src := encoder.NewDefault()
	src.SetSharedKeys(srcSK)
	src.BeginDict(1)
	src.WriteKey("name")
	src.WriteString("Alice-of-wonderland")
	src.EndDict()
	srcBuf := extract(t, src)

	dstSK := sharedkeys.New()
	dst := encoder.NewDefault()
	dst.SetSharedKeys(dstSK)
	dst.WriteValueWithSharedKeys(decode(t, srcBuf), srcSK)
	dstBuf := extract(t, dst)

	d, _ := decode(t, dstBuf).AsDict()
	v, ok := d.GetWithSharedKeys("name", dstSK)
	require.True(t, ok)
	require.Equal(t, "Alice-of-wonderland", string(v.AsString()))

	// The destination table assigned its own code.
	code, ok := dstSK.Lookup("name")
	require.True(t, ok)
	require.Equal(t, 0, code)
}

func TestDeltaEncoding(t *testing.T) {
	base0 := encoder.NewDefault()
	base0.BeginDict(1)
	base0.WriteKey("name")
	base0.WriteString("Alice-in-the-base")
	base0.EndDict()
	base, err := base0.ExtractOutput()
	require.NoError(t, err)

	e := encoder.NewDefault()
	e.SetBase(base)
	e.ReuseBaseStrings()
	e.BeginDict(2)
	e.WriteKey("original")
	e.WriteValue(fleece.FromTrustedData(base))
	e.WriteKey("alias")
	e.WriteString("Alice-in-the-base") // dedups into the base
	e.EndDict()
	delta, err := e.ExtractOutput()
	require.NoError(t, err)

	combined := append(append([]byte{}, base...), delta...)
	require.Equal(t, 1, bytes.Count(combined, []byte("Alice-in-the-base")))

	root := decode(t, combined)
	d, _ := root.AsDict()
	orig, ok := d.Get("original")
	require.True(t, ok)
	od, ok := orig.AsDict()
	require.True(t, ok)
	v, ok := od.Get("name")
	require.True(t, ok)
	require.Equal(t, "Alice-in-the-base", string(v.AsString()))
	v, ok = d.Get("alias")
	require.True(t, ok)
	require.Equal(t, "Alice-in-the-base", string(v.AsString()))
}

func TestLargeInlineArray(t *testing.T) {
	const n = 5000
	e := encoder.NewDefault()
	e.BeginArray(n)
	for i := 0; i < n; i++ {
		e.WriteInt(int64(i % 100))
	}
	e.EndArray()
	a, ok := decode(t, extract(t, e)).AsArray()
	require.True(t, ok)
	require.Equal(t, uint32(n), a.Count())
	for _, i := range []uint32{0, 1, 2047, 2048, n - 1} {
		v, ok := a.Get(i)
		require.True(t, ok, "index %d", i)
		require.Equal(t, int64(i%100), v.AsInt())
	}
}

func TestPointerSpillFarBackReference(t *testing.T) {
	// The first string lands near offset 0; by the time its second
	// reference is written, ~110KB of unique strings separate them, beyond
	// the 64KB pointer reach. The second reference must resolve through
	// relay pointers or a re-emitted copy, never an out-of-range pointer.
	e := encoder.NewDefault()
	e.BeginArray(0)
	e.WriteString("the very first string cell")
	for i := 0; i < 4000; i++ {
		e.WriteString(fmt.Sprintf("unique-filler-string-%05d", i))
	}
	e.WriteString("the very first string cell")
	e.EndArray()
	buf := extract(t, e)

	a, ok := decode(t, buf).AsArray()
	require.True(t, ok)
	first, _ := a.Get(0)
	last, _ := a.Get(4001)
	require.Equal(t, "the very first string cell", string(first.AsString()))
	require.Equal(t, "the very first string cell", string(last.AsString()))
}

func TestDeepNesting(t *testing.T) {
	const depth = 50
	e := encoder.NewDefault()
	for i := 0; i < depth; i++ {
		e.BeginArray(1)
	}
	e.WriteInt(42)
	for i := 0; i < depth; i++ {
		e.EndArray()
	}
	v := decode(t, extract(t, e))
	for i := 0; i < depth; i++ {
		a, ok := v.AsArray()
		require.True(t, ok)
		v, ok = a.Get(0)
		require.True(t, ok)
	}
	require.Equal(t, int64(42), v.AsInt())
}

func TestWriteRaw(t *testing.T) {
	e := encoder.NewDefault()
	e.BeginArray(1)
	e.WriteRaw([]byte{0x42, 'h', 'i'}) // a pre-encoded short string cell
	e.EndArray()
	a, _ := decode(t, extract(t, e)).AsArray()
	v, ok := a.Get(0)
	require.True(t, ok)
	require.Equal(t, "hi", string(v.AsString()))
}
