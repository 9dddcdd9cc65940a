package walker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/encoder"
	"github.com/d122y/fleecekit/fleece/jsonconv"
	"github.com/d122y/fleecekit/fleece/path"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/fleece/walker"
)

func encode(t *testing.T, src string) fleece.Value {
	t.Helper()
	buf, err := jsonconv.EncodeJSONString(src, encoder.DefaultOptions(), nil)
	require.NoError(t, err)
	v, err := fleece.FromData(buf)
	require.NoError(t, err)
	return v
}

func TestDeepIteratorSequence(t *testing.T) {
	root := encode(t, `{"x":[{"y":42}]}`)

	type step struct {
		ptr string
		typ fleece.Type
	}
	var got []step
	for it := walker.New(root, nil); it.Value().Exists(); it.Next() {
		got = append(got, step{it.JSONPointer(), it.Value().Type()})
	}
	require.Equal(t, []step{
		{"/x", fleece.TypeArray},
		{"/x/0", fleece.TypeDict},
		{"/x/0/y", fleece.TypeInt},
	}, got)
}

func TestDeepIteratorScalarRoot(t *testing.T) {
	it := walker.New(encode(t, `42`), nil)
	require.False(t, it.Value().Exists())
	it.Next() // further advances stay finished
	require.False(t, it.Value().Exists())
}

func TestDeepIteratorKeyAndIndex(t *testing.T) {
	root := encode(t, `{"arr":[5,6]}`)
	it := walker.New(root, nil)

	require.Equal(t, "arr", it.KeyString())
	require.Equal(t, uint32(0), it.Index())

	it.Next()
	require.Equal(t, "", it.KeyString())
	require.Equal(t, uint32(0), it.Index())
	require.Equal(t, int64(5), it.Value().AsInt())

	it.Next()
	require.Equal(t, uint32(1), it.Index())
	require.Equal(t, int64(6), it.Value().AsInt())
}

func TestSkipChildren(t *testing.T) {
	root := encode(t, `{"a":{"deep":{"deeper":1}},"b":2}`)

	var ptrs []string
	for it := walker.New(root, nil); it.Value().Exists(); it.Next() {
		ptrs = append(ptrs, it.JSONPointer())
		if it.JSONPointer() == "/a" {
			it.SkipChildren()
		}
	}
	require.Equal(t, []string{"/a", "/b"}, ptrs)
}

func TestJSONPointerEscapesInPaths(t *testing.T) {
	root := encode(t, `{"a/b":{"~":1}}`)
	var ptrs []string
	for it := walker.New(root, nil); it.Value().Exists(); it.Next() {
		ptrs = append(ptrs, it.JSONPointer())
	}
	require.Equal(t, []string{"/a~1b", "/a~1b/~0"}, ptrs)
}

// Every yielded JSON pointer must evaluate back to the yielded node.
func TestPathPointerRoundTrip(t *testing.T) {
	root := encode(t, `{
		"users": [
			{"name":"ann","tags":["x","y"],"meta":{"active":true}},
			{"name":"bob","tags":[],"meta":{"active":false,"score":1.5}}
		],
		"count": 2,
		"odd~key/slash": [null]
	}`)

	seen := 0
	for it := walker.New(root, nil); it.Value().Exists(); it.Next() {
		ptr := it.JSONPointer()
		v, err := path.EvalJSONPointer(ptr, nil, root)
		require.NoError(t, err, "pointer %s", ptr)
		require.True(t, v.Exists(), "pointer %s", ptr)
		require.Equal(t, it.Value().Offset(), v.Offset(), "pointer %s", ptr)
		seen++
	}
	require.Greater(t, seen, 10)
}

func TestPathComponents(t *testing.T) {
	root := encode(t, `{"x":[{"y":1}]}`)
	it := walker.New(root, nil)
	it.Next()
	it.Next() // at /x/0/y
	p := it.Path()
	require.Len(t, p, 3)
	require.True(t, p[0].IsKey)
	require.Equal(t, "x", p[0].Key)
	require.False(t, p[1].IsKey)
	require.Equal(t, uint32(0), p[1].Index)
	require.True(t, p[2].IsKey)
	require.Equal(t, "y", p[2].Key)
}

func TestDeepIteratorSharedKeys(t *testing.T) {
	sk := sharedkeys.New()
	buf, err := jsonconv.EncodeJSONString(`{"name":{"first":"Jo"}}`, encoder.DefaultOptions(), sk)
	require.NoError(t, err)
	root, err := fleece.FromData(buf)
	require.NoError(t, err)

	var ptrs []string
	for it := walker.New(root, sk); it.Value().Exists(); it.Next() {
		ptrs = append(ptrs, it.JSONPointer())
	}
	require.Equal(t, []string{"/name", "/name/first"}, ptrs)
}
