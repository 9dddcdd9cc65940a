package fleece

import (
	"math"
	"strconv"

	"github.com/d122y/fleecekit/internal/buf"
)

// String renders a canonical JSON-ish representation, mainly for logging
// and tests. The jsonenc package is the full-fidelity serializer; this
// rendering always sorts nothing and resolves no shared keys (integer
// keys print as quoted numbers).
func (v Value) String() string {
	return string(v.appendString(nil))
}

func (v Value) appendString(dst []byte) []byte {
	switch v.Type() {
	case TypeNull:
		return append(dst, "null"...)
	case TypeBool:
		if v.AsBool() {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case TypeInt:
		if v.IsUnsigned() {
			return strconv.AppendUint(dst, v.AsUnsigned(), 10)
		}
		return strconv.AppendInt(dst, v.AsInt(), 10)
	case TypeDouble:
		d := v.AsDouble()
		switch {
		case math.IsNaN(d):
			return append(dst, "NaN"...)
		case math.IsInf(d, 1):
			return append(dst, "Infinity"...)
		case math.IsInf(d, -1):
			return append(dst, "-Infinity"...)
		}
		bits := 64
		if !v.IsDouble() {
			bits = 32
		}
		return buf.AppendFloat(dst, d, -1, bits)
	case TypeString:
		return buf.AppendQuoted(dst, v.AsString())
	case TypeBlob:
		dst = append(dst, '"')
		dst = buf.AppendBase64(dst, v.AsData())
		return append(dst, '"')
	case TypeArray:
		a, _ := v.AsArray()
		dst = append(dst, '[')
		for it := a.Iterator(); it.Valid(); it.Next() {
			if it.Index() > 0 {
				dst = append(dst, ',')
			}
			dst = it.Value().appendString(dst)
		}
		return append(dst, ']')
	case TypeDict:
		d, _ := v.AsDict()
		dst = append(dst, '{')
		first := true
		for it := d.Iterator(); it.Valid(); it.Next() {
			if !first {
				dst = append(dst, ',')
			}
			first = false
			if keyIsInt(it.Key()) {
				dst = append(dst, '"')
				dst = strconv.AppendInt(dst, it.Key().AsInt(), 10)
				dst = append(dst, '"')
			} else {
				dst = buf.AppendQuoted(dst, it.Key().AsString())
			}
			dst = append(dst, ':')
			dst = it.Value().appendString(dst)
		}
		return append(dst, '}')
	default:
		return append(dst, "undefined"...)
	}
}
