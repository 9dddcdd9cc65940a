// Package fleece implements the read side of the Fleece binary encoding:
// zero-copy value views over a previously encoded buffer, with typed
// accessors, array indexing, and sorted-dictionary lookup. No tree of
// objects is ever materialized; a Value is a (buffer, offset) pair and all
// navigation is pointer arithmetic over the original bytes.
package fleece

import (
	"math"

	"github.com/d122y/fleecekit/internal/buf"
	"github.com/d122y/fleecekit/internal/format"
)

// Type classifies a decoded value.
type Type int8

const (
	// TypeUndefined is the type of the zero Value and of the encoded
	// "undefined" special.
	TypeUndefined Type = iota
	TypeNull
	TypeBool
	TypeInt
	TypeDouble
	TypeString
	TypeBlob
	TypeArray
	TypeDict
)

// String returns the type's name.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeBlob:
		return "blob"
	case TypeArray:
		return "array"
	case TypeDict:
		return "dict"
	default:
		return "undefined"
	}
}

// Value is a view of one encoded cell inside a Fleece buffer. It owns
// nothing: its lifetime is subordinate to the backing buffer, and copying
// it is free. The zero Value reports Exists() == false and returns zero
// values from every accessor.
type Value struct {
	// buf is the whole accessible buffer (for a delta document, the base
	// and delta concatenated).
	buf []byte
	// off is the offset of this cell's tag byte.
	off int
}

// FromTrustedData wraps a buffer the caller warrants to be well-formed
// Fleece. No validation is performed; behavior on malformed input is
// undefined. Use FromData for untrusted bytes.
func FromTrustedData(data []byte) Value {
	if len(data) < format.MinDocSize {
		return Value{}
	}
	v, ok := derefSlot(data, len(data)-format.SlotSize)
	if !ok {
		return Value{}
	}
	return v
}

// Exists reports whether the view refers to a cell at all.
func (v Value) Exists() bool { return v.buf != nil }

// Offset returns the cell's offset in the backing buffer.
func (v Value) Offset() int { return v.off }

// Buffer returns the backing buffer.
func (v Value) Buffer() []byte { return v.buf }

func (v Value) tag() byte { return v.buf[v.off] }

// derefSlot resolves the 2-byte slot at slotOff: an inline cell is
// returned as-is, a backpointer (or chain of backpointers) is followed.
// Chains terminate because every pointer target is strictly below the
// pointer. ok is false when a pointer leaves the buffer.
func derefSlot(b []byte, slotOff int) (Value, bool) {
	off := slotOff
	for {
		if off < 0 || off >= len(b) {
			return Value{}, false
		}
		if !format.IsPointer(b[off]) {
			return Value{buf: b, off: off}, true
		}
		target := format.PointerTarget(b, off)
		if target < 0 || target >= off {
			return Value{}, false
		}
		off = target
	}
}

// Type returns the value's type. Unrecognized tags decode as
// TypeUndefined; FromData rejects them up front.
func (v Value) Type() Type {
	if !v.Exists() {
		return TypeUndefined
	}
	switch format.TagKind(v.tag()) {
	case format.KindShortInt, format.KindInt:
		return TypeInt
	case format.KindFloat:
		return TypeDouble
	case format.KindSpecial:
		switch format.TagNibble(v.tag()) {
		case format.SpecialNull:
			return TypeNull
		case format.SpecialFalse, format.SpecialTrue:
			return TypeBool
		default:
			return TypeUndefined
		}
	case format.KindString:
		return TypeString
	case format.KindBlob:
		return TypeBlob
	case format.KindArray:
		return TypeArray
	case format.KindDict:
		return TypeDict
	default:
		return TypeUndefined
	}
}

// IsInteger reports whether the value is an integer cell (as opposed to a
// float). Useful because Type folds both into the numeric accessors.
func (v Value) IsInteger() bool {
	return v.Type() == TypeInt
}

// IsUnsigned reports whether the value is an integer cell written
// unsigned. A true result means AsUnsigned returns the exact value even
// above math.MaxInt64.
func (v Value) IsUnsigned() bool {
	if !v.Exists() {
		return false
	}
	t := v.tag()
	return format.TagKind(t) == format.KindInt && t&format.IntSignedBit == 0
}

// IsDouble reports whether a numeric value was stored as a 64-bit float.
func (v Value) IsDouble() bool {
	if !v.Exists() {
		return false
	}
	t := v.tag()
	return format.TagKind(t) == format.KindFloat &&
		format.TagNibble(t) == format.FloatNibble64
}

// AsBool returns the boolean interpretation: true for the true special
// and for any nonzero number, false for everything else.
func (v Value) AsBool() bool {
	if !v.Exists() {
		return false
	}
	switch v.Type() {
	case TypeBool:
		return format.TagNibble(v.tag()) == format.SpecialTrue
	case TypeInt:
		return v.AsInt() != 0
	case TypeDouble:
		return v.AsDouble() != 0
	default:
		return false
	}
}

// AsInt returns the integer interpretation. Floats truncate toward zero;
// booleans map to 0/1; all other types yield 0.
func (v Value) AsInt() int64 {
	if !v.Exists() {
		return 0
	}
	t := v.tag()
	switch format.TagKind(t) {
	case format.KindShortInt:
		return format.ShortIntValue(t)
	case format.KindInt:
		i, _ := format.IntValue(v.buf, v.off)
		return i
	case format.KindFloat:
		return int64(v.AsDouble())
	case format.KindSpecial:
		if format.TagNibble(t) == format.SpecialTrue {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// AsUnsigned returns the unsigned interpretation; for unsigned int cells
// the full 64-bit range is preserved.
func (v Value) AsUnsigned() uint64 {
	if v.IsUnsigned() {
		i, _ := format.IntValue(v.buf, v.off)
		return uint64(i)
	}
	return uint64(v.AsInt())
}

// AsFloat returns the value as a float32.
func (v Value) AsFloat() float32 {
	return float32(v.AsDouble())
}

// AsDouble returns the value as a float64. Integer cells widen; all
// non-numeric types yield 0.
func (v Value) AsDouble() float64 {
	if !v.Exists() {
		return 0
	}
	t := v.tag()
	switch format.TagKind(t) {
	case format.KindFloat:
		if format.TagNibble(t) == format.FloatNibble32 {
			return float64(math.Float32frombits(format.ReadU32(v.buf, v.off+2)))
		}
		return math.Float64frombits(format.ReadU64(v.buf, v.off+2))
	case format.KindShortInt:
		return float64(format.ShortIntValue(t))
	case format.KindInt:
		if v.IsUnsigned() {
			return float64(v.AsUnsigned())
		}
		return float64(v.AsInt())
	case format.KindSpecial:
		if format.TagNibble(t) == format.SpecialTrue {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// AsString returns the string bytes, zero-copy. Non-string types yield nil.
func (v Value) AsString() []byte {
	if !v.Exists() || format.TagKind(v.tag()) != format.KindString {
		return nil
	}
	return v.payloadBytes()
}

// AsData returns blob bytes, zero-copy. Non-blob types yield nil.
func (v Value) AsData() []byte {
	if !v.Exists() || format.TagKind(v.tag()) != format.KindBlob {
		return nil
	}
	return v.payloadBytes()
}

// payloadBytes decodes the length-prefixed payload of a string or blob
// cell. Returns an empty-but-non-nil slice for the empty string so
// callers can distinguish "empty" from "wrong type".
func (v Value) payloadBytes() []byte {
	n := format.TagNibble(v.tag())
	start := v.off + 1
	length := n
	if n == format.VarLengthNibble {
		l, consumed := buf.ReadUvarint(v.buf[start:])
		if consumed == 0 {
			return nil
		}
		start += consumed
		if l > uint64(len(v.buf)) {
			return nil
		}
		length = int(l)
	}
	if start+length > len(v.buf) {
		return nil
	}
	return v.buf[start : start+length : start+length]
}

// AsArray returns an array view; ok is false for non-arrays.
func (v Value) AsArray() (Array, bool) {
	if !v.Exists() || format.TagKind(v.tag()) != format.KindArray {
		return Array{}, false
	}
	return Array{Value: v}, true
}

// AsDict returns a dict view; ok is false for non-dicts.
func (v Value) AsDict() (Dict, bool) {
	if !v.Exists() || format.TagKind(v.tag()) != format.KindDict {
		return Dict{}, false
	}
	return Dict{Value: v}, true
}

// RawCell returns the in-place bytes of the cell at off: header plus
// payload, excluding any out-of-line children and trailing padding. ok is
// false when the cell is truncated. Intended for the encoder's spill and
// copy paths.
func RawCell(data []byte, off int) ([]byte, bool) {
	if off < 0 || off >= len(data) {
		return nil, false
	}
	v := Value{buf: data, off: off}
	ext, ok := v.cellExtent()
	if !ok {
		return nil, false
	}
	return data[off : off+ext], true
}

// cellExtent returns the number of bytes the cell occupies in place
// (header + payload, excluding out-of-line children, excluding trailing
// pad). ok is false when the cell is truncated.
func (v Value) cellExtent() (int, bool) {
	t := v.tag()
	switch format.TagKind(t) {
	case format.KindShortInt, format.KindSpecial:
		return 2, true
	case format.KindInt:
		n := format.TagNibble(t)&format.IntSizeMask + 1
		if v.off+1+n > len(v.buf) {
			return 0, false
		}
		return 1 + n, true
	case format.KindFloat:
		n := 4
		if format.TagNibble(t) == format.FloatNibble64 {
			n = 8
		}
		if v.off+2+n > len(v.buf) {
			return 0, false
		}
		return 2 + n, true
	case format.KindString, format.KindBlob:
		n := format.TagNibble(t)
		hdr := 1
		if n == format.VarLengthNibble {
			l, consumed := buf.ReadUvarint(v.buf[v.off+1:])
			if consumed == 0 || l > uint64(len(v.buf)) {
				return 0, false
			}
			hdr += consumed
			n = int(l)
		}
		if v.off+hdr+n > len(v.buf) {
			return 0, false
		}
		return hdr + n, true
	case format.KindArray, format.KindDict:
		count, first, ok := format.ContainerCount(v.buf, v.off)
		if !ok {
			return 0, false
		}
		slots := int(count)
		if format.TagKind(t) == format.KindDict {
			slots *= 2
		}
		end := first + slots*format.SlotSize
		if end > len(v.buf) {
			return 0, false
		}
		return end - v.off, true
	default:
		return 0, false
	}
}
