// Package jsonenc produces JSON text (optionally JSON5 or canonical) from
// the same event stream the Fleece encoder accepts, plus a whole-value
// serializer for existing Fleece values. Output is UTF-8; strings escape
// per RFC 8259.
package jsonenc

import (
	"math"
	"sort"
	"strconv"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/internal/buf"
	"github.com/d122y/fleecekit/internal/writer"
)

// Encoder generates JSON-encoded data. Errors (illegal value kinds) are
// sticky and reported by ExtractOutput. Not safe for concurrent use.
type Encoder struct {
	out       *writer.Writer
	json5     bool
	canonical bool
	first     bool
	sk        *sharedkeys.SharedKeys
	err       error
}

// New returns a JSON encoder with the given output reservation.
func New(reserve int) *Encoder {
	return &Encoder{out: writer.NewWriter(reserve), first: true}
}

// SetJSON5 enables JSON5 output: dict keys that are JavaScript
// identifiers are written unquoted.
func (e *Encoder) SetJSON5(j5 bool) { e.json5 = j5 }

// SetCanonical enables canonical output: dict keys sorted
// lexicographically and shortest round-trip number formatting.
func (e *Encoder) SetCanonical(c bool) { e.canonical = c }

// SetSharedKeys attaches the table WriteValue uses to resolve integer
// dict keys.
func (e *Encoder) SetSharedKeys(sk *sharedkeys.SharedKeys) { e.sk = sk }

// IsEmpty reports whether nothing has been written.
func (e *Encoder) IsEmpty() bool { return e.out.Len() == 0 }

// BytesWritten returns the output length so far.
func (e *Encoder) BytesWritten() int { return e.out.Len() }

// Error returns the latched error, or nil.
func (e *Encoder) Error() error { return e.err }

// ExtractOutput consumes the encoder and returns the JSON text.
func (e *Encoder) ExtractOutput() ([]byte, error) {
	if e.err != nil {
		err := e.err
		e.Reset()
		return nil, err
	}
	out := e.out.ExtractOutput()
	e.first = true
	return out, nil
}

// Reset clears the encoder for reuse.
func (e *Encoder) Reset() {
	e.out.Reset()
	e.first = true
	e.err = nil
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// comma writes the separator before a value unless it is the first in
// its container.
func (e *Encoder) comma() {
	if e.first {
		e.first = false
	} else {
		e.out.WriteByte(',')
	}
}

// WriteNull writes null.
func (e *Encoder) WriteNull() {
	e.comma()
	e.out.WriteString("null")
}

// WriteBool writes true or false.
func (e *Encoder) WriteBool(b bool) {
	e.comma()
	if b {
		e.out.WriteString("true")
	} else {
		e.out.WriteString("false")
	}
}

// WriteInt writes a signed integer.
func (e *Encoder) WriteInt(i int64) {
	e.comma()
	e.out.Write(strconv.AppendInt(nil, i, 10))
}

// WriteUInt writes an unsigned integer.
func (e *Encoder) WriteUInt(u uint64) {
	e.comma()
	e.out.Write(strconv.AppendUint(nil, u, 10))
}

// WriteFloat writes a 32-bit float with 6 significant digits, or the
// shortest round-trip form in canonical mode.
func (e *Encoder) WriteFloat(f float32) {
	e.writeFloat(float64(f), 6, 32)
}

// WriteDouble writes a 64-bit float with 17 significant digits, or the
// shortest round-trip form in canonical mode.
func (e *Encoder) WriteDouble(d float64) {
	e.writeFloat(d, 17, 64)
}

// writeFloat emits one number. NaN and the infinities have no RFC 8259
// spelling; they are written as their JavaScript literals in every mode.
func (e *Encoder) writeFloat(d float64, prec, bits int) {
	e.comma()
	switch {
	case math.IsNaN(d):
		e.out.WriteString("NaN")
	case math.IsInf(d, 1):
		e.out.WriteString("Infinity")
	case math.IsInf(d, -1):
		e.out.WriteString("-Infinity")
	default:
		if e.canonical {
			prec = -1
		}
		e.out.Write(buf.AppendFloat(nil, d, prec, bits))
	}
}

// WriteString writes a quoted, escaped string.
func (e *Encoder) WriteString(s []byte) {
	e.comma()
	e.out.Write(buf.AppendQuoted(nil, s))
}

// WriteData writes blob bytes as a quoted base-64 string.
func (e *Encoder) WriteData(data []byte) {
	e.comma()
	e.out.WriteByte('"')
	e.out.Write(buf.AppendBase64(nil, data))
	e.out.WriteByte('"')
}

// WriteJSON writes pre-serialized JSON as the next value.
func (e *Encoder) WriteJSON(raw []byte) {
	e.comma()
	e.out.Write(raw)
}

// WriteRaw writes bytes with no comma bookkeeping at all.
func (e *Encoder) WriteRaw(raw []byte) {
	e.out.Write(raw)
}

// BeginArray opens an array.
func (e *Encoder) BeginArray() {
	e.comma()
	e.out.WriteByte('[')
	e.first = true
}

// EndArray closes an array.
func (e *Encoder) EndArray() {
	e.out.WriteByte(']')
	e.first = false
}

// BeginDict opens an object.
func (e *Encoder) BeginDict() {
	e.comma()
	e.out.WriteByte('{')
	e.first = true
}

// EndDict closes an object.
func (e *Encoder) EndDict() {
	e.out.WriteByte('}')
	e.first = false
}

// WriteKey writes an object key and its colon. In JSON5 mode identifier
// keys are unquoted.
func (e *Encoder) WriteKey(key string) {
	e.comma()
	if e.json5 && isJSIdentifier(key) {
		e.out.WriteString(key)
	} else {
		e.out.Write(buf.AppendQuoted(nil, []byte(key)))
	}
	e.out.WriteByte(':')
	e.first = true
}

// isJSIdentifier matches [A-Za-z_$][A-Za-z_$0-9]*.
func isJSIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c == '_' || c == '$':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// WriteValue recursively serializes an existing Fleece value, resolving
// integer dict keys through the attached shared-keys table.
func (e *Encoder) WriteValue(v fleece.Value) {
	if e.err != nil {
		return
	}
	switch v.Type() {
	case fleece.TypeNull:
		e.WriteNull()
	case fleece.TypeBool:
		e.WriteBool(v.AsBool())
	case fleece.TypeInt:
		if v.IsUnsigned() {
			e.WriteUInt(v.AsUnsigned())
		} else {
			e.WriteInt(v.AsInt())
		}
	case fleece.TypeDouble:
		if v.IsDouble() {
			e.WriteDouble(v.AsDouble())
		} else {
			e.WriteFloat(v.AsFloat())
		}
	case fleece.TypeString:
		e.WriteString(v.AsString())
	case fleece.TypeBlob:
		e.WriteData(v.AsData())
	case fleece.TypeArray:
		a, _ := v.AsArray()
		e.BeginArray()
		for it := a.Iterator(); it.Valid(); it.Next() {
			e.WriteValue(it.Value())
		}
		e.EndArray()
	case fleece.TypeDict:
		d, _ := v.AsDict()
		e.writeDict(d)
	default:
		e.fail(fleece.Errorf(fleece.JSONError,
			"value of type %s cannot be JSON-encoded", v.Type()))
	}
}

// writeDict serializes one dict, sorting keys in canonical mode.
func (e *Encoder) writeDict(d fleece.Dict) {
	type entry struct {
		key string
		val fleece.Value
	}
	entries := make([]entry, 0, d.Count())
	for it := d.Iterator(); it.Valid(); it.Next() {
		key, ok := it.KeyString(e.sk)
		if !ok {
			// Integer key with no table attached: render the code.
			key = strconv.FormatInt(it.Key().AsInt(), 10)
		}
		entries = append(entries, entry{key: key, val: it.Value()})
	}
	if e.canonical {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].key < entries[j].key
		})
	}
	e.BeginDict()
	for _, ent := range entries {
		e.WriteKey(ent.key)
		e.WriteValue(ent.val)
		if e.err != nil {
			return
		}
	}
	e.EndDict()
}

// Serialize renders a whole Fleece value as JSON in one call.
func Serialize(v fleece.Value, sk *sharedkeys.SharedKeys, json5, canonical bool) ([]byte, error) {
	e := New(256)
	e.SetJSON5(json5)
	e.SetCanonical(canonical)
	e.SetSharedKeys(sk)
	e.WriteValue(v)
	return e.ExtractOutput()
}
