package encoder

import (
	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/internal/format"
)

// SetBase makes the encoder emit a delta against an existing buffer:
// pointers in the output may reach into base, which logically precedes
// the delta. The result of ExtractOutput is meaningful only when
// concatenated after base. Must be called before any write.
func (e *Encoder) SetBase(base []byte) {
	if e.err != nil {
		return
	}
	if e.out.Len() > 0 || len(e.stack) != 1 || len(e.top().items) > 0 {
		e.fail(fleece.NewError(fleece.EncodeError, "base set after writing began"))
		return
	}
	e.base = base
}

// Base returns the delta base, or nil.
func (e *Encoder) Base() []byte { return e.base }

// ReuseBaseStrings seeds the dedup table with every string cell reachable
// in the base, so re-written strings become backpointers into it. Only
// meaningful after SetBase with UniqueStrings on.
func (e *Encoder) ReuseBaseStrings() {
	if e.err != nil || e.base == nil || !e.opts.UniqueStrings {
		return
	}
	root := fleece.FromTrustedData(e.base)
	if root.Exists() {
		e.collectBaseStrings(root)
	}
}

func (e *Encoder) collectBaseStrings(v fleece.Value) {
	switch v.Type() {
	case fleece.TypeString:
		s := v.AsString()
		if len(s) > 1 {
			key := string([]byte{byte(format.KindString)}) + string(s)
			if _, ok := e.interned[key]; !ok {
				e.interned[key] = &ref{target: v.Offset(), lastRef: v.Offset(), leaf: true}
			}
		}
	case fleece.TypeArray:
		a, _ := v.AsArray()
		for it := a.Iterator(); it.Valid(); it.Next() {
			e.collectBaseStrings(it.Value())
		}
	case fleece.TypeDict:
		d, _ := v.AsDict()
		for it := d.Iterator(); it.Valid(); it.Next() {
			e.collectBaseStrings(it.Key())
			e.collectBaseStrings(it.Value())
		}
	}
}

// WriteValue copies an already-encoded value into the output, preserving
// its structure. Values living in the delta base are referenced by
// pointer instead of copied when still within reach.
func (e *Encoder) WriteValue(v fleece.Value) {
	e.WriteValueWithSharedKeys(v, nil)
}

// WriteValueWithSharedKeys copies an already-encoded value whose integer
// dict keys were assigned by srcSK. Keys are re-resolved through srcSK
// and re-encoded against the destination table, so documents move cleanly
// between differently-populated tables. A nil srcSK copies integer keys
// verbatim.
func (e *Encoder) WriteValueWithSharedKeys(v fleece.Value, srcSK *sharedkeys.SharedKeys) {
	if e.err != nil {
		return
	}
	if !v.Exists() {
		e.fail(fleece.NewError(fleece.EncodeError, "write of nonexistent value"))
		return
	}

	// Fast path: the value already lives in our base and the codes mean
	// the same thing on both sides.
	if e.baseValueReferenceable(v, srcSK) {
		if !e.checkValueAllowed() {
			return
		}
		r := &ref{target: v.Offset(), lastRef: v.Offset(), leaf: v.Type() != fleece.TypeArray && v.Type() != fleece.TypeDict}
		e.addRefSlot(r, true)
		return
	}

	switch v.Type() {
	case fleece.TypeNull:
		e.WriteNull()
	case fleece.TypeUndefined:
		e.WriteUndefined()
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
		e.WriteString(string(v.AsString()))
	case fleece.TypeBlob:
		e.WriteData(v.AsData())
	case fleece.TypeArray:
		a, _ := v.AsArray()
		e.BeginArray(int(a.Count()))
		for it := a.Iterator(); it.Valid(); it.Next() {
			e.WriteValueWithSharedKeys(it.Value(), srcSK)
		}
		e.EndArray()
	case fleece.TypeDict:
		d, _ := v.AsDict()
		e.BeginDict(int(d.Count()))
		for it := d.Iterator(); it.Valid(); it.Next() {
			e.copyKey(it, srcSK)
			if e.err != nil {
				return
			}
			e.WriteValueWithSharedKeys(it.Value(), srcSK)
		}
		e.EndDict()
	}
}

// copyKey re-encodes one dict key from a source document.
func (e *Encoder) copyKey(it *fleece.DictIterator, srcSK *sharedkeys.SharedKeys) {
	if s, ok := it.KeyString(srcSK); ok {
		e.WriteKey(s)
		return
	}
	k := it.Key()
	if k.Type() == fleece.TypeInt {
		// Integer key with no table to resolve it: carry the code.
		t := e.top()
		if !t.isDict || !t.wantKey {
			e.fail(fleece.NewError(fleece.EncodeError, "misplaced key while copying"))
			return
		}
		e.appendIntKeySlot(k.AsInt())
		t.wantKey = false
		return
	}
	e.fail(fleece.NewError(fleece.EncodeError, "unresolvable dict key while copying"))
}

// baseValueReferenceable reports whether v can be emitted as a bare
// pointer into the delta base.
func (e *Encoder) baseValueReferenceable(v fleece.Value, srcSK *sharedkeys.SharedKeys) bool {
	if e.base == nil || (srcSK != nil && srcSK != e.sk) {
		return false
	}
	b := v.Buffer()
	if len(b) != len(e.base) || len(b) == 0 || &b[0] != &e.base[0] {
		return false
	}
	// Containers must stay within trampoline maintenance range.
	return e.pos()-v.Offset() <= maxReachBytes-reachMargin
}

// WriteRaw appends pre-encoded Fleece cell bytes verbatim and makes them
// the next value. The caller warrants the bytes are a complete,
// self-contained cell.
func (e *Encoder) WriteRaw(cell []byte) {
	if e.err != nil {
		return
	}
	if len(cell) == 0 {
		e.fail(fleece.NewError(fleece.EncodeError, "empty raw cell"))
		return
	}
	if !e.checkValueAllowed() {
		return
	}
	e.addRefSlot(e.writeCell(cell), true)
}
