package fleece

import "bytes"

// IsEqual reports deep structural equality between two values: same type,
// same contents, with dictionary key order ignored. Shared-key integer
// codes compare as codes; two documents keyed through different tables
// compare unequal unless the codes happen to agree.
func (v Value) IsEqual(other Value) bool {
	if v.Exists() != other.Exists() {
		return false
	}
	if !v.Exists() {
		return true
	}
	t := v.Type()
	if t != other.Type() {
		return false
	}
	switch t {
	case TypeNull, TypeUndefined:
		return true
	case TypeBool:
		return v.AsBool() == other.AsBool()
	case TypeInt:
		if v.IsUnsigned() || other.IsUnsigned() {
			return v.AsUnsigned() == other.AsUnsigned()
		}
		return v.AsInt() == other.AsInt()
	case TypeDouble:
		// Bit patterns are preserved by the encoding, but equality here is
		// numeric; NaN never equals NaN.
		return v.AsDouble() == other.AsDouble()
	case TypeString:
		return bytes.Equal(v.AsString(), other.AsString())
	case TypeBlob:
		return bytes.Equal(v.AsData(), other.AsData())
	case TypeArray:
		a, _ := v.AsArray()
		b, _ := other.AsArray()
		n := a.Count()
		if n != b.Count() {
			return false
		}
		for i := uint32(0); i < n; i++ {
			av, aok := a.Get(i)
			bv, bok := b.Get(i)
			if aok != bok || !av.IsEqual(bv) {
				return false
			}
		}
		return true
	case TypeDict:
		a, _ := v.AsDict()
		b, _ := other.AsDict()
		if a.Count() != b.Count() {
			return false
		}
		for it := a.Iterator(); it.Valid(); it.Next() {
			var bv Value
			var ok bool
			if keyIsInt(it.Key()) {
				bv, ok = b.GetInt(it.Key().AsInt())
			} else {
				bv, ok = b.Get(string(it.Key().AsString()))
			}
			if !ok || !it.Value().IsEqual(bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
