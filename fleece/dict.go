package fleece

import (
	"bytes"

	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/internal/format"
)

// Dict is a Value known to be of dict kind. Entries are key/value slot
// pairs. When the buffer was encoded with key sorting, lookups binary
// search; otherwise the search degrades to a linear scan. Keys are either
// strings or small non-negative integers (shared-key codes); integer keys
// order before string keys.
type Dict struct {
	Value
}

// Count returns the number of entries.
func (d Dict) Count() uint32 {
	if !d.Exists() {
		return 0
	}
	count, _, ok := format.ContainerCount(d.buf, d.off)
	if !ok {
		return 0
	}
	return count
}

// Empty reports whether the dict has no entries.
func (d Dict) Empty() bool { return d.Count() == 0 }

func (d Dict) firstSlot() int {
	_, first, _ := format.ContainerCount(d.buf, d.off)
	return first
}

// entrySlot returns the key-slot offset of entry i.
func (d Dict) entrySlot(i uint32) int {
	return d.firstSlot() + int(i)*2*format.SlotSize
}

// keyAt resolves entry i's key cell.
func (d Dict) keyAt(i uint32) (Value, bool) {
	return derefSlot(d.buf, d.entrySlot(i))
}

// valueAt resolves entry i's value cell.
func (d Dict) valueAt(i uint32) (Value, bool) {
	return derefSlot(d.buf, d.entrySlot(i)+format.SlotSize)
}

// keyIsInt reports whether a key cell is an integer shared-key code.
func keyIsInt(k Value) bool {
	kind := format.TagKind(k.tag())
	return kind == format.KindShortInt || kind == format.KindInt
}

// compareKeyToString orders a stored key cell against a string query
// under the encoder's comparator: integer keys sort before all strings.
func compareKeyToString(k Value, q []byte) int {
	if keyIsInt(k) {
		return -1
	}
	return bytes.Compare(k.AsString(), q)
}

// compareKeyToInt orders a stored key cell against a shared-key code.
func compareKeyToInt(k Value, code int64) int {
	if !keyIsInt(k) {
		return 1
	}
	kv := k.AsInt()
	switch {
	case kv < code:
		return -1
	case kv > code:
		return 1
	default:
		return 0
	}
}

// Get looks up a string key. It binary searches first (valid whenever the
// buffer was encoded with sorted keys) and falls back to a linear scan on
// a miss so unsorted buffers still resolve.
func (d Dict) Get(key string) (Value, bool) {
	if v, ok := d.search(func(k Value) int {
		return compareKeyToString(k, []byte(key))
	}); ok {
		return v, true
	}
	return d.GetUnsorted(key)
}

// GetUnsorted looks up a string key by linear scan.
func (d Dict) GetUnsorted(key string) (Value, bool) {
	n := d.Count()
	qb := []byte(key)
	for i := uint32(0); i < n; i++ {
		k, ok := d.keyAt(i)
		if !ok || keyIsInt(k) {
			continue
		}
		if bytes.Equal(k.AsString(), qb) {
			return d.valueAt(i)
		}
	}
	return Value{}, false
}

// GetInt looks up an integer shared-key code.
func (d Dict) GetInt(code int64) (Value, bool) {
	if v, ok := d.search(func(k Value) int {
		return compareKeyToInt(k, code)
	}); ok {
		return v, true
	}
	// Linear fallback for unsorted buffers.
	n := d.Count()
	for i := uint32(0); i < n; i++ {
		k, ok := d.keyAt(i)
		if ok && keyIsInt(k) && k.AsInt() == code {
			return d.valueAt(i)
		}
	}
	return Value{}, false
}

// GetWithSharedKeys looks a key up through a shared-keys table: when the
// table knows the key, the integer code is searched first; on a miss the
// lookup falls back to the string form.
func (d Dict) GetWithSharedKeys(key string, sk *sharedkeys.SharedKeys) (Value, bool) {
	if sk != nil {
		if code, ok := sk.Lookup(key); ok {
			if v, found := d.GetInt(int64(code)); found {
				return v, true
			}
		}
	}
	return d.Get(key)
}

// search binary searches entries with cmp, which must order stored keys
// against the query. ok is false when no entry compares equal; unsorted
// buffers can also produce a false miss, which callers repair by scanning.
func (d Dict) search(cmp func(Value) int) (Value, bool) {
	lo, hi := uint32(0), d.Count()
	for lo < hi {
		mid := (lo + hi) / 2
		k, ok := d.keyAt(mid)
		if !ok {
			return Value{}, false
		}
		switch c := cmp(k); {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return d.valueAt(mid)
		}
	}
	return Value{}, false
}

// GetMulti matches a sorted, unique string-key array against the dict in
// one merge-join pass over the stored entries. out must have room for
// len(keys) values; unmatched slots are left as zero Values. Returns the
// number of keys matched. O(|dict| + len(keys)).
func (d Dict) GetMulti(keys []string, out []Value) int {
	matched := 0
	j := 0
	n := d.Count()
	for i := uint32(0); i < n && j < len(keys); i++ {
		k, ok := d.keyAt(i)
		if !ok || keyIsInt(k) {
			continue
		}
		kb := k.AsString()
		for j < len(keys) && bytes.Compare([]byte(keys[j]), kb) < 0 {
			j++
		}
		if j < len(keys) && bytes.Equal([]byte(keys[j]), kb) {
			if v, vok := d.valueAt(i); vok {
				out[j] = v
				matched++
			}
			j++
		}
	}
	return matched
}

// Iterator returns an iterator over entries in stored order.
func (d Dict) Iterator() *DictIterator {
	it := &DictIterator{dict: d, remaining: d.Count()}
	it.load()
	return it
}

// DictIterator yields (key, value) pairs in stored order.
type DictIterator struct {
	dict      Dict
	index     uint32
	remaining uint32
	key, val  Value
	ok        bool
}

func (it *DictIterator) load() {
	if it.remaining == 0 {
		it.key, it.val, it.ok = Value{}, Value{}, false
		return
	}
	k, kok := it.dict.keyAt(it.index)
	v, vok := it.dict.valueAt(it.index)
	it.key, it.val, it.ok = k, v, kok && vok
}

// Valid reports whether the iterator is positioned on an entry.
func (it *DictIterator) Valid() bool { return it.ok }

// Key returns the current key cell (string or integer code).
func (it *DictIterator) Key() Value { return it.key }

// Value returns the current entry's value.
func (it *DictIterator) Value() Value { return it.val }

// Count returns the number of entries remaining, including the current one.
func (it *DictIterator) Count() uint32 { return it.remaining }

// KeyString resolves the current key to a string, consulting sk for
// integer codes. ok is false when the code is unknown to sk (or sk is nil).
func (it *DictIterator) KeyString(sk *sharedkeys.SharedKeys) (string, bool) {
	if !it.ok {
		return "", false
	}
	if keyIsInt(it.key) {
		if sk == nil {
			return "", false
		}
		return sk.Decode(int(it.key.AsInt()))
	}
	return string(it.key.AsString()), true
}

// Next advances to the following entry; false at the end.
func (it *DictIterator) Next() bool {
	if it.remaining == 0 {
		return false
	}
	it.remaining--
	it.index++
	it.load()
	return it.ok
}
