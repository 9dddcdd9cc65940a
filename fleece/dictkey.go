package fleece

import "github.com/d122y/fleecekit/fleece/sharedkeys"

// DictKey is a prepared, position-cached dictionary query. The first
// lookup against a given dict records the matching entry; repeat lookups
// against the same buffer and dict return the cached slot in O(1). When a
// different buffer or dict is probed, the cache is dropped and the search
// re-runs.
//
// A DictKey carries interior mutable state: two goroutines must not share
// one without external synchronization. The dict views themselves remain
// freely shareable.
type DictKey struct {
	key string
	sk  *sharedkeys.SharedKeys

	// Resolved shared-key code, computed lazily against sk.
	code     int
	hasCode  bool
	resolved bool

	// Cache: identity of the last dict probed plus the matched entry.
	cachedBuf  []byte
	cachedDict int
	cachedHit  bool
	cachedIdx  uint32
}

// NewDictKey prepares a key for repeated lookups. sk may be nil for
// documents without shared keys.
func NewDictKey(key string, sk *sharedkeys.SharedKeys) *DictKey {
	return &DictKey{key: key, sk: sk, cachedDict: -1}
}

// Key returns the query string.
func (k *DictKey) Key() string { return k.key }

// sameBuffer reports slice identity (same base pointer and length).
func sameBuffer(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// resolveCode resolves the shared-key code; a found code is kept. The shared
// table is append-only, so a previously-missing key can appear later; a
// negative result is re-checked each time the cache misses.
func (k *DictKey) resolveCode() {
	if k.resolved {
		return
	}
	if k.sk != nil {
		k.code, k.hasCode = k.sk.Lookup(k.key)
	}
	k.resolved = k.hasCode || k.sk == nil
}

// GetKey looks up the prepared key in d, consulting and refreshing the
// position cache.
func (d Dict) GetKey(k *DictKey) (Value, bool) {
	if !d.Exists() {
		return Value{}, false
	}
	if sameBuffer(k.cachedBuf, d.buf) && k.cachedDict == d.off {
		if !k.cachedHit {
			return Value{}, false
		}
		// The buffer is immutable, so the recorded entry still matches.
		return d.valueAt(k.cachedIdx)
	}

	k.cachedBuf = d.buf
	k.cachedDict = d.off
	k.cachedHit = false

	k.resolveCode()
	if k.hasCode {
		if idx, ok := d.findEntryInt(int64(k.code)); ok {
			k.cachedHit = true
			k.cachedIdx = idx
			return d.valueAt(idx)
		}
	}
	if idx, ok := d.findEntryString(k.key); ok {
		k.cachedHit = true
		k.cachedIdx = idx
		return d.valueAt(idx)
	}
	return Value{}, false
}

// findEntryString locates the entry index for a string key (binary search
// then linear fallback).
func (d Dict) findEntryString(key string) (uint32, bool) {
	qb := []byte(key)
	if idx, ok := d.searchIndex(func(k Value) int {
		return compareKeyToString(k, qb)
	}); ok {
		return idx, true
	}
	n := d.Count()
	for i := uint32(0); i < n; i++ {
		if k, ok := d.keyAt(i); ok && !keyIsInt(k) && string(k.AsString()) == key {
			return i, true
		}
	}
	return 0, false
}

// findEntryInt locates the entry index for an integer key code.
func (d Dict) findEntryInt(code int64) (uint32, bool) {
	if idx, ok := d.searchIndex(func(k Value) int {
		return compareKeyToInt(k, code)
	}); ok {
		return idx, true
	}
	n := d.Count()
	for i := uint32(0); i < n; i++ {
		if k, ok := d.keyAt(i); ok && keyIsInt(k) && k.AsInt() == code {
			return i, true
		}
	}
	return 0, false
}

// searchIndex is the binary search underlying the prepared-key path; it
// returns the entry index instead of the value.
func (d Dict) searchIndex(cmp func(Value) int) (uint32, bool) {
	lo, hi := uint32(0), d.Count()
	for lo < hi {
		mid := (lo + hi) / 2
		k, ok := d.keyAt(mid)
		if !ok {
			return 0, false
		}
		switch c := cmp(k); {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid, true
		}
	}
	return 0, false
}
