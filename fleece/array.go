package fleece

import "github.com/d122y/fleecekit/internal/format"

// Array is a Value known to be of array kind. Indexing is O(1): every
// child occupies exactly one 2-byte slot, either a complete inline cell
// or a backpointer.
type Array struct {
	Value
}

// Count returns the number of elements.
func (a Array) Count() uint32 {
	if !a.Exists() {
		return 0
	}
	count, _, ok := format.ContainerCount(a.buf, a.off)
	if !ok {
		return 0
	}
	return count
}

// Empty reports whether the array has no elements.
func (a Array) Empty() bool { return a.Count() == 0 }

// firstSlot returns the offset of slot 0.
func (a Array) firstSlot() int {
	_, first, _ := format.ContainerCount(a.buf, a.off)
	return first
}

// Get returns the element at index i; ok is false out of range.
func (a Array) Get(i uint32) (Value, bool) {
	if !a.Exists() || i >= a.Count() {
		return Value{}, false
	}
	return derefSlot(a.buf, a.firstSlot()+int(i)*format.SlotSize)
}

// Iterator returns an iterator positioned at the first element.
func (a Array) Iterator() *ArrayIterator {
	it := &ArrayIterator{arr: a, remaining: a.Count()}
	it.load()
	return it
}

// ArrayIterator yields array elements in order.
type ArrayIterator struct {
	arr       Array
	index     uint32
	remaining uint32
	cur       Value
	ok        bool
}

func (it *ArrayIterator) load() {
	if it.remaining == 0 {
		it.cur, it.ok = Value{}, false
		return
	}
	it.cur, it.ok = it.arr.Get(it.index)
}

// Valid reports whether the iterator is positioned on an element.
func (it *ArrayIterator) Valid() bool { return it.ok }

// Value returns the current element.
func (it *ArrayIterator) Value() Value { return it.cur }

// Index returns the current element's index.
func (it *ArrayIterator) Index() uint32 { return it.index }

// Count returns the number of elements remaining, including the current one.
func (it *ArrayIterator) Count() uint32 { return it.remaining }

// Next advances to the following element; false at the end.
func (it *ArrayIterator) Next() bool {
	if it.remaining == 0 {
		return false
	}
	it.remaining--
	it.index++
	it.load()
	return it.ok
}
