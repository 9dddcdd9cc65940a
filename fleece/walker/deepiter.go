// Package walker provides DeepIterator, a depth-first traversal over a
// Fleece value tree that yields every descendant exactly once (the root
// itself is not yielded) along with its full path from the root, in both
// structured and RFC 6901 JSON Pointer form. Iteration state is a frame
// stack plus one active array or dict iterator; descending into the
// current node can be skipped on demand.
package walker

import (
	"strconv"
	"strings"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
)

// PathComponent is one step from the root: a dict key or an array index.
type PathComponent struct {
	Key   string
	Index uint32
	IsKey bool
}

// frame is a deferred container (or an end-of-level marker when the
// container does not exist).
type frame struct {
	component PathComponent
	container fleece.Value
}

// DeepIterator walks all descendants of a root value depth-first.
type DeepIterator struct {
	sk           *sharedkeys.SharedKeys
	value        fleece.Value
	skipChildren bool
	path         []PathComponent
	stack        []frame // index 0 is the front

	arrayIt    *fleece.ArrayIterator
	arrayIndex uint32
	dictIt     *fleece.DictIterator
}

// New returns an iterator positioned on the root's first descendant; for
// a scalar root the iterator is immediately finished. sk resolves integer
// dictionary keys and may be nil.
func New(root fleece.Value, sk *sharedkeys.SharedKeys) *DeepIterator {
	it := &DeepIterator{sk: sk, value: root}
	it.Next()
	return it
}

// Value returns the current node; a nonexistent Value means iteration is
// done, permanently.
func (it *DeepIterator) Value() fleece.Value { return it.value }

// KeyString returns the dict key of the innermost path step, or "" for
// an array step.
func (it *DeepIterator) KeyString() string {
	if n := len(it.path); n > 0 && it.path[n-1].IsKey {
		return it.path[n-1].Key
	}
	return ""
}

// Index returns the array index of the innermost path step, or 0 for a
// dict step.
func (it *DeepIterator) Index() uint32 {
	if n := len(it.path); n > 0 && !it.path[n-1].IsKey {
		return it.path[n-1].Index
	}
	return 0
}

// Path returns the steps from the root to the current node. The returned
// slice is valid until the next advance.
func (it *DeepIterator) Path() []PathComponent { return it.path }

// JSONPointer serializes the current path per RFC 6901, escaping '~' as
// "~0" and '/' as "~1".
func (it *DeepIterator) JSONPointer() string {
	if len(it.path) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, c := range it.path {
		sb.WriteByte('/')
		if c.IsKey {
			sb.WriteString(escapePointer(c.Key))
		} else {
			sb.WriteString(strconv.FormatUint(uint64(c.Index), 10))
		}
	}
	return sb.String()
}

func escapePointer(key string) string {
	if !strings.ContainsAny(key, "~/") {
		return key
	}
	key = strings.ReplaceAll(key, "~", "~0")
	return strings.ReplaceAll(key, "/", "~1")
}

// SkipChildren prevents the next advance from descending into the
// current node.
func (it *DeepIterator) SkipChildren() { it.skipChildren = true }

// Next advances one step in depth-first order.
func (it *DeepIterator) Next() {
	if !it.value.Exists() {
		return
	}

	if it.skipChildren {
		it.skipChildren = false
	} else if len(it.path) == 0 {
		it.iterateContainer(it.value)
	} else {
		it.queueChildren()
	}

	if len(it.path) > 0 {
		it.path = it.path[:len(it.path)-1]
	}

	for {
		switch {
		case it.arrayIt != nil:
			if it.arrayIt.Valid() {
				it.value = it.arrayIt.Value()
				it.path = append(it.path, PathComponent{Index: it.arrayIndex})
				it.arrayIndex++
				it.arrayIt.Next()
			} else {
				it.arrayIt = nil
				continue
			}
		case it.dictIt != nil:
			if it.dictIt.Valid() {
				it.value = it.dictIt.Value()
				it.path = append(it.path, PathComponent{Key: it.keyOf(it.dictIt), IsKey: true})
				it.dictIt.Next()
			} else {
				it.dictIt = nil
				continue
			}
		default:
			// End of this container: pop end-of-level markers, then
			// resume the next deferred container.
			it.value = fleece.Value{}
			for len(it.stack) > 0 && !it.stack[0].container.Exists() {
				if len(it.path) == 0 {
					return // end of iteration
				}
				it.path = it.path[:len(it.path)-1]
				it.stack = it.stack[1:]
			}
			if len(it.stack) == 0 {
				return
			}
			next := it.stack[0]
			it.stack = it.stack[1:]
			it.path = append(it.path, next.component)
			it.iterateContainer(next.container)
			continue
		}
		if it.value.Exists() {
			return
		}
	}
}

// keyOf resolves the current dict key, falling back to the decimal code
// when the shared-keys table cannot.
func (it *DeepIterator) keyOf(di *fleece.DictIterator) string {
	if s, ok := di.KeyString(it.sk); ok {
		return s
	}
	return strconv.FormatInt(di.Key().AsInt(), 10)
}

// iterateContainer pushes an end-of-level marker and opens an iterator
// over container's children. Non-containers open nothing.
func (it *DeepIterator) iterateContainer(container fleece.Value) bool {
	it.stack = append([]frame{{}}, it.stack...)
	if a, ok := container.AsArray(); ok {
		ai := a.Iterator()
		it.arrayIt = ai
		it.arrayIndex = 0
		return true
	}
	if d, ok := container.AsDict(); ok {
		it.dictIt = d.Iterator()
		return true
	}
	return false
}

// queueChildren defers the current node's children until its siblings
// have been yielded.
func (it *DeepIterator) queueChildren() {
	t := it.value.Type()
	if t == fleece.TypeArray || t == fleece.TypeDict {
		it.stack = append([]frame{{component: it.path[len(it.path)-1], container: it.value}}, it.stack...)
	}
}
