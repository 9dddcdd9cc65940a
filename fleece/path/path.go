// Package path evaluates location expressions against Fleece values: the
// dotted/bracketed path syntax ("foo.bar[2][-3].baz", optionally prefixed
// "$."), and RFC 6901 JSON Pointers ("/foo/bar/0"). A parsed Path is
// reusable and evaluates in O(depth), with each property step carrying a
// prepared, position-cached dictionary key.
package path

import (
	"strings"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/internal/buf"
)

// Element is one step of a parsed path: a dictionary property or an
// array index (negative indexes count from the end).
type Element struct {
	key   *fleece.DictKey // nil for array steps
	index int32
}

// IsKey reports whether the element is a property step.
func (el *Element) IsKey() bool { return el.key != nil }

// Key returns the property name of a key step, or "".
func (el *Element) Key() string {
	if el.key == nil {
		return ""
	}
	return el.key.Key()
}

// Index returns the array index of an index step.
func (el *Element) Index() int32 { return el.index }

// eval applies one step to item.
func (el *Element) eval(item fleece.Value) (fleece.Value, bool) {
	if el.key != nil {
		d, ok := item.AsDict()
		if !ok {
			return fleece.Value{}, false
		}
		return d.GetKey(el.key)
	}
	return getFromArray(item, el.index)
}

// getFromArray indexes an array, resolving negative indexes from the end.
func getFromArray(item fleece.Value, index int32) (fleece.Value, bool) {
	a, ok := item.AsArray()
	if !ok {
		return fleece.Value{}, false
	}
	if index < 0 {
		count := a.Count()
		if uint32(-int64(index)) > count {
			return fleece.Value{}, false
		}
		index += int32(count)
	}
	return a.Get(uint32(index))
}

// Path is a parsed, reusable path expression.
type Path struct {
	specifier string
	elements  []Element
}

// New parses a path expression. sk may be nil; it is consulted by the
// prepared keys of property steps.
func New(specifier string, sk *sharedkeys.SharedKeys) (*Path, error) {
	p := &Path{specifier: specifier}
	err := forEachComponent(specifier, func(token byte, param string, index int32) bool {
		if token == '.' {
			p.elements = append(p.elements, Element{key: fleece.NewDictKey(param, sk)})
		} else {
			p.elements = append(p.elements, Element{index: index})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Specifier returns the original expression.
func (p *Path) Specifier() string { return p.specifier }

// Len returns the number of steps.
func (p *Path) Len() int { return len(p.elements) }

// Eval walks the path from root. A missing key, out-of-range index, or
// step through a non-container yields ok == false.
func (p *Path) Eval(root fleece.Value) (fleece.Value, bool) {
	item := root
	for i := range p.elements {
		var ok bool
		item, ok = p.elements[i].eval(item)
		if !ok {
			return fleece.Value{}, false
		}
	}
	return item, item.Exists()
}

// Eval evaluates a path expression one-shot, without building prepared
// keys; faster when the path runs only once. The error reports syntax
// problems; a missing target is a nonexistent Value with a nil error.
func Eval(specifier string, sk *sharedkeys.SharedKeys, root fleece.Value) (fleece.Value, error) {
	item := root
	err := forEachComponent(specifier, func(token byte, param string, index int32) bool {
		// After a miss, keep parsing so later syntax errors are still reported.
		if !item.Exists() {
			return true
		}
		if token == '.' {
			d, ok := item.AsDict()
			if !ok {
				item = fleece.Value{}
				return true
			}
			item, _ = d.GetWithSharedKeys(param, sk)
		} else {
			item, _ = getFromArray(item, index)
		}
		return true
	})
	if err != nil {
		return fleece.Value{}, err
	}
	return item, nil
}

// forEachComponent parses specifier, invoking callback for each property
// ('.') or index ('[') component. Returning false from the callback stops
// the walk early.
func forEachComponent(in string, callback func(token byte, param string, index int32) bool) error {
	if len(in) == 0 {
		return fleece.NewError(fleece.PathSyntaxError, "empty path")
	}
	token := in[0]
	switch token {
	case '$':
		// Starts with "$." or "$["
		in = in[1:]
		if len(in) == 0 {
			return nil // just "$" means the root
		}
		token = in[0]
		in = in[1:]
		if token != '.' && token != '[' {
			return fleece.NewError(fleece.PathSyntaxError, "invalid path delimiter after $")
		}
	case '[', '.':
		in = in[1:]
	default:
		// Starts with a bare property name.
		token = '.'
	}

	if len(in) == 0 && token == '.' {
		return nil // "." or "" mean the root
	}

	for {
		var param string
		var index int32
		var rest string

		switch token {
		case '.':
			end := strings.IndexAny(in, ".[")
			if end < 0 {
				end = len(in)
			}
			param = in[:end]
			rest = in[end:]
		case '[':
			end := strings.IndexByte(in, ']')
			if end < 0 {
				return fleece.NewError(fleece.PathSyntaxError, "missing ']'")
			}
			param = in[:end]
			rest = in[end+1:]
			i, consumed := buf.ReadSignedDecimal([]byte(param))
			if consumed != len(param) || consumed == 0 ||
				i > int64(^uint32(0)>>1) || i < -int64(^uint32(0)>>1)-1 {
				return fleece.NewError(fleece.PathSyntaxError, "invalid array index")
			}
			index = int32(i)
		default:
			return fleece.NewError(fleece.PathSyntaxError, "invalid path component")
		}

		if len(param) == 0 {
			return fleece.NewError(fleece.PathSyntaxError, "empty property or index")
		}
		if !callback(token, param, index) {
			return nil
		}

		if len(rest) == 0 {
			return nil
		}
		token = rest[0]
		in = rest[1:]
	}
}
