package path

import (
	"strings"

	"github.com/d122y/fleecekit/fleece"
	"github.com/d122y/fleecekit/fleece/sharedkeys"
	"github.com/d122y/fleecekit/internal/buf"
)

// EvalJSONPointer evaluates an RFC 6901 JSON Pointer against root. There
// is no prepared form: each segment is ambiguous between a dict key and
// an array index until the value it applies to is known. "~1" unescapes
// to '/' and "~0" to '~'. A missing target is a nonexistent Value with a
// nil error; a malformed pointer is a PathSyntaxError.
func EvalJSONPointer(specifier string, sk *sharedkeys.SharedKeys, root fleece.Value) (fleece.Value, error) {
	if len(specifier) == 0 || specifier[0] != '/' {
		return fleece.Value{}, fleece.NewError(fleece.PathSyntaxError,
			"JSON pointer does not start with '/'")
	}
	current := root
	rest := specifier[1:]
	for len(rest) > 0 {
		if !current.Exists() {
			return fleece.Value{}, nil
		}
		var param string
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			param, rest = rest[:slash], rest[slash+1:]
		} else {
			param, rest = rest, ""
		}

		switch current.Type() {
		case fleece.TypeArray:
			i, consumed := buf.ReadDecimal([]byte(param))
			if consumed != len(param) || consumed == 0 || i > uint64(^uint32(0)>>1) {
				return fleece.Value{}, fleece.NewError(fleece.PathSyntaxError,
					"invalid array index in JSON pointer")
			}
			a, _ := current.AsArray()
			current, _ = a.Get(uint32(i))
		case fleece.TypeDict:
			d, _ := current.AsDict()
			current, _ = d.GetWithSharedKeys(unescapePointer(param), sk)
		default:
			current = fleece.Value{}
		}

		if len(rest) == 0 {
			break
		}
	}
	return current, nil
}

// unescapePointer applies the RFC 6901 escapes: "~1" → "/", "~0" → "~".
func unescapePointer(s string) string {
	if !strings.Contains(s, "~") {
		return s
	}
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}
