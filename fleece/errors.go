package fleece

import "fmt"

// ErrorCode is the fixed taxonomy carried through the read and write
// paths. Values are stable across the interface boundary.
type ErrorCode uint8

const (
	// MemoryError is an allocation failure.
	MemoryError ErrorCode = iota + 1
	// OutOfRange is an array index or buffer offset beyond bounds.
	OutOfRange
	// InvalidData is a malformed Fleece buffer caught by untrusted validation.
	InvalidData
	// EncodeError is a misuse of the encoder grammar.
	EncodeError
	// JSONError is malformed JSON input, or a value kind JSON cannot express.
	JSONError
	// UnknownValue is structurally valid data with an unrecognized tag.
	UnknownValue
	// PathSyntaxError is a malformed path or JSON pointer.
	PathSyntaxError
	// InternalError is an invariant violation.
	InternalError
	// NotFound is a shared-keys decode miss.
	NotFound
)

// String returns the code's stable name.
func (c ErrorCode) String() string {
	switch c {
	case MemoryError:
		return "MemoryError"
	case OutOfRange:
		return "OutOfRange"
	case InvalidData:
		return "InvalidData"
	case EncodeError:
		return "EncodeError"
	case JSONError:
		return "JSONError"
	case UnknownValue:
		return "UnknownValue"
	case PathSyntaxError:
		return "PathSyntaxError"
	case InternalError:
		return "InternalError"
	case NotFound:
		return "NotFound"
	default:
		return "UnknownError"
	}
}

// Error is the typed error returned wherever the API promises one.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fleece: %s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("fleece: %s: %s", e.Code, e.Msg)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error.
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Errorf builds a typed error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause to a typed error.
func WrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Err: cause}
}

// CodeOf extracts the ErrorCode from err, or InternalError for foreign
// errors.
func CodeOf(err error) ErrorCode {
	if fe, ok := err.(*Error); ok {
		return fe.Code
	}
	return InternalError
}
