// Package format defines the Fleece on-disk layout: tag nibbles, header
// packing, alignment rules, and the primitive big-endian field readers the
// rest of the module builds on.
//
// A Fleece buffer is a sequence of 2-byte-aligned cells. The first byte of
// every cell carries the kind in its high nibble; kind-specific data lives
// in the low nibble. Multi-byte fields are big-endian. A cell whose first
// byte has the high bit set is not a value at all but a 2-byte backpointer.
package format

// Kind is the high nibble of a cell's tag byte.
type Kind uint8

const (
	// KindShortInt is a 4-bit signed integer stored in the tag's low nibble.
	KindShortInt Kind = 0x0
	// KindInt is a 1..8 byte big-endian integer; bit 3 of the low nibble
	// marks it signed, the low 3 bits hold byte length - 1.
	KindInt Kind = 0x1
	// KindFloat is an IEEE float; low nibble 0 = float32, 1 = float64.
	KindFloat Kind = 0x2
	// KindSpecial covers null, false, true and undefined.
	KindSpecial Kind = 0x3
	// KindString is a UTF-8 string; low nibble is the byte length, or
	// VarLengthNibble for a uvarint-prefixed length.
	KindString Kind = 0x4
	// KindBlob is arbitrary binary data with the same length encoding as
	// KindString.
	KindBlob Kind = 0x5
	// KindArray is a container of 2-byte value slots.
	KindArray Kind = 0x6
	// KindDict is a container of 2-byte key/value slot pairs.
	KindDict Kind = 0x7
)

const (
	// SpecialNull through SpecialUndefined are the low-nibble values of
	// KindSpecial cells.
	SpecialNull      = 0x0
	SpecialFalse     = 0x1
	SpecialTrue      = 0x2
	SpecialUndefined = 0x3

	// FloatNibble32 and FloatNibble64 select the float width.
	FloatNibble32 = 0x0
	FloatNibble64 = 0x1

	// IntSignedBit marks a KindInt cell as signed (bit 3 of the low nibble).
	IntSignedBit = 0x08
	// IntSizeMask extracts byteLength-1 from a KindInt tag.
	IntSizeMask = 0x07

	// VarLengthNibble in a string or blob tag means a uvarint length
	// follows the tag byte. Inline lengths run 0..VarLengthNibble-1.
	VarLengthNibble = 0x0F

	// ShortIntMin and ShortIntMax bound the KindShortInt range.
	ShortIntMin = -8
	ShortIntMax = 7
)

const (
	// CellAlign is the alignment of every non-pointer cell.
	CellAlign = 2

	// SlotSize is the fixed width of a child slot in an array or dict:
	// either a complete inline cell or a backpointer.
	SlotSize = 2

	// PointerBit is the high bit of a pointer cell's first byte.
	PointerBit = 0x80

	// PointerMask extracts the 15-bit word offset from a pointer cell.
	PointerMask = 0x7FFF

	// MaxPointerWords is the largest backward distance (in 2-byte words)
	// a single pointer cell can express.
	MaxPointerWords = 0x7FFF

	// MaxNarrowCount is the largest container count representable in the
	// 11-bit header field. WideCountSentinel in that field means the true
	// count follows as a uvarint.
	MaxNarrowCount    = 0x7FE
	WideCountSentinel = 0x7FF

	// HeaderSize is the fixed container header: tag nibble + 11-bit count.
	HeaderSize = 2

	// MinDocSize is the smallest well-formed Fleece document: a single
	// inline root cell.
	MinDocSize = 2

	// MaxDepth bounds nesting during untrusted validation. Pointers refer
	// strictly backwards so cycles are impossible, but unvalidated input
	// could still nest deeply enough to exhaust the stack.
	MaxDepth = 100
)
