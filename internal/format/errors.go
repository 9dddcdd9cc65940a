package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a cell.
	ErrTruncated = errors.New("format: truncated buffer")

	// ErrBadPointer indicates a pointer target outside [0, pointer_position).
	ErrBadPointer = errors.New("format: pointer out of range")

	// ErrOddLength indicates a buffer whose length is not a multiple of the
	// cell alignment.
	ErrOddLength = errors.New("format: buffer length not 2-byte aligned")

	// ErrDepth indicates nesting beyond MaxDepth during validation.
	ErrDepth = errors.New("format: nesting too deep")

	// ErrReservedTag indicates a tag byte no decoder recognizes.
	ErrReservedTag = errors.New("format: reserved tag")
)
