// Package encoder builds Fleece buffers from a stream of write events:
// scalars, strings, blobs, and begin/end pairs for arrays and dicts. The
// emitted form is the position-dependent cell layout read by the fleece
// package: children of a container occupy exactly one 2-byte slot each,
// holding either a complete inline cell or a backpointer to an
// out-of-line cell written earlier.
//
// The encoder deduplicates string and blob cells, substitutes integer
// codes for dictionary keys through an attached shared-keys table, sorts
// dictionary entries for binary-searchable output, and spills trampoline
// pointer cells whenever a back-reference would overflow the 15-bit
// pointer range.
package encoder

// Options configures an Encoder.
type Options struct {
	// ReserveSize pre-sizes the output buffer.
	ReserveSize int

	// UniqueStrings dedups string and blob cells: re-writing the same
	// content emits a backpointer to the first copy.
	UniqueStrings bool

	// SortKeys orders every dict's entries by key before emission, which
	// lets readers binary search. Integer shared keys sort numerically
	// and before all string keys.
	SortKeys bool
}

// DefaultOptions returns the configuration most callers want: interning
// and sorted keys on, a small initial reservation.
func DefaultOptions() Options {
	return Options{
		ReserveSize:   256,
		UniqueStrings: true,
		SortKeys:      true,
	}
}
