package format

// Alignment utilities for the Fleece cell layout. Every non-pointer cell
// starts on a 2-byte boundary; odd-length payloads get one pad byte.

// Even returns n aligned up to the next 2-byte boundary.
//
// Example:
//
//	Even(3) = 4
//	Even(4) = 4
func Even(n int) int {
	return (n + 1) &^ 1
}

// Padding returns the number of pad bytes (0 or 1) needed after n bytes.
func Padding(n int) int {
	return n & 1
}
