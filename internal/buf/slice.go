// Package buf contains byte-slice primitives shared by the readers and
// encoders: lexicographic compare, content hashing, byte searches, decimal
// and varint readers, and base-64 emission. None of these read past the
// slice bounds.
package buf

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Compare returns -1, 0 or 1 ordering a and b lexicographically.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Equal reports whether a and b hold the same bytes.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// Hash returns a 64-bit content hash of b.
func Hash(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// HashString returns a 64-bit content hash of s without copying it.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// FindByte returns the index of the first occurrence of c in b, or -1.
func FindByte(b []byte, c byte) int {
	return bytes.IndexByte(b, c)
}

// FindAnyOf returns the index of the first byte of b that appears in
// chars, or -1.
func FindAnyOf(b []byte, chars string) int {
	return bytes.IndexAny(b, chars)
}

// HasPrefix reports whether b starts with prefix.
func HasPrefix(b, prefix []byte) bool {
	return bytes.HasPrefix(b, prefix)
}

// ReadDecimal parses an unsigned decimal number at the start of b.
// It returns the value and the number of bytes consumed; consumed is 0
// when b does not start with a digit. Parsing stops at the first
// non-digit or on overflow.
func ReadDecimal(b []byte) (v uint64, consumed int) {
	for consumed < len(b) {
		c := b[consumed]
		if c < '0' || c > '9' {
			break
		}
		if v > (^uint64(0)-uint64(c-'0'))/10 {
			break // overflow
		}
		v = v*10 + uint64(c-'0')
		consumed++
	}
	return v, consumed
}

// ReadSignedDecimal parses an optionally-negated decimal number at the
// start of b. consumed is 0 when no digits were read.
func ReadSignedDecimal(b []byte) (v int64, consumed int) {
	neg := false
	i := 0
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		neg = b[i] == '-'
		i++
	}
	u, n := ReadDecimal(b[i:])
	if n == 0 {
		return 0, 0
	}
	v = int64(u)
	if neg {
		v = -v
	}
	return v, i + n
}

// ReadUvarint decodes an unsigned LEB128 varint at the start of b.
// n is 0 when the varint is truncated or malformed.
func ReadUvarint(b []byte) (v uint64, n int) {
	v, n = binary.Uvarint(b)
	if n <= 0 {
		return 0, 0
	}
	return v, n
}

// ReadVarint decodes a zig-zag signed varint at the start of b.
// n is 0 when the varint is truncated or malformed.
func ReadVarint(b []byte) (v int64, n int) {
	v, n = binary.Varint(b)
	if n <= 0 {
		return 0, 0
	}
	return v, n
}

// WriteBase64 writes the standard base-64 encoding of data to w.
func WriteBase64(w io.Writer, data []byte) error {
	enc := base64.NewEncoder(base64.StdEncoding, w)
	if _, err := enc.Write(data); err != nil {
		return err
	}
	return enc.Close()
}

// AppendBase64 appends the standard base-64 encoding of data to dst.
func AppendBase64(dst, data []byte) []byte {
	n := base64.StdEncoding.EncodedLen(len(data))
	start := len(dst)
	dst = append(dst, make([]byte, n)...)
	base64.StdEncoding.Encode(dst[start:], data)
	return dst
}
