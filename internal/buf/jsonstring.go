package buf

import (
	"strconv"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// AppendQuoted appends s to dst as a double-quoted JSON string escaped per
// RFC 8259: the two mandatory escapes, the short forms for the common
// control characters, and \u00XX for the rest below 0x20. Invalid UTF-8
// bytes are passed through untouched; Fleece strings are UTF-8 by
// contract.
func AppendQuoted(dst, s []byte) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			if c < utf8.RuneSelf {
				i++
				continue
			}
			_, size := utf8.DecodeRune(s[i:])
			i += size
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		i++
		start = i
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

// AppendFloat appends a float in JSON number syntax. bits selects 32 or
// 64; prec < 0 requests the shortest representation that round-trips.
// NaN and infinities are not JSON; callers decide their spelling.
func AppendFloat(dst []byte, f float64, prec, bits int) []byte {
	return strconv.AppendFloat(dst, f, 'g', prec, bits)
}
