package uri

import "strings"

const upperHex = "0123456789ABCDEF"

// encodeMode selects the set of bytes left unescaped.
type encodeMode int

const (
	encodePath encodeMode = iota
	encodeQuery
	encodeUserInfo
)

// shouldEscape reports whether c must be percent-encoded in a component of
// the given mode. Unreserved characters and sub-delims are always allowed.
// Paths also allow ':', '@' and '/'; query and fragment additionally allow
// '?'. User info allows none of them.
func shouldEscape(c byte, mode encodeMode) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	}
	switch c {
	case '-', '.', '_', '~': // unreserved
		return false
	case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=': // sub-delims
		return false
	case ':', '@', '/':
		return mode == encodeUserInfo
	case '?':
		return mode != encodeQuery
	}
	return true
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// encode percent-encodes s. An existing %XX triplet is copied as-is, which
// makes encode idempotent.
func encode(s string, mode encodeMode) string {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			continue
		}
		if shouldEscape(c, mode) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(c)
			continue
		}
		if shouldEscape(c, mode) {
			b.WriteByte('%')
			b.WriteByte(upperHex[c>>4])
			b.WriteByte(upperHex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// EncodePath percent-encodes a path component.
func EncodePath(path string) string {
	return encode(path, encodePath)
}

// EncodeQuery percent-encodes a query or fragment component.
func EncodeQuery(query string) string {
	return encode(query, encodeQuery)
}

// Decode reverses percent-encoding. Malformed triplets are kept literally.
// '+' is left untouched; use it on paths, not on form data.
func Decode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
