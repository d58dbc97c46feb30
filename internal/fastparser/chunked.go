package fastparser

import (
	"bytes"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Dechunk decodes a chunked body at the start of data and returns the decoded
// bytes with the number of input bytes consumed, trailer section included.
// A positive max bounds the decoded size.
//
// Format: hex-size [;ext] CRLF data CRLF ... 0 CRLF *(trailer CRLF) CRLF
func Dechunk(data []byte, max int64) ([]byte, int, error) {
	var body []byte
	pos := 0
	for {
		end := findLineEnd(data, pos)
		if end < 0 {
			return nil, pos, errors.New("chunked encoding: unterminated chunk size line")
		}
		sizeLine := data[pos:end]
		pos = skipLineEnding(data, end)

		if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseUint(string(bytes.TrimSpace(sizeLine)), 16, 62)
		if err != nil {
			return nil, pos, errors.Newf("chunked encoding: invalid chunk size %q", sizeLine)
		}
		if size == 0 {
			break
		}
		if max > 0 && int64(len(body))+int64(size) > max {
			return nil, pos, bodyTooLarge(int64(len(body))+int64(size), max)
		}
		if uint64(len(data)-pos) < size {
			return nil, pos, errors.Newf("chunked encoding: chunk truncated: want %d bytes, have %d", size, len(data)-pos)
		}
		body = append(body, data[pos:pos+int(size)]...)
		pos += int(size)

		next := skipLineEnding(data, pos)
		if next == pos {
			return nil, pos, errors.New("chunked encoding: missing line ending after chunk data")
		}
		pos = next
	}

	// Trailer fields are dropped; the section ends at an empty line or at
	// the end of input.
	for pos < len(data) {
		end := findLineEnd(data, pos)
		if end < 0 {
			pos = len(data)
			break
		}
		empty := end == pos
		pos = skipLineEnding(data, end)
		if empty {
			break
		}
	}
	return body, pos, nil
}

// findLineEnd returns the index of the CR of a CRLF or of a bare LF at or
// after pos, or -1.
func findLineEnd(data []byte, pos int) int {
	i := bytes.IndexByte(data[pos:], '\n')
	if i < 0 {
		return -1
	}
	i += pos
	if i > pos && data[i-1] == '\r' {
		return i - 1
	}
	return i
}

// skipLineEnding advances past a CRLF or LF at pos, if there is one.
func skipLineEnding(data []byte, pos int) int {
	if pos < len(data) && data[pos] == '\r' && pos+1 < len(data) && data[pos+1] == '\n' {
		return pos + 2
	}
	if pos < len(data) && data[pos] == '\n' {
		return pos + 1
	}
	return pos
}
