package fastparser

import (
	"bytes"
)

// UnmarshalRequest scans data as a request.
func UnmarshalRequest(data []byte, limits Limits) (*Request, error) {
	var p Parser
	initParser(&p, data, limits)
	return p.ParseRequest()
}

// UnmarshalResponse scans data as a response.
func UnmarshalResponse(data []byte, limits Limits) (*Response, error) {
	var p Parser
	initParser(&p, data, limits)
	return p.ParseResponse()
}

// IsResponse reports whether data starts like a status line.
func IsResponse(data []byte) bool {
	return bytes.HasPrefix(data, []byte("HTTP/"))
}

// Validate scans data as whichever message kind it starts like and reports
// the first problem found.
func Validate(data []byte, limits Limits) error {
	if IsResponse(data) {
		_, err := UnmarshalResponse(data, limits)
		return err
	}
	_, err := UnmarshalRequest(data, limits)
	return err
}
