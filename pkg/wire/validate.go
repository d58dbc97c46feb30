package wire

import (
	"io"

	"github.com/shapestone/shape-message/internal/fastparser"
)

// Validate checks that input is a well-formed HTTP/1.1 message: start line,
// header fields and body framing, within the configured body limit. Values
// are not checked against the message model; use Unmarshal for that.
func Validate(input string, opts ...Option) error {
	return fastparser.Validate([]byte(input), newOptions(opts).limits)
}

// ValidateReader reads r to the end and validates the data like Validate.
func ValidateReader(r io.Reader, opts ...Option) error {
	data, err := readAll(r)
	if err != nil {
		return err
	}
	return fastparser.Validate(data, newOptions(opts).limits)
}
