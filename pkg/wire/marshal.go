package wire

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/message"
)

// Marshal returns the HTTP/1.1 wire form of v, which must implement
// message.Marshaler (*message.Request and *message.Response do).
func Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, failure.InvalidArgument("wire: Marshal(nil)")
	}
	m, ok := v.(message.Marshaler)
	if !ok {
		return nil, failure.InvalidArgument("wire: Marshal unsupported type %T", v)
	}
	return m.MarshalHTTP()
}

// Encoder writes messages to an output stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the wire form of v.
func (enc *Encoder) Encode(v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	if _, err := enc.w.Write(data); err != nil {
		return failure.Kind(errors.Wrap(err, "wire: encode"), failure.ErrOperation)
	}
	return nil
}
