package wire

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/internal/fastparser"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/message"
)

// maxHeadBytes bounds the start line and header section of a streamed
// message.
const maxHeadBytes = 1 << 20

// Decoder reads consecutive messages from an input stream. Each message is
// framed by its Content-Length or chunked coding; a message with neither has
// no body. A Decoder is not safe for concurrent use.
type Decoder struct {
	r    *bufio.Reader
	opts []Option
	o    options
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{r: bufio.NewReader(r), opts: opts, o: newOptions(opts)}
}

// Decode reads the next message, a *message.Request or *message.Response.
// It returns io.EOF when the input ends before a new message starts.
func (dec *Decoder) Decode() (message.Marshaler, error) {
	raw, err := dec.readMessage()
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw, dec.opts...)
}

// DecodeRequest reads the next message as a request.
func (dec *Decoder) DecodeRequest() (*message.Request, error) {
	raw, err := dec.readMessage()
	if err != nil {
		return nil, err
	}
	return UnmarshalRequest(raw, dec.opts...)
}

// DecodeResponse reads the next message as a response.
func (dec *Decoder) DecodeResponse() (*message.Response, error) {
	raw, err := dec.readMessage()
	if err != nil {
		return nil, err
	}
	return UnmarshalResponse(raw, dec.opts...)
}

// readMessage returns the raw bytes of the next message.
func (dec *Decoder) readMessage() ([]byte, error) {
	raw, err := dec.readHead()
	if err != nil {
		return nil, err
	}
	fields, err := fastparser.NewParser(raw, dec.o.limits).ParseHead()
	if err != nil {
		return nil, err
	}
	framing, err := fastparser.FramingOf(fields)
	if err != nil {
		return nil, malformed(err)
	}

	switch {
	case framing.Chunked:
		return dec.readChunked(raw)
	case framing.Length > 0:
		if err := dec.o.limits.Check(framing.Length); err != nil {
			return nil, err
		}
		return dec.readN(raw, framing.Length)
	}
	return raw, nil
}

// readHead reads up to and including the empty line closing the header
// section. Empty lines before the start line are skipped.
func (dec *Decoder) readHead() ([]byte, error) {
	var head []byte
	for {
		line, err := dec.r.ReadBytes('\n')
		if len(head) == 0 && err == nil && isBlank(line) {
			continue
		}
		head = append(head, line...)
		if len(head) > maxHeadBytes {
			return nil, failure.Kind(errors.Newf("wire: header section exceeds %d bytes", maxHeadBytes), ErrMalformed, failure.ErrInvalidArgument)
		}
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(head)) == 0 {
				return nil, io.EOF
			}
			return nil, readFail(err)
		}
		if len(head) > len(line) && isBlank(line) {
			return head, nil
		}
	}
}

// readChunked appends the chunked body framing, trailers included, to raw.
// Decoding happens later when raw is scanned as a whole; an unparsable size
// line ends reading so the scanner reports it.
func (dec *Decoder) readChunked(raw []byte) ([]byte, error) {
	var total int64
	for {
		line, err := dec.r.ReadBytes('\n')
		raw = append(raw, line...)
		if err != nil {
			return nil, readFail(err)
		}
		sizeText, _, _ := bytes.Cut(bytes.TrimRight(line, "\r\n"), []byte(";"))
		size, err := strconv.ParseUint(string(bytes.TrimSpace(sizeText)), 16, 62)
		if err != nil {
			return raw, nil
		}
		if size == 0 {
			return dec.readTrailers(raw)
		}
		total += int64(size)
		if err := dec.o.limits.Check(total); err != nil {
			return nil, err
		}
		if raw, err = dec.readN(raw, int64(size)); err != nil {
			return nil, err
		}
		line, err = dec.r.ReadBytes('\n')
		raw = append(raw, line...)
		if err != nil {
			return nil, readFail(err)
		}
	}
}

func (dec *Decoder) readTrailers(raw []byte) ([]byte, error) {
	for {
		line, err := dec.r.ReadBytes('\n')
		raw = append(raw, line...)
		if err != nil {
			return nil, readFail(err)
		}
		if isBlank(line) {
			return raw, nil
		}
	}
}

func (dec *Decoder) readN(raw []byte, n int64) ([]byte, error) {
	start := len(raw)
	raw = append(raw, make([]byte, n)...)
	if _, err := io.ReadFull(dec.r, raw[start:]); err != nil {
		return nil, readFail(err)
	}
	return raw, nil
}

func isBlank(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0 && len(line) > 0
}

func readFail(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return malformed(errors.Wrap(io.ErrUnexpectedEOF, "truncated message"))
	}
	return failure.Kind(errors.Wrap(err, "wire: read"), failure.ErrOperation)
}

func malformed(err error) error {
	return failure.Kind(errors.Wrap(err, "wire: decode"), ErrMalformed, failure.ErrInvalidArgument)
}
