package message

import (
	"strconv"
	"sync"

	"github.com/shapestone/shape-message/pkg/failure"
	"golang.org/x/net/http/httpguts"
)

// Marshaler is implemented by values that serialize themselves into
// HTTP/1.1 wire format.
type Marshaler interface {
	MarshalHTTP() ([]byte, error)
}

// bufPool pools []byte slices for serialization.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 2048)
		return &b
	},
}

// appendCRLF appends \r\n to buf.
func appendCRLF(buf []byte) []byte {
	return append(buf, '\r', '\n')
}

// appendRequestLine appends "METHOD TARGET HTTP/VERSION\r\n" to buf.
func appendRequestLine(buf []byte, method, target, version string) []byte {
	buf = append(buf, method...)
	buf = append(buf, ' ')
	buf = append(buf, target...)
	buf = append(buf, " HTTP/"...)
	buf = append(buf, version...)
	return appendCRLF(buf)
}

// appendStatusLine appends "HTTP/VERSION STATUS REASON\r\n" to buf.
func appendStatusLine(buf []byte, version string, statusCode int, reason string) []byte {
	buf = append(buf, "HTTP/"...)
	buf = append(buf, version...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(statusCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, reason...)
	return appendCRLF(buf)
}

// appendHeaders appends one line per header value, then Content-Length when
// the body is non-empty and neither Content-Length nor Transfer-Encoding is
// set, then the blank line.
func appendHeaders(buf []byte, h Headers, bodyLen int) ([]byte, error) {
	for _, f := range h.All() {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return buf, failure.InvalidArgument("message: invalid header name %q", f.Name)
		}
		for _, v := range f.Values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return buf, failure.InvalidArgument("message: invalid value for header %q", f.Name)
			}
			buf = append(buf, f.Name...)
			buf = append(buf, ':', ' ')
			buf = append(buf, v...)
			buf = appendCRLF(buf)
		}
	}
	if bodyLen > 0 && !h.Has("Content-Length") && !h.Has("Transfer-Encoding") {
		buf = append(buf, "Content-Length: "...)
		buf = strconv.AppendInt(buf, int64(bodyLen), 10)
		buf = appendCRLF(buf)
	}
	return appendCRLF(buf), nil
}

func (m Message) bodyString() string {
	if m.body == nil {
		return ""
	}
	return m.body.String()
}

// marshal runs fn on a pooled buffer and returns a copy of the result.
func marshal(fn func(buf []byte) ([]byte, error)) ([]byte, error) {
	bp := bufPool.Get().(*[]byte)
	buf, err := fn((*bp)[:0])
	defer func() {
		*bp = buf[:0]
		bufPool.Put(bp)
	}()
	if err != nil {
		return nil, err
	}
	result := make([]byte, len(buf))
	copy(result, buf)
	return result, nil
}

// MarshalHTTP returns the HTTP/1.1 wire form of the request. The request
// line uses RequestTarget. The body is read in full from the start.
func (r *Request) MarshalHTTP() ([]byte, error) {
	target := r.RequestTarget()
	if !httpguts.ValidHeaderFieldValue(target) {
		return nil, failure.InvalidArgument("message: invalid request target %q", target)
	}
	body := r.bodyString()
	return marshal(func(buf []byte) ([]byte, error) {
		buf = appendRequestLine(buf, r.method, target, r.protocol)
		buf, err := appendHeaders(buf, r.headers, len(body))
		if err != nil {
			return buf, err
		}
		return append(buf, body...), nil
	})
}

// MarshalHTTP returns the HTTP/1.1 wire form of the response. The body is
// read in full from the start.
func (r *Response) MarshalHTTP() ([]byte, error) {
	body := r.bodyString()
	return marshal(func(buf []byte) ([]byte, error) {
		buf = appendStatusLine(buf, r.protocol, r.status, r.reason)
		buf, err := appendHeaders(buf, r.headers, len(body))
		if err != nil {
			return buf, err
		}
		return append(buf, body...), nil
	})
}

// String returns the wire form of the response, or "" when it cannot be
// serialized.
func (r *Response) String() string {
	b, err := r.MarshalHTTP()
	if err != nil {
		return ""
	}
	return string(b)
}
