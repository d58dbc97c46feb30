package message

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/stream"
)

// Response is an immutable HTTP response.
type Response struct {
	Message

	status int
	reason string
}

// NewResponse returns a response with status and its standard reason
// phrase. A nil body means an empty temporary stream.
func NewResponse(status int, headers Headers, body *stream.Stream) (*Response, error) {
	msg, err := NewMessage(DefaultProtocolVersion, headers, body)
	if err != nil {
		return nil, err
	}
	code, reason, err := filterStatus(status, "")
	if err != nil {
		return nil, err
	}
	return &Response{Message: msg, status: code, reason: reason}, nil
}

// DefaultResponse returns a 200 response with no headers and an empty,
// writable and seekable body.
func DefaultResponse() *Response {
	r, _ := NewResponse(200, NewHeaders(), nil)
	return r
}

// filterStatus validates code and resolves the reason phrase. Negative codes
// are taken by absolute value.
func filterStatus(code int, reason string) (int, string, error) {
	if code < 0 {
		code = -code
	}
	if code < 100 || code > 599 {
		return 0, "", failure.InvalidArgument("message: status code %d out of range [100, 599]", code)
	}
	if reason == "" {
		reason = StatusText(code)
	}
	if reason == "" {
		return 0, "", failure.InvalidArgument("message: status code %d has no standard reason phrase", code)
	}
	return code, reason, nil
}

func (r *Response) clone() *Response {
	c := *r
	return &c
}

// StatusCode returns the status code.
func (r *Response) StatusCode() int { return r.status }

// ReasonPhrase returns the reason phrase.
func (r *Response) ReasonPhrase() string { return r.reason }

// WithStatus returns a copy with code and reason. An empty reason selects
// the standard phrase for code; codes without one need an explicit reason.
func (r *Response) WithStatus(code int, reason string) (*Response, error) {
	code, reason, err := filterStatus(code, reason)
	if err != nil {
		return nil, err
	}
	c := r.clone()
	c.status, c.reason = code, reason
	return c, nil
}

// Write appends s to the body. The body stream is shared, so the write is
// visible through every value holding it.
func (r *Response) Write(s string) (*Response, error) {
	if r.body == nil {
		return nil, failure.Operation("message: response has no body")
	}
	if _, err := r.body.WriteString(s); err != nil {
		return nil, err
	}
	return r, nil
}

// WithRedirect returns a copy with a Location header. A status of 0 keeps
// the current status, or selects 302 when it is 200.
func (r *Response) WithRedirect(location string, status int) (*Response, error) {
	c := r.WithHeader("Location", location)
	switch {
	case status != 0:
		return c.WithStatus(status, "")
	case c.status == 200:
		return c.WithStatus(302, "")
	}
	return c, nil
}

// WithJSON returns a copy whose body is a new stream holding v encoded as
// JSON and whose Content-Type is application/json. A status of 0 keeps the
// current status.
func (r *Response) WithJSON(v any, status int) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, failure.Kind(errors.Wrap(err, "message: encode JSON body"), failure.ErrInvalidArgument)
	}
	body := stream.NewTemp()
	if _, err := body.Write(data); err != nil {
		return nil, err
	}
	c := r.WithBody(body).WithHeader("Content-Type", "application/json;charset=utf-8")
	if status != 0 {
		return c.WithStatus(status, "")
	}
	return c, nil
}

// IsEmpty reports whether the status forbids a body (204, 205, 304).
func (r *Response) IsEmpty() bool {
	return r.status == 204 || r.status == 205 || r.status == 304
}

// IsInformational reports a 1xx status.
func (r *Response) IsInformational() bool { return r.status >= 100 && r.status < 200 }

// IsOK reports status 200.
func (r *Response) IsOK() bool { return r.status == 200 }

// IsSuccessful reports a 2xx status.
func (r *Response) IsSuccessful() bool { return r.status >= 200 && r.status < 300 }

// IsRedirect reports a status that comes with a Location: 301, 302, 303,
// 307 or 308.
func (r *Response) IsRedirect() bool {
	switch r.status {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

// IsRedirection reports a 3xx status.
func (r *Response) IsRedirection() bool { return r.status >= 300 && r.status < 400 }

// IsForbidden reports status 403.
func (r *Response) IsForbidden() bool { return r.status == 403 }

// IsNotFound reports status 404.
func (r *Response) IsNotFound() bool { return r.status == 404 }

// IsClientError reports a 4xx status.
func (r *Response) IsClientError() bool { return r.status >= 400 && r.status < 500 }

// IsServerError reports a 5xx status.
func (r *Response) IsServerError() bool { return r.status >= 500 && r.status < 600 }

// WithProtocolVersion returns a copy using version v.
func (r *Response) WithProtocolVersion(v string) (*Response, error) {
	msg, err := r.Message.WithProtocolVersion(v)
	if err != nil {
		return nil, err
	}
	c := r.clone()
	c.Message = msg
	return c, nil
}

// WithHeader returns a copy where name holds exactly values.
func (r *Response) WithHeader(name string, values ...string) *Response {
	c := r.clone()
	c.Message = r.Message.WithHeader(name, values...)
	return c
}

// WithAddedHeader returns a copy with values appended to name.
func (r *Response) WithAddedHeader(name string, values ...string) *Response {
	c := r.clone()
	c.Message = r.Message.WithAddedHeader(name, values...)
	return c
}

// WithoutHeader returns a copy without name.
func (r *Response) WithoutHeader(name string) *Response {
	c := r.clone()
	c.Message = r.Message.WithoutHeader(name)
	return c
}

// WithBody returns a copy using body.
func (r *Response) WithBody(body *stream.Stream) *Response {
	c := r.clone()
	c.Message = r.Message.WithBody(body)
	return c
}
