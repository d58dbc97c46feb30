// Package message provides immutable HTTP message values: Headers, Message,
// Request and Response.
//
// Every With method returns a new value and leaves its receiver untouched.
// Request and Response embed Message and share its header and body
// accessors; their own With methods return the concrete type.
//
// # Errors
//
// Caller mistakes (an unknown protocol version, a status outside 100-599, a
// malformed URI) are marked with failure.ErrInvalidArgument. Failures at the
// body boundary are marked with failure.ErrOperation.
package message

import (
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/stream"
)

// HasHeaders is implemented by values carrying a header table.
type HasHeaders interface {
	Headers() Headers
	HasHeader(name string) bool
	Header(name string) []string
	HeaderLine(name string) string
}

// HasBody is implemented by values carrying a body stream.
type HasBody interface {
	Body() *stream.Stream
}

// DefaultProtocolVersion is used when no version is given.
const DefaultProtocolVersion = "1.1"

var protocolVersions = map[string]bool{
	"1.0": true,
	"1.1": true,
	"2":   true,
	"2.0": true,
}

// ValidProtocolVersion reports whether v is a supported protocol version.
func ValidProtocolVersion(v string) bool {
	return protocolVersions[v]
}

// Message is a protocol version, a header table and a body. The body stream
// is shared by every value derived from a Message until WithBody replaces
// it.
type Message struct {
	protocol string
	headers  Headers
	body     *stream.Stream
}

// NewMessage returns a Message. An empty protocol means
// DefaultProtocolVersion; a nil body means an empty temporary stream.
func NewMessage(protocol string, headers Headers, body *stream.Stream) (Message, error) {
	if protocol == "" {
		protocol = DefaultProtocolVersion
	}
	if !ValidProtocolVersion(protocol) {
		return Message{}, failure.InvalidArgument("message: unsupported protocol version %q", protocol)
	}
	if body == nil {
		body = stream.NewTemp()
	}
	return Message{protocol: protocol, headers: headers, body: body}, nil
}

// ProtocolVersion returns the version without the "HTTP/" prefix.
func (m Message) ProtocolVersion() string { return m.protocol }

// Headers returns the header table.
func (m Message) Headers() Headers { return m.headers }

// HasHeader reports whether name is present, ignoring case.
func (m Message) HasHeader(name string) bool { return m.headers.Has(name) }

// Header returns the values of name, or an empty slice.
func (m Message) Header(name string) []string { return m.headers.Get(name) }

// HeaderLine returns the values of name joined with ", ".
func (m Message) HeaderLine(name string) string { return m.headers.Line(name) }

// Body returns the body stream.
func (m Message) Body() *stream.Stream { return m.body }

// WithProtocolVersion returns a copy using version v.
func (m Message) WithProtocolVersion(v string) (Message, error) {
	if !ValidProtocolVersion(v) {
		return m, failure.InvalidArgument("message: unsupported protocol version %q", v)
	}
	m.protocol = v
	return m, nil
}

// WithHeader returns a copy where name holds exactly values.
func (m Message) WithHeader(name string, values ...string) Message {
	m.headers = m.headers.With(name, values...)
	return m
}

// WithAddedHeader returns a copy with values appended to name.
func (m Message) WithAddedHeader(name string, values ...string) Message {
	m.headers = m.headers.Added(name, values...)
	return m
}

// WithoutHeader returns a copy without name.
func (m Message) WithoutHeader(name string) Message {
	m.headers = m.headers.Without(name)
	return m
}

// WithBody returns a copy using body.
func (m Message) WithBody(body *stream.Stream) Message {
	m.body = body
	return m
}
