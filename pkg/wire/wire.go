// Package wire converts between HTTP/1.1 wire format and the immutable
// message values of package message.
//
// Decoding goes through a strict scanner: malformed input fails with an
// error marked ErrMalformed, bodies over the configured limit with
// ErrBodyTooLarge. Both are invalid-argument failures.
//
//	req, err := wire.UnmarshalRequest(data, wire.WithScheme("https"))
//	out, err := wire.Marshal(req)
//
// Requests rebuild their URI from the request-target and the Host field.
// Origin-form targets ("/path?q") are recomputed from the URI when the
// request is serialized again; every other form ("*", authority-form,
// absolute-form) is kept as an explicit request-target.
//
// Chunked bodies are decoded in full. The decoded value carries a
// Content-Length field in place of the chunked coding.
//
// An AST view of a message, built on shape-core nodes, is available through
// Parse and Render.
package wire

import (
	"github.com/shapestone/shape-message/internal/fastparser"
	"github.com/shapestone/shape-message/pkg/uri"
	"go.uber.org/zap"
)

var (
	// ErrMalformed marks input that is not a well-formed HTTP/1.1 message.
	ErrMalformed = fastparser.ErrMalformed
	// ErrBodyTooLarge marks a body over the configured limit.
	ErrBodyTooLarge = fastparser.ErrBodyTooLarge
)

// DefaultMaxBodyBytes is the body limit used when none is configured.
const DefaultMaxBodyBytes = 8 << 20

// Option configures decoding.
type Option func(*options)

type options struct {
	limits  fastparser.Limits
	scheme  string
	uriOpts []uri.Option
	logger  *zap.Logger
}

func newOptions(opts []Option) options {
	o := options{
		limits: fastparser.Limits{MaxBodyBytes: DefaultMaxBodyBytes},
		scheme: "http",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxBodyBytes bounds the decoded body size. Zero or less removes the
// limit.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.limits.MaxBodyBytes = n
	}
}

// WithScheme sets the scheme of request URIs rebuilt from origin-form
// targets. The default is "http".
func WithScheme(scheme string) Option {
	return func(o *options) { o.scheme = scheme }
}

// WithURIOptions applies opts to every URI built while decoding.
func WithURIOptions(opts ...uri.Option) Option {
	return func(o *options) { o.uriOpts = append(o.uriOpts, opts...) }
}

// WithLogger passes l to decoded requests and their body streams.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
