package wire

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/internal/fastparser"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/message"
	"github.com/shapestone/shape-message/pkg/stream"
	"github.com/shapestone/shape-message/pkg/uri"
)

// UnmarshalRequest decodes data as a request.
func UnmarshalRequest(data []byte, opts ...Option) (*message.Request, error) {
	o := newOptions(opts)
	if fastparser.IsResponse(data) {
		return nil, mismatch("response", "request")
	}
	req, err := fastparser.UnmarshalRequest(data, o.limits)
	if err != nil {
		return nil, err
	}
	return o.request(req)
}

// UnmarshalResponse decodes data as a response.
func UnmarshalResponse(data []byte, opts ...Option) (*message.Response, error) {
	o := newOptions(opts)
	if !fastparser.IsResponse(data) {
		return nil, mismatch("request", "response")
	}
	resp, err := fastparser.UnmarshalResponse(data, o.limits)
	if err != nil {
		return nil, err
	}
	return o.response(resp)
}

// Unmarshal decodes data as whichever kind of message it starts like. The
// result is a *message.Request or a *message.Response.
func Unmarshal(data []byte, opts ...Option) (message.Marshaler, error) {
	if fastparser.IsResponse(data) {
		resp, err := UnmarshalResponse(data, opts...)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	req, err := UnmarshalRequest(data, opts...)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// IsResponse reports whether data starts with a status line.
func IsResponse(data []byte) bool {
	return fastparser.IsResponse(data)
}

func mismatch(got, want string) error {
	return failure.InvalidArgument("wire: data looks like a %s, want a %s", got, want)
}

func headersOf(fields []fastparser.Field) message.Headers {
	h := message.NewHeaders()
	for _, f := range fields {
		h = h.Added(f.Name, f.Value)
	}
	return h
}

func (o options) body(b []byte) *stream.Stream {
	return stream.NewString(string(b), stream.WithLogger(o.logger))
}

// requestURI rebuilds the request URI from the request-target and the Host
// field. It reports whether the target has to be kept verbatim.
func (o options) requestURI(target, host string) (*uri.URI, bool, error) {
	switch {
	case strings.HasPrefix(target, "/"):
		if host == "" {
			u, err := uri.Parse(target, o.uriOpts...)
			return u, false, err
		}
		u, err := uri.Parse(o.scheme+"://"+host+target, o.uriOpts...)
		return u, false, err
	case target == "*":
		if host == "" {
			u, err := uri.New(uri.Components{}, o.uriOpts...)
			return u, true, err
		}
		u, err := uri.Parse(o.scheme+"://"+host, o.uriOpts...)
		return u, true, err
	case strings.Contains(target, "://"):
		u, err := uri.Parse(target, o.uriOpts...)
		return u, true, err
	default:
		u, err := uri.Parse(o.scheme+"://"+target, o.uriOpts...)
		return u, true, err
	}
}

func (o options) request(req *fastparser.Request) (*message.Request, error) {
	headers := headersOf(req.Fields)
	u, verbatim, err := o.requestURI(req.Target, headers.Line("Host"))
	if err != nil {
		return nil, errors.Wrapf(err, "wire: request-target %q", req.Target)
	}
	r, err := message.NewRequest(req.Method, u, message.RequestParams{
		Headers:    headers,
		Body:       o.body(req.Body),
		URIOptions: o.uriOpts,
		Logger:     o.logger,
	})
	if err != nil {
		return nil, err
	}
	if r, err = r.WithProtocolVersion(req.Version); err != nil {
		return nil, err
	}
	if verbatim {
		return r.WithRequestTarget(req.Target)
	}
	return r, nil
}

func (o options) response(resp *fastparser.Response) (*message.Response, error) {
	r, err := message.NewResponse(200, headersOf(resp.Fields), o.body(resp.Body))
	if err != nil {
		return nil, err
	}
	if r, err = r.WithStatus(resp.StatusCode, resp.Reason); err != nil {
		return nil, err
	}
	return r.WithProtocolVersion(resp.Version)
}
