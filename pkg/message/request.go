package message

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shapestone/shape-message/internal/form"
	"github.com/shapestone/shape-message/internal/tokenizer"
	"github.com/shapestone/shape-message/pkg/environment"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/stream"
	"github.com/shapestone/shape-message/pkg/uri"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
)

// RequestParams carries the optional parts of a new Request.
type RequestParams struct {
	// Headers are the initial headers. A Host header is added from the URI.
	Headers Headers
	// Cookies is the already parsed Cookie header.
	Cookies map[string]string
	// ServerParams is the server environment the request arrived with.
	// SERVER_PROTOCOL ("HTTP/1.1") sets the protocol version.
	ServerParams environment.Snapshot
	// Body defaults to an empty temporary stream.
	Body *stream.Stream
	// Attributes seeds the attribute bag.
	Attributes map[string]any
	// URIOptions apply when the URI is parsed from a string or an
	// environment.
	URIOptions []uri.Option
	// Logger receives debug events from body parsing. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

// Request is an immutable HTTP request.
type Request struct {
	Message

	method       string
	uri          *uri.URI
	target       string
	serverParams environment.Snapshot
	cookies      map[string]string
	attributes   map[string]any
	parsers      map[string]BodyParser
	logger       *zap.Logger

	// Lazily computed per value; replaced whenever an input changes.
	requestTarget  func() string
	queryParams    func() map[string]any
	queryExplicit  bool
	parsedBody     func() (any, error)
	parsedExplicit bool
}

// NewRequest returns a request for method and u.
func NewRequest(method string, u *uri.URI, p RequestParams) (*Request, error) {
	if u == nil {
		return nil, failure.InvalidArgument("message: nil URI")
	}
	m, err := filterMethod(method)
	if err != nil {
		return nil, err
	}

	protocol := DefaultProtocolVersion
	if sp, ok := p.ServerParams.Get("SERVER_PROTOCOL"); ok {
		protocol = strings.TrimPrefix(sp, "HTTP/")
	}
	msg, err := NewMessage(protocol, p.Headers, p.Body)
	if err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Request{
		Message:      msg,
		method:       m,
		uri:          u,
		serverParams: p.ServerParams.Clone(),
		cookies:      lo.Assign(p.Cookies),
		attributes:   lo.Assign(p.Attributes),
		parsers:      builtinParsers(logger),
		logger:       logger,
	}
	if !r.headers.Has("Host") || u.Host() != "" {
		r.headers = r.headers.With("Host", hostHeader(u))
	}
	r.resetTarget()
	r.resetQuery()
	r.resetParsedBody()
	return r, nil
}

// NewRequestFromString parses rawURI and returns a request for it.
func NewRequestFromString(method, rawURI string, p RequestParams) (*Request, error) {
	u, err := uri.Parse(rawURI, p.URIOptions...)
	if err != nil {
		return nil, err
	}
	return NewRequest(method, u, p)
}

// NewRequestFromEnvironment builds the request described by a server
// environment snapshot: REQUEST_METHOD, the URI (see uri.FromEnvironment),
// headers from the HTTP_* and content entries, and the snapshot as server
// params. Headers and ServerParams in p are ignored.
func NewRequestFromEnvironment(env environment.Snapshot, p RequestParams) (*Request, error) {
	srv, err := env.Server()
	if err != nil {
		return nil, err
	}
	u, err := uri.FromEnvironment(env, p.URIOptions...)
	if err != nil {
		return nil, err
	}
	headers := NewHeaders()
	for _, h := range env.Headers() {
		headers = headers.Added(h.Name, h.Value)
	}
	p.Headers = headers
	p.ServerParams = env
	return NewRequest(srv.Method, u, p)
}

// filterMethod validates a method token and uppercases it.
func filterMethod(method string) (string, error) {
	if method == "" || !httpguts.ValidHeaderFieldName(method) {
		return "", failure.InvalidArgument("message: invalid method %q", method)
	}
	return strings.ToUpper(method), nil
}

// hostHeader renders the Host header value for u.
func hostHeader(u *uri.URI) string {
	host := u.Host()
	if port := u.Port(); port != 0 && host != "" {
		host += ":" + strconv.Itoa(port)
	}
	return host
}

func (r *Request) clone() *Request {
	c := *r
	return &c
}

func (r *Request) resetTarget() {
	u, override := r.uri, r.target
	r.requestTarget = sync.OnceValue(func() string {
		if override != "" {
			return override
		}
		target := "/" + strings.TrimLeft(u.Path(), "/")
		if q := u.Query(); q != "" {
			target += "?" + q
		}
		return target
	})
}

func (r *Request) resetQuery() {
	if r.queryExplicit {
		return
	}
	query := r.uri.Query()
	r.queryParams = sync.OnceValue(func() map[string]any {
		return form.Decode(query)
	})
}

func (r *Request) resetParsedBody() {
	if r.parsedExplicit {
		return
	}
	mt, _ := tokenizer.ParseMediaType(r.ContentType())
	parsers, body, logger := r.parsers, r.body, r.logger
	r.parsedBody = sync.OnceValues(func() (any, error) {
		return parseBody(mt, parsers, body, logger)
	})
}

// parserKey selects the registry entry for mt. A structured-syntax suffix
// always selects application/<suffix>.
func parserKey(mt tokenizer.MediaType) string {
	if mt.Type == "" {
		return ""
	}
	if suffix := mt.Suffix(); suffix != "" {
		return "application/" + suffix
	}
	return mt.Essence()
}

func parseBody(mt tokenizer.MediaType, parsers map[string]BodyParser, body *stream.Stream, logger *zap.Logger) (any, error) {
	key := parserKey(mt)
	parse, ok := parsers[key]
	if !ok || body == nil {
		return nil, nil
	}
	mediaType := mt.Essence()
	v, err := parse(body.String())
	if err != nil {
		return nil, failure.Kind(errors.Wrapf(err, "message: parse %s body", mediaType), failure.ErrOperation)
	}
	if !allowedShape(v) {
		return nil, failure.ParserContract("message: parser for %s returned unsupported %T", key, v)
	}
	logger.Debug("parsed request body", zap.String("media_type", mediaType), zap.String("parser", key))
	return v, nil
}

// Method returns the uppercased method.
func (r *Request) Method() string { return r.method }

// IsMethod reports whether the request uses method, ignoring case.
func (r *Request) IsMethod(method string) bool {
	return r.method == strings.ToUpper(method)
}

// IsXHR reports whether X-Requested-With is XMLHttpRequest.
func (r *Request) IsXHR() bool {
	return r.HeaderLine("X-Requested-With") == "XMLHttpRequest"
}

// WithMethod returns a copy using method.
func (r *Request) WithMethod(method string) (*Request, error) {
	m, err := filterMethod(method)
	if err != nil {
		return nil, err
	}
	c := r.clone()
	c.method = m
	return c, nil
}

// URI returns the target URI.
func (r *Request) URI() *uri.URI { return r.uri }

// WithURI returns a copy addressed to u. Unless preserveHost is set, the
// Host header follows the host of u when it has one. With preserveHost the
// Host header is only filled in when it is missing or empty.
func (r *Request) WithURI(u *uri.URI, preserveHost bool) (*Request, error) {
	if u == nil {
		return nil, failure.InvalidArgument("message: nil URI")
	}
	c := r.clone()
	c.uri = u
	switch {
	case u.Host() == "":
	case !preserveHost, c.HeaderLine("Host") == "":
		c.headers = c.headers.With("Host", hostHeader(u))
	}
	c.resetTarget()
	c.resetQuery()
	return c, nil
}

// RequestTarget returns the override set by WithRequestTarget, or the URI's
// path (always starting with "/") plus its query.
func (r *Request) RequestTarget() string {
	return r.requestTarget()
}

// WithRequestTarget returns a copy with an explicit request-target. Targets
// containing whitespace are rejected.
func (r *Request) WithRequestTarget(target string) (*Request, error) {
	if strings.ContainsFunc(target, unicode.IsSpace) {
		return nil, failure.InvalidArgument("message: request target %q contains whitespace", target)
	}
	c := r.clone()
	c.target = target
	c.resetTarget()
	return c, nil
}

// ServerParams returns a copy of the server environment.
func (r *Request) ServerParams() environment.Snapshot {
	return r.serverParams.Clone()
}

// ServerParam returns one server parameter, or def.
func (r *Request) ServerParam(key, def string) string {
	return r.serverParams.Value(key, def)
}

// CookieParams returns a copy of the cookie table.
func (r *Request) CookieParams() map[string]string {
	return lo.Assign(r.cookies)
}

// CookieParam returns one cookie, or def.
func (r *Request) CookieParam(key, def string) string {
	if v, ok := r.cookies[key]; ok {
		return v
	}
	return def
}

// WithCookieParams returns a copy using cookies.
func (r *Request) WithCookieParams(cookies map[string]string) *Request {
	c := r.clone()
	c.cookies = lo.Assign(cookies)
	return c
}

// QueryParams returns the decoded query string. The query is decoded once
// per value.
func (r *Request) QueryParams() map[string]any {
	return lo.Assign(r.queryParams())
}

// WithQueryParams returns a copy reporting params as its query parameters,
// regardless of the URI.
func (r *Request) WithQueryParams(params map[string]any) *Request {
	c := r.clone()
	params = lo.Assign(params)
	c.queryParams = func() map[string]any { return params }
	c.queryExplicit = true
	return c
}

// Attributes returns a copy of the attribute bag.
func (r *Request) Attributes() map[string]any {
	return lo.Assign(r.attributes)
}

// Attribute returns one attribute, or def.
func (r *Request) Attribute(name string, def any) any {
	if v, ok := r.attributes[name]; ok {
		return v
	}
	return def
}

// WithAttribute returns a copy with name set to value.
func (r *Request) WithAttribute(name string, value any) *Request {
	c := r.clone()
	c.attributes = lo.Assign(r.attributes, map[string]any{name: value})
	return c
}

// WithAttributes returns a copy whose attribute bag is exactly attrs.
func (r *Request) WithAttributes(attrs map[string]any) *Request {
	c := r.clone()
	c.attributes = lo.Assign(attrs)
	return c
}

// WithoutAttribute returns a copy without name.
func (r *Request) WithoutAttribute(name string) *Request {
	c := r.clone()
	c.attributes = lo.OmitByKeys(r.attributes, []string{name})
	return c
}

// ContentType returns the first Content-Type value, or "".
func (r *Request) ContentType() string {
	if v := r.Header("Content-Type"); len(v) > 0 {
		return v[0]
	}
	return ""
}

// MediaType returns the lowercased media type of the Content-Type header
// without parameters, or "".
func (r *Request) MediaType() string {
	mt, ok := tokenizer.ParseMediaType(r.ContentType())
	if !ok {
		return ""
	}
	return mt.Essence()
}

// MediaTypeParams returns the Content-Type parameters with lowercased names.
func (r *Request) MediaTypeParams() map[string]string {
	mt, ok := tokenizer.ParseMediaType(r.ContentType())
	if !ok {
		return map[string]string{}
	}
	return mt.Params
}

// ContentCharset returns the charset parameter of Content-Type, or "".
func (r *Request) ContentCharset() string {
	return r.MediaTypeParams()["charset"]
}

// ContentLength returns the Content-Length header as a number.
func (r *Request) ContentLength() (int64, bool) {
	v := r.Header("Content-Length")
	if len(v) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(v[0], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// WithMediaTypeParser returns a copy where bodies of exactly mediaType are
// decoded by parse. It replaces any parser registered for mediaType.
func (r *Request) WithMediaTypeParser(mediaType string, parse BodyParser) *Request {
	c := r.clone()
	c.parsers = lo.Assign(r.parsers, map[string]BodyParser{mediaType: parse})
	c.resetParsedBody()
	return c
}

// ParsedBody returns the value set by WithParsedBody, or else the body
// decoded by the parser registered for the request's media type. A
// structured-syntax suffix selects the parser of application/<suffix>, so
// "application/vnd.api+json" is decoded as JSON. Without a parser the
// result is nil. The body is decoded once per value.
func (r *Request) ParsedBody() (any, error) {
	return r.parsedBody()
}

// WithParsedBody returns a copy reporting v as its parsed body. v must be
// nil, a map, a slice, a struct or a pointer to a struct.
func (r *Request) WithParsedBody(v any) (*Request, error) {
	if !allowedShape(v) {
		return nil, failure.InvalidArgument("message: parsed body of type %T is not a map, slice or struct", v)
	}
	c := r.clone()
	c.parsedBody = func() (any, error) { return v, nil }
	c.parsedExplicit = true
	return c, nil
}

// Param returns key from the parsed body, falling back to the query
// parameters and then def. A body that fails to parse is skipped.
func (r *Request) Param(key string, def any) any {
	if v, ok := r.bodyParams()[key]; ok {
		return v
	}
	if v, ok := r.queryParams()[key]; ok {
		return v
	}
	return def
}

// Params returns the query parameters merged with the parsed body. Body
// entries win.
func (r *Request) Params() map[string]any {
	return lo.Assign(r.queryParams(), r.bodyParams())
}

func (r *Request) bodyParams() map[string]any {
	body, err := r.ParsedBody()
	if err != nil {
		r.logger.Debug("skipping unparsable body", zap.Error(err))
		return nil
	}
	m, _ := body.(map[string]any)
	return m
}

// WithProtocolVersion returns a copy using version v.
func (r *Request) WithProtocolVersion(v string) (*Request, error) {
	msg, err := r.Message.WithProtocolVersion(v)
	if err != nil {
		return nil, err
	}
	c := r.clone()
	c.Message = msg
	return c, nil
}

// WithHeader returns a copy where name holds exactly values.
func (r *Request) WithHeader(name string, values ...string) *Request {
	c := r.clone()
	c.Message = r.Message.WithHeader(name, values...)
	c.resetParsedBody()
	return c
}

// WithAddedHeader returns a copy with values appended to name.
func (r *Request) WithAddedHeader(name string, values ...string) *Request {
	c := r.clone()
	c.Message = r.Message.WithAddedHeader(name, values...)
	c.resetParsedBody()
	return c
}

// WithoutHeader returns a copy without name.
func (r *Request) WithoutHeader(name string) *Request {
	c := r.clone()
	c.Message = r.Message.WithoutHeader(name)
	c.resetParsedBody()
	return c
}

// WithBody returns a copy using body.
func (r *Request) WithBody(body *stream.Stream) *Request {
	c := r.clone()
	c.Message = r.Message.WithBody(body)
	c.resetParsedBody()
	return c
}
