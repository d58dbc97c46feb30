// Package fastparser scans HTTP/1.1 messages into their start line, header
// fields and body without building an intermediate tree.
//
// The scanner is strict where framing is concerned: field names must be
// tokens, whitespace between a field name and its colon is rejected, and
// conflicting Content-Length values are an error. Obsolete line folding is
// accepted and replaced by a single space.
package fastparser

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/internal/tokenizer"
	"github.com/shapestone/shape-message/pkg/failure"
)

var (
	// ErrMalformed marks input that is not a well-formed HTTP/1.1 message.
	ErrMalformed = errors.New("wire: malformed message")
	// ErrBodyTooLarge marks a body exceeding the configured limit.
	ErrBodyTooLarge = errors.New("wire: body too large")
)

// Request is a scanned request. Version holds the protocol version without
// the "HTTP/" prefix.
type Request struct {
	Method  string
	Target  string
	Version string
	Fields  []Field
	Body    []byte
}

// Response is a scanned response.
type Response struct {
	Version    string
	StatusCode int
	Reason     string
	Fields     []Field
	Body       []byte
}

// Field is a header field as it appeared on the wire.
type Field struct {
	Name  string
	Value string
}

// Limits bounds what the scanner accepts. Zero means unlimited.
type Limits struct {
	MaxBodyBytes int64
}

// Parser scans a single message held in memory.
type Parser struct {
	data   []byte
	pos    int
	length int
	line   int // 1-indexed, for error messages
	limits Limits
}

// NewParser returns a parser over data.
func NewParser(data []byte, limits Limits) *Parser {
	p := &Parser{}
	initParser(p, data, limits)
	return p
}

func initParser(p *Parser, data []byte, limits Limits) {
	p.data = data
	p.pos = 0
	p.length = len(data)
	p.line = 1
	p.limits = limits
}

// Offset returns the number of bytes consumed so far.
func (p *Parser) Offset() int { return p.pos }

// ParseRequest scans a request.
func (p *Parser) ParseRequest() (*Request, error) {
	method, target, version, err := p.parseRequestLine()
	if err != nil {
		return nil, err
	}
	fields, body, err := p.parseRest()
	if err != nil {
		return nil, err
	}
	return &Request{Method: method, Target: target, Version: version, Fields: fields, Body: body}, nil
}

// ParseResponse scans a response.
func (p *Parser) ParseResponse() (*Response, error) {
	version, code, reason, err := p.parseStatusLine()
	if err != nil {
		return nil, err
	}
	fields, body, err := p.parseRest()
	if err != nil {
		return nil, err
	}
	return &Response{Version: version, StatusCode: code, Reason: reason, Fields: fields, Body: body}, nil
}

// ParseHead scans the start line, of either kind, and the header fields,
// leaving the body unread.
func (p *Parser) ParseHead() ([]Field, error) {
	var err error
	if IsResponse(p.data) {
		_, _, _, err = p.parseStatusLine()
	} else {
		_, _, _, err = p.parseRequestLine()
	}
	if err != nil {
		return nil, err
	}
	return p.parseFields()
}

func (p *Parser) parseRest() ([]Field, []byte, error) {
	fields, err := p.parseFields()
	if err != nil {
		return nil, nil, err
	}
	framing, err := FramingOf(fields)
	if err != nil {
		return nil, nil, p.wrap(err)
	}
	body, err := p.parseBody(framing)
	if err != nil {
		return nil, nil, err
	}
	if framing.Chunked {
		fields = normalizeChunkedFields(fields, len(body))
	}
	return fields, body, nil
}

// parseRequestLine scans "METHOD SP TARGET SP HTTP-VERSION".
func (p *Parser) parseRequestLine() (method, target, version string, err error) {
	line, ok := p.readLine()
	if !ok {
		return "", "", "", p.errorAt(1, "missing request line")
	}
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return "", "", "", p.errorAt(1, "malformed request line %q", line)
	}
	rest := line[sp1+1:]
	sp2 := bytes.LastIndexByte(rest, ' ')
	if sp2 <= 0 {
		return "", "", "", p.errorAt(1, "malformed request line %q", line)
	}
	if !isToken(line[:sp1]) {
		return "", "", "", p.errorAt(1, "invalid method %q", line[:sp1])
	}
	target = string(rest[:sp2])
	if strings.ContainsAny(target, " \t") {
		return "", "", "", p.errorAt(1, "whitespace in request target %q", target)
	}
	version, err = p.parseVersion(rest[sp2+1:])
	if err != nil {
		return "", "", "", err
	}
	return internMethod(line[:sp1]), target, version, nil
}

// parseStatusLine scans "HTTP-VERSION SP STATUS [SP REASON]".
func (p *Parser) parseStatusLine() (version string, code int, reason string, err error) {
	line, ok := p.readLine()
	if !ok {
		return "", 0, "", p.errorAt(1, "missing status line")
	}
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return "", 0, "", p.errorAt(1, "malformed status line %q", line)
	}
	version, err = p.parseVersion(line[:sp1])
	if err != nil {
		return "", 0, "", err
	}
	rest := line[sp1+1:]
	codeBytes := rest
	if sp2 := bytes.IndexByte(rest, ' '); sp2 >= 0 {
		codeBytes, reason = rest[:sp2], string(rest[sp2+1:])
	}
	if len(codeBytes) != 3 {
		return "", 0, "", p.errorAt(1, "invalid status code %q", codeBytes)
	}
	code, convErr := strconv.Atoi(string(codeBytes))
	if convErr != nil || code < 100 {
		return "", 0, "", p.errorAt(1, "invalid status code %q", codeBytes)
	}
	return version, code, reason, nil
}

// parseVersion checks "HTTP/" DIGIT ["." DIGIT] and returns the part after
// the slash.
func (p *Parser) parseVersion(b []byte) (string, error) {
	v, ok := bytes.CutPrefix(b, []byte("HTTP/"))
	valid := ok && len(v) > 0
	for i, c := range v {
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '.' && i > 0 && i < len(v)-1 {
			continue
		}
		valid = false
	}
	if !valid {
		return "", p.errorAt(1, "invalid protocol version %q", b)
	}
	return internVersion(v), nil
}

// parseFields scans header lines up to the empty line. Input that ends
// without one closes the header section.
func (p *Parser) parseFields() ([]Field, error) {
	fields := make([]Field, 0, 8)
	for {
		if p.pos >= p.length {
			return fields, nil
		}
		if p.data[p.pos] == '\n' || (p.data[p.pos] == '\r' && p.pos+1 < p.length && p.data[p.pos+1] == '\n') {
			p.skipLineEnding()
			return fields, nil
		}
		if p.data[p.pos] == ' ' || p.data[p.pos] == '\t' {
			return nil, p.errorf("field line starts with whitespace")
		}

		at := p.line
		line, _ := p.readLine()
		for p.pos < p.length && (p.data[p.pos] == ' ' || p.data[p.pos] == '\t') {
			cont, _ := p.readLine()
			line = append(append(line[:len(line):len(line)], ' '), bytes.TrimLeft(cont, " \t")...)
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, p.errorAt(at, "field line without colon %q", line)
		}
		name := line[:colon]
		if colon > 0 && (name[colon-1] == ' ' || name[colon-1] == '\t') {
			return nil, p.errorAt(at, "whitespace before colon in field %q", name)
		}
		if !isToken(name) {
			return nil, p.errorAt(at, "invalid field name %q", name)
		}
		fields = append(fields, Field{Name: internFieldName(name), Value: string(trimOWS(line[colon+1:]))})
	}
}

// parseBody reads the body for the given framing. Without a length or
// chunked coding the rest of the input is the body.
func (p *Parser) parseBody(f Framing) ([]byte, error) {
	if f.Chunked {
		body, n, err := Dechunk(p.data[p.pos:], p.limits.MaxBodyBytes)
		if err != nil {
			return nil, p.wrap(err)
		}
		p.pos += n
		return body, nil
	}

	n := int64(p.length - p.pos)
	if f.Length >= 0 {
		if f.Length > n {
			return nil, p.errorf("body truncated: want %d bytes, have %d", f.Length, n)
		}
		n = f.Length
	}
	if err := p.limits.Check(n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	copy(body, p.data[p.pos:p.pos+int(n)])
	p.pos += int(n)
	return body, nil
}

// readLine returns the bytes up to the next CRLF or LF and advances past it.
// The last line may end without a line terminator.
func (p *Parser) readLine() ([]byte, bool) {
	if p.pos >= p.length {
		return nil, false
	}
	start := p.pos
	end := findLineEnd(p.data, start)
	if end < 0 {
		p.pos = p.length
		return p.data[start:], true
	}
	p.pos = end
	p.skipLineEnding()
	return p.data[start:end], true
}

func (p *Parser) skipLineEnding() {
	if next := skipLineEnding(p.data, p.pos); next != p.pos {
		p.pos = next
		p.line++
	}
}

func trimOWS(b []byte) []byte {
	return bytes.Trim(b, " \t")
}

func isToken(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if !tokenizer.IsTChar(rune(c)) {
			return false
		}
	}
	return true
}

// Framing describes how a message body is delimited.
type Framing struct {
	Chunked bool
	// Length is the declared Content-Length, or -1 when there is none.
	Length int64
}

// FramingOf derives the body framing from fields. Chunked transfer coding
// takes precedence over Content-Length. Repeated Content-Length values must
// agree.
func FramingOf(fields []Field) (Framing, error) {
	f := Framing{Length: -1}
	for _, h := range fields {
		switch {
		case strings.EqualFold(h.Name, "Transfer-Encoding"):
			for _, coding := range strings.Split(h.Value, ",") {
				if strings.EqualFold(strings.TrimSpace(coding), "chunked") {
					f.Chunked = true
				}
			}
		case strings.EqualFold(h.Name, "Content-Length"):
			for _, v := range strings.Split(h.Value, ",") {
				n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
				if err != nil || n < 0 {
					return f, errors.Newf("invalid Content-Length %q", h.Value)
				}
				if f.Length >= 0 && f.Length != n {
					return f, errors.Newf("conflicting Content-Length values %d and %d", f.Length, n)
				}
				f.Length = n
			}
		}
	}
	if f.Chunked {
		f.Length = -1
	}
	return f, nil
}

// normalizeChunkedFields drops the chunked coding and records the decoded
// length, so the fields describe the body as it is held in memory.
func normalizeChunkedFields(fields []Field, bodyLen int) []Field {
	out := make([]Field, 0, len(fields)+1)
	for _, h := range fields {
		switch {
		case strings.EqualFold(h.Name, "Transfer-Encoding"):
			if rest := stripChunked(h.Value); rest != "" {
				out = append(out, Field{Name: h.Name, Value: rest})
			}
		case strings.EqualFold(h.Name, "Content-Length"):
		default:
			out = append(out, h)
		}
	}
	return append(out, Field{Name: "Content-Length", Value: strconv.Itoa(bodyLen)})
}

// stripChunked removes the chunked coding from a Transfer-Encoding value.
func stripChunked(value string) string {
	var kept []string
	for _, coding := range strings.Split(value, ",") {
		coding = strings.TrimSpace(coding)
		if coding != "" && !strings.EqualFold(coding, "chunked") {
			kept = append(kept, coding)
		}
	}
	return strings.Join(kept, ", ")
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return p.errorAt(p.line, format, args...)
}

func (p *Parser) errorAt(line int, format string, args ...interface{}) error {
	err := errors.Newf("wire: parse error at line %d: "+format, append([]interface{}{line}, args...)...)
	return failure.Kind(err, ErrMalformed, failure.ErrInvalidArgument)
}

func (p *Parser) wrap(err error) error {
	if errors.Is(err, ErrBodyTooLarge) {
		return err
	}
	return failure.Kind(errors.Wrapf(err, "wire: parse error at line %d", p.line), ErrMalformed, failure.ErrInvalidArgument)
}

// Check fails with ErrBodyTooLarge when a body of n bytes exceeds the limit.
func (l Limits) Check(n int64) error {
	if l.MaxBodyBytes > 0 && n > l.MaxBodyBytes {
		return bodyTooLarge(n, l.MaxBodyBytes)
	}
	return nil
}

func bodyTooLarge(n, max int64) error {
	err := errors.Newf("wire: body of %d bytes exceeds limit of %d", n, max)
	return failure.Kind(err, ErrBodyTooLarge, failure.ErrInvalidArgument)
}
