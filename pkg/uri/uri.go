// Package uri provides an immutable URI value type.
//
// A URI is built by Parse, New or FromEnvironment and is never modified
// afterwards; every With method returns a new value. Scheme and host are
// lower-cased, path, query and fragment are percent-encoded (existing %XX
// triplets are kept), and a port equal to the scheme's default port is
// dropped unless elision is disabled with WithoutPortElision.
//
// String output re-parses to an equal URI:
//
//	u, _ := uri.Parse("HTTPS://Example.com:443/a b?x=1")
//	u.String() // "https://example.com/a%20b?x=1"
package uri

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shapestone/shape-message/pkg/failure"
)

// URI is an immutable URI reference. The zero value is not usable; use
// Parse or New.
type URI struct {
	scheme      string
	user        string
	password    string
	hasPassword bool
	host        string
	port        int
	path        string
	query       string
	fragment    string
	keepPort    bool
}

// Components describes a URI to build with New. A nil Password means no
// password; a non-nil empty Password is rendered as "user:@host".
type Components struct {
	Scheme   string
	User     string
	Password *string
	Host     string
	Port     int
	Path     string
	Query    string
	Fragment string
}

// Option configures how a URI is built.
type Option func(*URI)

// WithoutPortElision keeps a port even when it equals the scheme default.
func WithoutPortElision() Option {
	return func(u *URI) { u.keepPort = true }
}

// defaultPorts maps schemes to their well-known ports.
var defaultPorts = map[string]int{
	"http":   80,
	"https":  443,
	"ftp":    21,
	"gopher": 70,
	"nntp":   119,
	"news":   119,
	"telnet": 23,
	"tn3270": 23,
	"imap":   143,
	"pop":    110,
	"ldap":   389,
	"ldaps":  636,
	"ssh":    22,
	"smtp":   25,
	"ws":     80,
	"wss":    443,
}

// DefaultPort returns the well-known port for scheme.
func DefaultPort(scheme string) (int, bool) {
	p, ok := defaultPorts[strings.ToLower(scheme)]
	return p, ok
}

// RFC 3986, appendix B.
var reference = regexp.MustCompile(`^(([^:/?#]+):)?(//([^/?#]*))?([^?#]*)(\?([^#]*))?(#(.*))?$`)

var schemeRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)

// Parse parses s into a URI. It fails with an invalid-argument error when s
// is empty or cannot be parsed.
func Parse(s string, opts ...Option) (*URI, error) {
	if s == "" {
		return nil, failure.InvalidArgument("uri: empty URI string")
	}
	m := reference.FindStringSubmatch(s)
	if m == nil {
		return nil, failure.InvalidArgument("uri: cannot parse %q", s)
	}

	u := &URI{
		scheme:   m[2],
		path:     m[5],
		query:    m[7],
		fragment: m[9],
	}
	if u.scheme != "" && !schemeRE.MatchString(u.scheme) {
		return nil, failure.InvalidArgument("uri: invalid scheme in %q", s)
	}

	if m[3] != "" {
		if m[4] == "" && !strings.EqualFold(u.scheme, "file") {
			return nil, failure.InvalidArgument("uri: empty authority in %q", s)
		}
		if err := u.parseAuthority(m[4]); err != nil {
			return nil, err
		}
		if err := u.checkAuthority(); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		opt(u)
	}
	return u.normalize(), nil
}

// MustParse is like Parse but panics on error. It simplifies the
// initialization of package-level URIs and tests.
func MustParse(s string, opts ...Option) *URI {
	u, err := Parse(s, opts...)
	if err != nil {
		panic(err)
	}
	return u
}

// New builds a URI from its components.
func New(c Components, opts ...Option) (*URI, error) {
	if c.Scheme != "" && !schemeRE.MatchString(c.Scheme) {
		return nil, failure.InvalidArgument("uri: invalid scheme %q", c.Scheme)
	}
	if err := validPort(c.Port); err != nil {
		return nil, err
	}
	u := &URI{
		scheme:   c.Scheme,
		user:     c.User,
		host:     c.Host,
		port:     c.Port,
		path:     c.Path,
		query:    c.Query,
		fragment: c.Fragment,
	}
	if c.Password != nil {
		u.password, u.hasPassword = *c.Password, true
	}
	if err := u.checkAuthority(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(u)
	}
	return u.normalize(), nil
}

func (u *URI) parseAuthority(authority string) error {
	hostport := authority
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		userinfo := authority[:at]
		hostport = authority[at+1:]
		u.user, u.password, u.hasPassword = strings.Cut(userinfo, ":")
	}

	host, port, err := SplitHostPort(hostport)
	if err != nil {
		return err
	}
	u.host, u.port = host, port
	return nil
}

// checkAuthority rejects authorities String could not render: user info or
// a port without a host, and a password without a user.
func (u *URI) checkAuthority() error {
	if u.host == "" && (u.user != "" || u.hasPassword || u.port != 0) {
		return failure.InvalidArgument("uri: user info or port without a host")
	}
	if u.user == "" && u.hasPassword {
		return failure.InvalidArgument("uri: password without a user")
	}
	return nil
}

// SplitHostPort splits "host", "host:port", "[v6]" or "[v6]:port". An
// absent or empty port yields 0. Brackets are kept on IPv6 literals.
func SplitHostPort(hostport string) (host string, port int, err error) {
	rest := ""
	if strings.HasPrefix(hostport, "[") {
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", 0, failure.InvalidArgument("uri: unterminated IPv6 literal in %q", hostport)
		}
		host, rest = hostport[:end+1], hostport[end+1:]
		if rest != "" && rest[0] != ':' {
			return "", 0, failure.InvalidArgument("uri: unexpected %q after IPv6 literal", rest)
		}
	} else if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		host, rest = hostport[:i], hostport[i:]
	} else {
		host = hostport
	}

	if rest == "" || rest == ":" {
		return host, 0, nil
	}
	port, err = strconv.Atoi(rest[1:])
	if err != nil || rest[1] == '+' || rest[1] == '-' {
		return "", 0, failure.InvalidArgument("uri: invalid port %q", rest[1:])
	}
	if port < 1 || port > 65535 {
		return "", 0, failure.InvalidArgument("uri: port %d out of range [1, 65535]", port)
	}
	return host, port, nil
}

func validPort(port int) error {
	if port == 0 {
		return nil
	}
	if port < 1 || port > 65535 {
		return failure.InvalidArgument("uri: port %d out of range [1, 65535]", port)
	}
	return nil
}

// normalize applies case folding, encoding and default-port elision. It is
// run on every newly built value.
func (u *URI) normalize() *URI {
	u.scheme = strings.ToLower(u.scheme)
	u.host = strings.ToLower(u.host)
	u.user = encode(u.user, encodeUserInfo)
	if u.hasPassword {
		u.password = encode(u.password, encodeUserInfo)
	}
	u.path = EncodePath(u.path)
	u.query = EncodeQuery(u.query)
	u.fragment = EncodeQuery(u.fragment)
	if !u.keepPort && u.port != 0 {
		if p, ok := defaultPorts[u.scheme]; ok && p == u.port {
			u.port = 0
		}
	}
	return u
}

func (u *URI) clone() *URI {
	c := *u
	return &c
}

// Scheme returns the lower-cased scheme, or "".
func (u *URI) Scheme() string { return u.scheme }

// User returns the user name, or "".
func (u *URI) User() string { return u.user }

// Password returns the password and whether one is set.
func (u *URI) Password() (string, bool) { return u.password, u.hasPassword }

// Host returns the lower-cased host, or "".
func (u *URI) Host() string { return u.host }

// Port returns the explicit port, or 0 when absent or elided.
func (u *URI) Port() int { return u.port }

// Path returns the percent-encoded path.
func (u *URI) Path() string { return u.path }

// Query returns the percent-encoded query without the leading '?'.
func (u *URI) Query() string { return u.query }

// Fragment returns the percent-encoded fragment without the leading '#'.
func (u *URI) Fragment() string { return u.fragment }

// UserInfo returns "user[:password]", or "" without a user.
func (u *URI) UserInfo() string {
	if u.user == "" {
		return ""
	}
	if u.hasPassword {
		return u.user + ":" + u.password
	}
	return u.user
}

// Authority returns "[userinfo@]host[:port]", or "" without a host.
func (u *URI) Authority() string {
	if u.host == "" {
		return ""
	}
	var b strings.Builder
	if ui := u.UserInfo(); ui != "" {
		b.WriteString(ui)
		b.WriteByte('@')
	}
	b.WriteString(u.host)
	if u.port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(u.port))
	}
	return b.String()
}

// String assembles the URI reference.
func (u *URI) String() string {
	var b strings.Builder
	if u.scheme != "" {
		b.WriteString(u.scheme)
		b.WriteByte(':')
	}

	authority := u.Authority()
	if authority != "" || u.scheme == "file" {
		b.WriteString("//")
		b.WriteString(authority)
	}

	path := u.path
	switch {
	case authority != "" && path != "" && path[0] != '/':
		path = "/" + path
	case authority == "" && strings.HasPrefix(path, "//"):
		path = "/" + strings.TrimLeft(path, "/")
	}
	b.WriteString(path)

	if u.query != "" {
		b.WriteByte('?')
		b.WriteString(u.query)
	}
	if u.fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.fragment)
	}
	return b.String()
}

// Equal reports whether u and o have identical components.
func (u *URI) Equal(o *URI) bool {
	if u == nil || o == nil {
		return u == o
	}
	return u.scheme == o.scheme &&
		u.user == o.user &&
		u.password == o.password &&
		u.hasPassword == o.hasPassword &&
		u.host == o.host &&
		u.port == o.port &&
		u.path == o.path &&
		u.query == o.query &&
		u.fragment == o.fragment
}

// WithScheme returns a copy with the scheme replaced. An empty scheme
// removes it.
func (u *URI) WithScheme(scheme string) (*URI, error) {
	scheme = strings.TrimSuffix(scheme, ":")
	if scheme != "" && !schemeRE.MatchString(scheme) {
		return nil, failure.InvalidArgument("uri: invalid scheme %q", scheme)
	}
	c := u.clone()
	c.scheme = scheme
	return c.normalize(), nil
}

// WithUserInfo returns a copy with the user info replaced. At most one
// password is used; without one the password is unset.
func (u *URI) WithUserInfo(user string, password ...string) *URI {
	c := u.clone()
	c.user, c.password, c.hasPassword = user, "", false
	if len(password) > 0 && user != "" {
		c.password, c.hasPassword = password[0], true
	}
	return c.normalize()
}

// WithHost returns a copy with the host replaced.
func (u *URI) WithHost(host string) *URI {
	c := u.clone()
	c.host = host
	return c.normalize()
}

// WithPort returns a copy with the port replaced. Ports outside 1-65535
// fail with an invalid-argument error; use WithoutPort to remove the port.
func (u *URI) WithPort(port int) (*URI, error) {
	if port == 0 {
		return nil, failure.InvalidArgument("uri: port 0 out of range [1, 65535]")
	}
	if err := validPort(port); err != nil {
		return nil, err
	}
	c := u.clone()
	c.port = port
	return c.normalize(), nil
}

// WithoutPort returns a copy without an explicit port.
func (u *URI) WithoutPort() *URI {
	c := u.clone()
	c.port = 0
	return c.normalize()
}

// WithPath returns a copy with the path replaced.
func (u *URI) WithPath(path string) *URI {
	c := u.clone()
	c.path = path
	return c.normalize()
}

// WithQuery returns a copy with the query replaced. A leading '?' is
// dropped.
func (u *URI) WithQuery(query string) *URI {
	c := u.clone()
	c.query = strings.TrimPrefix(query, "?")
	return c.normalize()
}

// WithFragment returns a copy with the fragment replaced. A leading '#' is
// dropped.
func (u *URI) WithFragment(fragment string) *URI {
	c := u.clone()
	c.fragment = strings.TrimPrefix(fragment, "#")
	return c.normalize()
}
