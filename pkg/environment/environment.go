// Package environment models the server environment a request was received
// in, as an explicit value.
//
// A Snapshot is a flat string-keyed table in the CGI tradition (REQUEST_URI,
// SERVER_PORT, HTTP_* entries, ...). Factories in the uri and message
// packages take a Snapshot argument and never read process state, so the same
// snapshot always produces the same request.
package environment

import (
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/shapestone/shape-message/pkg/failure"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Snapshot is an immutable view over server environment variables.
// Methods never modify the receiver.
type Snapshot map[string]string

// Server is the typed view over the well-known entries of a Snapshot.
type Server struct {
	Protocol     string `env:"SERVER_PROTOCOL" envDefault:"HTTP/1.1"`
	Method       string `env:"REQUEST_METHOD" envDefault:"GET"`
	RequestURI   string `env:"REQUEST_URI"`
	QueryString  string `env:"QUERY_STRING"`
	ScriptName   string `env:"SCRIPT_NAME"`
	ServerName   string `env:"SERVER_NAME"`
	ServerPort   int    `env:"SERVER_PORT"`
	HTTPS        string `env:"HTTPS"`
	Host         string `env:"HTTP_HOST"`
	RemoteAddr   string `env:"REMOTE_ADDR"`
	ContentType  string `env:"CONTENT_TYPE"`
	AuthUser     string `env:"PHP_AUTH_USER"`
	AuthPassword string `env:"PHP_AUTH_PW"`
}

// Header is a header reconstructed from a Snapshot entry.
type Header struct {
	Name  string
	Value string
}

// specialHeaders are the entries that carry request headers without the
// HTTP_ prefix.
var specialHeaders = map[string]bool{
	"CONTENT_TYPE":    true,
	"CONTENT_LENGTH":  true,
	"PHP_AUTH_USER":   true,
	"PHP_AUTH_PW":     true,
	"PHP_AUTH_DIGEST": true,
	"AUTH_TYPE":       true,
}

// FromPairs builds a Snapshot from "KEY=value" pairs, the format returned by
// os.Environ. Pairs without '=' are stored with an empty value.
func FromPairs(pairs []string) Snapshot {
	s := make(Snapshot, len(pairs))
	for _, pair := range pairs {
		k, v, _ := strings.Cut(pair, "=")
		if k == "" {
			continue
		}
		s[k] = v
	}
	return s
}

// Get returns the value stored under key and whether it was present.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Value returns the value stored under key, or def when absent.
func (s Snapshot) Value(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

// Clone returns an independent copy of s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot(lo.Assign(map[string]string(s)))
}

// With returns a copy of s with key set to value.
func (s Snapshot) With(key, value string) Snapshot {
	c := s.Clone()
	c[key] = value
	return c
}

// FoldProxyHTTPS returns a copy of s whose HTTPS entry is "on" when a
// TLS-terminating proxy reported the original scheme through
// X-Forwarded-Proto or Front-End-Https.
func (s Snapshot) FoldProxyHTTPS() Snapshot {
	proto := strings.ToLower(strings.TrimSpace(s["HTTP_X_FORWARDED_PROTO"]))
	frontEnd := s["HTTP_FRONT_END_HTTPS"]
	if proto == "https" || flagOn(frontEnd) {
		return s.With("HTTPS", "on")
	}
	return s
}

// IsHTTPS reports whether the request arrived over TLS, directly or behind a
// proxy.
func (s Snapshot) IsHTTPS() bool {
	return flagOn(s.FoldProxyHTTPS()["HTTPS"])
}

// Server decodes the well-known entries of s into a Server value.
func (s Snapshot) Server() (Server, error) {
	var srv Server
	// A nil Environment makes env fall back to os.Environ.
	err := env.ParseWithOptions(&srv, env.Options{Environment: map[string]string(s.Clone())})
	if err != nil {
		return srv, failure.Kind(errors.Wrap(err, "environment: decode server params"), failure.ErrInvalidArgument)
	}
	return srv, nil
}

// Headers reconstructs request headers from the HTTP_* entries and the
// special CGI entries of s, in key order. HTTP_USER_AGENT becomes
// User-Agent, CONTENT_TYPE becomes Content-Type.
func (s Snapshot) Headers() []Header {
	keys := lo.Filter(lo.Keys(map[string]string(s)), func(k string, _ int) bool {
		return strings.HasPrefix(k, "HTTP_") || specialHeaders[k]
	})
	slices.Sort(keys)

	headers := make([]Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, Header{Name: HeaderName(k), Value: s[k]})
	}
	return headers
}

// HeaderName converts an environment key into a canonical header name.
func HeaderName(key string) string {
	name := strings.TrimPrefix(key, "HTTP_")
	name = strings.ReplaceAll(strings.ToLower(name), "_", " ")
	name = cases.Title(language.Und).String(name)
	return strings.ReplaceAll(name, " ", "-")
}

func flagOn(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "off")
}
