package uri

import (
	"strings"

	"github.com/shapestone/shape-message/pkg/environment"
)

// FromEnvironment builds the URI a request was addressed to from a server
// environment snapshot.
//
// The scheme is https when the snapshot reports TLS, including through the
// X-Forwarded-Proto and Front-End-Https proxy headers. Host and port come
// from HTTP_HOST, falling back to SERVER_NAME and SERVER_PORT. The path is
// the URL-decoded REQUEST_URI path; the query is QUERY_STRING, or the query
// part of REQUEST_URI when QUERY_STRING is empty.
func FromEnvironment(env environment.Snapshot, opts ...Option) (*URI, error) {
	env = env.FoldProxyHTTPS()
	srv, err := env.Server()
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if env.IsHTTPS() {
		scheme = "https"
	}

	var host string
	var port int
	if srv.Host != "" {
		host, port, err = SplitHostPort(srv.Host)
		if err != nil {
			return nil, err
		}
	} else {
		host = srv.ServerName
	}
	if port == 0 {
		port = srv.ServerPort
	}
	if err := validPort(port); err != nil {
		return nil, err
	}

	path, rawQuery, _ := strings.Cut(srv.RequestURI, "?")
	query := srv.QueryString
	if query == "" {
		query = rawQuery
	}

	u := &URI{
		scheme: scheme,
		user:   srv.AuthUser,
		host:   host,
		port:   port,
		path:   Decode(path),
		query:  query,
	}
	if pw, ok := env.Get("PHP_AUTH_PW"); ok && u.user != "" {
		u.password, u.hasPassword = pw, true
	}
	if host == "" {
		u.user, u.password, u.hasPassword, u.port = "", "", false, 0
	}
	for _, opt := range opts {
		opt(u)
	}
	return u.normalize(), nil
}
