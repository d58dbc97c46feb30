package message_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-message/pkg/environment"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/message"
	"github.com/shapestone/shape-message/pkg/stream"
	"github.com/shapestone/shape-message/pkg/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRequest(t *testing.T, method, rawURI string, p message.RequestParams) *message.Request {
	t.Helper()
	r, err := message.NewRequestFromString(method, rawURI, p)
	require.NoError(t, err)
	return r
}

func withBody(t *testing.T, contentType, body string) *message.Request {
	t.Helper()
	s := stream.NewString(body)
	t.Cleanup(func() { _ = s.Close() })
	return newRequest(t, "POST", "http://example.com/submit", message.RequestParams{
		Headers: message.NewHeaders().With("Content-Type", contentType),
		Body:    s,
	})
}

func TestNewRequest(t *testing.T) {
	r := newRequest(t, "post", "https://Example.com:8443/a/b?x=1", message.RequestParams{})

	assert.Equal(t, "POST", r.Method())
	assert.Equal(t, "1.1", r.ProtocolVersion())
	assert.Equal(t, "https://example.com:8443/a/b?x=1", r.URI().String())
	assert.Equal(t, "example.com:8443", r.HeaderLine("Host"))
	assert.Equal(t, "/a/b?x=1", r.RequestTarget())
	require.NotNil(t, r.Body())
	assert.Equal(t, "", r.Body().String())
}

func TestNewRequest_Invalid(t *testing.T) {
	_, err := message.NewRequestFromString("GET", "", message.RequestParams{})
	assert.True(t, failure.IsInvalidArgument(err))

	_, err = message.NewRequestFromString("GET", "http://host:99999/", message.RequestParams{})
	assert.True(t, failure.IsInvalidArgument(err))

	_, err = message.NewRequest("GET", nil, message.RequestParams{})
	assert.True(t, failure.IsInvalidArgument(err))

	for _, m := range []string{"", "GE T", "GET\n", "G(ET)"} {
		_, err = message.NewRequestFromString(m, "http://example.com/", message.RequestParams{})
		assert.True(t, failure.IsInvalidArgument(err), "method %q", m)
	}
}

func TestNewRequest_ProtocolFromServerParams(t *testing.T) {
	r := newRequest(t, "GET", "http://example.com/", message.RequestParams{
		ServerParams: environment.Snapshot{"SERVER_PROTOCOL": "HTTP/2.0"},
	})
	assert.Equal(t, "2.0", r.ProtocolVersion())

	_, err := message.NewRequestFromString("GET", "http://example.com/", message.RequestParams{
		ServerParams: environment.Snapshot{"SERVER_PROTOCOL": "HTTP/0.9"},
	})
	assert.True(t, failure.IsInvalidArgument(err))
}

func TestNewRequest_HostSeeding(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		headers message.Headers
		want    string
	}{
		{"absent", "http://a.example/", message.NewHeaders(), "a.example"},
		{"uri host wins", "http://a.example/", message.NewHeaders().With("Host", "b.example"), "a.example"},
		{"kept when uri has no host", "/path", message.NewHeaders().With("Host", "b.example"), "b.example"},
		{"empty when both missing", "/path", message.NewHeaders(), ""},
		{"port", "http://a.example:8080/", message.NewHeaders(), "a.example:8080"},
		{"default port elided", "http://a.example:80/", message.NewHeaders(), "a.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRequest(t, "GET", tt.uri, message.RequestParams{Headers: tt.headers})
			assert.True(t, r.HasHeader("Host"))
			assert.Equal(t, tt.want, r.HeaderLine("Host"))
		})
	}
}

func TestNewRequestFromEnvironment(t *testing.T) {
	env := environment.Mock(map[string]string{
		"REQUEST_METHOD":  "PUT",
		"REQUEST_URI":     "/items/7?full=1",
		"QUERY_STRING":    "full=1",
		"HTTP_HOST":       "api.example:8080",
		"CONTENT_TYPE":    "application/json",
		"SERVER_PROTOCOL": "HTTP/1.0",
	})
	body := stream.NewString(`{"name":"seven"}`)
	defer body.Close()

	r, err := message.NewRequestFromEnvironment(env, message.RequestParams{Body: body})
	require.NoError(t, err)

	assert.Equal(t, "PUT", r.Method())
	assert.Equal(t, "1.0", r.ProtocolVersion())
	assert.Equal(t, "http://api.example:8080/items/7?full=1", r.URI().String())
	assert.Equal(t, "api.example:8080", r.HeaderLine("Host"))
	assert.Equal(t, "application/json", r.HeaderLine("Content-Type"))
	assert.Equal(t, "Shape Message", r.HeaderLine("User-Agent"))
	assert.Equal(t, "127.0.0.1", r.ServerParam("REMOTE_ADDR", ""))
	assert.Equal(t, map[string]any{"full": "1"}, r.QueryParams())

	parsed, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "seven"}, parsed)
}

func TestRequest_WithMethod(t *testing.T) {
	r := newRequest(t, "GET", "http://example.com/", message.RequestParams{})

	p, err := r.WithMethod("patch")
	require.NoError(t, err)
	assert.Equal(t, "PATCH", p.Method())
	assert.True(t, p.IsMethod("Patch"))
	assert.Equal(t, "GET", r.Method())

	_, err = r.WithMethod("BAD METHOD")
	assert.True(t, failure.IsInvalidArgument(err))
}

func TestRequest_RequestTarget(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"http://example.com", "/"},
		{"http://example.com/", "/"},
		{"http://example.com/a b", "/a%20b"},
		{"http://example.com/p?q=1", "/p?q=1"},
		{"http://example.com/p?", "/p"},
		{"relative/path", "/relative/path"},
	}
	for _, tt := range tests {
		r := newRequest(t, "GET", tt.uri, message.RequestParams{})
		assert.Equal(t, tt.want, r.RequestTarget(), tt.uri)
	}
}

func TestRequest_WithRequestTarget(t *testing.T) {
	r := newRequest(t, "OPTIONS", "http://example.com/x", message.RequestParams{})

	o, err := r.WithRequestTarget("*")
	require.NoError(t, err)
	assert.Equal(t, "*", o.RequestTarget())
	assert.Equal(t, "/x", r.RequestTarget())

	for _, bad := range []string{"/a b", "/a\tb", "/a\nb"} {
		_, err := r.WithRequestTarget(bad)
		assert.True(t, failure.IsInvalidArgument(err), bad)
	}
}

func TestRequest_WithURI(t *testing.T) {
	r := newRequest(t, "GET", "http://old.example/a?x=1", message.RequestParams{})
	_ = r.QueryParams()
	_ = r.RequestTarget()

	u := uri.MustParse("http://new.example:8080/b?y=2")
	n, err := r.WithURI(u, false)
	require.NoError(t, err)
	assert.Equal(t, "new.example:8080", n.HeaderLine("Host"))
	assert.Equal(t, "/b?y=2", n.RequestTarget())
	assert.Equal(t, map[string]any{"y": "2"}, n.QueryParams())

	assert.Equal(t, "old.example", r.HeaderLine("Host"))
	assert.Equal(t, "/a?x=1", r.RequestTarget())

	kept, err := r.WithURI(u, true)
	require.NoError(t, err)
	assert.Equal(t, "old.example", kept.HeaderLine("Host"))

	filled, err := r.WithHeader("Host", "").WithURI(u, true)
	require.NoError(t, err)
	assert.Equal(t, "new.example:8080", filled.HeaderLine("Host"))

	noHost, err := r.WithURI(uri.MustParse("/only/path"), false)
	require.NoError(t, err)
	assert.Equal(t, "old.example", noHost.HeaderLine("Host"))

	_, err = r.WithURI(nil, false)
	assert.True(t, failure.IsInvalidArgument(err))
}

func TestRequest_QueryParams(t *testing.T) {
	r := newRequest(t, "GET", "http://example.com/?a=1&b[]=2&b[]=3", message.RequestParams{})
	assert.Equal(t, map[string]any{"a": "1", "b": []any{"2", "3"}}, r.QueryParams())

	q := r.QueryParams()
	q["a"] = "changed"
	assert.Equal(t, "1", r.QueryParams()["a"])

	o := r.WithQueryParams(map[string]any{"z": "9"})
	assert.Equal(t, map[string]any{"z": "9"}, o.QueryParams())
	assert.Equal(t, "1", r.QueryParams()["a"])

	moved, err := o.WithURI(uri.MustParse("http://example.com/?other=1"), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"z": "9"}, moved.QueryParams())
}

func TestRequest_Attributes(t *testing.T) {
	r := newRequest(t, "GET", "http://example.com/", message.RequestParams{
		Attributes: map[string]any{"route": "home"},
	})

	a := r.WithAttribute("user", 42)
	assert.Equal(t, 42, a.Attribute("user", nil))
	assert.Equal(t, "home", a.Attribute("route", nil))
	assert.Equal(t, "fallback", r.Attribute("user", "fallback"))

	w := a.WithoutAttribute("route")
	assert.Equal(t, map[string]any{"user": 42}, w.Attributes())
	assert.Equal(t, map[string]any{"route": "home", "user": 42}, a.Attributes())

	all := r.WithAttributes(map[string]any{"only": true})
	assert.Equal(t, map[string]any{"only": true}, all.Attributes())

	attrs := r.Attributes()
	attrs["route"] = "changed"
	assert.Equal(t, "home", r.Attribute("route", nil))
}

func TestRequest_Cookies(t *testing.T) {
	r := newRequest(t, "GET", "http://example.com/", message.RequestParams{
		Cookies: map[string]string{"session": "abc"},
	})
	assert.Equal(t, "abc", r.CookieParam("session", ""))
	assert.Equal(t, "none", r.CookieParam("missing", "none"))

	c := r.WithCookieParams(map[string]string{"theme": "dark"})
	assert.Equal(t, map[string]string{"theme": "dark"}, c.CookieParams())
	assert.Equal(t, map[string]string{"session": "abc"}, r.CookieParams())
}

func TestRequest_ServerParams(t *testing.T) {
	env := environment.Snapshot{"REMOTE_ADDR": "10.0.0.1"}
	r := newRequest(t, "GET", "http://example.com/", message.RequestParams{ServerParams: env})

	env["REMOTE_ADDR"] = "changed"
	assert.Equal(t, "10.0.0.1", r.ServerParam("REMOTE_ADDR", ""))
	assert.Equal(t, "def", r.ServerParam("MISSING", "def"))

	sp := r.ServerParams()
	sp["REMOTE_ADDR"] = "changed"
	assert.Equal(t, "10.0.0.1", r.ServerParams()["REMOTE_ADDR"])
}

func TestRequest_ContentHeaders(t *testing.T) {
	r := newRequest(t, "POST", "http://example.com/", message.RequestParams{
		Headers: message.NewHeaders().
			With("Content-Type", `Text/HTML; Charset="utf-8"; level=1`).
			With("Content-Length", "42").
			With("X-Requested-With", "XMLHttpRequest"),
	})

	assert.Equal(t, `Text/HTML; Charset="utf-8"; level=1`, r.ContentType())
	assert.Equal(t, "text/html", r.MediaType())
	assert.Equal(t, map[string]string{"charset": "utf-8", "level": "1"}, r.MediaTypeParams())
	assert.Equal(t, "utf-8", r.ContentCharset())
	n, ok := r.ContentLength()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)
	assert.True(t, r.IsXHR())

	bare := newRequest(t, "GET", "http://example.com/", message.RequestParams{})
	assert.Equal(t, "", bare.ContentType())
	assert.Equal(t, "", bare.MediaType())
	assert.Empty(t, bare.MediaTypeParams())
	assert.Equal(t, "", bare.ContentCharset())
	_, ok = bare.ContentLength()
	assert.False(t, ok)
	assert.False(t, bare.IsXHR())

	bad := bare.WithHeader("Content-Length", "-1")
	_, ok = bad.ContentLength()
	assert.False(t, ok)
}

func TestRequest_ParsedBody_Form(t *testing.T) {
	r := withBody(t, "application/x-www-form-urlencoded", "a=1&b=2")
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "2"}, got)
}

func TestRequest_ParsedBody_JSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"object", `{"a":1,"b":[true,null]}`, map[string]interface{}{"a": float64(1), "b": []interface{}{true, nil}}},
		{"array", `[1,"x"]`, []interface{}{float64(1), "x"}},
		{"scalar", `"just a string"`, nil},
		{"invalid", `{"a":`, nil},
		{"empty", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := withBody(t, "application/json; charset=utf-8", tt.body)
			got, err := r.ParsedBody()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_ParsedBody_SuffixUsesJSONParser(t *testing.T) {
	r := withBody(t, "application/vnd.api+json", `{"data":{"id":"1"}}`)
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"data": map[string]interface{}{"id": "1"}}, got)
}

func TestRequest_ParsedBody_SuffixUsesRegisteredParser(t *testing.T) {
	var calls int
	r := withBody(t, "application/problem+json", "raw").
		WithMediaTypeParser("application/json", func(body string) (any, error) {
			calls++
			return map[string]any{"raw": body}, nil
		})

	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"raw": "raw"}, got)

	_, err = r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRequest_ParsedBody_XML(t *testing.T) {
	for _, ct := range []string{"application/xml", "text/xml", "application/atom+xml"} {
		t.Run(ct, func(t *testing.T) {
			r := withBody(t, ct, `<root id="7"><name>shape</name></root>`)
			got, err := r.ParsedBody()
			require.NoError(t, err)

			node, ok := got.(*message.XMLNode)
			require.True(t, ok, "got %T", got)
			assert.Equal(t, "root", node.XMLName.Local)
			require.Len(t, node.Attrs, 1)
			assert.Equal(t, "7", node.Attrs[0].Value)
			name, ok := node.Child("name")
			require.True(t, ok)
			assert.Equal(t, "shape", name.Text)
			_, ok = node.Child("missing")
			assert.False(t, ok)
		})
	}
}

func TestRequest_ParsedBody_InvalidXML(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := stream.NewString("<root><unclosed></root>")
	defer s.Close()
	r := newRequest(t, "POST", "http://example.com/", message.RequestParams{
		Headers: message.NewHeaders().With("Content-Type", "text/xml"),
		Body:    s,
		Logger:  zap.New(core),
	})

	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, logs.FilterMessage("ignoring invalid XML body").Len())
}

func TestRequest_ParsedBody_XMLIgnoresExternalEntities(t *testing.T) {
	body := `<?xml version="1.0"?>
<!DOCTYPE r [<!ENTITY x SYSTEM "file:///etc/passwd">]>
<r>&x;</r>`
	r := withBody(t, "application/xml", body)
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequest_ParsedBody_NoParser(t *testing.T) {
	r := withBody(t, "text/plain", "hello")
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)

	none := newRequest(t, "GET", "http://example.com/", message.RequestParams{})
	got, err = none.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequest_ParsedBody_ExactKeyOnly(t *testing.T) {
	r := withBody(t, "text/csv", "a,b").
		WithMediaTypeParser("text/*", func(string) (any, error) { return map[string]any{}, nil })
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequest_ParsedBody_ParserContract(t *testing.T) {
	r := withBody(t, "text/plain", "hello").
		WithMediaTypeParser("text/plain", func(body string) (any, error) { return body, nil })

	_, err := r.ParsedBody()
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrParserContract))
	assert.True(t, failure.IsOperation(err))
	assert.False(t, failure.IsInvalidArgument(err))
}

func TestRequest_ParsedBody_ParserError(t *testing.T) {
	boom := errors.New("boom")
	r := withBody(t, "text/plain", "hello").
		WithMediaTypeParser("text/plain", func(string) (any, error) { return nil, boom })

	_, err := r.ParsedBody()
	assert.True(t, errors.Is(err, boom))
	assert.True(t, failure.IsOperation(err))
}

func TestRequest_ParsedBody_AllowedShapes(t *testing.T) {
	type payload struct{ Name string }
	for _, v := range []any{nil, map[string]any{}, []any{}, payload{}, &payload{}} {
		r := withBody(t, "text/plain", "x").
			WithMediaTypeParser("text/plain", func(string) (any, error) { return v, nil })
		got, err := r.ParsedBody()
		require.NoError(t, err, "%T", v)
		assert.Equal(t, v, got)
	}
}

func TestRequest_WithParsedBody(t *testing.T) {
	r := withBody(t, "application/x-www-form-urlencoded", "a=1")

	e, err := r.WithParsedBody(map[string]any{"explicit": true})
	require.NoError(t, err)
	got, err := e.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"explicit": true}, got)

	// The explicit value survives further derivation.
	d := e.WithHeader("Content-Type", "application/json").WithAttribute("k", "v")
	got, err = d.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"explicit": true}, got)

	n, err := r.WithParsedBody(nil)
	require.NoError(t, err)
	got, err = n.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []any{"string", 42, true, new(int)} {
		_, err := r.WithParsedBody(bad)
		assert.True(t, failure.IsInvalidArgument(err), "%T", bad)
	}

	got, err = r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1"}, got)
}

func TestRequest_ParsedBody_FollowsHeaderChange(t *testing.T) {
	r := withBody(t, "text/plain", "a=1")
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)

	f := r.WithHeader("Content-Type", "application/x-www-form-urlencoded")
	got, err = f.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1"}, got)
}

func TestRequest_ParsedBody_Concurrent(t *testing.T) {
	r := withBody(t, "application/x-www-form-urlencoded", "a=1")

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.ParsedBody()
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, map[string]any{"a": "1"}, got)
	}
}

func TestRequest_ParsedBody_DerivedValuesConcurrent(t *testing.T) {
	base := withBody(t, "application/x-www-form-urlencoded", "a=1&b[]=2")
	values := []*message.Request{base}
	for i := 0; i < 7; i++ {
		values = append(values, base.WithHeader("X-N", strconv.Itoa(i)))
	}

	var wg sync.WaitGroup
	results := make([]any, len(values))
	for i, r := range values {
		wg.Add(1)
		go func(i int, r *message.Request) {
			defer wg.Done()
			results[i], _ = r.ParsedBody()
		}(i, r)
	}
	wg.Wait()
	for i, got := range results {
		assert.Equal(t, map[string]any{"a": "1", "b": []any{"2"}}, got, "value %d", i)
	}
}

func TestRequest_MediaTypeFromTokenizer(t *testing.T) {
	r := withBody(t, ` Application/Problem+JSON ; charset=utf-8`, `{"title":"nope"}`)
	assert.Equal(t, "application/problem+json", r.MediaType())
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "nope"}, got)

	malformed := withBody(t, "json", `{"a":1}`)
	assert.Equal(t, "", malformed.MediaType())
	got, err = malformed.ParsedBody()
	require.NoError(t, err)
	assert.Nil(t, got)
}

// A suffix always selects application/<suffix>, even when a parser is
// registered for the full media type.
func TestRequest_ParsedBody_SuffixWinsOverExactRegistration(t *testing.T) {
	r := withBody(t, "application/vnd.api+json", `{"id":"1"}`).
		WithMediaTypeParser("application/vnd.api+json", func(string) (any, error) {
			return map[string]any{"exact": true}, nil
		})
	got, err := r.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "1"}, got)
}

func TestRequest_Params(t *testing.T) {
	s := stream.NewString("a=body&b=body")
	defer s.Close()
	r := newRequest(t, "POST", "http://example.com/?a=query&c=query", message.RequestParams{
		Headers: message.NewHeaders().With("Content-Type", "application/x-www-form-urlencoded"),
		Body:    s,
	})

	assert.Equal(t, "body", r.Param("a", nil))
	assert.Equal(t, "query", r.Param("c", nil))
	assert.Equal(t, "def", r.Param("z", "def"))
	assert.Equal(t, map[string]any{"a": "body", "b": "body", "c": "query"}, r.Params())
}

func TestRequest_WithProtocolVersion(t *testing.T) {
	r := newRequest(t, "GET", "http://example.com/", message.RequestParams{})
	v2, err := r.WithProtocolVersion("2")
	require.NoError(t, err)
	assert.Equal(t, "2", v2.ProtocolVersion())
	assert.Equal(t, "1.1", r.ProtocolVersion())

	_, err = r.WithProtocolVersion("1.2")
	assert.True(t, failure.IsInvalidArgument(err))
}

func TestRequest_WithBody(t *testing.T) {
	r := withBody(t, "application/x-www-form-urlencoded", "a=1")
	_, err := r.ParsedBody()
	require.NoError(t, err)

	s := stream.NewString("b=2")
	defer s.Close()
	b := r.WithBody(s)
	got, err := b.ParsedBody()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": "2"}, got)
	assert.NotSame(t, r.Body(), b.Body())
}
