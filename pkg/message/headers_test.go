package message_test

import (
	"testing"

	"github.com/shapestone/shape-message/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Content-Type", "content-type"},
		{"CONTENT_TYPE", "content-type"},
		{"HTTP_USER_AGENT", "user-agent"},
		{"Http-Accept", "accept"},
		{"X-Http-Thing", "x-http-thing"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, message.NormalizeKey(tt.in), tt.in)
	}
}

func TestHeaders_CaseInsensitiveGet(t *testing.T) {
	h := message.NewHeaders().With("Content-Type", "text/html")

	assert.Equal(t, []string{"text/html"}, h.Get("Content-Type"))
	assert.Equal(t, h.Get("Content-Type"), h.Get("content-type"))
	assert.Equal(t, h.Get("Content-Type"), h.Get("CONTENT-TYPE"))
	assert.Equal(t, h.Get("Content-Type"), h.Get("content_type"))
	assert.True(t, h.Has("CONTENT-type"))
}

func TestHeaders_GetMissing(t *testing.T) {
	h := message.NewHeaders()
	got := h.Get("X-Missing")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, "", h.Line("X-Missing"))
	assert.False(t, h.Has("X-Missing"))
}

func TestHeaders_Line(t *testing.T) {
	h := message.NewHeaders().With("Accept", "a", "b")
	assert.Equal(t, "a, b", h.Line("accept"))
}

func TestHeaders_TrimsOWSOnly(t *testing.T) {
	h := message.NewHeaders().With("X-Val", " \t padded \t", "\nkeep\n")
	assert.Equal(t, []string{"padded", "\nkeep\n"}, h.Get("X-Val"))
}

func TestHeaders_WithReplacesAndRespells(t *testing.T) {
	h := message.NewHeaders().
		With("X-Foo", "1").
		With("Accept", "x").
		With("x-foo", "2", "3")

	all := h.All()
	require.Len(t, all, 2)
	assert.Equal(t, message.Field{Name: "x-foo", Values: []string{"2", "3"}}, all[0])
	assert.Equal(t, "Accept", all[1].Name)
}

func TestHeaders_AddedKeepsSpelling(t *testing.T) {
	h := message.NewHeaders().
		With("X-Foo", "1").
		Added("X-FOO", "2").
		Added("X-Bar", "3")

	name, ok := h.Name("x-foo")
	require.True(t, ok)
	assert.Equal(t, "X-Foo", name)
	assert.Equal(t, []string{"1", "2"}, h.Get("x-foo"))
	assert.Equal(t, []string{"3"}, h.Get("x-bar"))
	assert.Equal(t, 2, h.Len())
}

func TestHeaders_Without(t *testing.T) {
	h := message.NewHeaders().With("A", "1").With("B", "2").With("C", "3")

	w := h.Without("b")
	assert.False(t, w.Has("B"))
	assert.Equal(t, []string{"A", "C"}, []string{w.All()[0].Name, w.All()[1].Name})
	assert.True(t, h.Has("B"))

	assert.Equal(t, h, h.Without("missing"))
}

func TestHeaders_Immutable(t *testing.T) {
	h := message.NewHeaders().With("X-A", "1")
	before := h.All()

	_ = h.With("X-A", "2")
	_ = h.Added("X-A", "3")
	_ = h.Added("X-B", "4")
	_ = h.Without("X-A")

	assert.Equal(t, before, h.All())
}

func TestHeaders_ReturnedSlicesAreCopies(t *testing.T) {
	h := message.NewHeaders().With("X-A", "1")
	got := h.Get("X-A")
	got[0] = "changed"
	h.All()[0].Values[0] = "changed"
	h.Map()["X-A"][0] = "changed"
	assert.Equal(t, []string{"1"}, h.Get("X-A"))
}

func TestHeadersFrom(t *testing.T) {
	h := message.HeadersFrom(map[string][]string{
		"b-header": {"2"},
		"A-Header": {"1"},
	})
	all := h.All()
	require.Len(t, all, 2)
	assert.Equal(t, "A-Header", all[0].Name)
	assert.Equal(t, "b-header", all[1].Name)
	assert.Equal(t, map[string][]string{"A-Header": {"1"}, "b-header": {"2"}}, h.Map())
}

func TestHeaders_NoValues(t *testing.T) {
	h := message.NewHeaders().With("Accept", "text/html")

	gone := h.With("accept")
	assert.False(t, gone.Has("Accept"))
	assert.Equal(t, 0, gone.Len())

	assert.False(t, message.NewHeaders().With("X-Empty").Has("X-Empty"))

	same := h.Added("Accept")
	assert.Equal(t, []string{"text/html"}, same.Get("Accept"))
	assert.False(t, h.Added("X-Empty").Has("X-Empty"))

	blank := h.With("X-Blank", "")
	assert.True(t, blank.Has("X-Blank"))
	assert.Equal(t, "", blank.Line("X-Blank"))
}
