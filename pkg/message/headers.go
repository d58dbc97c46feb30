package message

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Field is one header: the retained name spelling and its values in order.
type Field struct {
	Name   string
	Values []string
}

// Headers is an ordered, case-insensitive header multimap. Keys are
// normalized (see NormalizeKey), so "Content-Type", "content_type" and
// "HTTP_CONTENT_TYPE" address the same entry. Each entry keeps exactly one
// name spelling.
//
// Headers values are immutable: With, Added and Without return new values.
// The zero value is an empty table.
type Headers struct {
	keys   []string
	fields map[string]Field
}

// NewHeaders returns an empty table.
func NewHeaders() Headers {
	return Headers{}
}

// HeadersFrom builds a table from m, adding names in sorted order.
func HeadersFrom(m map[string][]string) Headers {
	names := lo.Keys(m)
	slices.Sort(names)
	h := Headers{}
	for _, name := range names {
		h = h.Added(name, m[name]...)
	}
	return h
}

// NormalizeKey lowercases name, maps '_' to '-' and strips a leading
// "http-".
func NormalizeKey(name string) string {
	key := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	return strings.TrimPrefix(key, "http-")
}

// trimOWS strips SP and HTAB only.
func trimOWS(v string) string {
	return strings.Trim(v, " \t")
}

// Len returns the number of entries.
func (h Headers) Len() int { return len(h.keys) }

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.fields[NormalizeKey(name)]
	return ok
}

// Get returns the values of name, or an empty slice.
func (h Headers) Get(name string) []string {
	f, ok := h.fields[NormalizeKey(name)]
	if !ok {
		return []string{}
	}
	return slices.Clone(f.Values)
}

// Line returns the values of name joined with ", ".
func (h Headers) Line(name string) string {
	return strings.Join(h.fields[NormalizeKey(name)].Values, ", ")
}

// Name returns the retained spelling of name.
func (h Headers) Name(name string) (string, bool) {
	f, ok := h.fields[NormalizeKey(name)]
	return f.Name, ok
}

// All returns every entry in insertion order.
func (h Headers) All() []Field {
	return lo.Map(h.keys, func(k string, _ int) Field {
		f := h.fields[k]
		return Field{Name: f.Name, Values: slices.Clone(f.Values)}
	})
}

// Map returns the entries keyed by their retained spelling.
func (h Headers) Map() map[string][]string {
	return lo.SliceToMap(h.keys, func(k string) (string, []string) {
		f := h.fields[k]
		return f.Name, slices.Clone(f.Values)
	})
}

func (h Headers) clone() Headers {
	return Headers{
		keys:   slices.Clone(h.keys),
		fields: lo.Assign(h.fields),
	}
}

func (h Headers) put(name string, values []string) Headers {
	c := h.clone()
	key := NormalizeKey(name)
	if _, ok := c.fields[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.fields[key] = Field{Name: name, Values: lo.Map(values, func(v string, _ int) string { return trimOWS(v) })}
	return c
}

// With returns a table where name holds exactly values. The entry keeps its
// position and takes the spelling of name. With no values it is Without.
func (h Headers) With(name string, values ...string) Headers {
	if len(values) == 0 {
		return h.Without(name)
	}
	return h.put(name, values)
}

// Added returns a table with values appended to name. An existing entry
// keeps its spelling; otherwise Added behaves like With. With no values the
// table is returned unchanged.
func (h Headers) Added(name string, values ...string) Headers {
	if len(values) == 0 {
		return h
	}
	f, ok := h.fields[NormalizeKey(name)]
	if !ok {
		return h.put(name, values)
	}
	return h.put(f.Name, append(slices.Clone(f.Values), values...))
}

// Without returns a table without name. A missing name leaves the table
// unchanged.
func (h Headers) Without(name string) Headers {
	key := NormalizeKey(name)
	if _, ok := h.fields[key]; !ok {
		return h
	}
	c := h.clone()
	delete(c.fields, key)
	c.keys = slices.DeleteFunc(c.keys, func(k string) bool { return k == key })
	return c
}
