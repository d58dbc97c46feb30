// Package form decodes application/x-www-form-urlencoded data with
// bracket nesting: "a[]=1&a[]=2&b[c]=3" decodes to
// {"a": ["1", "2"], "b": {"c": "3"}}.
//
// Values are always strings. A repeated plain key keeps the last value.
// A container whose keys are exactly 0..n-1 in insertion order becomes a
// []any, every other container a map[string]any. The top level is always a
// map.
package form

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shapestone/shape-message/pkg/uri"
)

// Decode parses s. Pairs are separated by '&'; a pair without '=' has an
// empty value; pairs with an empty name are dropped. Malformed percent
// escapes are kept literally.
func Decode(s string) map[string]any {
	root := newNode()
	pairs := lo.Filter(strings.Split(s, "&"), func(p string, _ int) bool { return p != "" })
	for _, pair := range pairs {
		k, v, _ := strings.Cut(pair, "=")
		path := splitKey(unescape(k))
		if len(path) == 0 || path[0] == "" {
			continue
		}
		root.set(path, unescape(v))
	}
	return root.toMap()
}

func unescape(s string) string {
	return uri.Decode(strings.ReplaceAll(s, "+", " "))
}

// splitKey turns "a[b][]" into ["a", "b", ""]. A key whose first bracket
// never closes is used as a plain name. Anything after the last complete
// bracket pair is ignored. A key starting with a bracket has an empty name.
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.Contains(key[open:], "]") {
		return []string{key}
	}
	path := []string{key[:open]}
	rest := key[open:]
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path
}

// node is an insertion-ordered container. next is the index the next
// "[]" append receives.
type node struct {
	keys []string
	vals map[string]any
	next int
}

func newNode() *node {
	return &node{vals: map[string]any{}}
}

func (n *node) put(key string, v any) {
	if _, ok := n.vals[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.vals[key] = v
	if i, err := strconv.Atoi(key); err == nil && i >= n.next {
		n.next = i + 1
	}
}

func (n *node) set(path []string, v string) {
	seg := path[0]
	if seg == "" {
		seg = strconv.Itoa(n.next)
	}
	if len(path) == 1 {
		n.put(seg, v)
		return
	}
	child, ok := n.vals[seg].(*node)
	if !ok {
		child = newNode()
		n.put(seg, child)
	}
	child.set(path[1:], v)
}

func (n *node) isList() bool {
	for i, k := range n.keys {
		if k != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func (n *node) toMap() map[string]any {
	return lo.SliceToMap(n.keys, func(k string) (string, any) {
		return k, export(n.vals[k])
	})
}

func export(v any) any {
	child, ok := v.(*node)
	if !ok {
		return v
	}
	if child.isList() {
		return lo.Map(child.keys, func(k string, _ int) any { return export(child.vals[k]) })
	}
	return child.toMap()
}
