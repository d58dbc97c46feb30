package wire

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/shapestone/shape-message/internal/parser"
	"github.com/shapestone/shape-message/pkg/failure"
	"github.com/shapestone/shape-message/pkg/message"
)

// Parse scans input into an AST ObjectNode.
//
// For requests:
//
//	{ "type": "request", "method": "GET", "target": "/api",
//	  "version": "1.1",
//	  "headers": [{"name": "Host", "value": "example.com"}, ...],
//	  "body": "..." }
//
// For responses:
//
//	{ "type": "response", "version": "1.1", "statusCode": 200,
//	  "reason": "OK",
//	  "headers": [{"name": "Content-Type", "value": "text/plain"}, ...],
//	  "body": "..." }
func Parse(input string, opts ...Option) (ast.SchemaNode, error) {
	return parser.NewParser([]byte(input), newOptions(opts).limits).Parse()
}

// ParseReader reads r to the end and parses the data like Parse.
func ParseReader(r io.Reader, opts ...Option) (ast.SchemaNode, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	return parser.NewParser(data, newOptions(opts).limits).Parse()
}

// ToNode returns the AST of a message value.
func ToNode(v any, opts ...Option) (ast.SchemaNode, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return parser.NewParser(data, newOptions(opts).limits).Parse()
}

// FromNode converts a node produced by Parse or ToNode into a message value.
func FromNode(node ast.SchemaNode, opts ...Option) (message.Marshaler, error) {
	o := newOptions(opts)
	kind, err := parser.Kind(node)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "request":
		req, err := parser.NodeToRequest(node)
		if err != nil {
			return nil, err
		}
		return o.request(req)
	case "response":
		resp, err := parser.NodeToResponse(node)
		if err != nil {
			return nil, err
		}
		return o.response(resp)
	}
	return nil, failure.InvalidArgument("wire: unknown message type %q", kind)
}

// Render converts a node produced by Parse or ToNode back to wire format.
func Render(node ast.SchemaNode) ([]byte, error) {
	v, err := FromNode(node)
	if err != nil {
		return nil, errors.Wrap(err, "wire: render")
	}
	return Marshal(v)
}

// NodeToInterface converts an AST node to plain Go values: literals stay
// as they are, arrays become []any and objects map[string]any.
func NodeToInterface(node ast.SchemaNode) any {
	switch n := node.(type) {
	case *ast.LiteralNode:
		return n.Value()
	case *ast.ArrayDataNode:
		elements := n.Elements()
		arr := make([]any, len(elements))
		for i, elem := range elements {
			arr[i] = NodeToInterface(elem)
		}
		return arr
	case *ast.ObjectNode:
		props := n.Properties()
		m := make(map[string]any, len(props))
		for k, v := range props {
			m[k] = NodeToInterface(v)
		}
		return m
	}
	return nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, failure.Kind(errors.Wrap(err, "wire: read"), failure.ErrOperation)
	}
	return data, nil
}
