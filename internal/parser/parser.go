// Package parser maps scanned HTTP/1.1 messages to shape-core AST nodes and
// back.
//
// Request:
//
//	{ "type": "request", "method": "POST", "target": "/api",
//	  "version": "1.1",
//	  "headers": [{"name": "Host", "value": "example.com"}, ...],
//	  "body": "..." }
//
// Response:
//
//	{ "type": "response", "version": "1.1", "statusCode": 200,
//	  "reason": "OK",
//	  "headers": [{"name": "Content-Type", "value": "text/plain"}, ...],
//	  "body": "..." }
//
// "body" is present only when the message has one.
package parser

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/shapestone/shape-message/internal/fastparser"
	"github.com/shapestone/shape-message/pkg/failure"
)

var zeroPos = ast.Position{}

// Parser produces AST nodes from wire data.
type Parser struct {
	data   []byte
	limits fastparser.Limits
}

// NewParser returns a parser over data.
func NewParser(data []byte, limits fastparser.Limits) *Parser {
	return &Parser{data: data, limits: limits}
}

// Parse scans the message and returns its ObjectNode.
func (p *Parser) Parse() (ast.SchemaNode, error) {
	if fastparser.IsResponse(p.data) {
		resp, err := fastparser.UnmarshalResponse(p.data, p.limits)
		if err != nil {
			return nil, err
		}
		return ResponseToNode(resp), nil
	}
	req, err := fastparser.UnmarshalRequest(p.data, p.limits)
	if err != nil {
		return nil, err
	}
	return RequestToNode(req), nil
}

// RequestToNode converts a scanned request to an ObjectNode.
func RequestToNode(req *fastparser.Request) ast.SchemaNode {
	props := map[string]ast.SchemaNode{
		"type":    ast.NewLiteralNode("request", zeroPos),
		"method":  ast.NewLiteralNode(req.Method, zeroPos),
		"target":  ast.NewLiteralNode(req.Target, zeroPos),
		"version": ast.NewLiteralNode(req.Version, zeroPos),
		"headers": fieldsToNode(req.Fields),
	}
	if len(req.Body) > 0 {
		props["body"] = ast.NewLiteralNode(string(req.Body), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}

// ResponseToNode converts a scanned response to an ObjectNode.
func ResponseToNode(resp *fastparser.Response) ast.SchemaNode {
	props := map[string]ast.SchemaNode{
		"type":       ast.NewLiteralNode("response", zeroPos),
		"version":    ast.NewLiteralNode(resp.Version, zeroPos),
		"statusCode": ast.NewLiteralNode(int64(resp.StatusCode), zeroPos),
		"reason":     ast.NewLiteralNode(resp.Reason, zeroPos),
		"headers":    fieldsToNode(resp.Fields),
	}
	if len(resp.Body) > 0 {
		props["body"] = ast.NewLiteralNode(string(resp.Body), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}

func fieldsToNode(fields []fastparser.Field) ast.SchemaNode {
	elements := make([]ast.SchemaNode, len(fields))
	for i, f := range fields {
		elements[i] = ast.NewObjectNode(map[string]ast.SchemaNode{
			"name":  ast.NewLiteralNode(f.Name, zeroPos),
			"value": ast.NewLiteralNode(f.Value, zeroPos),
		}, zeroPos)
	}
	return ast.NewArrayDataNode(elements, zeroPos)
}

// Kind returns the "type" property of a message node.
func Kind(node ast.SchemaNode) (string, error) {
	obj, err := object(node)
	if err != nil {
		return "", err
	}
	kind, ok := stringProp(obj.Properties(), "type")
	if !ok {
		return "", invalid("missing \"type\" property")
	}
	return kind, nil
}

// NodeToRequest converts an ObjectNode back to a scanned request.
func NodeToRequest(node ast.SchemaNode) (*fastparser.Request, error) {
	obj, err := object(node)
	if err != nil {
		return nil, err
	}
	props := obj.Properties()
	req := &fastparser.Request{}
	req.Method, _ = stringProp(props, "method")
	req.Target, _ = stringProp(props, "target")
	req.Version, _ = stringProp(props, "version")
	if body, ok := stringProp(props, "body"); ok {
		req.Body = []byte(body)
	}
	if req.Fields, err = nodeToFields(props["headers"]); err != nil {
		return nil, err
	}
	return req, nil
}

// NodeToResponse converts an ObjectNode back to a scanned response.
func NodeToResponse(node ast.SchemaNode) (*fastparser.Response, error) {
	obj, err := object(node)
	if err != nil {
		return nil, err
	}
	props := obj.Properties()
	resp := &fastparser.Response{}
	resp.Version, _ = stringProp(props, "version")
	resp.Reason, _ = stringProp(props, "reason")
	if lit, ok := props["statusCode"].(*ast.LiteralNode); ok {
		switch code := lit.Value().(type) {
		case int64:
			resp.StatusCode = int(code)
		case int:
			resp.StatusCode = code
		case float64:
			resp.StatusCode = int(code)
		case string:
			resp.StatusCode, _ = strconv.Atoi(code)
		}
	}
	if body, ok := stringProp(props, "body"); ok {
		resp.Body = []byte(body)
	}
	if resp.Fields, err = nodeToFields(props["headers"]); err != nil {
		return nil, err
	}
	return resp, nil
}

func nodeToFields(node ast.SchemaNode) ([]fastparser.Field, error) {
	if node == nil {
		return nil, nil
	}
	arr, ok := node.(*ast.ArrayDataNode)
	if !ok {
		return nil, invalid("expected ArrayDataNode for headers, got %T", node)
	}
	fields := make([]fastparser.Field, 0, len(arr.Elements()))
	for _, elem := range arr.Elements() {
		obj, ok := elem.(*ast.ObjectNode)
		if !ok {
			return nil, invalid("expected ObjectNode for header, got %T", elem)
		}
		props := obj.Properties()
		name, _ := stringProp(props, "name")
		value, _ := stringProp(props, "value")
		fields = append(fields, fastparser.Field{Name: name, Value: value})
	}
	return fields, nil
}

func object(node ast.SchemaNode) (*ast.ObjectNode, error) {
	obj, ok := node.(*ast.ObjectNode)
	if !ok {
		return nil, invalid("expected ObjectNode, got %T", node)
	}
	return obj, nil
}

func stringProp(props map[string]ast.SchemaNode, key string) (string, bool) {
	lit, ok := props[key].(*ast.LiteralNode)
	if !ok {
		return "", false
	}
	s, ok := lit.Value().(string)
	return s, ok
}

func invalid(format string, args ...interface{}) error {
	return failure.Kind(errors.Newf("wire: ast: "+format, args...), failure.ErrInvalidArgument)
}
