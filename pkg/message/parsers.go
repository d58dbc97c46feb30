package message

import (
	"encoding/xml"
	"reflect"
	"strings"

	"github.com/shapestone/shape-message/internal/form"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// BodyParser turns a raw body into a parsed value. The value must be nil,
// a map, a slice, a struct or a pointer to a struct. A parser that cannot
// make sense of its input returns nil.
type BodyParser func(body string) (any, error)

// Media types with a built-in parser.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeXML     = "application/xml"
	MediaTypeTextXML = "text/xml"
	MediaTypeForm    = "application/x-www-form-urlencoded"
)

// XMLNode is the generic tree an XML body is parsed into.
type XMLNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []XMLNode  `xml:",any"`
}

// Child returns the first direct child with the given local name.
func (n *XMLNode) Child(local string) (*XMLNode, bool) {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i], true
		}
	}
	return nil, false
}

func builtinParsers(logger *zap.Logger) map[string]BodyParser {
	xmlBody := xmlParser(logger)
	return map[string]BodyParser{
		MediaTypeJSON:    jsonParser(logger),
		MediaTypeXML:     xmlBody,
		MediaTypeTextXML: xmlBody,
		MediaTypeForm:    formParser,
	}
}

// jsonParser accepts JSON objects and arrays. Anything else yields nil.
func jsonParser(logger *zap.Logger) BodyParser {
	return func(body string) (any, error) {
		if !gjson.Valid(body) {
			logger.Debug("ignoring invalid JSON body", zap.Int("size", len(body)))
			return nil, nil
		}
		res := gjson.Parse(body)
		if !res.IsObject() && !res.IsArray() {
			return nil, nil
		}
		return res.Value(), nil
	}
}

// xmlParser decodes into an *XMLNode. encoding/xml does not resolve
// external entities.
func xmlParser(logger *zap.Logger) BodyParser {
	return func(body string) (any, error) {
		var root XMLNode
		if err := xml.NewDecoder(strings.NewReader(body)).Decode(&root); err != nil {
			logger.Debug("ignoring invalid XML body", zap.Error(err))
			return nil, nil
		}
		return &root, nil
	}
}

func formParser(body string) (any, error) {
	return form.Decode(body), nil
}

// allowedShape reports whether v may be used as a parsed body.
func allowedShape(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Struct:
		return true
	case reflect.Pointer:
		return rv.IsNil() || rv.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}
