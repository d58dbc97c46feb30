package tokenizer

import (
	"strings"

	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// MediaType is a parsed media type. Type, Subtype and parameter names are
// lowercase; parameter values keep their case with quotes removed.
type MediaType struct {
	Type    string
	Subtype string
	Params  map[string]string
}

// Essence returns "type/subtype".
func (m MediaType) Essence() string {
	return m.Type + "/" + m.Subtype
}

// Suffix returns the structured-syntax suffix of the subtype ("json" for
// "vnd.api+json"), or "".
func (m MediaType) Suffix() string {
	i := strings.LastIndexByte(m.Subtype, '+')
	if i < 0 {
		return ""
	}
	return m.Subtype[i+1:]
}

// ParseMediaType parses the first member of a Content-Type style value.
// Members after a comma are ignored. A malformed parameter ends parameter
// parsing; the parameters read so far are kept. ok is false when no
// type/subtype pair can be read.
func ParseMediaType(value string) (MediaType, bool) {
	tok := NewTokenizer()
	tok.Initialize(value)
	tokens, _ := tok.Tokenize()

	p := &mediaTypeParser{tokens: tokens}
	p.skipOWS()
	typ, ok := p.expect(TokenToken)
	if !ok {
		return MediaType{}, false
	}
	if _, ok := p.expect(TokenSlash); !ok {
		return MediaType{}, false
	}
	sub, ok := p.expect(TokenToken)
	if !ok {
		return MediaType{}, false
	}

	mt := MediaType{
		Type:    strings.ToLower(typ),
		Subtype: strings.ToLower(sub),
		Params:  map[string]string{},
	}
	for {
		p.skipOWS()
		if _, ok := p.expect(TokenSemicolon); !ok {
			break
		}
		p.skipOWS()
		name, ok := p.expect(TokenToken)
		if !ok {
			break
		}
		if _, ok := p.expect(TokenEquals); !ok {
			break
		}
		val, ok := p.value()
		if !ok {
			break
		}
		key := strings.ToLower(name)
		if _, seen := mt.Params[key]; !seen {
			mt.Params[key] = val
		}
	}
	return mt, true
}

type mediaTypeParser struct {
	tokens []tokenizer.Token
	pos    int
}

func (p *mediaTypeParser) peek() (tokenizer.Token, bool) {
	if p.pos >= len(p.tokens) {
		return tokenizer.Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *mediaTypeParser) expect(kind string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.Kind() != kind {
		return "", false
	}
	p.pos++
	return t.ValueString(), true
}

func (p *mediaTypeParser) skipOWS() {
	for {
		if _, ok := p.expect(TokenOWS); !ok {
			return
		}
	}
}

// value reads a parameter value: a token or a quoted-string.
func (p *mediaTypeParser) value() (string, bool) {
	if v, ok := p.expect(TokenToken); ok {
		return v, true
	}
	q, ok := p.expect(TokenQuoted)
	if !ok {
		return "", false
	}
	return unquote(q), true
}

func unquote(q string) string {
	q = q[1 : len(q)-1]
	if !strings.Contains(q, `\`) {
		return q
	}
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '\\' && i+1 < len(q) {
			i++
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
