package tokenizer

import (
	"testing"
)

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		essence string
		params  map[string]string
		ok      bool
	}{
		{"plain", "application/json", "application/json", map[string]string{}, true},
		{"uppercase", "Text/HTML", "text/html", map[string]string{}, true},
		{"leading whitespace", "  text/plain", "text/plain", map[string]string{}, true},
		{"charset", "text/html; charset=UTF-8", "text/html", map[string]string{"charset": "UTF-8"}, true},
		{"quoted", `multipart/form-data; boundary="a b;c"`, "multipart/form-data", map[string]string{"boundary": "a b;c"}, true},
		{"escaped", `text/plain; title="say \"hi\""`, "text/plain", map[string]string{"title": `say "hi"`}, true},
		{"first param wins", "text/plain; a=1; A=2", "text/plain", map[string]string{"a": "1"}, true},
		{"list", "text/html, application/json", "text/html", map[string]string{}, true},
		{"no space", "text/html;charset=utf-8", "text/html", map[string]string{"charset": "utf-8"}, true},
		{"empty", "", "", nil, false},
		{"no subtype", "text", "", nil, false},
		{"no subtype after slash", "text/", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, ok := ParseMediaType(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if mt.Essence() != tt.essence {
				t.Errorf("Essence() = %q, want %q", mt.Essence(), tt.essence)
			}
			if len(mt.Params) != len(tt.params) {
				t.Fatalf("Params = %v, want %v", mt.Params, tt.params)
			}
			for k, v := range tt.params {
				if mt.Params[k] != v {
					t.Errorf("Params[%q] = %q, want %q", k, mt.Params[k], v)
				}
			}
		})
	}
}

func TestMediaType_Suffix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"application/vnd.api+json", "json"},
		{"application/atom+xml", "xml"},
		{"application/a+b+cbor", "cbor"},
		{"application/json", ""},
	}

	for _, tt := range tests {
		mt, ok := ParseMediaType(tt.input)
		if !ok {
			t.Fatalf("ParseMediaType(%q) failed", tt.input)
		}
		if got := mt.Suffix(); got != tt.want {
			t.Errorf("Suffix(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
