// Package tokenizer splits media-type header values (RFC 9110 section 8.3.1)
// into tokens using Shape's tokenizer framework.
package tokenizer

// Token kinds produced for a media type such as
// `application/vnd.api+json; charset="utf-8"`.
const (
	TokenToken     = "Token"     // tchar run: type, subtype, parameter name or bare value
	TokenSlash     = "Slash"     // /
	TokenSemicolon = "Semicolon" // ;
	TokenComma     = "Comma"     // , (separates list members; only the first is used)
	TokenEquals    = "Equals"    // =
	TokenQuoted    = "Quoted"    // quoted-string, quotes included
	TokenOWS       = "OWS"       // optional whitespace: SP / HTAB
)
