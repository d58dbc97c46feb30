package tokenizer

import (
	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// NewTokenizer creates a tokenizer for media-type values.
// Matchers are tried in order:
// 1. OWS (whitespace is significant around parameters, so it is kept)
// 2. Single-character delimiters
// 3. Quoted strings
// 4. Token runs
//
// Any other character stops tokenization, which callers treat as a
// malformed value.
func NewTokenizer() tokenizer.Tokenizer {
	return tokenizer.NewTokenizerWithoutWhitespace(
		OWSMatcher(),

		tokenizer.StringMatcherFunc(TokenSlash, "/"),
		tokenizer.StringMatcherFunc(TokenSemicolon, ";"),
		tokenizer.StringMatcherFunc(TokenComma, ","),
		tokenizer.StringMatcherFunc(TokenEquals, "="),

		QuotedMatcher(),
		TokenMatcher(),
	)
}

// NewTokenizerWithStream creates a media-type tokenizer over a pre-configured stream.
func NewTokenizerWithStream(stream tokenizer.Stream) tokenizer.Tokenizer {
	tok := NewTokenizer()
	tok.InitializeFromStream(stream)
	return tok
}

// OWSMatcher matches a run of spaces and horizontal tabs.
func OWSMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune
		for {
			r, ok := stream.PeekChar()
			if !ok || (r != ' ' && r != '\t') {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}
		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(TokenOWS, value)
	}
}

// QuotedMatcher matches a quoted-string. A backslash escapes the next
// character. An unterminated string does not match.
func QuotedMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		r, ok := stream.PeekChar()
		if !ok || r != '"' {
			return nil
		}
		stream.NextChar()
		value := []rune{'"'}

		for {
			r, ok := stream.PeekChar()
			if !ok || r == '\r' || r == '\n' {
				return nil
			}
			stream.NextChar()
			value = append(value, r)
			switch r {
			case '\\':
				next, ok := stream.PeekChar()
				if !ok {
					return nil
				}
				stream.NextChar()
				value = append(value, next)
			case '"':
				return tokenizer.NewToken(TokenQuoted, value)
			}
		}
	}
}

// TokenMatcher matches a run of RFC 9110 tchar characters.
func TokenMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune

		for {
			r, ok := stream.PeekChar()
			if !ok || !IsTChar(r) {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}

		if len(value) == 0 {
			return nil
		}

		return tokenizer.NewToken(TokenToken, value)
	}
}

// IsTChar reports whether r may appear in an RFC 9110 token.
func IsTChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
