// Package tokenizer splits raw field values into tokens ready for the
// text-processing pipeline. Splitting happens on whitespace and hyphens,
// input is lower-cased, and every token records its position within the
// original string in its metadata.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"
)

// Metadata carries arbitrary per-token annotations through the pipeline.
// Builders whitelist metadata keys to persist into the index postings.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata map. Values are shared;
// token creation copies the map so later key additions do not leak
// between tokens.
func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Token is a single unit of text flowing through the pipeline, carrying
// its current string form and accumulated metadata.
type Token struct {
	str      string
	Metadata Metadata
}

// NewToken creates a Token with its own copy of the given metadata.
func NewToken(str string, metadata Metadata) *Token {
	return &Token{str: str, Metadata: metadata.Clone()}
}

// String returns the token's current string form.
func (t *Token) String() string {
	return t.str
}

// Update applies fn to the token's string in place and returns the token.
func (t *Token) Update(fn func(str string, metadata Metadata) string) *Token {
	t.str = fn(t.str, t.Metadata)
	return t
}

// Clone returns a copy of the token, optionally transforming its string.
func (t *Token) Clone(fn func(str string, metadata Metadata) string) *Token {
	str := t.str
	if fn != nil {
		str = fn(str, t.Metadata)
	}
	return &Token{str: str, Metadata: t.Metadata.Clone()}
}

// IsSeparator reports whether the rune splits runs of token characters.
// The query lexer shares this definition so terms lex the same way they
// tokenise.
func IsSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-'
}

// Tokenize converts a field value into tokens. Strings are split on
// separators; slices tokenise each element whole; nil yields no tokens;
// any other value is tokenised from its default string form. The given
// metadata is copied into every produced token, with "index" set to the
// token ordinal; tokens split from a string also get "position" set to
// [startOffset, length] in runes, while slice elements get no position.
func Tokenize(obj any, metadata Metadata) []*Token {
	if obj == nil {
		return nil
	}

	if slice, ok := obj.([]any); ok {
		tokens := make([]*Token, 0, len(slice))
		for i, element := range slice {
			meta := metadata.Clone()
			meta["index"] = i
			tokens = append(tokens, NewToken(strings.ToLower(stringify(element)), meta))
		}
		return tokens
	}

	str := strings.ToLower(stringify(obj))
	runes := []rune(str)
	length := len(runes)

	tokens := make([]*Token, 0)
	sliceStart := 0
	for sliceEnd := 0; sliceEnd <= length; sliceEnd++ {
		if sliceEnd < length && !IsSeparator(runes[sliceEnd]) {
			continue
		}
		if sliceLength := sliceEnd - sliceStart; sliceLength > 0 {
			meta := metadata.Clone()
			meta["position"] = []int{sliceStart, sliceLength}
			meta["index"] = len(tokens)
			tokens = append(tokens, NewToken(string(runes[sliceStart:sliceEnd]), meta))
		}
		sliceStart = sliceEnd + 1
	}

	return tokens
}

func stringify(obj any) string {
	switch v := obj.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
