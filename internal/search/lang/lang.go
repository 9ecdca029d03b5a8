// Package lang provides the English text-processing functions used by
// the default indexing and search pipelines: a trimmer stripping
// non-word characters, a stop-word filter, and a snowball stemmer.
// All three are registered for pipeline serialisation on package load.
package lang

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"

	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenizer"
)

func init() {
	pipeline.Register(Trimmer, "trimmer")
	pipeline.Register(StopWordFilter, "stopWordFilter")
	pipeline.Register(Stemmer, "stemmer")
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Trimmer strips leading and trailing non-word characters from a token,
// leaving interior punctuation untouched.
func Trimmer(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
	token.Update(func(str string, _ tokenizer.Metadata) string {
		return strings.TrimFunc(str, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	})
	if token.String() == "" {
		return nil
	}
	return []*tokenizer.Token{token}
}

// StopWordFilter drops common English words that carry no ranking
// signal.
func StopWordFilter(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
	if _, isStop := stopWords[token.String()]; isStop {
		return nil
	}
	return []*tokenizer.Token{token}
}

// Stemmer reduces a word to its English snowball stem so that inflected
// forms of the same word share a posting.
func Stemmer(token *tokenizer.Token, _ int, _ []*tokenizer.Token) []*tokenizer.Token {
	token.Update(func(str string, _ tokenizer.Metadata) string {
		return Stem(str)
	})
	return []*tokenizer.Token{token}
}

// Stem returns the snowball stem of a single word. Stop words are left
// unstemmed; the StopWordFilter drops them before stemming anyway.
func Stem(word string) string {
	return snowballeng.Stem(word, false)
}
