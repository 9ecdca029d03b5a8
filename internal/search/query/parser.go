package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed query along with the byte offsets of
// the offending lexeme in the source string.
type ParseError struct {
	Message string
	Start   int
	End     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s [%d:%d]", e.Message, e.Start, e.End)
}

// Parser turns a lexed query string into clauses on a Query via
// recursive descent over the lexeme stream.
type Parser struct {
	lexemes       []Lexeme
	query         *Query
	currentClause Clause
	lexemeIdx     int
	err           *ParseError
}

// NewParser creates a Parser for the given query string, appending
// parsed clauses to q.
func NewParser(str string, q *Query) *Parser {
	return &Parser{
		lexemes:       newLexer(str).run(),
		query:         q,
		currentClause: NewClause(""),
	}
}

// Parse runs the parser to completion, returning the populated query or
// the first error encountered.
func (p *Parser) Parse() (*Query, error) {
	for state := parseClause; state != nil; {
		state = state(p)
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.query, nil
}

type parseFn func(*Parser) parseFn

func (p *Parser) peekLexeme() (Lexeme, bool) {
	if p.lexemeIdx >= len(p.lexemes) {
		return Lexeme{}, false
	}
	return p.lexemes[p.lexemeIdx], true
}

func (p *Parser) consumeLexeme() Lexeme {
	lexeme := p.lexemes[p.lexemeIdx]
	p.lexemeIdx++
	return lexeme
}

func (p *Parser) nextClause() {
	p.query.Clause(p.currentClause)
	p.currentClause = NewClause("")
}

func (p *Parser) fail(lexeme Lexeme, format string, args ...any) parseFn {
	p.err = &ParseError{
		Message: fmt.Sprintf(format, args...),
		Start:   lexeme.Start,
		End:     lexeme.End,
	}
	return nil
}

func parseClause(p *Parser) parseFn {
	lexeme, ok := p.peekLexeme()
	if !ok {
		return nil
	}

	switch lexeme.Type {
	case LexemePresence:
		return parsePresence
	case LexemeField:
		return parseField
	case LexemeTerm:
		return parseTerm
	default:
		return p.fail(lexeme, "expected either a field or a term, found %s with value '%s'", lexeme.Type, lexeme.Str)
	}
}

func parsePresence(p *Parser) parseFn {
	lexeme := p.consumeLexeme()

	switch lexeme.Str {
	case "-":
		p.currentClause.Presence = PresenceProhibited
	case "+":
		p.currentClause.Presence = PresenceRequired
	default:
		return p.fail(lexeme, "unrecognised presence operator '%s'", lexeme.Str)
	}

	next, ok := p.peekLexeme()
	if !ok {
		return p.fail(lexeme, "expecting term or field, found nothing")
	}

	switch next.Type {
	case LexemeField:
		return parseField
	case LexemeTerm:
		return parseTerm
	default:
		return p.fail(next, "expecting term or field, found '%s'", next.Type)
	}
}

func parseField(p *Parser) parseFn {
	lexeme := p.consumeLexeme()

	if !contains(p.query.AllFields, lexeme.Str) {
		return p.fail(lexeme, "unrecognised field '%s', possible fields: %s", lexeme.Str, strings.Join(p.query.AllFields, ", "))
	}

	p.currentClause.Fields = []string{lexeme.Str}

	next, ok := p.peekLexeme()
	if !ok {
		return p.fail(lexeme, "expecting term, found nothing")
	}

	if next.Type != LexemeTerm {
		return p.fail(next, "expecting term, found '%s'", next.Type)
	}
	return parseTerm
}

func parseTerm(p *Parser) parseFn {
	lexeme := p.consumeLexeme()

	p.currentClause.Term = strings.ToLower(lexeme.Str)
	if strings.Contains(lexeme.Str, "*") {
		p.currentClause.UsePipeline = false
	}

	next, ok := p.peekLexeme()
	if !ok {
		p.nextClause()
		return nil
	}

	switch next.Type {
	case LexemeTerm:
		p.nextClause()
		return parseTerm
	case LexemeField:
		p.nextClause()
		return parseField
	case LexemeEditDistance:
		return parseEditDistance
	case LexemeBoost:
		return parseBoost
	case LexemePresence:
		p.nextClause()
		return parsePresence
	default:
		return p.fail(next, "unexpected lexeme type '%s'", next.Type)
	}
}

func parseEditDistance(p *Parser) parseFn {
	lexeme := p.consumeLexeme()

	editDistance, err := strconv.Atoi(lexeme.Str)
	if err != nil {
		return p.fail(lexeme, "edit distance must be numeric")
	}

	p.currentClause.EditDistance = editDistance

	next, ok := p.peekLexeme()
	if !ok {
		p.nextClause()
		return nil
	}

	switch next.Type {
	case LexemeTerm:
		p.nextClause()
		return parseTerm
	case LexemeField:
		p.nextClause()
		return parseField
	case LexemeEditDistance:
		return parseEditDistance
	case LexemeBoost:
		return parseBoost
	case LexemePresence:
		p.nextClause()
		return parsePresence
	default:
		return p.fail(next, "unexpected lexeme type '%s'", next.Type)
	}
}

func parseBoost(p *Parser) parseFn {
	lexeme := p.consumeLexeme()

	boost, err := strconv.Atoi(lexeme.Str)
	if err != nil {
		return p.fail(lexeme, "boost must be numeric")
	}

	p.currentClause.Boost = float64(boost)

	next, ok := p.peekLexeme()
	if !ok {
		p.nextClause()
		return nil
	}

	switch next.Type {
	case LexemeTerm:
		p.nextClause()
		return parseTerm
	case LexemeField:
		p.nextClause()
		return parseField
	case LexemeEditDistance:
		return parseEditDistance
	case LexemeBoost:
		return parseBoost
	case LexemePresence:
		p.nextClause()
		return parsePresence
	default:
		return p.fail(next, "unexpected lexeme type '%s'", next.Type)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
