package query

import "github.com/Adithya-Monish-Kumar-K/Embedded-Search-Engine/internal/search/tokenizer"

// LexemeType classifies the lexemes the lexer emits.
type LexemeType int

const (
	LexemeEOS LexemeType = iota
	LexemeField
	LexemeTerm
	LexemeEditDistance
	LexemeBoost
	LexemePresence
)

func (t LexemeType) String() string {
	switch t {
	case LexemeField:
		return "FIELD"
	case LexemeTerm:
		return "TERM"
	case LexemeEditDistance:
		return "EDIT_DISTANCE"
	case LexemeBoost:
		return "BOOST"
	case LexemePresence:
		return "PRESENCE"
	default:
		return "EOS"
	}
}

// Lexeme is a typed slice of the query string. Start and End are byte
// offsets into the input, so callers can slice the original string
// directly even when it contains multi-byte runes.
type Lexeme struct {
	Type  LexemeType
	Str   string
	Start int
	End   int
}

const eos = rune(-1)

// lexer walks the query string emitting lexemes. It runs a state
// machine where each state function returns the next state, ending on
// nil. It steps rune by rune but reports byte offsets via byteOff,
// which maps each rune index to the byte position it starts at.
type lexer struct {
	str        []rune
	byteOff    []int
	lexemes    []Lexeme
	pos        int
	start      int
	escapeChar []int
}

type stateFn func(*lexer) stateFn

func newLexer(str string) *lexer {
	runes := []rune(str)
	byteOff := make([]int, len(runes)+1)
	i := 0
	for off := range str {
		byteOff[i] = off
		i++
	}
	byteOff[len(runes)] = len(str)
	return &lexer{str: runes, byteOff: byteOff}
}

func (l *lexer) run() []Lexeme {
	for state := lexText; state != nil; {
		state = state(l)
	}
	return l.lexemes
}

// sliceString returns the pending run with any escape characters
// removed.
func (l *lexer) sliceString() string {
	out := make([]rune, 0, l.pos-l.start)
	sliceStart := l.start
	for _, escapePos := range l.escapeChar {
		out = append(out, l.str[sliceStart:escapePos]...)
		sliceStart = escapePos + 1
	}
	out = append(out, l.str[sliceStart:l.pos]...)
	l.escapeChar = l.escapeChar[:0]
	return string(out)
}

func (l *lexer) emit(t LexemeType) {
	l.lexemes = append(l.lexemes, Lexeme{
		Type:  t,
		Str:   l.sliceString(),
		Start: l.byteOff[l.start],
		End:   l.byteOff[l.pos],
	})
	l.start = l.pos
}

func (l *lexer) escapeCharacter() {
	l.escapeChar = append(l.escapeChar, l.pos-1)
	l.pos++
}

func (l *lexer) next() rune {
	if l.pos >= len(l.str) {
		return eos
	}
	char := l.str[l.pos]
	l.pos++
	return char
}

func (l *lexer) width() int {
	return l.pos - l.start
}

func (l *lexer) ignore() {
	if l.start == l.pos {
		l.pos++
	}
	l.start = l.pos
}

func (l *lexer) backup() {
	l.pos--
}

func (l *lexer) more() bool {
	return l.pos < len(l.str)
}

func (l *lexer) acceptDigitRun() {
	var char rune
	for {
		char = l.next()
		if char < '0' || char > '9' {
			break
		}
	}
	if char != eos {
		l.backup()
	}
}

func lexText(l *lexer) stateFn {
	for {
		char := l.next()
		switch {
		case char == eos:
			return lexEOS
		case char == '\\':
			l.escapeCharacter()
		case char == ':':
			return lexField
		case char == '~':
			l.backup()
			if l.width() > 0 {
				l.emit(LexemeTerm)
			}
			return lexEditDistance
		case char == '^':
			l.backup()
			if l.width() > 0 {
				l.emit(LexemeTerm)
			}
			return lexBoost
		case char == '+' && l.width() == 1:
			l.emit(LexemePresence)
		case char == '-' && l.width() == 1:
			l.emit(LexemePresence)
		case tokenizer.IsSeparator(char):
			return lexTerm
		}
	}
}

func lexField(l *lexer) stateFn {
	l.backup()
	l.emit(LexemeField)
	l.ignore()
	return lexText
}

func lexTerm(l *lexer) stateFn {
	if l.width() > 1 {
		l.backup()
		l.emit(LexemeTerm)
	}
	l.ignore()
	if l.more() {
		return lexText
	}
	return nil
}

func lexEditDistance(l *lexer) stateFn {
	l.ignore()
	l.acceptDigitRun()
	l.emit(LexemeEditDistance)
	return lexText
}

func lexBoost(l *lexer) stateFn {
	l.ignore()
	l.acceptDigitRun()
	l.emit(LexemeBoost)
	return lexText
}

func lexEOS(l *lexer) stateFn {
	if l.width() > 0 {
		l.emit(LexemeTerm)
	}
	return nil
}
