package asm

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokBareIdent
	tokValueID  // %name
	tokCaretID  // ^name
	tokSymbolID // @name or @"name"
	tokString
	tokInteger

	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokLSquare
	tokRSquare
	tokComma
	tokColon
	tokEqual
	tokArrow
)

var tokenNames = map[tokenKind]string{
	tokEOF:       "end of input",
	tokBareIdent: "identifier",
	tokValueID:   "value name",
	tokCaretID:   "block label",
	tokSymbolID:  "symbol",
	tokString:    "string",
	tokInteger:   "integer",
	tokLParen:    "'('",
	tokRParen:    "')'",
	tokLBrace:    "'{'",
	tokRBrace:    "'}'",
	tokLSquare:   "'['",
	tokRSquare:   "']'",
	tokComma:     "','",
	tokColon:     "':'",
	tokEqual:     "'='",
	tokArrow:     "'->'",
}

func (k tokenKind) String() string { return tokenNames[k] }

// token is one lexeme. For strings and quoted symbols Value holds the
// unquoted text; for prefixed identifiers it omits the sigil.
type token struct {
	Kind   tokenKind
	Value  string
	Line   int
	Column int
}

func (t token) String() string {
	switch t.Kind {
	case tokEOF:
		return "end of input"
	case tokValueID:
		return "'%" + t.Value + "'"
	case tokCaretID:
		return "'^" + t.Value + "'"
	case tokSymbolID:
		return "'@" + t.Value + "'"
	case tokString:
		return strconv.Quote(t.Value)
	case tokBareIdent, tokInteger:
		return "'" + t.Value + "'"
	default:
		return t.Kind.String()
	}
}

// lexer splits textual IR into tokens. Line comments start with //.
type lexer struct {
	src       string
	pos       int
	line, col int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

// lexError is returned by the lexer and turned into a ParseError by the
// parser, which knows the file name.
type lexError struct {
	line, col int
	msg       string
}

func (e *lexError) Error() string { return fmt.Sprintf("%d:%d: %s", e.line, e.col, e.msg) }

func (l *lexer) peekByte(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f':
			l.advance()
		case c == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

var punctuation = map[byte]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	'{': tokLBrace,
	'}': tokRBrace,
	'[': tokLSquare,
	']': tokRSquare,
	',': tokComma,
	':': tokColon,
	'=': tokEqual,
}

func (l *lexer) next() (token, error) {
	l.skipSpaceAndComments()
	tok := token{Line: l.line, Column: l.col}
	if l.pos >= len(l.src) {
		tok.Kind = tokEOF
		return tok, nil
	}

	c := l.src[l.pos]
	if kind, ok := punctuation[c]; ok {
		l.advance()
		tok.Kind = kind
		return tok, nil
	}

	switch {
	case c == '-' && l.peekByte(1) == '>':
		l.advance()
		l.advance()
		tok.Kind = tokArrow
		return tok, nil
	case c == '-' || isDigit(c):
		return l.lexInteger(tok)
	case c == '"':
		s, err := l.lexString()
		tok.Kind, tok.Value = tokString, s
		return tok, err
	case c == '%' || c == '^':
		l.advance()
		start := l.pos
		for l.pos < len(l.src) && isSuffixIDChar(l.src[l.pos]) {
			l.advance()
		}
		if l.pos == start {
			return tok, &lexError{tok.Line, tok.Column, fmt.Sprintf("expected a name after %q", c)}
		}
		tok.Kind = tokValueID
		if c == '^' {
			tok.Kind = tokCaretID
		} else if l.peekByte(0) == '#' && isDigit(l.peekByte(1)) {
			// %name#N selects one result of a multi-result definition.
			l.advance()
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.advance()
			}
		}
		tok.Value = l.src[start:l.pos]
		return tok, nil
	case c == '@':
		l.advance()
		tok.Kind = tokSymbolID
		if l.peekByte(0) == '"' {
			s, err := l.lexString()
			tok.Value = s
			return tok, err
		}
		start := l.pos
		for l.pos < len(l.src) && isSuffixIDChar(l.src[l.pos]) {
			l.advance()
		}
		if l.pos == start {
			return tok, &lexError{tok.Line, tok.Column, "expected a symbol name after '@'"}
		}
		tok.Value = l.src[start:l.pos]
		return tok, nil
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.advance()
		}
		tok.Kind = tokBareIdent
		tok.Value = l.src[start:l.pos]
		return tok, nil
	}

	return tok, &lexError{tok.Line, tok.Column, fmt.Sprintf("unexpected character %q", c)}
}

func (l *lexer) lexInteger(tok token) (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.advance()
	}
	digits := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.advance()
	}
	if l.pos == digits {
		return tok, &lexError{tok.Line, tok.Column, "expected digits after '-'"}
	}
	tok.Kind = tokInteger
	tok.Value = l.src[start:l.pos]
	return tok, nil
}

// lexString scans a double-quoted literal with Go escape sequences.
func (l *lexer) lexString() (string, error) {
	line, col := l.line, l.col
	start := l.pos
	l.advance()
	for {
		if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
			return "", &lexError{line, col, "unterminated string literal"}
		}
		c := l.advance()
		if c == '\\' && l.pos < len(l.src) {
			l.advance()
			continue
		}
		if c == '"' {
			break
		}
	}
	s, err := strconv.Unquote(l.src[start:l.pos])
	if err != nil {
		return "", &lexError{line, col, "invalid escape in string literal"}
	}
	return s, nil
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isLetter(c byte) bool { return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' }

func isIdentStart(c byte) bool { return isLetter(c) || c == '_' }

func isIdentChar(c byte) bool { return isLetter(c) || isDigit(c) || c == '_' || c == '.' || c == '$' }

func isSuffixIDChar(c byte) bool { return isIdentChar(c) || c == '-' }

// isBareIdent reports whether s can be printed without quotes.
func isBareIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

// isSuffixID reports whether s can follow a % ^ or @ sigil unquoted.
func isSuffixID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isSuffixIDChar(s[i]) {
			return false
		}
	}
	return true
}
