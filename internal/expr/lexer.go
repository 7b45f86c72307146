package expr

import "strings"

// Lexer tokenizes one expression
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
}

// NewLexer creates a lexer over the expression text
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Lex tokenizes the whole expression, failing on the first malformed
// token
func Lex(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	start := l.pos

	switch {
	case l.ch == 0:
		return Token{Type: EOF, Pos: start}, nil
	case l.ch == '$' && l.peekChar() == '{':
		return l.readColumnRef()
	case l.ch == '"' || l.ch == '\'':
		return l.readString()
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		return l.readNumber()
	case isIdentStart(l.ch):
		return l.readIdentifier()
	}

	if two, ok := TwoCharTokens[string([]byte{l.ch, l.peekChar()})]; ok {
		tok := Token{Type: two, Value: l.input[start : start+2], Pos: start}
		l.readChar()
		l.readChar()
		return tok, nil
	}
	if one, ok := SingleCharTokens[l.ch]; ok {
		tok := Token{Type: one, Value: string(l.ch), Pos: start}
		l.readChar()
		return tok, nil
	}
	return Token{}, syntaxErrorf(start, "unexpected character %q", string(l.ch))
}

func (l *Lexer) readColumnRef() (Token, error) {
	start := l.pos
	l.readChar() // $
	l.readChar() // {
	nameStart := l.pos
	for l.ch != '}' {
		if l.ch == 0 {
			return Token{}, syntaxErrorf(start, "unterminated column reference")
		}
		l.readChar()
	}
	name := strings.TrimSpace(l.input[nameStart:l.pos])
	l.readChar() // }
	if name == "" {
		return Token{}, syntaxErrorf(start, "empty column reference")
	}
	return Token{Type: COLUMN, Value: name, Pos: start}, nil
}

func (l *Lexer) readString() (Token, error) {
	start := l.pos
	quote := l.ch
	l.readChar()
	valueStart := l.pos
	for l.ch != quote {
		if l.ch == 0 {
			return Token{}, syntaxErrorf(start, "unterminated string")
		}
		l.readChar()
	}
	value := l.input[valueStart:l.pos]
	l.readChar()
	return Token{Type: STRING, Value: value, Pos: start}, nil
}

func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return Token{}, syntaxErrorf(start, "malformed number %q", l.input[start:l.pos])
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: NUMBER, Value: l.input[start:l.pos], Pos: start}, nil
}

func (l *Lexer) readIdentifier() (Token, error) {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	value := l.input[start:l.pos]
	if kw, ok := Keywords[strings.ToLower(value)]; ok {
		return Token{Type: kw, Value: value, Pos: start}, nil
	}
	return Token{Type: IDENT, Value: value, Pos: start}, nil
}

func isDigit(ch byte) bool { return '0' <= ch && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }
