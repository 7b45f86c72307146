package expr

import "fmt"

// TokenType represents the type of token in an expression
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	NUMBER // 42, 3.14, 2e3
	STRING // "temp" or 'temp', resolved to a column when one matches
	IDENT  // function names
	COLUMN // ${temp} column reference

	// Keywords
	TRUE
	FALSE
	AND
	OR
	NOT

	// Operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	EQ
	NEQ
	LT
	LTE
	GT
	GTE

	// Structure
	LPAREN
	RPAREN
	COMMA
)

// Pre-computed token name lookup for error reporting
var tokenNames = [...]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",
	NUMBER:  "NUMBER",
	STRING:  "STRING",
	IDENT:   "IDENT",
	COLUMN:  "COLUMN",
	TRUE:    "TRUE",
	FALSE:   "FALSE",
	AND:     "AND",
	OR:      "OR",
	NOT:     "NOT",
	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	PERCENT: "%",
	EQ:      "==",
	NEQ:     "!=",
	LT:      "<",
	LTE:     "<=",
	GT:      ">",
	GTE:     ">=",
	LPAREN:  "(",
	RPAREN:  ")",
	COMMA:   ",",
}

func (t TokenType) String() string {
	if int(t) >= 0 && int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Keywords maps reserved words to their token types
var Keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
	"and":   AND,
	"or":    OR,
	"not":   NOT,
}

// SingleCharTokens maps single-character operators to their token types
var SingleCharTokens = map[byte]TokenType{
	'+': PLUS,
	'-': MINUS,
	'*': STAR,
	'/': SLASH,
	'%': PERCENT,
	'<': LT,
	'>': GT,
	'!': NOT,
	'(': LPAREN,
	')': RPAREN,
	',': COMMA,
}

// TwoCharTokens maps two-character operators to their token types
var TwoCharTokens = map[string]TokenType{
	"==": EQ,
	"!=": NEQ,
	"<=": LTE,
	">=": GTE,
	"&&": AND,
	"||": OR,
}

// Token is a single token with its source offset
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the expression
}
