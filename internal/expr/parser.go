package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one node of the parsed expression tree
type Node interface {
	String() string
}

// NumberLit is a numeric literal
type NumberLit struct {
	Value float64
}

// StringLit is a quoted literal. At evaluation time it resolves to a
// column when one with the same name exists, otherwise it stays a plain
// string value
type StringLit struct {
	Value string
}

// BoolLit is true or false
type BoolLit struct {
	Value bool
}

// ColumnRef is an explicit ${name} column reference
type ColumnRef struct {
	Name string
	Pos  int
}

// Ident is a bare identifier outside a call position. It never resolves
// and exists so the evaluator can report it as an unresolved reference
type Ident struct {
	Name string
	Pos  int
}

// Unary applies - or not to its operand
type Unary struct {
	Op TokenType
	X  Node
}

// Binary applies an infix operator
type Binary struct {
	Op   TokenType
	X, Y Node
}

// Call invokes one of the allow-listed functions
type Call struct {
	Fn   string
	Args []Node
	Pos  int
}

func (n *NumberLit) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *StringLit) String() string { return strconv.Quote(n.Value) }
func (n *BoolLit) String() string   { return strconv.FormatBool(n.Value) }
func (n *ColumnRef) String() string { return "${" + n.Name + "}" }
func (n *Ident) String() string     { return n.Name }
func (n *Unary) String() string     { return fmt.Sprintf("(%s %s)", n.Op, n.X) }
func (n *Binary) String() string    { return fmt.Sprintf("(%s %s %s)", n.X, n.Op, n.Y) }

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Fn + "(" + strings.Join(args, ", ") + ")"
}

// Parse turns an expression into its tree form
func Parse(input string) (Node, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != EOF {
		return nil, syntaxErrorf(tok.Pos, "unexpected %s after expression", tok.Type)
	}
	return node, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(t TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != t {
		return Token{}, syntaxErrorf(tok.Pos, "expected %s, found %s", t, tok.Type)
	}
	return p.next(), nil
}

func (p *parser) parseOr() (Node, error) {
	return p.parseBinary(p.parseAnd, OR)
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseBinary(p.parseEquality, AND)
}

func (p *parser) parseEquality() (Node, error) {
	return p.parseBinary(p.parseComparison, EQ, NEQ)
}

func (p *parser) parseComparison() (Node, error) {
	return p.parseBinary(p.parseAdditive, LT, LTE, GT, GTE)
}

func (p *parser) parseAdditive() (Node, error) {
	return p.parseBinary(p.parseMultiplicative, PLUS, MINUS)
}

func (p *parser) parseMultiplicative() (Node, error) {
	return p.parseBinary(p.parseUnary, STAR, SLASH, PERCENT)
}

func (p *parser) parseBinary(operand func() (Node, error), ops ...TokenType) (Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		matched := false
		for _, op := range ops {
			if tok.Type == op {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: tok.Type, X: left, Y: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.Type == MINUS || tok.Type == NOT {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: tok.Type, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.Type {
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, syntaxErrorf(tok.Pos, "malformed number %q", tok.Value)
		}
		return &NumberLit{Value: f}, nil
	case STRING:
		return &StringLit{Value: tok.Value}, nil
	case TRUE:
		return &BoolLit{Value: true}, nil
	case FALSE:
		return &BoolLit{Value: false}, nil
	case COLUMN:
		return &ColumnRef{Name: tok.Value, Pos: tok.Pos}, nil
	case IDENT:
		if p.peek().Type == LPAREN {
			return p.parseCall(tok)
		}
		return &Ident{Name: tok.Value, Pos: tok.Pos}, nil
	case LPAREN:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case EOF:
		return nil, syntaxErrorf(tok.Pos, "unexpected end of expression")
	default:
		return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Type)
	}
}

func (p *parser) parseCall(name Token) (Node, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	call := &Call{Fn: strings.ToLower(name.Value), Pos: name.Pos}
	if p.peek().Type == RPAREN {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		tok := p.next()
		switch tok.Type {
		case COMMA:
			continue
		case RPAREN:
			return call, nil
		default:
			return nil, syntaxErrorf(tok.Pos, "expected , or ) in %s(...), found %s", call.Fn, tok.Type)
		}
	}
}
