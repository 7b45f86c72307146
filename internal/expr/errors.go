package expr

import "fmt"

// SyntaxError reports a malformed expression with the offset of the
// offending token
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression syntax error at offset %d: %s", e.Pos, e.Msg)
}

func syntaxErrorf(pos int, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// UnresolvedError reports a reference to a column or function that does
// not exist
type UnresolvedError struct {
	Name string
	Msg  string
}

func (e *UnresolvedError) Error() string { return e.Msg }

func unresolvedErrorf(name, format string, args ...interface{}) *UnresolvedError {
	return &UnresolvedError{Name: name, Msg: fmt.Sprintf(format, args...)}
}
