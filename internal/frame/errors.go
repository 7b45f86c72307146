package frame

import "fmt"

// IndexError reports a dataset whose composite key columns are missing
// or carry the wrong kind
type IndexError struct {
	Msg string
}

func (e *IndexError) Error() string { return e.Msg }

// IndexErrorf builds an IndexError from a format string
func IndexErrorf(format string, args ...interface{}) *IndexError {
	return &IndexError{Msg: fmt.Sprintf(format, args...)}
}

// TypeError reports a value or kind incompatibility, such as a failed
// coercion or a column kind conflict during a row union
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// TypeErrorf builds a TypeError from a format string
func TypeErrorf(format string, args ...interface{}) *TypeError {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}
