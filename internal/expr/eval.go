package expr

import (
	"fmt"
	"math"
	"time"

	"calc-pipeline/internal/frame"
)

// value is an evaluated operand: either one scalar or a vector aligned
// to the dataset rows
type value struct {
	scalar bool
	kind   frame.Kind
	one    interface{}
	many   []interface{}
}

func scalarValue(kind frame.Kind, v interface{}) value {
	return value{scalar: true, kind: kind, one: v}
}

func (v value) at(i int) interface{} {
	if v.scalar {
		return v.one
	}
	return v.many[i]
}

// Evaluate parses and evaluates an expression against the dataset. It
// returns one value per row plus the result kind. Scalar results are
// broadcast to the row count and nulls propagate through every operator
func Evaluate(ds *frame.Dataset, input string) ([]interface{}, frame.Kind, error) {
	node, err := Parse(input)
	if err != nil {
		return nil, frame.KindUnknown, err
	}
	return EvaluateNode(ds, node)
}

// EvaluateNode evaluates an already parsed expression
func EvaluateNode(ds *frame.Dataset, node Node) ([]interface{}, frame.Kind, error) {
	rows := ds.NumRows()
	v, err := eval(ds, node, rows)
	if err != nil {
		return nil, frame.KindUnknown, err
	}
	if !v.scalar {
		return v.many, v.kind, nil
	}
	out := make([]interface{}, rows)
	for i := range out {
		out[i] = v.one
	}
	return out, v.kind, nil
}

func eval(ds *frame.Dataset, node Node, rows int) (value, error) {
	switch n := node.(type) {
	case *NumberLit:
		return scalarValue(frame.KindNumber, n.Value), nil
	case *BoolLit:
		return scalarValue(frame.KindBool, n.Value), nil
	case *StringLit:
		// a quoted name resolving to a column is a reference to it
		if col, ok := ds.Column(n.Value); ok {
			return value{kind: col.Kind, many: col.Values}, nil
		}
		return scalarValue(frame.KindString, n.Value), nil
	case *ColumnRef:
		col, ok := ds.Column(n.Name)
		if !ok {
			return value{}, unresolvedErrorf(n.Name, "expression references unknown column %q", n.Name)
		}
		return value{kind: col.Kind, many: col.Values}, nil
	case *Ident:
		return value{}, unresolvedErrorf(n.Name,
			"unresolved reference %q: use ${%s} or a quoted column name", n.Name, n.Name)
	case *Unary:
		return evalUnary(ds, n, rows)
	case *Binary:
		return evalBinary(ds, n, rows)
	case *Call:
		return evalCall(ds, n, rows)
	default:
		return value{}, fmt.Errorf("unsupported expression node %T", node)
	}
}

func evalUnary(ds *frame.Dataset, n *Unary, rows int) (value, error) {
	x, err := eval(ds, n.X, rows)
	if err != nil {
		return value{}, err
	}
	switch n.Op {
	case MINUS:
		return mapUnary(x, rows, frame.KindNumber, func(v interface{}) (interface{}, error) {
			f, ok := v.(float64)
			if !ok {
				return nil, frame.TypeErrorf("cannot negate %s", valueTypeName(v))
			}
			return -f, nil
		})
	case NOT:
		return mapUnary(x, rows, frame.KindBool, func(v interface{}) (interface{}, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, frame.TypeErrorf("cannot apply not to %s", valueTypeName(v))
			}
			return !b, nil
		})
	default:
		return value{}, fmt.Errorf("unsupported unary operator %s", n.Op)
	}
}

func evalBinary(ds *frame.Dataset, n *Binary, rows int) (value, error) {
	x, err := eval(ds, n.X, rows)
	if err != nil {
		return value{}, err
	}
	y, err := eval(ds, n.Y, rows)
	if err != nil {
		return value{}, err
	}
	kind := resultKind(n.Op, x, y)
	return mapBinary(x, y, rows, kind, func(a, b interface{}) (interface{}, error) {
		return applyBinary(n.Op, a, b)
	})
}

func resultKind(op TokenType, x, y value) frame.Kind {
	switch op {
	case PLUS:
		if x.kind == frame.KindString || y.kind == frame.KindString {
			return frame.KindString
		}
		return frame.KindNumber
	case MINUS, STAR, SLASH, PERCENT:
		return frame.KindNumber
	default:
		return frame.KindBool
	}
}

func applyBinary(op TokenType, a, b interface{}) (interface{}, error) {
	switch op {
	case PLUS:
		if fa, ok := a.(float64); ok {
			if fb, ok := b.(float64); ok {
				return fa + fb, nil
			}
		}
		if sa, ok := a.(string); ok {
			if sb, ok := b.(string); ok {
				return sa + sb, nil
			}
		}
		return nil, opError(op, a, b)
	case MINUS, STAR, SLASH, PERCENT:
		fa, aok := a.(float64)
		fb, bok := b.(float64)
		if !aok || !bok {
			return nil, opError(op, a, b)
		}
		switch op {
		case MINUS:
			return fa - fb, nil
		case STAR:
			return fa * fb, nil
		case SLASH:
			// division by zero follows float semantics: +-Inf, or NaN for 0/0
			return fa / fb, nil
		default:
			return math.Mod(fa, fb), nil
		}
	case EQ, NEQ:
		eq, err := valuesEqual(a, b)
		if err != nil {
			return nil, err
		}
		if op == NEQ {
			return !eq, nil
		}
		return eq, nil
	case LT, LTE, GT, GTE:
		c, err := compareValues(a, b)
		if err != nil {
			return nil, err
		}
		switch op {
		case LT:
			return c < 0, nil
		case LTE:
			return c <= 0, nil
		case GT:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case AND, OR:
		ba, aok := a.(bool)
		bb, bok := b.(bool)
		if !aok || !bok {
			return nil, opError(op, a, b)
		}
		if op == AND {
			return ba && bb, nil
		}
		return ba || bb, nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", op)
	}
}

func valuesEqual(a, b interface{}) (bool, error) {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x == y, nil
		}
	case string:
		if y, ok := b.(string); ok {
			return x == y, nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return x == y, nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Equal(y), nil
		}
	}
	return false, opError(EQ, a, b)
}

func compareValues(a, b interface{}) (int, error) {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1, nil
			case x.After(y):
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	return 0, opError(LT, a, b)
}

func evalCall(ds *frame.Dataset, n *Call, rows int) (value, error) {
	switch n.Fn {
	case "abs", "ceil", "floor", "round", "sqrt":
		if len(n.Args) != 1 {
			return value{}, syntaxErrorf(n.Pos, "%s() takes exactly one argument", n.Fn)
		}
		x, err := eval(ds, n.Args[0], rows)
		if err != nil {
			return value{}, err
		}
		f := numericFuncs[n.Fn]
		return mapUnary(x, rows, frame.KindNumber, func(v interface{}) (interface{}, error) {
			fv, ok := v.(float64)
			if !ok {
				return nil, frame.TypeErrorf("%s() needs a number, got %s", n.Fn, valueTypeName(v))
			}
			return f(fv), nil
		})
	case "min", "max":
		if len(n.Args) < 2 {
			return value{}, syntaxErrorf(n.Pos, "%s() takes at least two arguments", n.Fn)
		}
		acc, err := eval(ds, n.Args[0], rows)
		if err != nil {
			return value{}, err
		}
		for _, arg := range n.Args[1:] {
			next, err := eval(ds, arg, rows)
			if err != nil {
				return value{}, err
			}
			acc, err = mapBinary(acc, next, rows, frame.KindNumber, func(a, b interface{}) (interface{}, error) {
				fa, aok := a.(float64)
				fb, bok := b.(float64)
				if !aok || !bok {
					return nil, frame.TypeErrorf("%s() needs numbers, got %s and %s", n.Fn, valueTypeName(a), valueTypeName(b))
				}
				if n.Fn == "min" {
					return math.Min(fa, fb), nil
				}
				return math.Max(fa, fb), nil
			})
			if err != nil {
				return value{}, err
			}
		}
		return acc, nil
	case "if":
		return evalIf(ds, n, rows)
	default:
		return value{}, unresolvedErrorf(n.Fn, "unknown function %q", n.Fn)
	}
}

var numericFuncs = map[string]func(float64) float64{
	"abs":   math.Abs,
	"ceil":  math.Ceil,
	"floor": math.Floor,
	"round": math.Round,
	"sqrt":  math.Sqrt,
}

func evalIf(ds *frame.Dataset, n *Call, rows int) (value, error) {
	if len(n.Args) != 3 {
		return value{}, syntaxErrorf(n.Pos, "if() takes a condition and two branches")
	}
	cond, err := eval(ds, n.Args[0], rows)
	if err != nil {
		return value{}, err
	}
	then, err := eval(ds, n.Args[1], rows)
	if err != nil {
		return value{}, err
	}
	els, err := eval(ds, n.Args[2], rows)
	if err != nil {
		return value{}, err
	}
	kind := then.kind
	if kind == frame.KindUnknown {
		kind = els.kind
	} else if els.kind != frame.KindUnknown && els.kind != kind {
		return value{}, frame.TypeErrorf("if() branches disagree: %s vs %s", then.kind, els.kind)
	}
	pick := func(c, a, b interface{}) (interface{}, error) {
		if c == nil {
			return nil, nil
		}
		cb, ok := c.(bool)
		if !ok {
			return nil, frame.TypeErrorf("if() condition must be a bool, got %s", valueTypeName(c))
		}
		if cb {
			return a, nil
		}
		return b, nil
	}
	if cond.scalar && then.scalar && els.scalar {
		out, err := pick(cond.one, then.one, els.one)
		if err != nil {
			return value{}, err
		}
		return scalarValue(kind, out), nil
	}
	many := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		out, err := pick(cond.at(i), then.at(i), els.at(i))
		if err != nil {
			return value{}, frame.TypeErrorf("row %d: %v", i, err)
		}
		many[i] = out
	}
	return value{kind: kind, many: many}, nil
}

func mapUnary(x value, rows int, kind frame.Kind, f func(v interface{}) (interface{}, error)) (value, error) {
	if x.scalar {
		if x.one == nil {
			return scalarValue(kind, nil), nil
		}
		out, err := f(x.one)
		if err != nil {
			return value{}, err
		}
		return scalarValue(kind, out), nil
	}
	many := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		v := x.at(i)
		if v == nil {
			continue
		}
		out, err := f(v)
		if err != nil {
			return value{}, frame.TypeErrorf("row %d: %v", i, err)
		}
		many[i] = out
	}
	return value{kind: kind, many: many}, nil
}

func mapBinary(x, y value, rows int, kind frame.Kind, f func(a, b interface{}) (interface{}, error)) (value, error) {
	if x.scalar && y.scalar {
		if x.one == nil || y.one == nil {
			return scalarValue(kind, nil), nil
		}
		out, err := f(x.one, y.one)
		if err != nil {
			return value{}, err
		}
		return scalarValue(kind, out), nil
	}
	many := make([]interface{}, rows)
	for i := 0; i < rows; i++ {
		a, b := x.at(i), y.at(i)
		if a == nil || b == nil {
			continue
		}
		out, err := f(a, b)
		if err != nil {
			return value{}, frame.TypeErrorf("row %d: %v", i, err)
		}
		many[i] = out
	}
	return value{kind: kind, many: many}, nil
}

func opError(op TokenType, a, b interface{}) error {
	return frame.TypeErrorf("cannot apply %s to %s and %s", op, valueTypeName(a), valueTypeName(b))
}

func valueTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	case time.Time:
		return "timestamp"
	default:
		return fmt.Sprintf("%T", v)
	}
}
