package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calc-pipeline/internal/model"
)

// Kind is the runtime type of a column's values
type Kind int

const (
	KindUnknown Kind = iota // no non-null value observed yet
	KindNumber              // float64
	KindString              // string
	KindTimestamp           // time.Time
	KindBool                // bool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// DeclaredKind maps a declared data item type onto the runtime kind its
// column is expected to carry
func DeclaredKind(t model.ColumnType) Kind {
	switch t {
	case model.TypeNumber:
		return KindNumber
	case model.TypeLiteral:
		return KindString
	case model.TypeTimestamp:
		return KindTimestamp
	case model.TypeBoolean:
		return KindBool
	default:
		return KindUnknown
	}
}

// MatchesType reports whether a column of runtime kind k satisfies the
// declared type t. An unknown kind has no values to contradict any
// declaration and always matches
func MatchesType(k Kind, t model.ColumnType) bool {
	if k == KindUnknown {
		return true
	}
	return k == DeclaredKind(t)
}

// Column is one named column of a dataset. Values holds exactly one
// element per row; an element is float64, string, time.Time, bool or
// nil for null
type Column struct {
	Name   string
	Kind   Kind
	Values []interface{}
}

// NewColumn builds a column from raw values. Integers and float32 are
// widened to float64. A column whose non-null values disagree on kind
// degrades to the string kind and is left for coercion to sort out
func NewColumn(name string, values []interface{}) *Column {
	c := &Column{Name: name, Values: make([]interface{}, len(values))}
	for i, v := range values {
		c.Values[i] = normalizeValue(v)
	}
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		k := kindOf(v)
		if c.Kind == KindUnknown {
			c.Kind = k
		} else if c.Kind != k {
			c.Kind = KindString
			break
		}
	}
	return c
}

// Const builds a column of n copies of the same value
func Const(name string, value interface{}, n int) *Column {
	values := make([]interface{}, n)
	for i := range values {
		values[i] = value
	}
	return NewColumn(name, values)
}

func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case float64, string, bool, time.Time:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return fmt.Sprint(v)
	}
}

func kindOf(v interface{}) Kind {
	switch v.(type) {
	case float64:
		return KindNumber
	case string:
		return KindString
	case time.Time:
		return KindTimestamp
	case bool:
		return KindBool
	default:
		return KindUnknown
	}
}

// Len returns the number of rows in the column
func (c *Column) Len() int { return len(c.Values) }

// IsNull reports whether row i holds no value
func (c *Column) IsNull(i int) bool { return c.Values[i] == nil }

// Clone returns a deep copy of the column
func (c *Column) Clone() *Column {
	values := make([]interface{}, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// Float returns the row value when it is a number
func (c *Column) Float(i int) (float64, bool) {
	f, ok := c.Values[i].(float64)
	return f, ok
}

// Str returns the row value when it is a string
func (c *Column) Str(i int) (string, bool) {
	s, ok := c.Values[i].(string)
	return s, ok
}

// Bool returns the row value when it is a bool
func (c *Column) Bool(i int) (bool, bool) {
	b, ok := c.Values[i].(bool)
	return b, ok
}

// Time returns the row value when it is a timestamp
func (c *Column) Time(i int) (time.Time, bool) {
	t, ok := c.Values[i].(time.Time)
	return t, ok
}

// CoerceTo converts every value to the runtime kind declared by t and
// returns the converted column. Nulls pass through untouched. The first
// value that cannot be converted fails the whole column
func (c *Column) CoerceTo(t model.ColumnType) (*Column, error) {
	out := &Column{Name: c.Name, Kind: DeclaredKind(t), Values: make([]interface{}, len(c.Values))}
	for i, v := range c.Values {
		if v == nil {
			continue
		}
		var converted interface{}
		var err error
		switch t {
		case model.TypeNumber:
			converted, err = toNumber(v)
		case model.TypeLiteral:
			converted = toLiteral(v)
		case model.TypeTimestamp:
			converted, err = toTimestamp(v)
		case model.TypeBoolean:
			converted, err = toBoolean(v)
		default:
			return nil, TypeErrorf("column %s: unknown declared type %q", c.Name, t)
		}
		if err != nil {
			return nil, TypeErrorf("column %s: row %d: %v", c.Name, i, err)
		}
		out.Values[i] = converted
	}
	return out, nil
}

func toNumber(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to a number", x)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a number", v)
	}
}

func toLiteral(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// timestampLayouts are tried in order when parsing literal timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a literal timestamp in any supported layout
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}

func toTimestamp(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return ParseTimestamp(x)
	case float64:
		// numbers are epoch seconds with an optional fraction
		sec := int64(x)
		nsec := int64((x - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a timestamp", v)
	}
}

func toBoolean(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(x)))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to a bool", x)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a bool", v)
	}
}
