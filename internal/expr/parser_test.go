package expr

import (
	"errors"
	"testing"
)

func TestParsePrecedence(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"${a} + 1 == 2", "((${a} + 1) == 2)"},
		{"1 < 2 and 3 >= 2", "((1 < 2) AND (3 >= 2))"},
		{"not true or false", "((NOT true) OR false)"},
		{"-${a} * 2", "((- ${a}) * 2)"},
		{"'temp' / 2 % 3", `(("temp" / 2) % 3)`},
	}
	for _, tc := range cases {
		node, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.input, err)
		}
		if got := node.String(); got != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseCall(t *testing.T) {
	node, err := Parse("min(${a}, 2, abs(-3))")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	call, ok := node.(*Call)
	if !ok {
		t.Fatalf("node = %T, want *Call", node)
	}
	if call.Fn != "min" || len(call.Args) != 3 {
		t.Fatalf("call = %s", call)
	}
	if _, ok := call.Args[2].(*Call); !ok {
		t.Fatalf("nested call not parsed: %T", call.Args[2])
	}
}

func TestParseBareIdentifier(t *testing.T) {
	node, err := Parse("speed + 1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	bin, ok := node.(*Binary)
	if !ok {
		t.Fatalf("node = %T, want *Binary", node)
	}
	if _, ok := bin.X.(*Ident); !ok {
		t.Fatalf("left side = %T, want bare *Ident kept for the evaluator", bin.X)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"1 +",
		"(1 + 2",
		"min(1,)",
		")",
		"1 2",
		"",
		"if(1, 2",
	}
	for _, input := range cases {
		_, err := Parse(input)
		if err == nil {
			t.Fatalf("Parse(%q): expected error", input)
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Fatalf("Parse(%q): want SyntaxError, got %T (%v)", input, err, err)
		}
	}
}
