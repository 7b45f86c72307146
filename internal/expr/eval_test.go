package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"calc-pipeline/internal/frame"
)

func evalDataset(t *testing.T) *frame.Dataset {
	t.Helper()
	d := frame.New("deviceid", "evt_timestamp")
	cols := []*frame.Column{
		frame.NewColumn("deviceid", []interface{}{"A", "B", "C"}),
		frame.NewColumn("a", []interface{}{1.0, 2.0, 3.0}),
		frame.NewColumn("b", []interface{}{3.0, 4.0, nil}),
	}
	for _, c := range cols {
		if err := d.SetColumn(c); err != nil {
			t.Fatalf("SetColumn %s: %v", c.Name, err)
		}
	}
	return d
}

func TestEvaluateColumnArithmetic(t *testing.T) {
	d := evalDataset(t)
	values, kind, err := Evaluate(d, "${a} + ${b}")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if kind != frame.KindNumber {
		t.Fatalf("kind = %s, want number", kind)
	}
	want := []interface{}{4.0, 6.0, nil}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateQuotedColumnNames(t *testing.T) {
	d := evalDataset(t)
	values, _, err := Evaluate(d, `"a" + 'b'`)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	want := []interface{}{4.0, 6.0, nil}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("quoted names should resolve to columns (-want +got):\n%s", diff)
	}
}

func TestEvaluateQuotedLiteralFallback(t *testing.T) {
	d := evalDataset(t)
	values, kind, err := Evaluate(d, `${deviceid} + "!"`)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if kind != frame.KindString {
		t.Fatalf("kind = %s, want string", kind)
	}
	want := []interface{}{"A!", "B!", "C!"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateScalarBroadcast(t *testing.T) {
	d := evalDataset(t)
	values, _, err := Evaluate(d, "2 + 3")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	want := []interface{}{5.0, 5.0, 5.0}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	d := frame.New("deviceid", "evt_timestamp")
	d.SetColumn(frame.NewColumn("x", []interface{}{1.0, -1.0, 0.0}))
	values, _, err := Evaluate(d, "${x} / 0")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !math.IsInf(values[0].(float64), 1) {
		t.Fatalf("1/0 = %v, want +Inf", values[0])
	}
	if !math.IsInf(values[1].(float64), -1) {
		t.Fatalf("-1/0 = %v, want -Inf", values[1])
	}
	if !math.IsNaN(values[2].(float64)) {
		t.Fatalf("0/0 = %v, want NaN", values[2])
	}
}

func TestEvaluateComparisonAndLogic(t *testing.T) {
	d := evalDataset(t)
	values, kind, err := Evaluate(d, "${a} > 1 and ${a} < 3")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if kind != frame.KindBool {
		t.Fatalf("kind = %s, want bool", kind)
	}
	want := []interface{}{false, true, false}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateIf(t *testing.T) {
	d := evalDataset(t)
	values, kind, err := Evaluate(d, `if(${a} >= 2, "high", "low")`)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if kind != frame.KindString {
		t.Fatalf("kind = %s, want string", kind)
	}
	want := []interface{}{"low", "high", "high"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateMinMax(t *testing.T) {
	d := evalDataset(t)
	values, _, err := Evaluate(d, "min(${a}, 2)")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	want := []interface{}{1.0, 2.0, 2.0}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	values, _, err = Evaluate(d, "max(${a}, ${b})")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if values[2] != nil {
		t.Fatalf("max with a null operand should be null, got %v", values[2])
	}
}

func TestEvaluateNumericFunctions(t *testing.T) {
	d := frame.New("deviceid", "evt_timestamp")
	d.SetColumn(frame.NewColumn("x", []interface{}{-1.4, 2.5}))
	values, _, err := Evaluate(d, "round(abs(${x}))")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	want := []interface{}{1.0, 3.0}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateUnresolvedReferences(t *testing.T) {
	d := evalDataset(t)
	var ue *UnresolvedError

	_, _, err := Evaluate(d, "${missing} + 1")
	if !errors.As(err, &ue) {
		t.Fatalf("want UnresolvedError for unknown column, got %v", err)
	}
	if ue.Name != "missing" {
		t.Fatalf("unresolved name = %q", ue.Name)
	}

	_, _, err = Evaluate(d, "a + 1")
	if !errors.As(err, &ue) {
		t.Fatalf("want UnresolvedError for bare identifier, got %v", err)
	}

	_, _, err = Evaluate(d, "median(${a})")
	if !errors.As(err, &ue) {
		t.Fatalf("want UnresolvedError for unknown function, got %v", err)
	}
}

func TestEvaluateTypeErrors(t *testing.T) {
	d := evalDataset(t)
	var te *frame.TypeError

	_, _, err := Evaluate(d, "${a} + true")
	if !errors.As(err, &te) {
		t.Fatalf("want TypeError for number + bool, got %v", err)
	}

	_, _, err = Evaluate(d, "${deviceid} < 3")
	if !errors.As(err, &te) {
		t.Fatalf("want TypeError for string < number, got %v", err)
	}
}

func TestEvaluateSyntaxErrorSurfaces(t *testing.T) {
	d := evalDataset(t)
	_, _, err := Evaluate(d, "${a} +")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("want SyntaxError, got %v", err)
	}
}

func TestEvaluateEmptyDataset(t *testing.T) {
	d := frame.New("deviceid", "evt_timestamp")
	values, kind, err := Evaluate(d, "1 + 1")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("values = %v, want empty", values)
	}
	if kind != frame.KindNumber {
		t.Fatalf("kind = %s, want number", kind)
	}
}
