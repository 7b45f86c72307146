package frame

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"calc-pipeline/internal/model"
)

func TestNewColumnInference(t *testing.T) {
	cases := []struct {
		name   string
		values []interface{}
		want   Kind
	}{
		{"ints widen to numbers", []interface{}{1, 2, int64(3)}, KindNumber},
		{"floats", []interface{}{1.5, nil, 2.5}, KindNumber},
		{"strings", []interface{}{"a", "b"}, KindString},
		{"bools", []interface{}{true, false}, KindBool},
		{"timestamps", []interface{}{time.Now(), nil}, KindTimestamp},
		{"mixed degrades to string", []interface{}{1.0, "a"}, KindString},
		{"all null stays unknown", []interface{}{nil, nil}, KindUnknown},
	}
	for _, tc := range cases {
		c := NewColumn("x", tc.values)
		if c.Kind != tc.want {
			t.Fatalf("%s: kind = %s, want %s", tc.name, c.Kind, tc.want)
		}
	}
}

func TestNewColumnWidensIntegers(t *testing.T) {
	c := NewColumn("x", []interface{}{1, uint8(2), float32(3)})
	want := []interface{}{1.0, 2.0, 3.0}
	if diff := cmp.Diff(want, c.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerceToNumber(t *testing.T) {
	c := NewColumn("x", []interface{}{"1.5", " 2 ", nil, "3e2"})
	out, err := c.CoerceTo(model.TypeNumber)
	if err != nil {
		t.Fatalf("CoerceTo failed: %v", err)
	}
	want := []interface{}{1.5, 2.0, nil, 300.0}
	if diff := cmp.Diff(want, out.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if out.Kind != KindNumber {
		t.Fatalf("kind = %s, want number", out.Kind)
	}

	b := NewColumn("flags", []interface{}{true, false, nil})
	out, err = b.CoerceTo(model.TypeNumber)
	if err != nil {
		t.Fatalf("CoerceTo on bools failed: %v", err)
	}
	if got, _ := out.Float(0); got != 1 {
		t.Fatalf("true should coerce to 1, got %v", got)
	}
}

func TestCoerceToNumberFails(t *testing.T) {
	c := NewColumn("x", []interface{}{"1", "broken"})
	_, err := c.CoerceTo(model.TypeNumber)
	if err == nil {
		t.Fatal("expected coercion failure")
	}
	if !strings.Contains(err.Error(), "row 1") {
		t.Fatalf("error should name the failing row: %v", err)
	}
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("error should be a TypeError, got %T", err)
	}
}

func TestCoerceToLiteral(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewColumn("x", []interface{}{1.5, true, ts, nil})
	out, err := c.CoerceTo(model.TypeLiteral)
	if err != nil {
		t.Fatalf("CoerceTo failed: %v", err)
	}
	want := []interface{}{"1.5", "true", "2024-05-01T12:00:00Z", nil}
	if diff := cmp.Diff(want, out.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerceToTimestamp(t *testing.T) {
	c := NewColumn("ts", []interface{}{"2024-05-01T06:30:00Z", "2024-05-01 06:30:00", "2024-05-01"})
	out, err := c.CoerceTo(model.TypeTimestamp)
	if err != nil {
		t.Fatalf("CoerceTo failed: %v", err)
	}
	first, ok := out.Time(0)
	if !ok || !first.Equal(time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC)) {
		t.Fatalf("row 0 = %v", out.Values[0])
	}
	second, _ := out.Time(1)
	if !first.Equal(second) {
		t.Fatalf("layouts disagree: %v vs %v", first, second)
	}

	epoch := NewColumn("ts", []interface{}{1714545000.0})
	out, err = epoch.CoerceTo(model.TypeTimestamp)
	if err != nil {
		t.Fatalf("epoch coercion failed: %v", err)
	}
	got, _ := out.Time(0)
	if got.Unix() != 1714545000 {
		t.Fatalf("epoch round trip = %v", got)
	}
}

func TestCoerceToBoolean(t *testing.T) {
	c := NewColumn("x", []interface{}{1.0, 0.0, "true", "FALSE", nil})
	out, err := c.CoerceTo(model.TypeBoolean)
	if err != nil {
		t.Fatalf("CoerceTo failed: %v", err)
	}
	want := []interface{}{true, false, true, false, nil}
	if diff := cmp.Diff(want, out.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	bad := NewColumn("x", []interface{}{"maybe"})
	if _, err := bad.CoerceTo(model.TypeBoolean); err == nil {
		t.Fatal("expected boolean coercion failure")
	}
}

func TestMatchesType(t *testing.T) {
	if !MatchesType(KindNumber, model.TypeNumber) {
		t.Fatal("number should match NUMBER")
	}
	if MatchesType(KindBool, model.TypeNumber) {
		t.Fatal("bool must not satisfy NUMBER")
	}
	if !MatchesType(KindUnknown, model.TypeTimestamp) {
		t.Fatal("unknown kind should match any declaration")
	}
}
