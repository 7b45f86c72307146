package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"

	"github.com/google/go-cmp/cmp"
)

func TestExecuteFullCycle(t *testing.T) {
	sess := newFakeSession()
	pre := &fakePreload{name: "http_preload", item: "raw_loaded", status: true}
	primary := &fakeSource{name: "readings", merge: model.MergeReplace,
		out: mkDataset(t, []string{"a", "a"}, []time.Time{at(1), at(2)},
			map[string][]interface{}{"temp": {20.0, 25.0}})}
	secondary := &fakeSource{name: "alt_readings", merge: model.MergeOuter,
		out: mkDataset(t, []string{"b"}, []time.Time{at(1)},
			map[string][]interface{}{"temp": {30.0}})}
	lk := &fakeLookup{name: "shift_lookup", column: "shift"}
	tr := &fakeTransform{name: "noop"}

	p := New(sess, nil, pre, primary, secondary, lk, tr)
	p.AddExpression("temp_f", "${temp} * 2 + 32")

	got, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3 after the outer union", got.NumRows())
	}
	for _, name := range []string{"deviceid", "evt_timestamp", "temp", "shift", "raw_loaded", "temp_f"} {
		if !got.HasColumn(name) {
			t.Fatalf("column %s missing, have %v", name, got.ColumnNames())
		}
	}

	// union is sorted by entity then timestamp
	var ids []interface{}
	idCol, _ := got.Column("deviceid")
	ids = append(ids, idCol.Values...)
	if diff := cmp.Diff([]interface{}{"a", "a", "b"}, ids); diff != "" {
		t.Fatalf("entity order mismatch (-want +got):\n%s", diff)
	}

	tf, _ := got.Column("temp_f")
	if diff := cmp.Diff([]interface{}{72.0, 82.0, 92.0}, tf.Values); diff != "" {
		t.Fatalf("expression output mismatch (-want +got):\n%s", diff)
	}

	marker, _ := got.Column("raw_loaded")
	if v, ok := marker.Bool(0); !ok || !v {
		t.Fatalf("preload marker not set, got %v", marker.Values)
	}

	if pre.calls != 1 || primary.calls != 1 || secondary.calls != 1 || lk.calls != 1 || tr.calls != 1 {
		t.Fatalf("stage calls = preload %d primary %d secondary %d lookup %d transform %d",
			pre.calls, primary.calls, secondary.calls, lk.calls, tr.calls)
	}
	if !sess.preloadDone || !sess.transformDone {
		t.Fatalf("session flags: preload %v transform %v", sess.preloadDone, sess.transformDone)
	}
	if sess.unmatchedCalls != 1 {
		t.Fatalf("WriteUnmatchedMembers called %d times, want 1", sess.unmatchedCalls)
	}
	if !sess.traceContains("Completed stage readings.") {
		t.Fatalf("missing source completion trace, trace = %v", sess.trace)
	}
}

func TestExecuteLastReplaceSourceWins(t *testing.T) {
	sess := newFakeSession()
	first := &fakeSource{name: "readings_a", merge: model.MergeReplace,
		out: mkDataset(t, []string{"a"}, []time.Time{at(1)},
			map[string][]interface{}{"temp": {20.0}})}
	second := &fakeSource{name: "readings_b", merge: model.MergeReplace,
		out: mkDataset(t, []string{"b", "b"}, []time.Time{at(1), at(2)},
			map[string][]interface{}{"rpm": {900.0, 1100.0}})}
	p := New(sess, nil, first, second)

	got, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("source calls = %d and %d, want 1 each", first.calls, second.calls)
	}
	if got.NumRows() != 2 || !got.HasColumn("rpm") || got.HasColumn("temp") {
		t.Fatalf("final frame should be the last source's output, have %v with %d rows",
			got.ColumnNames(), got.NumRows())
	}
	if !sess.traceContains("Multiple replace data sources") {
		t.Fatalf("missing multiple replace sources warning, trace = %v", sess.trace)
	}
}

func TestExecuteSecondCycleSkipsPreloadAndSources(t *testing.T) {
	sess := newFakeSession()
	pre := &fakePreload{name: "http_preload", item: "raw_loaded", status: true}
	primary := &fakeSource{name: "readings", merge: model.MergeReplace,
		out: mkDataset(t, []string{"a"}, []time.Time{at(1)},
			map[string][]interface{}{"temp": {20.0}})}
	lk := &fakeLookup{name: "shift_lookup", column: "shift"}
	tr := &fakeTransform{name: "noop"}
	p := New(sess, nil, pre, primary, lk, tr)

	first, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if _, err := p.Execute(context.Background(), first, Options{}); err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if pre.calls != 1 {
		t.Fatalf("preload ran %d times, want 1", pre.calls)
	}
	if primary.calls != 1 {
		t.Fatalf("data source ran %d times, want 1", primary.calls)
	}
	// lookups and transforms rerun as ordinary stages
	if lk.calls != 2 || tr.calls != 2 {
		t.Fatalf("lookup ran %d times and transform %d times, want 2 each", lk.calls, tr.calls)
	}
}

func TestExecutePreloadFailureStatusDiscardsCycle(t *testing.T) {
	sess := newFakeSession()
	raw := mkDataset(t, []string{"a"}, []time.Time{at(1)},
		map[string][]interface{}{"temp": {20.0}})
	sess.loadData = func(context.Context, model.Window, []string) (*frame.Dataset, error) {
		return raw, nil
	}
	pre := &fakePreload{name: "http_preload", item: "raw_loaded", status: false}
	primary := &fakeSource{name: "readings", merge: model.MergeReplace}
	tr := &fakeTransform{name: "noop"}
	p := New(sess, nil, pre, primary, tr)

	got, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if primary.calls != 0 || tr.calls != 0 {
		t.Fatalf("downstream stages ran: source %d transform %d", primary.calls, tr.calls)
	}
	// the entity data still loads and the marker still lands
	if got.NumRows() != 1 || !got.HasColumn("raw_loaded") {
		t.Fatalf("unexpected result shape: rows %d cols %v", got.NumRows(), got.ColumnNames())
	}
	if len(sess.raised) != 0 {
		t.Fatalf("preload failure raised an error: %v", sess.raised)
	}
	if !sess.preloadDone || !sess.transformDone {
		t.Fatalf("session flags not set: preload %v transform %v", sess.preloadDone, sess.transformDone)
	}
	if !sess.traceContains("Remaining stages were discarded") {
		t.Fatalf("missing discard trace, trace = %v", sess.trace)
	}
}

func TestExecutePreloadErrorDiscardsWithoutMarker(t *testing.T) {
	sess := newFakeSession()
	pre := &fakePreload{name: "http_preload", item: "raw_loaded", err: errors.New("origin unreachable")}
	tr := &fakeTransform{name: "noop"}
	p := New(sess, nil, pre, tr)

	got, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.HasColumn("raw_loaded") {
		t.Fatal("marker column added for a preload that errored")
	}
	if tr.calls != 0 {
		t.Fatalf("transform ran %d times after a preload error", tr.calls)
	}
	if len(sess.raised) != 0 {
		t.Fatalf("preload error raised: %v", sess.raised)
	}
}

func TestExecutePreloadWithoutOutputItemFails(t *testing.T) {
	sess := newFakeSession()
	p := New(sess, nil, &fakePreload{name: "http_preload", status: true})

	_, err := p.Execute(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("error is %T, want *ConfigError", err)
	}
	if got := ClassifyFailure(err); got != FailConfiguration {
		t.Fatalf("ClassifyFailure = %s, want %s", got, FailConfiguration)
	}
}

func TestExecutePrimaryFailureAbortsDespitePolicy(t *testing.T) {
	sess := newFakeSession()
	primary := &fakeSource{name: "readings", merge: model.MergeReplace, err: errors.New("db gone")}
	tr := &fakeTransform{name: "noop"}
	p := New(sess, nil, primary, tr)

	_, err := p.Execute(context.Background(), nil, Options{ContinueOnError: true})
	if err == nil {
		t.Fatal("expected the source failure to abort the run")
	}
	var serr *StageError
	if !errors.As(err, &serr) {
		t.Fatalf("error is %T, want *StageError", err)
	}
	if serr.Stage != "readings" || serr.Class != FailStageExecution {
		t.Fatalf("stage %s class %s", serr.Stage, serr.Class)
	}
	if tr.calls != 0 {
		t.Fatalf("transform ran %d times after the abort", tr.calls)
	}
}

func TestExecuteLookupRowCountViolationIsFatal(t *testing.T) {
	sess := newFakeSession()
	primary := &fakeSource{name: "readings", merge: model.MergeReplace,
		out: mkDataset(t, []string{"a", "a"}, []time.Time{at(1), at(2)},
			map[string][]interface{}{"temp": {20.0, 25.0}})}
	lk := &fakeLookup{name: "shift_lookup", column: "shift", shrink: true}
	p := New(sess, nil, primary, lk)

	_, err := p.Execute(context.Background(), nil, Options{ContinueOnError: true})
	if err == nil {
		t.Fatal("expected the lookup contract violation to abort the run")
	}
	if !strings.Contains(err.Error(), "changed the row count") {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteLookupSkippedWhenEmpty(t *testing.T) {
	sess := newFakeSession()
	primary := &fakeSource{name: "readings", merge: model.MergeReplace,
		out: mkDataset(t, nil, nil, map[string][]interface{}{"temp": {}})}
	lk := &fakeLookup{name: "shift_lookup", column: "shift"}
	tr := &fakeTransform{name: "noop"}
	p := New(sess, nil, primary, lk, tr)

	_, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if lk.calls != 0 {
		t.Fatalf("lookup ran %d times on an empty dataset", lk.calls)
	}
	if tr.calls != 0 {
		t.Fatalf("transform ran %d times on an empty dataset", tr.calls)
	}
	if !sess.traceContains("The data set is empty") {
		t.Fatalf("missing empty dataset trace, trace = %v", sess.trace)
	}
}

func TestExecuteStageFailureAbortsByDefault(t *testing.T) {
	sess := newFakeSession()
	tr := &fakeTransform{name: "breaks", fn: func(*frame.Dataset) (*frame.Dataset, error) {
		return nil, errors.New("boom")
	}}
	ds := mkDataset(t, []string{"a"}, []time.Time{at(1)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil, tr)

	_, err := p.Execute(context.Background(), ds, Options{})
	if err == nil {
		t.Fatal("expected the stage failure to abort")
	}
	var serr *StageError
	if !errors.As(err, &serr) || serr.Class != FailStageExecution {
		t.Fatalf("error = %v", err)
	}
	if len(sess.suppressed) != 0 {
		t.Fatalf("failure was suppressed: %v", sess.suppressed)
	}
}

func TestExecuteStageFailureSuppressedWhenContinueOnError(t *testing.T) {
	sess := newFakeSession()
	bad := &fakeTransform{name: "breaks", fn: func(*frame.Dataset) (*frame.Dataset, error) {
		return nil, errors.New("boom")
	}}
	after := &fakeTransform{name: "survivor", fn: func(ds *frame.Dataset) (*frame.Dataset, error) {
		if err := ds.SetColumn(frame.Const("after", 1.0, ds.NumRows())); err != nil {
			return nil, err
		}
		return ds, nil
	}}
	ds := mkDataset(t, []string{"a"}, []time.Time{at(1)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil, bad, after)

	got, err := p.Execute(context.Background(), ds, Options{ContinueOnError: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(sess.suppressed) != 1 {
		t.Fatalf("suppressed = %v", sess.suppressed)
	}
	if after.calls != 1 || !got.HasColumn("after") {
		t.Fatalf("later stage did not run on the unchanged dataset: calls %d cols %v", after.calls, got.ColumnNames())
	}
}

func TestExecuteStageAbortOverrideWins(t *testing.T) {
	sess := newFakeSession()
	bad := &fakeTransformAbort{
		fakeTransform: &fakeTransform{name: "tolerated", fn: func(*frame.Dataset) (*frame.Dataset, error) {
			return nil, errors.New("boom")
		}},
		abort: false,
	}
	ds := mkDataset(t, []string{"a"}, []time.Time{at(1)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil, bad)

	// default policy is abort; the stage's own override suppresses
	if _, err := p.Execute(context.Background(), ds, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(sess.suppressed) != 1 {
		t.Fatalf("suppressed = %v", sess.suppressed)
	}
}

func TestExecuteReconciliationFailureCannotBeSuppressed(t *testing.T) {
	sess := newFakeSession()
	sess.suppressAll = true
	sess.items = []model.DataItem{{Name: "temp", Type: model.TypeNumber}}
	bad := &fakeValidated{fakeTransform: &fakeTransform{name: "mistyper", fn: func(ds *frame.Dataset) (*frame.Dataset, error) {
		if err := ds.SetColumn(frame.NewColumn("temp", []interface{}{"garbage"})); err != nil {
			return nil, err
		}
		return ds, nil
	}}}
	ds := mkDataset(t, []string{"a"}, []time.Time{at(1)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil, bad)

	_, err := p.Execute(context.Background(), ds, Options{ContinueOnError: true})
	if err == nil {
		t.Fatal("expected the reconciliation failure to abort even with a suppressing handler")
	}
	var serr *StageError
	if !errors.As(err, &serr) || serr.Class != FailTypeReconciliation {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteDropsAllNullRows(t *testing.T) {
	sess := newFakeSession()
	sess.dropAllNull = true
	sess.exclude = []string{"keepme"}
	sess.loadData = func(context.Context, model.Window, []string) (*frame.Dataset, error) {
		return mkDataset(t, []string{"a", "a"}, []time.Time{at(1), at(2)},
			map[string][]interface{}{
				"temp":   {nil, 21.0},
				"keepme": {"x", nil},
			}), nil
	}
	p := New(sess, nil)

	got, err := p.Execute(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// row 0 is null in every swept column; keepme is excluded from the
	// sweep so it cannot save the row
	if got.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", got.NumRows())
	}
	c, _ := got.Column("temp")
	if v, ok := c.Float(0); !ok || v != 21.0 {
		t.Fatalf("surviving row temp = %v", c.Values)
	}
}

func TestExecuteUnmatchedMemberErrorIsSuppressed(t *testing.T) {
	sess := newFakeSession()
	sess.unmatchedErr = errors.New("dimension write failed")
	ds := mkDataset(t, []string{"a"}, []time.Time{at(1)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil)

	if _, err := p.Execute(context.Background(), ds, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !sess.traceContains("unmatched members") {
		t.Fatalf("missing unmatched member trace, trace = %v", sess.trace)
	}
	if !sess.transformDone {
		t.Fatal("initial transform flag not set after a suppressed dimension failure")
	}
}

func TestExecuteDebugSnapshots(t *testing.T) {
	sess := newFakeSession()
	snaps := &captureSnapshots{}
	ds := mkDataset(t, []string{"a"}, []time.Time{at(1)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil, &fakeTransform{name: "No-Op Stage"})

	if _, err := p.Execute(context.Background(), ds, Options{Debug: true, Snapshots: snaps}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"debug_source", "debug_out_no_op_stage"}
	if diff := cmp.Diff(want, snaps.names); diff != "" {
		t.Fatalf("snapshot names mismatch (-want +got):\n%s", diff)
	}
}

type captureSnapshots struct {
	names []string
}

func (c *captureSnapshots) WriteSnapshot(name string, ds *frame.Dataset) error {
	c.names = append(c.names, name)
	return nil
}

func TestPublishCollectsArgMetadata(t *testing.T) {
	sess := newFakeSession()
	p := New(sess, nil, &fakeTransform{name: "plain"})
	p.AddExpression("temp_f", "${temp} * 2")

	if err := p.Publish(context.Background()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(sess.published) != 1 || len(sess.published[0]) != 2 {
		t.Fatalf("published = %v", sess.published)
	}
	md := sess.published[0][1]
	if md.Name != "expression_temp_f" {
		t.Fatalf("metadata name = %s", md.Name)
	}
	if md.Args["expression"] != "${temp} * 2" {
		t.Fatalf("metadata args = %v", md.Args)
	}
}

func TestPublishPropagatesSessionError(t *testing.T) {
	sess := newFakeSession()
	sess.publishErr = errors.New("registry down")
	p := New(sess, nil, &fakeTransform{name: "plain"})

	err := p.Publish(context.Background())
	if err == nil || !strings.Contains(err.Error(), "registry down") {
		t.Fatalf("err = %v", err)
	}
}

func TestInputItemsUnion(t *testing.T) {
	sess := newFakeSession()
	p := New(sess, nil)
	p.AddExpression("a", "${temp} + ${pressure}")
	p.AddExpression("b", "${pressure} * 2")

	want := []string{"temp", "pressure"}
	if diff := cmp.Diff(want, p.InputItems()); diff != "" {
		t.Fatalf("input items mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteWindowTrace(t *testing.T) {
	sess := newFakeSession()
	start := at(1)
	sess.startOverride = &start
	ds := mkDataset(t, []string{"a"}, []time.Time{at(2)}, map[string][]interface{}{"temp": {20.0}})
	p := New(sess, nil)

	if _, err := p.Execute(context.Background(), ds, Options{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !sess.traceContains("Execution window:") {
		t.Fatalf("missing window trace, trace = %v", sess.trace)
	}
	if !sess.traceContains(start.Format(time.RFC3339)) {
		t.Fatalf("window trace does not mention the override, trace = %v", sess.trace)
	}
}
