package pipeline

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// fakeSession is an in-memory Session for engine tests
type fakeSession struct {
	entityCol     string
	tsCol         string
	filter        []string
	items         []model.DataItem
	dropAllNull   bool
	exclude       []string
	startOverride *time.Time
	endOverride   *time.Time

	loadData     func(ctx context.Context, win model.Window, entities []string) (*frame.Dataset, error)
	unmatchedErr error
	publishErr   error
	suppressAll  bool // rogue handler that never raises

	preloadDone    bool
	transformDone  bool
	lookups        []LookupStage
	calendar       LookupStage
	trace          []model.TraceEntry
	raised         []error
	suppressed     []error
	unmatchedCalls int
	published      [][]model.StageMetadata
}

var (
	_ Session         = (*fakeSession)(nil)
	_ TransformStage  = (*fakeTransform)(nil)
	_ DataSourceStage = (*fakeSource)(nil)
	_ PreloadStage    = (*fakePreload)(nil)
	_ LookupStage     = (*fakeLookup)(nil)
)

func newFakeSession() *fakeSession {
	return &fakeSession{entityCol: "deviceid", tsCol: "evt_timestamp"}
}

func (s *fakeSession) EntityName() string               { return "test_entity" }
func (s *fakeSession) KeyColumns() (string, string)     { return s.entityCol, s.tsCol }
func (s *fakeSession) EntityFilter() []string           { return s.filter }
func (s *fakeSession) DataItems() []model.DataItem      { return s.items }
func (s *fakeSession) PreloadComplete() bool            { return s.preloadDone }
func (s *fakeSession) MarkPreloadComplete()             { s.preloadDone = true }
func (s *fakeSession) InitialTransformComplete() bool   { return s.transformDone }
func (s *fakeSession) MarkInitialTransformComplete()    { s.transformDone = true }
func (s *fakeSession) AddLookupStage(st LookupStage)    { s.lookups = append(s.lookups, st) }
func (s *fakeSession) SetCalendar(st LookupStage)       { s.calendar = st }
func (s *fakeSession) DropAllNullRows() bool            { return s.dropAllNull }
func (s *fakeSession) ExcludedColumns() []string        { return s.exclude }

func (s *fakeSession) WindowOverride(win model.Window) model.Window {
	if s.startOverride != nil {
		win.Start = s.startOverride
	}
	if s.endOverride != nil {
		win.End = s.endOverride
	}
	return win
}

func (s *fakeSession) LoadData(ctx context.Context, win model.Window, entities []string) (*frame.Dataset, error) {
	if s.loadData != nil {
		return s.loadData(ctx, win, entities)
	}
	return frame.New(s.entityCol, s.tsCol), nil
}

func (s *fakeSession) TraceAppend(stage, message string, ds *frame.Dataset) {
	rows := -1
	if ds != nil {
		rows = ds.NumRows()
	}
	s.trace = append(s.trace, model.TraceEntry{
		Seq: len(s.trace), Timestamp: time.Now(), Stage: stage, Message: message, Rows: rows,
	})
}

func (s *fakeSession) RaiseError(err error, abort bool, stage string) error {
	s.raised = append(s.raised, err)
	if abort && !s.suppressAll {
		return err
	}
	s.suppressed = append(s.suppressed, err)
	return nil
}

func (s *fakeSession) WriteUnmatchedMembers(ctx context.Context, ds *frame.Dataset) error {
	s.unmatchedCalls++
	return s.unmatchedErr
}

func (s *fakeSession) PublishMetadata(ctx context.Context, payload []model.StageMetadata) error {
	s.published = append(s.published, payload)
	return s.publishErr
}

func (s *fakeSession) traceContains(substr string) bool {
	for _, e := range s.trace {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// mkDataset builds a dataset with the standard key columns plus the
// given value columns, added in sorted name order for determinism
func mkDataset(t *testing.T, ids []string, times []time.Time, cols map[string][]interface{}) *frame.Dataset {
	t.Helper()
	idVals := make([]interface{}, len(ids))
	for i, id := range ids {
		idVals[i] = id
	}
	tsVals := make([]interface{}, len(times))
	for i, ts := range times {
		tsVals[i] = ts
	}
	d := frame.New("deviceid", "evt_timestamp")
	if err := d.SetColumn(frame.NewColumn("deviceid", idVals)); err != nil {
		t.Fatalf("SetColumn deviceid: %v", err)
	}
	if err := d.SetColumn(frame.NewColumn("evt_timestamp", tsVals)); err != nil {
		t.Fatalf("SetColumn evt_timestamp: %v", err)
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.SetColumn(frame.NewColumn(name, cols[name])); err != nil {
			t.Fatalf("SetColumn %s: %v", name, err)
		}
	}
	return d
}

func at(day int) time.Time {
	return time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC)
}

// fakeTransform is an ordinary stage whose behavior is injected
type fakeTransform struct {
	name  string
	fn    func(ds *frame.Dataset) (*frame.Dataset, error)
	calls int
}

func (f *fakeTransform) Name() string { return f.name }

func (f *fakeTransform) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(ds)
	}
	return ds, nil
}

// fakeTransformAbort adds a stage level abort override
type fakeTransformAbort struct {
	*fakeTransform
	abort bool
}

func (f *fakeTransformAbort) AbortOnFail() bool { return f.abort }

// fakeValidated opts a transform into output validation
type fakeValidated struct {
	*fakeTransform
}

func (f *fakeValidated) SchemaValidated() bool { return true }

// fakeSource contributes rows during source resolution
type fakeSource struct {
	name  string
	merge model.MergeMethod
	out   *frame.Dataset
	err   error
	calls int
}

func (f *fakeSource) Name() string             { return f.name }
func (f *fakeSource) Merge() model.MergeMethod { return f.merge }

func (f *fakeSource) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

// fakePreload performs no work but records invocations
type fakePreload struct {
	name   string
	item   string
	status bool
	err    error
	calls  int
}

func (f *fakePreload) Name() string       { return f.name }
func (f *fakePreload) OutputItem() string { return f.item }

func (f *fakePreload) Preload(ctx context.Context, win model.Window, entities []string) (bool, error) {
	f.calls++
	return f.status, f.err
}

// fakeLookup adds one constant column; with shrink set it misbehaves by
// dropping the last row
type fakeLookup struct {
	name   string
	column string
	kind   model.LookupKind // defaults to scd
	shrink bool
	calls  int
}

func (f *fakeLookup) Name() string { return f.name }

func (f *fakeLookup) LookupKind() model.LookupKind {
	if f.kind != "" {
		return f.kind
	}
	return model.LookupSCD
}

func (f *fakeLookup) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	f.calls++
	if f.shrink {
		out := frame.New("deviceid", "evt_timestamp")
		for _, name := range ds.ColumnNames() {
			c, _ := ds.Column(name)
			cc := c.Clone()
			cc.Values = cc.Values[:len(cc.Values)-1]
			if err := out.SetColumn(cc); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	if err := ds.SetColumn(frame.Const(f.column, "x", ds.NumRows())); err != nil {
		return nil, err
	}
	return ds, nil
}
