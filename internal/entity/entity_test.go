package entity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"

	"github.com/google/go-cmp/cmp"
)

func pumpSpec() model.RunSpec {
	return model.RunSpec{
		Entity: model.EntitySpec{
			Name:            "pump",
			EntityColumn:    model.DefaultEntityColumn,
			TimestampColumn: model.DefaultTimestampColumn,
			DataItems:       []model.DataItem{{Name: "temp", Type: model.TypeNumber}},
		},
	}
}

func readings(t *testing.T, ids ...string) *frame.Dataset {
	t.Helper()
	idVals := make([]interface{}, len(ids))
	tsVals := make([]interface{}, len(ids))
	for i, id := range ids {
		idVals[i] = id
		tsVals[i] = time.Date(2024, 5, 1, i, 0, 0, 0, time.UTC)
	}
	d := frame.New(model.DefaultEntityColumn, model.DefaultTimestampColumn)
	if err := d.SetColumn(frame.NewColumn(model.DefaultEntityColumn, idVals)); err != nil {
		t.Fatalf("SetColumn: %v", err)
	}
	if err := d.SetColumn(frame.NewColumn(model.DefaultTimestampColumn, tsVals)); err != nil {
		t.Fatalf("SetColumn: %v", err)
	}
	return d
}

func TestWindowOverride(t *testing.T) {
	spec := pumpSpec()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	spec.Entity.Start = &start
	sess := New(spec, Deps{}, nil)

	callerEnd := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	win := sess.WindowOverride(model.Window{End: &callerEnd})
	if win.Start == nil || !win.Start.Equal(start) {
		t.Fatalf("start not overridden: %v", win.Start)
	}
	if win.End == nil || !win.End.Equal(callerEnd) {
		t.Fatalf("caller end lost: %v", win.End)
	}
}

func TestLoadDataUsesLoader(t *testing.T) {
	var gotEntity string
	deps := Deps{
		LoadReadings: func(ctx context.Context, entityType string, win model.Window, entities []string) (*frame.Dataset, error) {
			gotEntity = entityType
			return readings(t, "a", "b"), nil
		},
	}
	sess := New(pumpSpec(), deps, nil)

	ds, err := sess.LoadData(context.Background(), model.Window{}, nil)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	if gotEntity != "pump" {
		t.Fatalf("loader called for %q", gotEntity)
	}
	if ds.NumRows() != 2 {
		t.Fatalf("rows = %d", ds.NumRows())
	}
}

func TestLoadDataWithoutLoaderFails(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)
	_, err := sess.LoadData(context.Background(), model.Window{}, nil)
	if err == nil || !strings.Contains(err.Error(), "no readings loader") {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteUnmatchedMembers(t *testing.T) {
	var written []string
	deps := Deps{
		ListMembers: func(ctx context.Context, entityType string) ([]string, error) {
			return []string{"a"}, nil
		},
		WriteMembers: func(ctx context.Context, entityType string, ids []string) error {
			written = append(written, ids...)
			return nil
		},
	}
	sess := New(pumpSpec(), deps, nil)

	if err := sess.WriteUnmatchedMembers(context.Background(), readings(t, "a", "b", "b", "c")); err != nil {
		t.Fatalf("WriteUnmatchedMembers: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c"}, written); diff != "" {
		t.Fatalf("written members (-want +got):\n%s", diff)
	}
	trace := sess.Trace()
	if len(trace) != 1 || !strings.Contains(trace[0].Message, "unmatched members") {
		t.Fatalf("trace = %v", trace)
	}
}

func TestWriteUnmatchedMembersAllKnown(t *testing.T) {
	calls := 0
	deps := Deps{
		ListMembers: func(ctx context.Context, entityType string) ([]string, error) {
			return []string{"a", "b"}, nil
		},
		WriteMembers: func(ctx context.Context, entityType string, ids []string) error {
			calls++
			return nil
		},
	}
	sess := New(pumpSpec(), deps, nil)

	if err := sess.WriteUnmatchedMembers(context.Background(), readings(t, "a", "b")); err != nil {
		t.Fatalf("WriteUnmatchedMembers: %v", err)
	}
	if calls != 0 {
		t.Fatalf("WriteMembers called %d times for fully known members", calls)
	}
}

func TestWriteUnmatchedMembersWithoutDeps(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)
	if err := sess.WriteUnmatchedMembers(context.Background(), readings(t, "a")); err != nil {
		t.Fatalf("expected a no-op, got %v", err)
	}
}

func TestRaiseErrorRecordsAndHonorsAbort(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)

	typeErr := frame.TypeErrorf("column temp: bad value")
	if got := sess.RaiseError(typeErr, true, "mistyper"); got == nil {
		t.Fatal("abort=true must re-raise")
	}
	if got := sess.RaiseError(errors.New("minor"), false, "tolerated"); got != nil {
		t.Fatalf("abort=false must suppress, got %v", got)
	}

	faults := sess.Faults()
	if len(faults) != 2 {
		t.Fatalf("faults = %v", faults)
	}
	if faults[0].Class != pipeline.FailTypeOrValue || !faults[0].Raised {
		t.Fatalf("fault 0 = %+v", faults[0])
	}
	if faults[1].Class != pipeline.FailStageExecution || faults[1].Raised {
		t.Fatalf("fault 1 = %+v", faults[1])
	}
}

func TestTraceAppendRowCounts(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)
	sess.TraceAppend("stage_a", "With dataset. ", readings(t, "a", "b"))
	sess.TraceAppend("stage_b", "Without dataset. ", nil)

	trace := sess.Trace()
	if len(trace) != 2 {
		t.Fatalf("trace = %v", trace)
	}
	if trace[0].Rows != 2 || trace[1].Rows != -1 {
		t.Fatalf("rows = %d, %d", trace[0].Rows, trace[1].Rows)
	}
	if trace[0].Seq != 0 || trace[1].Seq != 1 {
		t.Fatalf("seq = %d, %d", trace[0].Seq, trace[1].Seq)
	}
}

type stubLookup struct {
	name string
	kind model.LookupKind
}

func (s stubLookup) Name() string                 { return s.name }
func (s stubLookup) LookupKind() model.LookupKind { return s.kind }

func (s stubLookup) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	return ds, nil
}

func TestLookupAndCalendarRegistration(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)
	sess.AddLookupStage(stubLookup{name: "scd_operator", kind: model.LookupSCD})
	sess.AddLookupStage(stubLookup{name: "scd_site", kind: model.LookupSCD})
	sess.SetCalendar(stubLookup{name: "shifts_v1", kind: model.LookupCalendar})
	sess.SetCalendar(stubLookup{name: "shifts_v2", kind: model.LookupCalendar})

	lookups := sess.Lookups()
	if len(lookups) != 2 || lookups[0].Name() != "scd_operator" || lookups[1].Name() != "scd_site" {
		t.Fatalf("lookups = %v", lookups)
	}
	if cal := sess.Calendar(); cal == nil || cal.Name() != "shifts_v2" {
		t.Fatalf("calendar = %v, want the latest registration", cal)
	}
}

func TestResetClearsRunState(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)
	sess.MarkPreloadComplete()
	sess.MarkInitialTransformComplete()
	sess.AddLookupStage(stubLookup{name: "scd_operator", kind: model.LookupSCD})
	sess.SetCalendar(stubLookup{name: "shifts", kind: model.LookupCalendar})
	sess.TraceAppend("stage", "note. ", nil)
	sess.RaiseError(errors.New("boom"), false, "stage")

	sess.Reset()

	if sess.PreloadComplete() || sess.InitialTransformComplete() {
		t.Fatal("flags survived the reset")
	}
	if len(sess.Lookups()) != 0 || sess.Calendar() != nil {
		t.Fatal("lookup registrations survived the reset")
	}
	if len(sess.Trace()) != 0 || len(sess.Faults()) != 0 {
		t.Fatal("trace or faults survived the reset")
	}
}

func TestPublishMetadataRequiresRegistry(t *testing.T) {
	sess := New(pumpSpec(), Deps{}, nil)
	err := sess.PublishMetadata(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "no metadata registry") {
		t.Fatalf("err = %v", err)
	}

	var got []model.StageMetadata
	sess = New(pumpSpec(), Deps{
		SaveMetadata: func(ctx context.Context, entityType string, payload []model.StageMetadata) error {
			got = payload
			return nil
		},
	}, nil)
	payload := []model.StageMetadata{{Name: "expression_x", Args: map[string]interface{}{"expression": "1"}}}
	if err := sess.PublishMetadata(context.Background(), payload); err != nil {
		t.Fatalf("PublishMetadata: %v", err)
	}
	if len(got) != 1 || got[0].Name != "expression_x" {
		t.Fatalf("payload = %v", got)
	}
}
