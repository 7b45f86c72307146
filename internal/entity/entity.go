package entity

import (
	"context"
	"fmt"
	"sync"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"

	"calc-pipeline/pkg/logger"
)

// Deps supplies the data access the session needs. Leaving a function
// nil disables that capability; the store package provides the real
// implementations
type Deps struct {
	LoadReadings func(ctx context.Context, entityType string, win model.Window, entities []string) (*frame.Dataset, error)
	ListMembers  func(ctx context.Context, entityType string) ([]string, error)
	WriteMembers func(ctx context.Context, entityType string, ids []string) error
	SaveMetadata func(ctx context.Context, entityType string, payload []model.StageMetadata) error
}

// Type is the store backed session implementation. One value covers one
// logical run; Reset makes it reusable for the next
type Type struct {
	spec model.RunSpec
	deps Deps
	log  *logger.Logger

	mu            sync.Mutex
	preloadDone   bool
	transformDone bool
	lookups       []pipeline.LookupStage
	calendar      pipeline.LookupStage
	trace         []model.TraceEntry
	faults        []Fault
}

var _ pipeline.Session = (*Type)(nil)

// New builds a session for one run of the given spec
func New(spec model.RunSpec, deps Deps, log *logger.Logger) *Type {
	if log == nil {
		log = logger.Nop()
	}
	return &Type{spec: spec, deps: deps, log: log}
}

func (t *Type) EntityName() string { return t.spec.Entity.Name }

func (t *Type) KeyColumns() (string, string) {
	return t.spec.Entity.EntityColumn, t.spec.Entity.TimestampColumn
}

func (t *Type) EntityFilter() []string { return t.spec.Entity.EntityFilter }

// WindowOverride replaces either bound with the entity's configured one
func (t *Type) WindowOverride(win model.Window) model.Window {
	if t.spec.Entity.Start != nil {
		win.Start = t.spec.Entity.Start
	}
	if t.spec.Entity.End != nil {
		win.End = t.spec.Entity.End
	}
	return win
}

func (t *Type) DataItems() []model.DataItem { return t.spec.Entity.DataItems }

// LoadData materializes the entity's readings through the configured
// loader
func (t *Type) LoadData(ctx context.Context, win model.Window, entities []string) (*frame.Dataset, error) {
	if t.deps.LoadReadings == nil {
		return nil, fmt.Errorf("entity %s has no readings loader configured", t.EntityName())
	}
	ds, err := t.deps.LoadReadings(ctx, t.EntityName(), win, entities)
	if err != nil {
		return nil, fmt.Errorf("load readings for %s: %w", t.EntityName(), err)
	}
	t.log.Debug("loaded entity readings", "entity", t.EntityName(), "rows", ds.NumRows())
	return ds, nil
}

func (t *Type) PreloadComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preloadDone
}

func (t *Type) MarkPreloadComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preloadDone = true
}

func (t *Type) InitialTransformComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transformDone
}

func (t *Type) MarkInitialTransformComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transformDone = true
}

func (t *Type) AddLookupStage(s pipeline.LookupStage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lookups = append(t.lookups, s)
	t.log.Debug("registered lookup stage", "entity", t.EntityName(), "stage", s.Name(), "kind", string(s.LookupKind()))
}

// SetCalendar fills the custom calendar slot. A session has at most one
// calendar; the latest registration wins
func (t *Type) SetCalendar(s pipeline.LookupStage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calendar != nil {
		t.log.Warn("replacing custom calendar", "entity", t.EntityName(), "old", t.calendar.Name(), "new", s.Name())
	}
	t.calendar = s
}

// Lookups returns the lookup stages recorded during classification
func (t *Type) Lookups() []pipeline.LookupStage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]pipeline.LookupStage(nil), t.lookups...)
}

// Calendar returns the registered custom calendar, nil when none
func (t *Type) Calendar() pipeline.LookupStage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calendar
}

func (t *Type) DropAllNullRows() bool { return t.spec.Entity.DropAllNullRows }

func (t *Type) ExcludedColumns() []string { return t.spec.Entity.ExcludeColumns }

// WriteUnmatchedMembers inserts entity ids present in the dataset but
// missing from the dimension. Without member access it is a no-op
func (t *Type) WriteUnmatchedMembers(ctx context.Context, ds *frame.Dataset) error {
	if t.deps.ListMembers == nil || t.deps.WriteMembers == nil || ds == nil || ds.Empty() {
		return nil
	}
	known, err := t.deps.ListMembers(ctx, t.EntityName())
	if err != nil {
		return fmt.Errorf("list dimension members for %s: %w", t.EntityName(), err)
	}
	seen := make(map[string]bool, len(known))
	for _, id := range known {
		seen[id] = true
	}
	var unmatched []string
	for i := 0; i < ds.NumRows(); i++ {
		id, ok := ds.EntityAt(i)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		unmatched = append(unmatched, id)
	}
	if len(unmatched) == 0 {
		return nil
	}
	if err := t.deps.WriteMembers(ctx, t.EntityName(), unmatched); err != nil {
		return fmt.Errorf("write unmatched members for %s: %w", t.EntityName(), err)
	}
	t.log.Info("wrote unmatched dimension members", "entity", t.EntityName(), "members", len(unmatched))
	t.TraceAppend("pipeline", fmt.Sprintf("Wrote %d unmatched members to the dimension. ", len(unmatched)), nil)
	return nil
}

// PublishMetadata hands the stage metadata payload to the registry
func (t *Type) PublishMetadata(ctx context.Context, payload []model.StageMetadata) error {
	if t.deps.SaveMetadata == nil {
		return fmt.Errorf("entity %s has no metadata registry configured", t.EntityName())
	}
	return t.deps.SaveMetadata(ctx, t.EntityName(), payload)
}

// Reset clears the run scoped state so the session can drive a fresh
// run. Spec and wiring survive
func (t *Type) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preloadDone = false
	t.transformDone = false
	t.lookups = nil
	t.calendar = nil
	t.trace = nil
	t.faults = nil
}
