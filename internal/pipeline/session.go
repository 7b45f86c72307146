package pipeline

import (
	"context"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// Session is the entity scoped collaborator a pipeline runs against.
// It owns the per run idempotency flags, the execution trace, the
// fault handling policy and access to the entity's source data. One
// session covers one logical run; a fresh run needs a fresh session or
// an explicit reset
type Session interface {
	// EntityName returns the entity type the run operates on
	EntityName() string

	// KeyColumns returns the entity id and timestamp column names
	KeyColumns() (entityCol, tsCol string)

	// EntityFilter returns the default entity id filter, nil for all
	EntityFilter() []string

	// WindowOverride applies the session's start and end overrides to
	// the caller supplied window
	WindowOverride(win model.Window) model.Window

	// DataItems returns the declared data items used for type
	// reconciliation
	DataItems() []model.DataItem

	// LoadData materializes the entity's raw readings when the caller
	// supplied no dataset
	LoadData(ctx context.Context, win model.Window, entities []string) (*frame.Dataset, error)

	// Preload flag: set once the preload phase has run for this session
	PreloadComplete() bool
	MarkPreloadComplete()

	// Initial transform flag: set once the first full cycle finished
	InitialTransformComplete() bool
	MarkInitialTransformComplete()

	// AddLookupStage records a dimension lookup discovered during
	// classification so later cycles and publications can see it.
	// SetCalendar fills the session's single custom calendar slot; a
	// later calendar replaces an earlier one
	AddLookupStage(s LookupStage)
	SetCalendar(s LookupStage)

	// TraceAppend records one trace line. A nil dataset records no row
	// count
	TraceAppend(stage, message string, ds *frame.Dataset)

	// RaiseError is the fault handler: it records the failure and
	// decides raise versus suppress. A non nil return aborts the run
	RaiseError(err error, abort bool, stage string) error

	// DropAllNullRows reports whether the post load all null row sweep
	// is enabled, and ExcludedColumns which custom columns stay out of
	// the sweep
	DropAllNullRows() bool
	ExcludedColumns() []string

	// WriteUnmatchedMembers persists entity ids seen in the dataset but
	// missing from the dimension, at the end of the initial cycle
	WriteUnmatchedMembers(ctx context.Context, ds *frame.Dataset) error

	// PublishMetadata ships the assembled stage metadata to the
	// registry
	PublishMetadata(ctx context.Context, payload []model.StageMetadata) error
}

// SnapshotWriter persists per stage dataset snapshots when debug mode
// is on
type SnapshotWriter interface {
	WriteSnapshot(name string, ds *frame.Dataset) error
}

// Options are the per execution switches
type Options struct {
	Window          model.Window
	Entities        []string // overrides the session's entity filter when set
	Register        bool     // persist stage output metadata
	Debug           bool     // write per stage snapshots
	DropNulls       bool     // eager null cleanup between stages
	ContinueOnError bool     // default abort policy becomes suppress
	PreloadedItems  []string // preload markers supplied by the caller
	Snapshots       SnapshotWriter
}
