package pipeline

import (
	"context"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// Stage is the minimum every pipeline stage carries. Stage roles and
// optional behaviors are declared through the capability interfaces
// below and resolved once when the stage list is classified, never
// probed again mid run
type Stage interface {
	Name() string
}

// TransformStage is a stage that takes the dataset and returns its
// successor. Every non preload stage implements it
type TransformStage interface {
	Stage
	Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error)
}

// DataSourceStage contributes rows during source resolution. Execute
// returns only the rows the stage itself produced; the resolver owns
// merging them into the baseline dataset
type DataSourceStage interface {
	TransformStage
	Merge() model.MergeMethod
}

// LookupStage augments existing rows with additional columns during
// source resolution. It must never add or remove rows
type LookupStage interface {
	TransformStage
	LookupKind() model.LookupKind
}

// PreloadStage runs before any data is materialized. Its work is pure
// side effect at the origin; no dataset flows in or out. A false status
// without an error discards the rest of the cycle
type PreloadStage interface {
	Stage
	OutputItem() string
	Preload(ctx context.Context, win model.Window, entities []string) (bool, error)
}

// IndexConformer lets a stage normalize the dataset's key columns
// before it executes
type IndexConformer interface {
	ConformIndex(ds *frame.Dataset) (*frame.Dataset, error)
}

// Registrar lets a stage persist metadata about its output once the
// output has been validated
type Registrar interface {
	Register(ctx context.Context, in, out *frame.Dataset) error
}

// AbortOverride lets a stage replace the pipeline level abort policy
// with its own
type AbortOverride interface {
	AbortOnFail() bool
}

// InputProvider declares which data items a stage consumes
type InputProvider interface {
	InputItems() []string
}

// ArgProvider exposes the arguments a stage was configured with for
// metadata publication
type ArgProvider interface {
	ArgMetadata() map[string]interface{}
}

// SchemaValidated is the opt in marker for output validation. Stages
// without it skip the validation step with a log line
type SchemaValidated interface {
	SchemaValidated() bool
}
