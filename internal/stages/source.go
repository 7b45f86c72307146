package stages

import (
	"context"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
	"calc-pipeline/pkg/utils"
)

// LoadFunc fetches the stored readings of one entity type as a dataset
type LoadFunc func(ctx context.Context, entityType string, win model.Window, entities []string) (*frame.Dataset, error)

// RegisterFunc persists one stage's output metadata
type RegisterFunc func(entityType, stage string, args map[string]interface{}) error

// ReadingsSource loads an entity type's readings and hands them to the
// source resolver under its merge method
type ReadingsSource struct {
	entityType string
	merge      model.MergeMethod
	load       LoadFunc
	register   RegisterFunc
}

var _ pipeline.DataSourceStage = (*ReadingsSource)(nil)

func NewReadingsSource(entityType string, merge model.MergeMethod, load LoadFunc) *ReadingsSource {
	if merge == "" {
		merge = model.MergeOuter
	}
	return &ReadingsSource{entityType: entityType, merge: merge, load: load}
}

// WithRegistration attaches a metadata sink, usually the store
func (s *ReadingsSource) WithRegistration(fn RegisterFunc) *ReadingsSource {
	s.register = fn
	return s
}

func (s *ReadingsSource) Name() string             { return "source_" + utils.SanitizeName(s.entityType) }
func (s *ReadingsSource) Merge() model.MergeMethod { return s.merge }

// Execute returns only this source's rows; combining them with the
// dataset under construction is the resolver's job
func (s *ReadingsSource) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	return s.load(ctx, s.entityType, win, entities)
}

// ConformIndex sorts and checks the key columns before the load
func (s *ReadingsSource) ConformIndex(ds *frame.Dataset) (*frame.Dataset, error) {
	if err := ds.ConformIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SchemaValidated opts the stage into output validation
func (s *ReadingsSource) SchemaValidated() bool { return true }

// Register persists the columns this source contributed
func (s *ReadingsSource) Register(ctx context.Context, in, out *frame.Dataset) error {
	if s.register == nil {
		return nil
	}
	args := s.ArgMetadata()
	if out != nil {
		args["columns"] = out.NewColumns(in)
	}
	return s.register(s.entityType, s.Name(), args)
}

func (s *ReadingsSource) ArgMetadata() map[string]interface{} {
	return map[string]interface{}{
		"entity_type": s.entityType,
		"merge":       string(s.merge),
	}
}
