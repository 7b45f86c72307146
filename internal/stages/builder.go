package stages

import (
	"context"

	"calc-pipeline/internal/entity"
	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
	"calc-pipeline/internal/store"
	"calc-pipeline/pkg/logger"
)

// Deps collects the data access the built session and stages need.
// Tests inject fakes; StoreDeps wires the sqlite store
type Deps struct {
	LoadReadings LoadFunc
	FetchSCD     FetchSCDFunc
	ListMembers  func(ctx context.Context, entityType string) ([]string, error)
	WriteMembers func(ctx context.Context, entityType string, ids []string) error
	SaveMetadata func(ctx context.Context, entityType string, payload []model.StageMetadata) error
	Register     RegisterFunc
}

// StoreDeps wires every capability to the store, shaping loaded frames
// with the spec's key columns
func StoreDeps(spec model.RunSpec) Deps {
	entityCol := spec.Entity.EntityColumn
	tsCol := spec.Entity.TimestampColumn
	if entityCol == "" {
		entityCol = model.DefaultEntityColumn
	}
	if tsCol == "" {
		tsCol = model.DefaultTimestampColumn
	}
	return Deps{
		LoadReadings: func(ctx context.Context, entityType string, win model.Window, entities []string) (*frame.Dataset, error) {
			return store.LoadFrame(ctx, entityType, win, entities, entityCol, tsCol)
		},
		FetchSCD:     store.QuerySCDProperties,
		ListMembers:  store.ListDimensionMembers,
		WriteMembers: store.InsertDimensionMembers,
		SaveMetadata: func(ctx context.Context, entityType string, payload []model.StageMetadata) error {
			for _, md := range payload {
				if err := store.SaveRegistration(entityType, md.Name, md.Args); err != nil {
					return err
				}
			}
			return nil
		},
		Register: store.SaveRegistration,
	}
}

// Build assembles the session and pipeline a run spec describes. Stage
// order is fixed: preloads, data sources, lookups, expressions over the
// raw readings, then aggregations
func Build(spec model.RunSpec, deps Deps, log *logger.Logger) (*entity.Type, *pipeline.Pipeline, error) {
	sess := entity.New(spec, entity.Deps{
		LoadReadings: deps.LoadReadings,
		ListMembers:  deps.ListMembers,
		WriteMembers: deps.WriteMembers,
		SaveMetadata: deps.SaveMetadata,
	}, log)

	p := pipeline.New(sess, log)
	for _, pre := range spec.Preload {
		p.AddStage(NewHTTPPreload(pre.URL, pre.OutputItem))
	}
	for _, src := range spec.Sources {
		entityType := src.EntityType
		if entityType == "" {
			entityType = spec.Entity.Name
		}
		source := NewReadingsSource(entityType, src.Merge, deps.LoadReadings)
		if deps.Register != nil {
			source.WithRegistration(deps.Register)
		}
		p.AddStage(source)
	}
	for _, l := range spec.Lookups {
		switch l.Kind {
		case model.LookupSCD:
			p.AddStage(NewSCDLookup(spec.Entity.Name, l.Property, deps.FetchSCD))
		case model.LookupCalendar:
			p.AddStage(NewCalendarLookup(l.Shifts))
		default:
			return nil, nil, &pipeline.ConfigError{Msg: "unknown lookup kind " + string(l.Kind)}
		}
	}
	for _, e := range spec.Expressions {
		p.AddExpression(e.Name, e.Expression)
	}
	for _, a := range spec.Aggregations {
		groupBy := a.GroupBy
		if groupBy == "" {
			groupBy = GroupByDay
		}
		agg, err := NewAggregateStage(a.Name, groupBy, a.Metrics)
		if err != nil {
			return nil, nil, &pipeline.ConfigError{Msg: err.Error()}
		}
		p.AddStage(agg)
	}
	return sess, p, nil
}
