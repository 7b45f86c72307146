package stages

import (
	"context"
	"fmt"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
	"calc-pipeline/internal/store"
)

// FetchSCDFunc returns the stored intervals of one slowly changing
// dimension property
type FetchSCDFunc func(ctx context.Context, entityType, property string) ([]store.SCDProperty, error)

// SCDLookup annotates each row with the value of a slowly changing
// dimension property whose interval covers the row timestamp. Rows
// outside every interval get a null. The lookup only sets a column, so
// the row count is untouched
type SCDLookup struct {
	entityType string
	property   string
	fetch      FetchSCDFunc
}

var _ pipeline.LookupStage = (*SCDLookup)(nil)

func NewSCDLookup(entityType, property string, fetch FetchSCDFunc) *SCDLookup {
	return &SCDLookup{entityType: entityType, property: property, fetch: fetch}
}

func (s *SCDLookup) Name() string                 { return "scd_" + s.property }
func (s *SCDLookup) LookupKind() model.LookupKind { return model.LookupSCD }

// ConformIndex sorts and checks the key columns before matching
func (s *SCDLookup) ConformIndex(ds *frame.Dataset) (*frame.Dataset, error) {
	if err := ds.ConformIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SchemaValidated opts the stage into output validation
func (s *SCDLookup) SchemaValidated() bool { return true }

func (s *SCDLookup) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	props, err := s.fetch(ctx, s.entityType, s.property)
	if err != nil {
		return nil, fmt.Errorf("fetch scd property %q: %w", s.property, err)
	}
	byEntity := map[string][]store.SCDProperty{}
	for _, p := range props {
		byEntity[p.EntityID] = append(byEntity[p.EntityID], p)
	}

	n := ds.NumRows()
	values := make([]interface{}, n)
	for i := 0; i < n; i++ {
		id, ok := ds.EntityAt(i)
		if !ok {
			continue
		}
		ts, ok := ds.TimeAt(i)
		if !ok {
			continue
		}
		// overlapping intervals resolve to the latest start
		var best *store.SCDProperty
		for j := range byEntity[id] {
			p := &byEntity[id][j]
			if ts.Before(p.Start) {
				continue
			}
			if p.End != nil && !ts.Before(*p.End) {
				continue
			}
			if best == nil || p.Start.After(best.Start) {
				best = p
			}
		}
		if best != nil {
			values[i] = best.Value
		}
	}
	if err := ds.SetColumn(frame.NewColumn(s.property, values)); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *SCDLookup) ArgMetadata() map[string]interface{} {
	return map[string]interface{}{
		"entity_type": s.entityType,
		"property":    s.property,
		"kind":        string(model.LookupSCD),
	}
}
