package store

import (
	"context"
	"sort"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// LoadFrame queries an entity type's readings and pivots them into a
// columnar dataset keyed by the given entity and timestamp columns
func LoadFrame(ctx context.Context, entityType string, win model.Window, entities []string, entityCol, tsCol string) (*frame.Dataset, error) {
	readings, err := QueryReadings(ctx, entityType, win, entities)
	if err != nil {
		return nil, err
	}
	return FrameFromReadings(readings, entityCol, tsCol)
}

// FrameFromReadings pivots reading rows into a dataset. Metric columns
// appear in first-seen order, alphabetical within a row; a reading that
// lacks a metric another row carries contributes a null
func FrameFromReadings(readings []Reading, entityCol, tsCol string) (*frame.Dataset, error) {
	n := len(readings)
	ids := make([]interface{}, n)
	ts := make([]interface{}, n)

	var metricOrder []string
	seen := map[string]bool{}
	for i, r := range readings {
		ids[i] = r.EntityID
		ts[i] = r.Timestamp.UTC()
		keys := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				metricOrder = append(metricOrder, k)
			}
		}
	}

	ds := frame.New(entityCol, tsCol)
	if err := ds.SetColumn(frame.NewColumn(entityCol, ids)); err != nil {
		return nil, err
	}
	if err := ds.SetColumn(frame.NewColumn(tsCol, ts)); err != nil {
		return nil, err
	}
	for _, name := range metricOrder {
		values := make([]interface{}, n)
		for i, r := range readings {
			if v, ok := r.Metrics[name]; ok {
				values[i] = v
			}
		}
		if err := ds.SetColumn(frame.NewColumn(name, values)); err != nil {
			return nil, err
		}
	}
	if err := ds.ConformIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}
