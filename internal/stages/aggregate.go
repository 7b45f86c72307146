package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
)

// Supported aggregation granularities
const (
	GroupByDay    = "day"
	GroupByHour   = "hour"
	GroupByEntity = "entity"
)

var aggregateMetrics = map[string]bool{
	"sum": true, "avg": true, "min": true, "max": true,
	"count": true, "first": true, "last": true,
}

// AggregateStage collapses readings into one row per entity and time
// bucket, applying each requested metric to every numeric column. The
// output keeps the composite key: the timestamp column carries the
// bucket start, or the group's earliest reading for whole window
// grouping. Derived columns are named metric_column
type AggregateStage struct {
	name    string
	groupBy string
	metrics []string
}

var _ pipeline.TransformStage = (*AggregateStage)(nil)

func NewAggregateStage(name, groupBy string, metrics []string) (*AggregateStage, error) {
	switch groupBy {
	case GroupByDay, GroupByHour, GroupByEntity:
	default:
		return nil, fmt.Errorf("aggregation %q: unknown granularity %q", name, groupBy)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("aggregation %q: no metrics requested", name)
	}
	cleaned := make([]string, len(metrics))
	for i, m := range metrics {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "average" {
			m = "avg"
		}
		if !aggregateMetrics[m] {
			return nil, fmt.Errorf("aggregation %q: unsupported metric %q", name, metrics[i])
		}
		cleaned[i] = m
	}
	return &AggregateStage{name: name, groupBy: groupBy, metrics: cleaned}, nil
}

func (a *AggregateStage) Name() string { return "aggregate_" + a.name }

// ConformIndex sorts and checks the key columns; grouping relies on the
// sorted order
func (a *AggregateStage) ConformIndex(ds *frame.Dataset) (*frame.Dataset, error) {
	if err := ds.ConformIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SchemaValidated opts the stage into output validation
func (a *AggregateStage) SchemaValidated() bool { return true }

// accumulator carries one group's running metrics for one column
type accumulator struct {
	count       int
	sum         float64
	min, max    float64
	first, last float64
}

func (ac *accumulator) add(v float64) {
	if ac.count == 0 {
		ac.min, ac.max, ac.first = v, v, v
	} else {
		if v < ac.min {
			ac.min = v
		}
		if v > ac.max {
			ac.max = v
		}
	}
	ac.last = v
	ac.sum += v
	ac.count++
}

func (ac *accumulator) value(metric string) interface{} {
	if metric == "count" {
		return float64(ac.count)
	}
	if ac.count == 0 {
		return nil
	}
	switch metric {
	case "sum":
		return ac.sum
	case "avg":
		return ac.sum / float64(ac.count)
	case "min":
		return ac.min
	case "max":
		return ac.max
	case "first":
		return ac.first
	case "last":
		return ac.last
	}
	return nil
}

func (a *AggregateStage) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	entityCol := ds.EntityColumn()
	tsCol := ds.TimestampColumn()

	var metricCols []string
	for _, name := range ds.ColumnNames() {
		if name == entityCol || name == tsCol {
			continue
		}
		if c, ok := ds.Column(name); ok && c.Kind == frame.KindNumber {
			metricCols = append(metricCols, name)
		}
	}

	type group struct {
		id  string
		key time.Time // grouping bucket
		ts  time.Time // output timestamp
		acc map[string]*accumulator
	}
	var groups []*group
	var cur *group

	n := ds.NumRows()
	for i := 0; i < n; i++ {
		id, ok := ds.EntityAt(i)
		if !ok {
			continue
		}
		ts, ok := ds.TimeAt(i)
		if !ok {
			continue
		}
		bucket := a.bucket(ts)
		if cur == nil || cur.id != id || !cur.key.Equal(bucket) {
			cur = &group{id: id, key: bucket, ts: bucket, acc: map[string]*accumulator{}}
			// whole window grouping keeps the earliest reading as the key
			if a.groupBy == GroupByEntity {
				cur.ts = ts
			}
			groups = append(groups, cur)
		}
		for _, name := range metricCols {
			c, _ := ds.Column(name)
			if v, ok := c.Float(i); ok {
				ac := cur.acc[name]
				if ac == nil {
					ac = &accumulator{}
					cur.acc[name] = ac
				}
				ac.add(v)
			}
		}
	}

	out := frame.New(entityCol, tsCol)
	ids := make([]interface{}, len(groups))
	ts := make([]interface{}, len(groups))
	for i, g := range groups {
		ids[i] = g.id
		ts[i] = g.ts
	}
	if err := out.SetColumn(frame.NewColumn(entityCol, ids)); err != nil {
		return nil, err
	}
	if err := out.SetColumn(frame.NewColumn(tsCol, ts)); err != nil {
		return nil, err
	}
	for _, name := range metricCols {
		for _, metric := range a.metrics {
			values := make([]interface{}, len(groups))
			for i, g := range groups {
				ac := g.acc[name]
				if ac == nil {
					ac = &accumulator{}
				}
				values[i] = ac.value(metric)
			}
			if err := out.SetColumn(frame.NewColumn(metric+"_"+name, values)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// bucket truncates a timestamp to the grouping granularity
func (a *AggregateStage) bucket(ts time.Time) time.Time {
	switch a.groupBy {
	case GroupByDay:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	case GroupByHour:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, ts.Location())
	default:
		return time.Time{}
	}
}

func (a *AggregateStage) ArgMetadata() map[string]interface{} {
	return map[string]interface{}{
		"group_by": a.groupBy,
		"metrics":  a.metrics,
	}
}
