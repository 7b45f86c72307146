package model

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default composite key column names for entity readings
const (
	DefaultEntityColumn    = "deviceid"
	DefaultTimestampColumn = "evt_timestamp"
)

// RunSpec is the full description of one pipeline run: the entity it
// operates on, the stages to assemble and the execution options. It is
// the body of POST /api/v1/runs and of the CLI spec file
type RunSpec struct {
	Entity       EntitySpec        `json:"entity" yaml:"entity"`
	Preload      []PreloadSpec     `json:"preload,omitempty" yaml:"preload"`
	Sources      []SourceSpec      `json:"sources,omitempty" yaml:"sources"`
	Lookups      []LookupSpec      `json:"lookups,omitempty" yaml:"lookups"`
	Expressions  []ExpressionSpec  `json:"expressions,omitempty" yaml:"expressions"`
	Aggregations []AggregationSpec `json:"aggregations,omitempty" yaml:"aggregations"`
	Options      RunOptions        `json:"options" yaml:"options"`
}

// EntitySpec identifies the entity type and its declared data items
type EntitySpec struct {
	Name            string     `json:"name" yaml:"name"`
	EntityColumn    string     `json:"entityColumn,omitempty" yaml:"entityColumn"`       // defaults to deviceid
	TimestampColumn string     `json:"timestampColumn,omitempty" yaml:"timestampColumn"` // defaults to evt_timestamp
	EntityFilter    []string   `json:"entityFilter,omitempty" yaml:"entityFilter"`       // restrict runs to these entity ids
	Start           *time.Time `json:"start,omitempty" yaml:"start"`                     // window override
	End             *time.Time `json:"end,omitempty" yaml:"end"`                         // window override
	DataItems       []DataItem `json:"dataItems,omitempty" yaml:"dataItems"`
	DropAllNullRows bool       `json:"dropAllNullRows,omitempty" yaml:"dropAllNullRows"`
	ExcludeColumns  []string   `json:"excludeColumns,omitempty" yaml:"excludeColumns"` // kept out of the all-null row check
}

// PreloadSpec configures one HTTP preload stage
type PreloadSpec struct {
	URL        string `json:"url" yaml:"url"`
	OutputItem string `json:"outputItem" yaml:"outputItem"`
}

// SourceSpec configures one readings data source
type SourceSpec struct {
	EntityType string      `json:"entityType,omitempty" yaml:"entityType"` // defaults to the run entity name
	Merge      MergeMethod `json:"merge,omitempty" yaml:"merge"`           // defaults to outer
}

// LookupSpec configures one lookup stage
type LookupSpec struct {
	Kind     LookupKind  `json:"kind" yaml:"kind"`
	Property string      `json:"property,omitempty" yaml:"property"` // scd property name
	Shifts   []ShiftSpec `json:"shifts,omitempty" yaml:"shifts"`     // calendar shift plan
}

// ShiftSpec is one named shift of a custom calendar. A shift whose end
// hour is not after its start hour wraps past midnight
type ShiftSpec struct {
	Name      string `json:"name" yaml:"name"`
	StartHour int    `json:"startHour" yaml:"startHour"`
	EndHour   int    `json:"endHour" yaml:"endHour"`
}

// ExpressionSpec derives a new column from an expression over existing
// columns
type ExpressionSpec struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// AggregationSpec collapses readings into per entity time buckets. The
// metrics are applied to every numeric column
type AggregationSpec struct {
	Name    string   `json:"name" yaml:"name"`
	GroupBy string   `json:"groupBy,omitempty" yaml:"groupBy"` // day, hour or entity; defaults to day
	Metrics []string `json:"metrics" yaml:"metrics"`           // sum, avg, min, max, count, first, last
}

// RunOptions are the per-run execution switches
type RunOptions struct {
	Register        bool `json:"register,omitempty" yaml:"register"`               // persist stage output metadata
	Debug           bool `json:"debug,omitempty" yaml:"debug"`                     // write per-stage snapshot files
	DropNulls       bool `json:"dropNulls,omitempty" yaml:"dropNulls"`             // eager null row cleanup between stages
	ContinueOnError bool `json:"continueOnError,omitempty" yaml:"continueOnError"` // suppress non-fatal stage failures
}

// ParseRunSpec decodes a YAML run spec, rejecting unknown fields, and
// validates it
func ParseRunSpec(data []byte) (RunSpec, error) {
	var spec RunSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return RunSpec{}, fmt.Errorf("parse run spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return RunSpec{}, err
	}
	spec.ApplyDefaults()
	return spec, nil
}

// LoadRunSpec reads and parses a run spec file
func LoadRunSpec(path string) (RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunSpec{}, fmt.Errorf("read run spec: %w", err)
	}
	return ParseRunSpec(data)
}

// Validate checks the spec for contradictions before any stage is built
func (s *RunSpec) Validate() error {
	if s.Entity.Name == "" {
		return fmt.Errorf("run spec: entity.name is required")
	}
	for i, d := range s.Entity.DataItems {
		if d.Name == "" {
			return fmt.Errorf("run spec: dataItems[%d]: name is required", i)
		}
		if !d.Type.Valid() {
			return fmt.Errorf("run spec: data item %q: unknown type %q", d.Name, d.Type)
		}
	}
	for i, p := range s.Preload {
		if p.URL == "" {
			return fmt.Errorf("run spec: preload[%d]: url is required", i)
		}
		if p.OutputItem == "" {
			return fmt.Errorf("run spec: preload[%d]: outputItem is required", i)
		}
	}
	for i, src := range s.Sources {
		switch src.Merge {
		case "", MergeOuter, MergeReplace:
		default:
			return fmt.Errorf("run spec: sources[%d]: unknown merge method %q", i, src.Merge)
		}
	}
	for i, l := range s.Lookups {
		switch l.Kind {
		case LookupSCD:
			if l.Property == "" {
				return fmt.Errorf("run spec: lookups[%d]: scd lookup needs a property", i)
			}
		case LookupCalendar:
			if len(l.Shifts) == 0 {
				return fmt.Errorf("run spec: lookups[%d]: calendar lookup needs at least one shift", i)
			}
			for j, sh := range l.Shifts {
				if sh.Name == "" {
					return fmt.Errorf("run spec: lookups[%d].shifts[%d]: name is required", i, j)
				}
				if sh.StartHour < 0 || sh.StartHour > 23 || sh.EndHour < 0 || sh.EndHour > 24 {
					return fmt.Errorf("run spec: shift %q: hours out of range", sh.Name)
				}
			}
		default:
			return fmt.Errorf("run spec: lookups[%d]: unknown kind %q", i, l.Kind)
		}
	}
	for i, e := range s.Expressions {
		if e.Name == "" {
			return fmt.Errorf("run spec: expressions[%d]: name is required", i)
		}
		if e.Expression == "" {
			return fmt.Errorf("run spec: expression %q: expression text is required", e.Name)
		}
	}
	for i, a := range s.Aggregations {
		if a.Name == "" {
			return fmt.Errorf("run spec: aggregations[%d]: name is required", i)
		}
		if len(a.Metrics) == 0 {
			return fmt.Errorf("run spec: aggregation %q: at least one metric is required", a.Name)
		}
	}
	if s.Entity.Start != nil && s.Entity.End != nil && s.Entity.End.Before(*s.Entity.Start) {
		return fmt.Errorf("run spec: entity window end precedes start")
	}
	return nil
}

// ApplyDefaults fills the optional fields that have conventional values
func (s *RunSpec) ApplyDefaults() {
	if s.Entity.EntityColumn == "" {
		s.Entity.EntityColumn = DefaultEntityColumn
	}
	if s.Entity.TimestampColumn == "" {
		s.Entity.TimestampColumn = DefaultTimestampColumn
	}
	for i := range s.Sources {
		if s.Sources[i].EntityType == "" {
			s.Sources[i].EntityType = s.Entity.Name
		}
		if s.Sources[i].Merge == "" {
			s.Sources[i].Merge = MergeOuter
		}
	}
}

// Window returns the execution window encoded in the entity spec
func (s *RunSpec) Window() Window {
	return Window{Start: s.Entity.Start, End: s.Entity.End}
}
