package model

import "time"

// ColumnType is the declared semantic type of a data item
type ColumnType string

const (
	TypeNumber    ColumnType = "NUMBER"
	TypeLiteral   ColumnType = "LITERAL"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeBoolean   ColumnType = "BOOLEAN"
)

// Valid reports whether t is one of the four declared types
func (t ColumnType) Valid() bool {
	switch t {
	case TypeNumber, TypeLiteral, TypeTimestamp, TypeBoolean:
		return true
	}
	return false
}

// MergeMethod tells the source resolver how a data source combines its
// output with the dataset already flowing through the pipeline
type MergeMethod string

const (
	MergeReplace MergeMethod = "replace" // output becomes the new baseline dataset
	MergeOuter   MergeMethod = "outer"   // output is unioned into the dataset
)

// LookupKind distinguishes the supported lookup stage families
type LookupKind string

const (
	LookupSCD      LookupKind = "scd"
	LookupCalendar LookupKind = "calendar"
)

// DataItem is one declared output item of an entity type, used to
// reconcile produced column types against their declared types
type DataItem struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// Window bounds the readings an execution operates on. A nil side is
// unbounded
type Window struct {
	Start *time.Time `json:"start,omitempty" yaml:"start"`
	End   *time.Time `json:"end,omitempty" yaml:"end"`
}

// IsZero reports whether neither side is bounded
func (w Window) IsZero() bool { return w.Start == nil && w.End == nil }

func (w Window) String() string {
	side := func(t *time.Time) string {
		if t == nil {
			return "unbounded"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return side(w.Start) + " .. " + side(w.End)
}

// Contains reports whether t falls inside the window. The start bound
// is inclusive and the end bound exclusive
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && !t.Before(*w.End) {
		return false
	}
	return true
}

// StageMetadata is the registry payload describing one stage: its name
// plus the arguments it was configured with
type StageMetadata struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// TraceEntry is one line of the per-run execution trace
type TraceEntry struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Rows      int       `json:"rows"` // -1 when no dataset was attached
}

// Run status values, mirrored in the runs table
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
