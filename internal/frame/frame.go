package frame

import (
	"math"
	"sort"
	"time"
)

// Dataset is an in-memory, column-oriented table of entity readings.
// Every row belongs to the composite key (entity id, timestamp); the two
// key columns are named at construction and survive every transform
type Dataset struct {
	entityCol string
	tsCol     string
	cols      []*Column
	byName    map[string]int
}

// New creates an empty dataset keyed by the given entity id and
// timestamp column names
func New(entityCol, tsCol string) *Dataset {
	return &Dataset{entityCol: entityCol, tsCol: tsCol, byName: map[string]int{}}
}

// EntityColumn returns the entity id column name
func (d *Dataset) EntityColumn() string { return d.entityCol }

// TimestampColumn returns the timestamp column name
func (d *Dataset) TimestampColumn() string { return d.tsCol }

// KeyColumns returns the two composite key column names
func (d *Dataset) KeyColumns() []string { return []string{d.entityCol, d.tsCol} }

// NumRows returns the row count
func (d *Dataset) NumRows() int {
	if len(d.cols) == 0 {
		return 0
	}
	return d.cols[0].Len()
}

// NumColumns returns the column count
func (d *Dataset) NumColumns() int { return len(d.cols) }

// Empty reports whether the dataset holds no rows
func (d *Dataset) Empty() bool { return d.NumRows() == 0 }

// ColumnNames returns the column names in insertion order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// HasColumn reports whether a column exists
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// SetColumn adds a column or replaces the one with the same name. The
// column length must match the dataset row count unless the dataset has
// no columns yet
func (d *Dataset) SetColumn(c *Column) error {
	if c == nil || c.Name == "" {
		return TypeErrorf("cannot set an unnamed column")
	}
	if len(d.cols) > 0 && c.Len() != d.NumRows() {
		return TypeErrorf("column %s has %d rows, dataset has %d", c.Name, c.Len(), d.NumRows())
	}
	if i, ok := d.byName[c.Name]; ok {
		d.cols[i] = c
		return nil
	}
	d.byName[c.Name] = len(d.cols)
	d.cols = append(d.cols, c)
	return nil
}

// DropColumn removes a column if present
func (d *Dataset) DropColumn(name string) {
	i, ok := d.byName[name]
	if !ok {
		return
	}
	d.cols = append(d.cols[:i], d.cols[i+1:]...)
	delete(d.byName, name)
	for j := i; j < len(d.cols); j++ {
		d.byName[d.cols[j].Name] = j
	}
}

// EntityAt returns the entity id of row i
func (d *Dataset) EntityAt(i int) (string, bool) {
	c, ok := d.Column(d.entityCol)
	if !ok {
		return "", false
	}
	return c.Str(i)
}

// TimeAt returns the timestamp of row i
func (d *Dataset) TimeAt(i int) (time.Time, bool) {
	c, ok := d.Column(d.tsCol)
	if !ok {
		return time.Time{}, false
	}
	return c.Time(i)
}

// CheckIndex verifies that both key columns exist and carry the right
// kind. Columns with no observed values cannot contradict the key
// contract and pass
func (d *Dataset) CheckIndex() error {
	ec, ok := d.Column(d.entityCol)
	if !ok {
		return IndexErrorf("dataset has no entity id column %q", d.entityCol)
	}
	if ec.Kind != KindUnknown && ec.Kind != KindString {
		return IndexErrorf("entity id column %q is %s, expected string", d.entityCol, ec.Kind)
	}
	tc, ok := d.Column(d.tsCol)
	if !ok {
		return IndexErrorf("dataset has no timestamp column %q", d.tsCol)
	}
	if tc.Kind != KindUnknown && tc.Kind != KindTimestamp {
		return IndexErrorf("timestamp column %q is %s, expected timestamp", d.tsCol, tc.Kind)
	}
	return nil
}

// SortByKey orders rows by (entity id, timestamp), nulls first. The
// sort is stable so equal keys keep their relative order
func (d *Dataset) SortByKey() {
	n := d.NumRows()
	if n < 2 {
		return
	}
	ec, _ := d.Column(d.entityCol)
	tc, _ := d.Column(d.tsCol)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	key := func(i int) (string, time.Time) {
		var id string
		var ts time.Time
		if ec != nil {
			id, _ = ec.Str(i)
		}
		if tc != nil {
			ts, _ = tc.Time(i)
		}
		return id, ts
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ida, tsa := key(perm[a])
		idb, tsb := key(perm[b])
		if ida != idb {
			return ida < idb
		}
		return tsa.Before(tsb)
	})
	d.reorder(perm)
}

func (d *Dataset) reorder(perm []int) {
	for _, c := range d.cols {
		values := make([]interface{}, len(perm))
		for i, j := range perm {
			values[i] = c.Values[j]
		}
		c.Values = values
	}
}

// ConformIndex checks the key columns and sorts rows by key
func (d *Dataset) ConformIndex() error {
	if err := d.CheckIndex(); err != nil {
		return err
	}
	d.SortByKey()
	return nil
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	out := New(d.entityCol, d.tsCol)
	for _, c := range d.cols {
		out.SetColumn(c.Clone())
	}
	return out
}

// AppendRows unions another dataset's rows into this one. Columns are
// matched by name; a column present on only one side is null-filled on
// the other. Matching columns must agree on kind
func (d *Dataset) AppendRows(other *Dataset) error {
	if other == nil || other.NumRows() == 0 {
		return nil
	}
	if d.entityCol != other.entityCol || d.tsCol != other.tsCol {
		return TypeErrorf("cannot union datasets keyed by %s/%s and %s/%s",
			d.entityCol, d.tsCol, other.entityCol, other.tsCol)
	}
	for _, oc := range other.cols {
		if dc, ok := d.Column(oc.Name); ok {
			if dc.Kind != KindUnknown && oc.Kind != KindUnknown && dc.Kind != oc.Kind {
				return TypeErrorf("column %s is %s here but %s in the appended rows", oc.Name, dc.Kind, oc.Kind)
			}
		}
	}
	if len(d.cols) == 0 {
		for _, oc := range other.cols {
			d.SetColumn(oc.Clone())
		}
		return nil
	}
	n, m := d.NumRows(), other.NumRows()
	for _, dc := range d.cols {
		if oc, ok := other.Column(dc.Name); ok {
			dc.Values = append(dc.Values, oc.Values...)
			if dc.Kind == KindUnknown {
				dc.Kind = oc.Kind
			}
		} else {
			dc.Values = append(dc.Values, make([]interface{}, m)...)
		}
	}
	for _, oc := range other.cols {
		if d.HasColumn(oc.Name) {
			continue
		}
		values := make([]interface{}, n, n+m)
		values = append(values, oc.Values...)
		d.SetColumn(&Column{Name: oc.Name, Kind: oc.Kind, Values: values})
	}
	return nil
}

// NormalizeInf nulls out every non-finite number and returns how many
// values were cleared
func (d *Dataset) NormalizeInf() int {
	cleared := 0
	for _, c := range d.cols {
		if c.Kind != KindNumber {
			continue
		}
		for i, v := range c.Values {
			if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
				c.Values[i] = nil
				cleared++
			}
		}
	}
	return cleared
}

// DropNullRows removes every row with a null in any of the subset
// columns and returns the number of rows dropped. A nil subset means
// every column; subset names that do not exist are ignored
func (d *Dataset) DropNullRows(subset []string) int {
	cols := d.cols
	if subset != nil {
		cols = nil
		for _, name := range subset {
			if c, ok := d.Column(name); ok {
				cols = append(cols, c)
			}
		}
		if len(cols) == 0 {
			return 0
		}
	}
	return d.dropRows(func(i int) bool {
		for _, c := range cols {
			if c.IsNull(i) {
				return true
			}
		}
		return false
	})
}

// DropAllNullRows removes rows that are null in every one of the subset
// columns and returns the number of rows dropped. Subset names that do
// not exist are ignored; an empty effective subset drops nothing
func (d *Dataset) DropAllNullRows(subset []string) int {
	var cols []*Column
	for _, name := range subset {
		if c, ok := d.Column(name); ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return 0
	}
	return d.dropRows(func(i int) bool {
		for _, c := range cols {
			if !c.IsNull(i) {
				return false
			}
		}
		return true
	})
}

func (d *Dataset) dropRows(drop func(i int) bool) int {
	n := d.NumRows()
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !drop(i) {
			keep = append(keep, i)
		}
	}
	if len(keep) == n {
		return 0
	}
	d.reorder(keep)
	return n - len(keep)
}

// NewColumns returns the names of columns present here but absent from
// the earlier dataset, in insertion order
func (d *Dataset) NewColumns(earlier *Dataset) []string {
	var names []string
	for _, c := range d.cols {
		if earlier == nil || !earlier.HasColumn(c.Name) {
			names = append(names, c.Name)
		}
	}
	return names
}

// Records renders rows as maps for JSON responses. A limit of zero or
// less returns every row
func (d *Dataset) Records(limit int) []map[string]interface{} {
	n := d.NumRows()
	if limit > 0 && limit < n {
		n = limit
	}
	records := make([]map[string]interface{}, n)
	for i := 0; i < n; i++ {
		row := make(map[string]interface{}, len(d.cols))
		for _, c := range d.cols {
			row[c.Name] = c.Values[i]
		}
		records[i] = row
	}
	return records
}
