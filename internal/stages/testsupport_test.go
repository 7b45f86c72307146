package stages

import (
	"sort"
	"testing"
	"time"

	"calc-pipeline/internal/frame"
)

// mkFrame builds a keyed dataset for stage tests. Rows are given in
// order; callers wanting a conformed frame pass them sorted
func mkFrame(t *testing.T, ids []string, times []time.Time, cols map[string][]interface{}) *frame.Dataset {
	t.Helper()
	idVals := make([]interface{}, len(ids))
	for i, id := range ids {
		idVals[i] = id
	}
	tsVals := make([]interface{}, len(times))
	for i, ts := range times {
		tsVals[i] = ts
	}
	d := frame.New("deviceid", "evt_timestamp")
	if err := d.SetColumn(frame.NewColumn("deviceid", idVals)); err != nil {
		t.Fatalf("SetColumn deviceid: %v", err)
	}
	if err := d.SetColumn(frame.NewColumn("evt_timestamp", tsVals)); err != nil {
		t.Fatalf("SetColumn evt_timestamp: %v", err)
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.SetColumn(frame.NewColumn(name, cols[name])); err != nil {
			t.Fatalf("SetColumn %s: %v", name, err)
		}
	}
	return d
}

// hour is midnight of the given May 2024 day plus h hours
func hour(day, h int) time.Time {
	return time.Date(2024, 5, day, h, 0, 0, 0, time.UTC)
}

// columnValues extracts a column's raw values for comparison
func columnValues(t *testing.T, d *frame.Dataset, name string) []interface{} {
	t.Helper()
	c, ok := d.Column(name)
	if !ok {
		t.Fatalf("column %q is missing, have %v", name, d.ColumnNames())
	}
	return c.Values
}
