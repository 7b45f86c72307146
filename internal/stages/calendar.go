package stages

import (
	"context"
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
)

// Column names the calendar lookup contributes
const (
	ShiftColumn    = "shift"
	ShiftDayColumn = "shift_day"
)

// CalendarLookup maps each row timestamp onto a named shift of a custom
// calendar. It derives two columns: the shift name and the calendar day
// the shift belongs to. A shift that wraps past midnight attributes its
// early hours to the previous day. Rows outside every shift get nulls
type CalendarLookup struct {
	shifts []model.ShiftSpec
}

var _ pipeline.LookupStage = (*CalendarLookup)(nil)

func NewCalendarLookup(shifts []model.ShiftSpec) *CalendarLookup {
	return &CalendarLookup{shifts: shifts}
}

func (c *CalendarLookup) Name() string                 { return "shift_calendar" }
func (c *CalendarLookup) LookupKind() model.LookupKind { return model.LookupCalendar }

// ConformIndex sorts and checks the key columns before matching
func (c *CalendarLookup) ConformIndex(ds *frame.Dataset) (*frame.Dataset, error) {
	if err := ds.ConformIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SchemaValidated opts the stage into output validation
func (c *CalendarLookup) SchemaValidated() bool { return true }

func (c *CalendarLookup) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	n := ds.NumRows()
	names := make([]interface{}, n)
	days := make([]interface{}, n)
	for i := 0; i < n; i++ {
		ts, ok := ds.TimeAt(i)
		if !ok {
			continue
		}
		shift, day, ok := c.resolve(ts)
		if !ok {
			continue
		}
		names[i] = shift
		days[i] = day
	}
	if err := ds.SetColumn(frame.NewColumn(ShiftColumn, names)); err != nil {
		return nil, err
	}
	if err := ds.SetColumn(frame.NewColumn(ShiftDayColumn, days)); err != nil {
		return nil, err
	}
	return ds, nil
}

// resolve finds the shift covering the timestamp's hour. The first
// matching shift in plan order wins
func (c *CalendarLookup) resolve(ts time.Time) (string, time.Time, bool) {
	hour := ts.Hour()
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	for _, s := range c.shifts {
		if s.StartHour < s.EndHour {
			if hour >= s.StartHour && hour < s.EndHour {
				return s.Name, day, true
			}
			continue
		}
		// wraps past midnight
		if hour >= s.StartHour {
			return s.Name, day, true
		}
		if hour < s.EndHour {
			return s.Name, day.AddDate(0, 0, -1), true
		}
	}
	return "", time.Time{}, false
}

func (c *CalendarLookup) ArgMetadata() map[string]interface{} {
	plan := make([]interface{}, len(c.shifts))
	for i, s := range c.shifts {
		plan[i] = map[string]interface{}{
			"name":       s.Name,
			"start_hour": s.StartHour,
			"end_hour":   s.EndHour,
		}
	}
	return map[string]interface{}{
		"kind":   string(model.LookupCalendar),
		"shifts": plan,
	}
}
