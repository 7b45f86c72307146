package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"calc-pipeline/internal/frame"
	"calc-pipeline/pkg/utils"
)

// SeedReadingsCSV loads a readings CSV into the store. The header row
// must contain the entity and timestamp columns; every other column
// becomes a metric. Returns the number of rows inserted
func SeedReadingsCSV(ctx context.Context, entityType, path, entityCol, tsCol string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open readings csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	entityIdx, tsIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case entityCol:
			entityIdx = i
		case tsCol:
			tsIdx = i
		}
	}
	if entityIdx < 0 || tsIdx < 0 {
		return 0, fmt.Errorf("csv header is missing the key columns %q and %q", entityCol, tsCol)
	}

	var readings []Reading
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv line %d: %w", line, err)
		}
		ts, err := frame.ParseTimestamp(row[tsIdx])
		if err != nil {
			return 0, fmt.Errorf("csv line %d: %w", line, err)
		}
		reading := Reading{
			EntityID:  strings.TrimSpace(row[entityIdx]),
			Timestamp: ts,
			Metrics:   map[string]interface{}{},
		}
		for i, cell := range row {
			if i == entityIdx || i == tsIdx {
				continue
			}
			if v := utils.ParseValue(cell); v != nil {
				reading.Metrics[strings.TrimSpace(header[i])] = v
			}
		}
		readings = append(readings, reading)
	}
	if err := InsertReadings(ctx, entityType, readings); err != nil {
		return 0, err
	}
	return len(readings), nil
}

// SeedSCDCSV loads slowly changing dimension intervals from a CSV with
// the fixed header entity_id,value,start,end. An empty end cell marks
// the interval as still current
func SeedSCDCSV(ctx context.Context, entityType, property, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open scd csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, want := range []string{"entity_id", "value", "start"} {
		if _, ok := idx[want]; !ok {
			return 0, fmt.Errorf("scd csv header is missing %q", want)
		}
	}

	count := 0
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv line %d: %w", line, err)
		}
		start, err := frame.ParseTimestamp(row[idx["start"]])
		if err != nil {
			return 0, fmt.Errorf("csv line %d: %w", line, err)
		}
		p := SCDProperty{
			EntityID: strings.TrimSpace(row[idx["entity_id"]]),
			Value:    strings.TrimSpace(row[idx["value"]]),
			Start:    start,
		}
		if endIdx, ok := idx["end"]; ok && strings.TrimSpace(row[endIdx]) != "" {
			end, err := frame.ParseTimestamp(row[endIdx])
			if err != nil {
				return 0, fmt.Errorf("csv line %d: %w", line, err)
			}
			p.End = &end
		}
		if err := InsertSCDProperty(ctx, entityType, property, p); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}
