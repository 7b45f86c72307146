package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"calc-pipeline/internal/model"
)

// Reading is one raw reading row of an entity type
type Reading struct {
	EntityID  string                 `json:"entity_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// SCDProperty is one slowly changing dimension interval. A nil End
// marks the interval as current
type SCDProperty struct {
	EntityID string     `json:"entity_id"`
	Value    string     `json:"value"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
}

// InsertReadings stores a batch of readings for an entity type
func InsertReadings(ctx context.Context, entityType string, readings []Reading) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, r := range readings {
		metricsJSON, err := json.Marshal(r.Metrics)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO readings (entity_type, entity_id, ts, metrics) VALUES (?, ?, ?, ?)`,
			entityType, r.EntityID, r.Timestamp.UTC(), metricsJSON); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QueryReadings returns an entity type's readings inside the window,
// optionally filtered to specific entity ids, ordered by id then time
func QueryReadings(ctx context.Context, entityType string, win model.Window, entities []string) ([]Reading, error) {
	query := `SELECT entity_id, ts, metrics FROM readings WHERE entity_type = ?`
	args := []interface{}{entityType}
	if win.Start != nil {
		query += ` AND ts >= ?`
		args = append(args, win.Start.UTC())
	}
	if win.End != nil {
		query += ` AND ts < ?`
		args = append(args, win.End.UTC())
	}
	if len(entities) > 0 {
		query += ` AND entity_id IN (?` + strings.Repeat(",?", len(entities)-1) + `)`
		for _, e := range entities {
			args = append(args, e)
		}
	}
	query += ` ORDER BY entity_id, ts`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		var metricsJSON string
		if err := rows.Scan(&r.EntityID, &r.Timestamp, &metricsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// InsertSCDProperty stores one slowly changing dimension interval
func InsertSCDProperty(ctx context.Context, entityType, property string, p SCDProperty) error {
	var end interface{}
	if p.End != nil {
		end = p.End.UTC()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO scd_properties (entity_type, property, entity_id, value, start_ts, end_ts) VALUES (?, ?, ?, ?, ?, ?)`,
		entityType, property, p.EntityID, p.Value, p.Start.UTC(), end)
	return err
}

// QuerySCDProperties returns every interval recorded for the property
// of an entity type
func QuerySCDProperties(ctx context.Context, entityType, property string) ([]SCDProperty, error) {
	rows, err := db.QueryContext(ctx, `SELECT entity_id, value, start_ts, end_ts FROM scd_properties WHERE entity_type = ? AND property = ? ORDER BY entity_id, start_ts`,
		entityType, property)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []SCDProperty
	for rows.Next() {
		var p SCDProperty
		var end sql.NullTime
		if err := rows.Scan(&p.EntityID, &p.Value, &p.Start, &end); err != nil {
			return nil, err
		}
		if end.Valid {
			t := end.Time
			p.End = &t
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// ListDimensionMembers returns the known entity ids of an entity type
func ListDimensionMembers(ctx context.Context, entityType string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT entity_id FROM dimension_members WHERE entity_type = ? ORDER BY entity_id`, entityType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// InsertDimensionMembers adds entity ids to the dimension, ignoring
// ones already present
func InsertDimensionMembers(ctx context.Context, entityType string, ids []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO dimension_members (entity_type, entity_id, created_at) VALUES (?, ?, ?)`,
			entityType, id, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
