package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// InitDB opens the database and bootstraps the schema
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			spec TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			seq INTEGER,
			stage TEXT,
			message TEXT,
			row_count INTEGER,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			class TEXT,
			error_message TEXT,
			raised BOOLEAN,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_results (
			run_id TEXT PRIMARY KEY,
			records TEXT,
			row_count INTEGER,
			column_count INTEGER,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS registrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT,
			stage TEXT,
			args TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT,
			entity_id TEXT,
			ts DATETIME,
			metrics TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS scd_properties (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT,
			property TEXT,
			entity_id TEXT,
			value TEXT,
			start_ts DATETIME,
			end_ts DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS dimension_members (
			entity_type TEXT,
			entity_id TEXT,
			created_at DATETIME,
			PRIMARY KEY (entity_type, entity_id)
		);`,
		`CREATE TABLE IF NOT EXISTS output_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			file_name TEXT,
			file_path TEXT,
			file_type TEXT,
			file_size INTEGER,
			created_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CloseDB closes the database handle
func CloseDB() error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// SaveRun stores a new pipeline run in pending state
func SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, specJSON, model.StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// ListRuns returns all runs with basic info
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches the full run spec and status
func GetRun(runID string) (map[string]interface{}, error) {
	var specJSON string
	var status string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.RunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// GetRunSpec fetches only the stored spec for a run
func GetRunSpec(runID string) (model.RunSpec, error) {
	var spec model.RunSpec
	var specJSON string
	err := db.QueryRow(`SELECT spec FROM runs WHERE id = ?`, runID).Scan(&specJSON)
	if err != nil {
		return spec, err
	}
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return spec, fmt.Errorf("decode stored run spec: %w", err)
	}
	return spec, nil
}

// SaveRunError records one classified failure for a run
func SaveRunError(runID, stage, class, message string, raised bool) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_errors (run_id, stage, class, error_message, raised, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, class, message, raised, now)
	return err
}

// GetRunErrors returns every recorded failure for a run
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stage, class, error_message, raised, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []map[string]interface{}
	for rows.Next() {
		var stage, class, message string
		var raised bool
		var createdAt time.Time
		if err := rows.Scan(&stage, &class, &message, &raised, &createdAt); err != nil {
			return nil, err
		}
		errs = append(errs, map[string]interface{}{
			"stage":     stage,
			"class":     class,
			"message":   message,
			"raised":    raised,
			"createdAt": createdAt,
		})
	}
	return errs, rows.Err()
}

// SaveTrace replaces the stored execution trace for a run
func SaveTrace(runID string, entries []model.TraceEntry) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM run_traces WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return err
	}
	for _, e := range entries {
		if _, err := tx.Exec(`INSERT INTO run_traces (run_id, seq, stage, message, row_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, e.Seq, e.Stage, e.Message, e.Rows, e.Timestamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetTrace returns the stored execution trace in sequence order
func GetTrace(runID string) ([]model.TraceEntry, error) {
	rows, err := db.Query(`SELECT seq, stage, message, row_count, created_at FROM run_traces WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TraceEntry
	for rows.Next() {
		var e model.TraceEntry
		if err := rows.Scan(&e.Seq, &e.Stage, &e.Message, &e.Rows, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveRunResult stores the final dataset of a run as JSON records
func SaveRunResult(runID string, ds *frame.Dataset) error {
	records, err := json.Marshal(ds.Records(0))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT OR REPLACE INTO run_results (run_id, records, row_count, column_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, records, ds.NumRows(), ds.NumColumns(), now)
	return err
}

// GetRunResult returns up to limit records of the stored final dataset.
// A limit of zero or less returns everything
func GetRunResult(runID string, limit int) ([]map[string]interface{}, int, error) {
	var recordsJSON string
	var rowCount int
	err := db.QueryRow(`SELECT records, row_count FROM run_results WHERE run_id = ?`, runID).
		Scan(&recordsJSON, &rowCount)
	if err != nil {
		return nil, 0, err
	}

	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(recordsJSON), &records); err != nil {
		return nil, 0, err
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, rowCount, nil
}

// SaveRegistration persists one published stage metadata payload
func SaveRegistration(entityType, stage string, args map[string]interface{}) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO registrations (entity_type, stage, args, created_at) VALUES (?, ?, ?, ?)`,
		entityType, stage, argsJSON, now)
	return err
}

// ListRegistrations returns every registered stage metadata payload
func ListRegistrations() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT entity_type, stage, args, created_at FROM registrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []map[string]interface{}
	for rows.Next() {
		var entityType, stage, argsJSON string
		var createdAt time.Time
		if err := rows.Scan(&entityType, &stage, &argsJSON, &createdAt); err != nil {
			return nil, err
		}
		args := map[string]interface{}{}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, err
		}
		regs = append(regs, map[string]interface{}{
			"entityType": entityType,
			"stage":      stage,
			"args":       args,
			"createdAt":  createdAt,
		})
	}
	return regs, rows.Err()
}

// SaveOutputFile records a file produced under the run's output dir
func SaveOutputFile(runID, fileName, filePath, fileType string, fileSize int64) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO output_files (run_id, file_name, file_path, file_type, file_size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, fileName, filePath, fileType, fileSize, now)
	return err
}

// GetOutputFiles returns the recorded output files for a run
func GetOutputFiles(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT file_name, file_path, file_type, file_size, created_at FROM output_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []map[string]interface{}
	for rows.Next() {
		var name, path, ftype string
		var size int64
		var createdAt time.Time
		if err := rows.Scan(&name, &path, &ftype, &size, &createdAt); err != nil {
			return nil, err
		}
		files = append(files, map[string]interface{}{
			"fileName":  name,
			"filePath":  path,
			"fileType":  ftype,
			"fileSize":  size,
			"createdAt": createdAt,
		})
	}
	return files, rows.Err()
}
