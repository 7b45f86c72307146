package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"calc-pipeline/internal/model"
	"calc-pipeline/internal/stages"
	"calc-pipeline/internal/store"
	"calc-pipeline/pkg/logger"
	"calc-pipeline/pkg/utils"
)

var (
	log     = logger.Nop()
	outputs = utils.NewOutputManager("outputs")
)

// Init wires the handlers to the process logger and output directory
func Init(l *logger.Logger, om *utils.OutputManager) {
	if l != nil {
		log = l
	}
	if om != nil {
		outputs = om
	}
}

const runPathPrefix = "/api/v1/runs/"

// runIDFromPath slices the run id out of /api/v1/runs/{id}{suffix}
func runIDFromPath(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, runPathPrefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := path[len(runPathPrefix) : len(path)-len(suffix)]
	return id, id != "" && !strings.Contains(id, "/")
}

// CreateRun creates a new pipeline run
// @Summary Create a new run
// @Description Store a run spec and start executing it in the background
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run spec"
// @Success 200 {object} map[string]interface{} "Run created"
// @Failure 400 {object} map[string]interface{} "Invalid run spec"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := spec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	spec.ApplyDefaults()

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	go func() {
		// ExecuteRun persists its own status, trace and errors
		stages.ExecuteRun(context.Background(), runID, spec, outputs, log)
	}()

	resp := map[string]interface{}{
		"message":   "Run created successfully!",
		"runID":     runID,
		"status":    model.StatusPending,
		"createdAt": time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListRuns retrieves all runs
// @Summary List all runs
// @Description Get every stored run with its current status
// @Tags runs
// @Accept json
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun retrieves a specific run
// @Summary Get run
// @Description Retrieve a run's spec and status
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunTrace retrieves the execution trace of a run
// @Summary Get run trace
// @Description Retrieve the ordered execution trace recorded for a run
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run trace"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/trace [get]
func GetRunTrace(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/trace")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	trace, err := store.GetTrace(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve trace", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"trace":  trace,
		"count":  len(trace),
	})
}

// GetRunErrors retrieves the classified failures of a run
// @Summary Get run errors
// @Description Retrieve every failure recorded during a run, raised or suppressed
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/errors")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	errs, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunResult retrieves the final dataset rows of a run
// @Summary Get run result
// @Description Retrieve the result rows a completed run produced
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param limit query int false "Maximum rows to return" default(100)
// @Success 200 {object} map[string]interface{} "Result rows"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/result [get]
func GetRunResult(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/result")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	rows, total, err := store.GetRunResult(runID, limit)
	if err != nil {
		http.Error(w, "Failed to retrieve result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":     runID,
		"rows":       rows,
		"count":      len(rows),
		"total_rows": total,
		"limit":      limit,
	})
}

// GetRunFiles retrieves the output files of a run
// @Summary Get run files
// @Description List the downloadable files a run wrote
// @Tags files
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run files"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/files [get]
func GetRunFiles(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/files")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	files, err := store.GetOutputFiles(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve files", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"files":  files,
		"count":  len(files),
	})
}

// ListRegistrations retrieves the published stage metadata
// @Summary List registrations
// @Description Get the stage output metadata registered by runs
// @Tags registrations
// @Accept json
// @Produce json
// @Success 200 {array} map[string]interface{} "Registrations"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /registrations [get]
func ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := store.ListRegistrations()
	if err != nil {
		http.Error(w, "Failed to fetch registrations", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(regs)
}

// DownloadFile serves an output file for download
// @Summary Download file
// @Description Download one output file of a run
// @Tags files
// @Accept json
// @Produce application/octet-stream
// @Param runID path string true "Run ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "File download"
// @Failure 400 {object} map[string]interface{} "Invalid URL format"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /download/{runID}/{filename} [get]
func DownloadFile(w http.ResponseWriter, r *http.Request) {
	// URL format: /api/v1/download/{runID}/{filename}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 5 {
		http.Error(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	runID, fileName := parts[3], parts[4]

	filePath, err := outputs.FilePath(runID, fileName)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, filePath)
}
