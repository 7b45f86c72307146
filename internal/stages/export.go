package stages

import (
	"encoding/json"
	"fmt"
	"os"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/pipeline"
	"calc-pipeline/internal/store"
	"calc-pipeline/pkg/utils"
)

// RunSnapshots writes per stage debug snapshots into a run's output
// directory and records them as downloadable files
type RunSnapshots struct {
	om    *utils.OutputManager
	runID string
}

var _ pipeline.SnapshotWriter = (*RunSnapshots)(nil)

func NewRunSnapshots(om *utils.OutputManager, runID string) *RunSnapshots {
	return &RunSnapshots{om: om, runID: runID}
}

func (s *RunSnapshots) WriteSnapshot(name string, ds *frame.Dataset) error {
	return writeCSVOutput(s.om, s.runID, name+".csv", ds)
}

// WriteRunOutputs persists a run's final dataset as both a CSV and a
// JSON file under the run's output directory
func WriteRunOutputs(runID string, ds *frame.Dataset, om *utils.OutputManager) error {
	if err := writeCSVOutput(om, runID, "result.csv", ds); err != nil {
		return err
	}
	return writeJSONOutput(om, runID, "result.json", ds)
}

func writeCSVOutput(om *utils.OutputManager, runID, fileName string, ds *frame.Dataset) error {
	path, err := om.FilePath(runID, fileName)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := ds.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return recordOutput(om, runID, fileName, path)
}

func writeJSONOutput(om *utils.OutputManager, runID, fileName string, ds *frame.Dataset) error {
	path, err := om.FilePath(runID, fileName)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(ds.Records(0), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return recordOutput(om, runID, fileName, path)
}

// recordOutput registers a written file so the API can list and serve
// it. Size is advisory
func recordOutput(om *utils.OutputManager, runID, fileName, path string) error {
	size, err := om.FileSize(path)
	if err != nil {
		size = 0
	}
	return store.SaveOutputFile(runID, fileName, path, om.FileType(fileName), size)
}
