package entity

import (
	"time"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
)

// Fault is one failure handed to the session's fault handler, kept for
// persistence after the run finishes
type Fault struct {
	Stage   string                `json:"stage"`
	Class   pipeline.FailureClass `json:"class"`
	Message string                `json:"message"`
	Raised  bool                  `json:"raised"` // false when the failure was suppressed
	At      time.Time             `json:"at"`
}

// TraceAppend records one trace line. A nil dataset records no row
// count
func (t *Type) TraceAppend(stage, message string, ds *frame.Dataset) {
	rows := -1
	if ds != nil {
		rows = ds.NumRows()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trace = append(t.trace, model.TraceEntry{
		Seq:       len(t.trace),
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		Message:   message,
		Rows:      rows,
	})
}

// Trace returns a copy of the execution trace so far
func (t *Type) Trace() []model.TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.TraceEntry(nil), t.trace...)
}

// RaiseError is the central fault handler. Every failure is recorded;
// the abort flag decides raise versus suppress
func (t *Type) RaiseError(err error, abort bool, stage string) error {
	class := pipeline.ClassifyFailure(err)
	t.mu.Lock()
	t.faults = append(t.faults, Fault{
		Stage:   stage,
		Class:   class,
		Message: err.Error(),
		Raised:  abort,
		At:      time.Now().UTC(),
	})
	t.mu.Unlock()
	if abort {
		t.log.Error("stage failure raised", "stage", stage, "class", string(class), "error", err)
		return err
	}
	t.log.Warn("stage failure suppressed", "stage", stage, "class", string(class), "error", err)
	return nil
}

// Faults returns a copy of every failure seen by the fault handler
func (t *Type) Faults() []Fault {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Fault(nil), t.faults...)
}
