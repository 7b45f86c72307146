package stages

import (
	"context"
	"fmt"

	"calc-pipeline/internal/entity"
	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
	"calc-pipeline/internal/store"
	"calc-pipeline/pkg/logger"
	"calc-pipeline/pkg/utils"
)

// ExecuteRun drives one stored run end to end: build the session and
// pipeline from the spec, execute, persist the trace, faults and result
// rows, then write the output files. The returned dataset is the run's
// final frame
func ExecuteRun(ctx context.Context, runID string, spec model.RunSpec, om *utils.OutputManager, log *logger.Logger) (*frame.Dataset, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("run", runID, "entity", spec.Entity.Name)

	if err := store.UpdateRunStatus(runID, model.StatusRunning); err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}
	log.Info("run started")

	sess, p, err := Build(spec, StoreDeps(spec), log)
	if err != nil {
		recordRunFailure(runID, nil, err, log)
		return nil, err
	}

	opts := pipeline.Options{
		Window:          spec.Window(),
		Register:        spec.Options.Register,
		Debug:           spec.Options.Debug,
		DropNulls:       spec.Options.DropNulls,
		ContinueOnError: spec.Options.ContinueOnError,
	}
	if opts.Debug && om != nil {
		opts.Snapshots = NewRunSnapshots(om, runID)
	}

	ds, err := p.Execute(ctx, nil, opts)
	persistSessionArtifacts(runID, sess, log)
	if err != nil {
		recordRunFailure(runID, sess, err, log)
		return nil, err
	}

	if err := store.SaveRunResult(runID, ds); err != nil {
		log.Warn("could not persist result rows", "error", err)
	}
	if om != nil {
		if err := WriteRunOutputs(runID, ds, om); err != nil {
			log.Warn("could not write output files", "error", err)
		}
	}
	if spec.Options.Register {
		if err := p.Publish(ctx); err != nil {
			log.Warn("could not publish stage metadata", "error", err)
		}
	}
	if err := store.UpdateRunStatus(runID, model.StatusCompleted); err != nil {
		log.Warn("could not mark run completed", "error", err)
	}
	log.Info("run completed", "rows", ds.NumRows(), "columns", ds.NumColumns())
	return ds, nil
}

// persistSessionArtifacts stores the execution trace and every recorded
// fault, raised or suppressed
func persistSessionArtifacts(runID string, sess *entity.Type, log *logger.Logger) {
	if err := store.SaveTrace(runID, sess.Trace()); err != nil {
		log.Warn("could not persist trace", "error", err)
	}
	for _, f := range sess.Faults() {
		if err := store.SaveRunError(runID, f.Stage, string(f.Class), f.Message, f.Raised); err != nil {
			log.Warn("could not persist fault", "stage", f.Stage, "error", err)
		}
	}
}

// recordRunFailure marks the run failed. Errors that never went through
// the session's fault handler, like configuration errors raised while
// the pipeline is still being assembled, get their own error row
func recordRunFailure(runID string, sess *entity.Type, err error, log *logger.Logger) {
	recorded := false
	if sess != nil {
		for _, f := range sess.Faults() {
			if f.Raised {
				recorded = true
				break
			}
		}
	}
	if !recorded {
		class := string(pipeline.ClassifyFailure(err))
		if serr := store.SaveRunError(runID, "pipeline", class, err.Error(), true); serr != nil {
			log.Warn("could not persist run error", "error", serr)
		}
	}
	if serr := store.UpdateRunStatus(runID, model.StatusFailed); serr != nil {
		log.Warn("could not mark run failed", "error", serr)
	}
	log.Error("run failed", "error", err)
}
