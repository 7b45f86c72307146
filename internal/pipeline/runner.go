package pipeline

import (
	"context"
	"errors"
	"fmt"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"

	"calc-pipeline/pkg/utils"
)

// runStage drives one bound stage through the full step sequence:
// conform the incoming index, execute, classify anything thrown, merge
// when the stage is a source, validate the output, register it, clean
// nulls out of the new columns and snapshot the result.
//
// The effective abort policy is the pipeline default, overridden by the
// stage's own declaration, overridden by forceAbort. A suppressed
// failure returns the incoming dataset untouched
func (p *Pipeline) runStage(ctx context.Context, b *binding, ds *frame.Dataset, win model.Window, entities []string, opts Options, forceAbort bool, merge func(in, raw *frame.Dataset) (*frame.Dataset, error)) (*frame.Dataset, error) {
	name := b.stage.Name()
	abort := !opts.ContinueOnError
	if b.abort != nil {
		abort = *b.abort
	}
	if forceAbort {
		abort = true
	}

	// conform the incoming dataset's key columns
	if b.conform != nil {
		conformed, err := b.conform.ConformIndex(ds)
		if err != nil {
			serr := &StageError{Stage: name, Class: FailIndexConformance, Err: err}
			p.sess.TraceAppend(name, traceNote(FailIndexConformance, name), ds)
			if raised := p.sess.RaiseError(serr, abort, name); raised != nil {
				return nil, raised
			}
			return ds, nil
		}
		ds = conformed
	}

	p.sess.TraceAppend(name, fmt.Sprintf("Stage %s. ", name), ds)
	inChk := checkFrame(ds)

	// execute, then classify anything it threw
	out, err := b.exec.Execute(ctx, ds, win, entities)
	if err == nil && out == nil {
		err = fmt.Errorf("stage %s returned no dataset", name)
	}
	if err == nil && merge != nil {
		out, err = merge(ds, out)
	}
	if err != nil {
		serr := toStageError(name, err)
		p.sess.TraceAppend(name, traceNote(serr.Class, name), nil)
		if raised := p.sess.RaiseError(serr, abort, name); raised != nil {
			return nil, raised
		}
		p.log.Warn("stage failure suppressed; dataset unchanged", "stage", name, "error", serr)
		return ds, nil
	}

	// output validation is opt in
	if b.validate {
		if verr := p.validateOutput(name, inChk, out); verr != nil {
			serr := toStageError(name, verr)
			p.sess.TraceAppend(name, traceNote(serr.Class, name), nil)
			// reconciliation failures are fatal no matter the policy
			if raised := p.sess.RaiseError(serr, true, name); raised != nil {
				return nil, raised
			}
			return nil, serr
		}
	} else {
		p.log.Debug("stage has no output validation; skipping", "stage", name)
	}

	// registration is best effort
	if opts.Register {
		if b.registrar != nil {
			if rerr := b.registrar.Register(ctx, ds, out); rerr != nil {
				p.log.Warn("could not register stage output", "stage", name, "error", rerr)
			}
		} else {
			p.log.Warn("stage has no register capability; skipping registration", "stage", name)
		}
	}

	// null cleanup over the columns this stage added
	if opts.DropNulls {
		cleared := out.NormalizeInf()
		var added []string
		for _, n := range out.ColumnNames() {
			if _, existed := inChk.kinds[n]; !existed {
				added = append(added, n)
			}
		}
		dropped := 0
		if len(added) > 0 {
			dropped = out.DropAllNullRows(added)
		}
		if cleared > 0 || dropped > 0 {
			p.log.Debug("null cleanup", "stage", name, "cleared", cleared, "rows", dropped)
		}
	}

	// debug snapshot
	if opts.Debug && opts.Snapshots != nil {
		snapName := "debug_out_" + utils.SanitizeName(name)
		if serr := opts.Snapshots.WriteSnapshot(snapName, out); serr != nil {
			p.log.Warn("could not write debug snapshot", "stage", name, "error", serr)
		}
	}

	p.sess.TraceAppend(name, fmt.Sprintf("Completed stage %s. ", name), out)
	return out, nil
}

func toStageError(stage string, err error) *StageError {
	var serr *StageError
	if errors.As(err, &serr) {
		return serr
	}
	return &StageError{Stage: stage, Class: ClassifyFailure(err), Err: err}
}
