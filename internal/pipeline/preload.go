package pipeline

import (
	"context"
	"fmt"

	"calc-pipeline/internal/model"
)

// runPreloadStages executes every preload stage in order. Preload work
// is side effect only, so the whole phase is skipped once the session's
// preload flag is set. The returned ok is false when any stage reported
// a failure status or errored, which tells the caller to discard the
// rest of the cycle. Only configuration violations surface as errors
func (p *Pipeline) runPreloadStages(ctx context.Context, preloads []PreloadStage, win model.Window, entities []string, register bool) (ok bool, items []string, err error) {
	ok = true
	if len(preloads) == 0 {
		return ok, nil, nil
	}
	if p.sess.PreloadComplete() {
		p.log.Debug("preload already complete for this session; skipping", "stages", len(preloads))
		return ok, nil, nil
	}
	for _, st := range preloads {
		name := st.Name()
		if st.OutputItem() == "" {
			return false, nil, configErrorf("preload stage %s declares no output item", name)
		}
		p.sess.TraceAppend(name, fmt.Sprintf("Running preload stage %s. ", name), nil)
		status, perr := st.Preload(ctx, win, entities)
		if perr != nil {
			p.log.Error("preload stage failed", "stage", name, "error", perr)
			p.sess.TraceAppend(name, fmt.Sprintf("Preload stage %s failed: %v. Remaining stages were discarded for this cycle. ", name, perr), nil)
			ok = false
			break
		}
		if register {
			if reg, can := st.(Registrar); can {
				if rerr := reg.Register(ctx, nil, nil); rerr != nil {
					p.log.Warn("could not register preload stage", "stage", name, "error", rerr)
				}
			}
		}
		items = append(items, st.OutputItem())
		if !status {
			p.sess.TraceAppend(name, fmt.Sprintf("Preload stage %s returned a continue value of false. Remaining stages were discarded for this cycle. ", name), nil)
			ok = false
			break
		}
	}
	// the flag is set whatever the outcome; preload never reruns on
	// this session
	p.sess.MarkPreloadComplete()
	return ok, items, nil
}
