package pipeline

import (
	"context"
	"fmt"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// runDataSources resolves the baseline dataset: replace sources first,
// each becoming the new baseline, then outer sources unioned in, then
// lookups decorating the merged rows. Source and lookup failures are
// always fatal here regardless of any stage or pipeline abort policy
func (p *Pipeline) runDataSources(ctx context.Context, c *Classified, ds *frame.Dataset, win model.Window, entities []string, opts Options) (*frame.Dataset, error) {
	for _, b := range c.Primary {
		out, err := p.runStage(ctx, b, ds, win, entities, opts, true, mergeReplace)
		if err != nil {
			return nil, err
		}
		ds = out
	}
	for _, b := range c.Secondary {
		out, err := p.runStage(ctx, b, ds, win, entities, opts, true, mergeOuter)
		if err != nil {
			return nil, err
		}
		ds = out
	}
	for _, b := range c.Lookups {
		if ds.Empty() {
			p.log.Debug("dataset is empty; skipping lookup stage", "stage", b.stage.Name())
			continue
		}
		out, err := p.runStage(ctx, b, ds, win, entities, opts, true, mergeLookup)
		if err != nil {
			return nil, err
		}
		ds = out
	}
	return ds, nil
}

// mergeReplace makes the stage output the new baseline dataset
func mergeReplace(_, raw *frame.Dataset) (*frame.Dataset, error) {
	if err := raw.ConformIndex(); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeOuter unions the stage output into the baseline. The baseline is
// cloned so the runner can still compare input and output shapes
func mergeOuter(in, raw *frame.Dataset) (*frame.Dataset, error) {
	merged := in.Clone()
	if err := merged.AppendRows(raw); err != nil {
		return nil, err
	}
	if err := merged.ConformIndex(); err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeLookup enforces the lookup contract: columns may be added but
// the row set is untouchable
func mergeLookup(in, raw *frame.Dataset) (*frame.Dataset, error) {
	if raw.NumRows() != in.NumRows() {
		return nil, fmt.Errorf("lookup changed the row count from %d to %d", in.NumRows(), raw.NumRows())
	}
	return raw, nil
}
