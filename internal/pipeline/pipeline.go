package pipeline

import (
	"context"
	"fmt"

	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"

	"calc-pipeline/pkg/logger"
)

// ------------------- Pipeline Orchestrator -------------------

// Pipeline executes an ordered stage list against one session. The
// first execution on a session performs the full cycle: preload, source
// resolution, then the ordinary stages. Later executions on the same
// session run the surviving ordinary stages only
type Pipeline struct {
	sess   Session
	log    *logger.Logger
	stages []Stage
}

// New builds a pipeline over the session. A nil logger is replaced with
// a no-op one
func New(sess Session, log *logger.Logger, stages ...Stage) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{sess: sess, log: log, stages: stages}
}

// AddStage appends a stage to the execution list
func (p *Pipeline) AddStage(s Stage) {
	p.stages = append(p.stages, s)
}

// AddExpression appends a formula stage deriving a new column, wired
// into the session trace
func (p *Pipeline) AddExpression(name, expression string) {
	st := NewExpressionStage(name, expression)
	st.trace = func(msg string) {
		p.sess.TraceAppend(st.Name(), msg, nil)
	}
	p.AddStage(st)
}

// SetStages replaces the execution list wholesale
func (p *Pipeline) SetStages(stages ...Stage) {
	p.stages = stages
}

// Stages returns the current stage list
func (p *Pipeline) Stages() []Stage { return p.stages }

// InputItems returns the union of the data items consumed by stages
// that declare their inputs, in first seen order
func (p *Pipeline) InputItems() []string {
	seen := map[string]bool{}
	var items []string
	for _, s := range p.stages {
		ip, ok := s.(InputProvider)
		if !ok {
			continue
		}
		for _, item := range ip.InputItems() {
			if !seen[item] {
				seen[item] = true
				items = append(items, item)
			}
		}
	}
	return items
}

// Publish assembles the stage metadata payload and ships it through the
// session to the registry
func (p *Pipeline) Publish(ctx context.Context) error {
	payload := make([]model.StageMetadata, 0, len(p.stages))
	for _, s := range p.stages {
		md := model.StageMetadata{Name: s.Name(), Args: map[string]interface{}{}}
		if ap, ok := s.(ArgProvider); ok {
			md.Args = ap.ArgMetadata()
		}
		payload = append(payload, md)
	}
	if err := p.sess.PublishMetadata(ctx, payload); err != nil {
		return fmt.Errorf("publish stage metadata: %w", err)
	}
	p.log.Info("published stage metadata", "stages", len(payload))
	return nil
}

// Execute runs one pipeline cycle. A nil dataset makes the pipeline
// materialize the session's source data itself. The returned dataset is
// the output of the last stage that ran
func (p *Pipeline) Execute(ctx context.Context, ds *frame.Dataset, opts Options) (*frame.Dataset, error) {
	initial := !p.sess.InitialTransformComplete()
	entities := opts.Entities
	if entities == nil {
		entities = p.sess.EntityFilter()
	}
	win := p.sess.WindowOverride(opts.Window)
	p.log.Debug("executing pipeline",
		"entity", p.sess.EntityName(), "stages", len(p.stages), "initial", initial, "window", win.String())
	if !win.IsZero() {
		p.sess.TraceAppend("pipeline", fmt.Sprintf("Execution window: %s. ", win), nil)
	}

	preloaded := append([]string(nil), opts.PreloadedItems...)
	var ordinary []*binding

	if initial {
		// --- CLASSIFICATION ---
		c, err := Classify(p.stages, p.sess, p.log)
		if err != nil {
			return nil, err
		}

		// --- PRELOAD ---
		ok, items, err := p.runPreloadStages(ctx, c.Preload, win, entities, opts.Register)
		if err != nil {
			return nil, err
		}
		preloaded = append(preloaded, items...)

		// --- SOURCE DATA ---
		if ds == nil {
			p.log.Debug("no dataset supplied; loading the entity source data")
			ds, err = p.sess.LoadData(ctx, win, entities)
			if err != nil {
				return nil, fmt.Errorf("load entity source data: %w", err)
			}
		}
		if ok {
			ds, err = p.runDataSources(ctx, c, ds, win, entities, opts)
			if err != nil {
				return nil, err
			}
			ordinary = c.Ordinary
		}
	} else {
		// later cycles skip preload and source resolution wholesale
		for _, s := range p.stages {
			switch s.(type) {
			case PreloadStage:
				p.log.Debug("initial transform complete; skipping preload stage", "stage", s.Name())
			case DataSourceStage:
				p.log.Debug("initial transform complete; skipping data source stage", "stage", s.Name())
			default:
				b := bind(s)
				if b.exec == nil {
					return nil, configErrorf("stage %s is not executable", s.Name())
				}
				ordinary = append(ordinary, b)
			}
		}
	}
	if ds == nil {
		return nil, configErrorf("pipeline has no source dataset")
	}

	// --- POST LOAD CLEANUP ---
	if opts.Debug && opts.Snapshots != nil {
		if err := opts.Snapshots.WriteSnapshot("debug_source", ds); err != nil {
			p.log.Warn("could not write source snapshot", "error", err)
		}
	}
	if opts.DropNulls {
		cleared := ds.NormalizeInf()
		dropped := ds.DropNullRows(nil)
		p.log.Debug("eager null cleanup", "cleared", cleared, "rows", dropped)
	}
	if p.sess.DropAllNullRows() {
		subset := p.allNullSubset(ds)
		dropped := ds.DropAllNullRows(subset)
		p.log.Debug("dropped rows that are null in every custom column", "rows", dropped)
	} else {
		p.log.Debug("all null row cleanup disabled for this entity")
	}

	// preload markers record which preload stages contributed this cycle
	for _, item := range preloaded {
		if err := ds.SetColumn(frame.Const(item, true, ds.NumRows())); err != nil {
			p.log.Warn("could not add preload marker column", "item", item, "error", err)
		}
	}

	// --- ORDINARY STAGES ---
	var err error
	for _, b := range ordinary {
		if ds.Empty() {
			p.log.Info("no data left in the pipeline; remaining stages were not executed")
			p.sess.TraceAppend("pipeline", "The data set is empty. Remaining stages were not executed. ", nil)
			break
		}
		ds, err = p.runStage(ctx, b, ds, win, entities, opts, false, nil)
		if err != nil {
			return nil, err
		}
	}

	// --- CLOSE OUT THE INITIAL CYCLE ---
	if initial {
		if err := p.sess.WriteUnmatchedMembers(ctx, ds); err != nil {
			p.sess.TraceAppend("pipeline", "Error while writing unmatched members to the dimension. See log. ", nil)
			if raised := p.sess.RaiseError(err, false, "pipeline"); raised != nil {
				return nil, raised
			}
		}
		p.sess.MarkInitialTransformComplete()
	}
	return ds, nil
}

// allNullSubset is every column except the composite key and the
// session's excluded columns
func (p *Pipeline) allNullSubset(ds *frame.Dataset) []string {
	skip := map[string]bool{}
	for _, name := range ds.KeyColumns() {
		skip[name] = true
	}
	for _, name := range p.sess.ExcludedColumns() {
		skip[name] = true
	}
	var subset []string
	for _, name := range ds.ColumnNames() {
		if !skip[name] {
			subset = append(subset, name)
		}
	}
	return subset
}
