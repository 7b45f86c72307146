package pipeline

import (
	"calc-pipeline/internal/frame"
)

// frameCheck is a lightweight shape summary captured before a stage
// runs, so the output can be compared even when the stage mutated its
// input in place
type frameCheck struct {
	rows  int
	kinds map[string]frame.Kind
}

func checkFrame(ds *frame.Dataset) frameCheck {
	chk := frameCheck{rows: ds.NumRows(), kinds: make(map[string]frame.Kind, ds.NumColumns())}
	for _, name := range ds.ColumnNames() {
		c, _ := ds.Column(name)
		chk.kinds[name] = c.Kind
	}
	return chk
}

// validateOutput compares the stage output against the input summary,
// logging shape warnings, then reconciles produced columns against the
// declared data items. Shape differences only warn; the returned error
// is non nil only when reconciliation failed
func (p *Pipeline) validateOutput(stage string, in frameCheck, out *frame.Dataset) error {
	if in.rows == 0 {
		p.log.Warn("stage input had no rows", "stage", stage)
	}
	if out.NumRows() == 0 {
		p.log.Warn("stage output has no rows", "stage", stage)
	}
	if in.rows != out.NumRows() {
		p.log.Warn("stage changed the row count", "stage", stage, "in", in.rows, "out", out.NumRows())
	}
	if err := out.CheckIndex(); err != nil {
		p.log.Warn("stage output key columns look wrong", "stage", stage, "problem", err.Error())
	}
	var droppedCols []string
	for name, kind := range in.kinds {
		c, ok := out.Column(name)
		if !ok {
			droppedCols = append(droppedCols, name)
			continue
		}
		if kind != frame.KindUnknown && c.Kind != frame.KindUnknown && c.Kind != kind {
			p.log.Warn("stage changed a column kind", "stage", stage, "column", name, "was", kind.String(), "now", c.Kind.String())
		}
	}
	if len(droppedCols) > 0 {
		p.log.Warn("stage dropped columns", "stage", stage, "columns", droppedCols)
	}
	return p.reconcileTypes(stage, out)
}

// reconcileTypes forces produced columns onto their declared data item
// types. Reconcilable mismatches are coerced in place; the rest are
// collected into one aggregate error
func (p *Pipeline) reconcileTypes(stage string, out *frame.Dataset) error {
	var failures []ReconcileFailure
	for _, item := range p.sess.DataItems() {
		col, ok := out.Column(item.Name)
		if !ok {
			continue
		}
		if frame.MatchesType(col.Kind, item.Type) {
			continue
		}
		p.log.Info("column kind differs from its declared type; coercing",
			"stage", stage, "column", item.Name, "kind", col.Kind.String(), "declared", string(item.Type))
		coerced, err := col.CoerceTo(item.Type)
		if err != nil {
			p.log.Warn("could not coerce column to its declared type",
				"stage", stage, "column", item.Name, "error", err)
			failures = append(failures, ReconcileFailure{Item: item.Name, Actual: col.Kind, Declared: item.Type})
			continue
		}
		if err := out.SetColumn(coerced); err != nil {
			return err
		}
	}
	if len(failures) > 0 {
		return &ReconcileError{Failures: failures}
	}
	return nil
}
