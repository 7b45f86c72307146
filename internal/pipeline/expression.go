package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"calc-pipeline/internal/expr"
	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// ExpressionStage derives one new column by evaluating an expression
// over the existing columns. Columns are referenced as ${name} or as a
// quoted name that matches an existing column
type ExpressionStage struct {
	name       string
	expression string
	node       expr.Node
	parseErr   error
	trace      func(msg string)
}

// NewExpressionStage parses the expression up front; a malformed one is
// kept and surfaces as a classified syntax failure when the stage runs
func NewExpressionStage(name, expression string) *ExpressionStage {
	st := &ExpressionStage{name: name, expression: expression}
	st.node, st.parseErr = expr.Parse(expression)
	return st
}

func (e *ExpressionStage) Name() string {
	return "expression_" + e.name
}

// Execute evaluates the expression and attaches the result as a new
// column named after the stage's output item
func (e *ExpressionStage) Execute(ctx context.Context, ds *frame.Dataset, win model.Window, entities []string) (*frame.Dataset, error) {
	if e.parseErr != nil {
		return nil, e.parseErr
	}
	values, kind, err := expr.EvaluateNode(ds, e.node)
	if err != nil {
		return nil, err
	}
	if err := ds.SetColumn(&frame.Column{Name: e.name, Kind: kind, Values: values}); err != nil {
		return nil, err
	}
	e.tracef("Evaluated expression %s. ", e.expression)
	return ds, nil
}

func (e *ExpressionStage) tracef(format string, args ...interface{}) {
	if e.trace != nil {
		e.trace(fmt.Sprintf(format, args...))
	}
}

// ConformIndex sorts and checks the key columns before evaluation
func (e *ExpressionStage) ConformIndex(ds *frame.Dataset) (*frame.Dataset, error) {
	if err := ds.ConformIndex(); err != nil {
		return nil, err
	}
	return ds, nil
}

// SchemaValidated opts the stage into output validation
func (e *ExpressionStage) SchemaValidated() bool { return true }

// InputItems is the best effort list of data items the expression
// consumes, inferred from ${name} references and quoted names. Quoted
// plain literals can slip in; consumers treat the list as advisory
func (e *ExpressionStage) InputItems() []string {
	return InferInputs(e.expression)
}

// ArgMetadata describes the stage for metadata publication
func (e *ExpressionStage) ArgMetadata() map[string]interface{} {
	return map[string]interface{}{
		"expression":  e.expression,
		"output_item": e.name,
		"input_items": e.InputItems(),
	}
}

var inputRefPattern = regexp.MustCompile(`\$\{([^}]+)\}|"([^"]*)"|'([^']*)'`)

// InferInputs scans an expression for ${name} references and quoted
// names without parsing it, preserving first seen order
func InferInputs(expression string) []string {
	seen := map[string]bool{}
	var items []string
	for _, m := range inputRefPattern.FindAllStringSubmatch(expression, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			name = m[2]
		}
		if name == "" {
			name = m[3]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		items = append(items, name)
	}
	return items
}
