package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"calc-pipeline/internal/expr"
	"calc-pipeline/internal/frame"
	"calc-pipeline/internal/model"
)

// FailureClass buckets stage failures for tracing, persistence and the
// session's fault handler
type FailureClass string

const (
	FailConfiguration       FailureClass = "configuration"
	FailIndexConformance    FailureClass = "index_conformance"
	FailExpressionSyntax    FailureClass = "expression_syntax"
	FailTypeOrValue         FailureClass = "type_or_value"
	FailUnresolvedReference FailureClass = "unresolved_reference"
	FailStageExecution      FailureClass = "stage_execution"
	FailTypeReconciliation  FailureClass = "type_reconciliation"
)

// StageError wraps a stage failure with its classification so callers
// can branch on the class without string matching
type StageError struct {
	Stage string
	Class FailureClass
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Class, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ConfigError marks an invalid stage or pipeline configuration that is
// detected before any data is touched
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ReconcileFailure records one declared data item whose column could
// not be coerced to its declared type
type ReconcileFailure struct {
	Item     string
	Actual   frame.Kind
	Declared model.ColumnType
}

// ReconcileError aggregates every irreconcilable data item found while
// validating one stage's output
type ReconcileError struct {
	Failures []ReconcileFailure
}

func (e *ReconcileError) Error() string {
	var b strings.Builder
	b.WriteString("some data items could not have their type reconciled:")
	for _, f := range e.Failures {
		fmt.Fprintf(&b, " %s is %s, declared %s;", f.Item, f.Actual, f.Declared)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// ClassifyFailure maps an arbitrary stage failure onto its failure
// class. Anything unrecognized is a plain stage execution failure
func ClassifyFailure(err error) FailureClass {
	var (
		syntaxErr     *expr.SyntaxError
		unresolvedErr *expr.UnresolvedError
		typeErr       *frame.TypeError
		indexErr      *frame.IndexError
		configErr     *ConfigError
		reconcileErr  *ReconcileError
	)
	switch {
	case errors.As(err, &configErr):
		return FailConfiguration
	case errors.As(err, &indexErr):
		return FailIndexConformance
	case errors.As(err, &syntaxErr):
		return FailExpressionSyntax
	case errors.As(err, &unresolvedErr):
		return FailUnresolvedReference
	case errors.As(err, &typeErr):
		return FailTypeOrValue
	case errors.As(err, &reconcileErr):
		return FailTypeReconciliation
	default:
		return FailStageExecution
	}
}

// traceNote renders the trace message recorded when a stage fails with
// the given class
func traceNote(class FailureClass, stage string) string {
	switch class {
	case FailConfiguration:
		return fmt.Sprintf("Stage %s is not configured correctly. ", stage)
	case FailIndexConformance:
		return fmt.Sprintf("Stage %s produced a dataset whose key columns could not be conformed. ", stage)
	case FailExpressionSyntax:
		return fmt.Sprintf("Stage %s contains a syntax error in its expression. ", stage)
	case FailTypeOrValue:
		return fmt.Sprintf("Stage %s failed on an invalid value or data type. ", stage)
	case FailUnresolvedReference:
		return fmt.Sprintf("Stage %s references a data item that does not exist. ", stage)
	case FailTypeReconciliation:
		return fmt.Sprintf("Stage %s produced data items whose types contradict their declarations. ", stage)
	default:
		return fmt.Sprintf("Stage %s failed during execution. ", stage)
	}
}
