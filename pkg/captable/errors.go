package captable

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrorCategory classifies an analysis failure.
type ErrorCategory string

const (
	CategoryMalformedCapTable     ErrorCategory = "MalformedCapTable"
	CategorySolverDivergence      ErrorCategory = "SolverDivergence"
	CategoryInconsistentBreakpoints ErrorCategory = "InconsistentBreakpoints"
	CategoryInternalInvariant     ErrorCategory = "InternalInvariant"
)

// AnalysisError is the structured error type every analyzer and the
// orchestrator return instead of panicking.
type AnalysisError struct {
	Category     ErrorCategory
	Message      string
	Securities   []string
	Iterations   int
	LastResidual *decimal.Decimal
	Err          error
}

func (e *AnalysisError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Securities) > 0 {
		fmt.Fprintf(&b, " (securities: %s)", strings.Join(e.Securities, ", "))
	}
	if e.Iterations > 0 {
		fmt.Fprintf(&b, " after %d iterations", e.Iterations)
	}
	if e.LastResidual != nil {
		fmt.Fprintf(&b, " (residual %s)", e.LastResidual.String())
	}
	return b.String()
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// NewMalformedCapTable builds a MalformedCapTable error.
func NewMalformedCapTable(msg string, securities ...string) *AnalysisError {
	return &AnalysisError{Category: CategoryMalformedCapTable, Message: msg, Securities: securities}
}

// NewSolverDivergence builds a SolverDivergence error.
func NewSolverDivergence(msg string, iterations int, residual decimal.Decimal, securities ...string) *AnalysisError {
	return &AnalysisError{
		Category:     CategorySolverDivergence,
		Message:      msg,
		Securities:   securities,
		Iterations:   iterations,
		LastResidual: &residual,
	}
}

// NewInconsistentBreakpoints builds an InconsistentBreakpoints error.
func NewInconsistentBreakpoints(msg string, securities ...string) *AnalysisError {
	return &AnalysisError{Category: CategoryInconsistentBreakpoints, Message: msg, Securities: securities}
}

// NewInternalInvariant builds an InternalInvariant error wrapping the
// failing assertion's cause, if any.
func NewInternalInvariant(msg string, err error) *AnalysisError {
	return &AnalysisError{Category: CategoryInternalInvariant, Message: msg, Err: err}
}
