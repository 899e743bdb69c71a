// Package orchestrator wires the whole analysis pipeline together:
// validate the snapshot, run the five analyzers in sequence, finalize
// the ranges, validate the result, and package everything into a
// single OrchestrationResult.
package orchestrator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Eran5102/valuation-waterfall/pkg/analyzers"
	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/finalize"
	"github.com/Eran5102/valuation-waterfall/pkg/solver"
	"github.com/Eran5102/valuation-waterfall/pkg/validate"
)

// Config overrides the defaults the orchestrator threads through its
// analyzers.
type Config struct {
	Solver           solver.Config
	StrictValidation bool // promote warnings in CapTableValidator to fatal
}

// DefaultConfig returns the default solver bounds with strict
// validation disabled.
func DefaultConfig() Config {
	return Config{Solver: solver.DefaultConfig()}
}

// OrchestrationResult is the single, complete output of an analysis
// run.
type OrchestrationResult struct {
	RunID               string
	Breakpoints         []breakpoint.Breakpoint
	CapTableFindings    []captable.TestResult
	BreakpointFindings  []captable.TestResult
	ConsistencyFindings []captable.TestResult
	AuditTrail          []string
	// ExecutionOrder traces the analyzer pipeline, one line per analyzer
	// run, e.g. "LiquidationPreference Analysis: 2 breakpoint(s)".
	ExecutionOrder []string
	// TypeCounts breaks down the finalized breakpoints by type.
	TypeCounts map[breakpoint.Type]int
	// Errors and Warnings flatten every finding across CapTableFindings,
	// BreakpointFindings, and ConsistencyFindings by severity, for
	// collaborators that just want the messages without the structure.
	Errors   []string
	Warnings []string
	Err      error
}

// Succeeded reports whether the run produced no error-severity
// findings and no hard error.
func (r OrchestrationResult) Succeeded() bool {
	if r.Err != nil {
		return false
	}
	return !captable.HasErrors(r.CapTableFindings) &&
		!captable.HasErrors(r.BreakpointFindings) &&
		!captable.HasErrors(r.ConsistencyFindings)
}

// Orchestrator runs the full breakpoint analysis pipeline.
type Orchestrator struct {
	cfg Config
}

// New builds an Orchestrator with cfg; a zero Config uses
// DefaultConfig's values for solver iteration/tolerance.
func New(cfg Config) *Orchestrator {
	if cfg.Solver.MaxIterations == 0 {
		cfg.Solver = solver.DefaultConfig()
	}
	return &Orchestrator{cfg: cfg}
}

// Analyze runs validate -> sequence analyzers -> finalize ->
// post-validate -> emit, never panicking: every failure is packaged
// into the returned OrchestrationResult.
func (o *Orchestrator) Analyze(snap captable.CapTableSnapshot) OrchestrationResult {
	log := audit.NewLogger()
	result := OrchestrationResult{RunID: uuid.NewString()}

	result.CapTableFindings = captable.ValidateCapTable(snap)
	fatal := captable.HasErrors(result.CapTableFindings)
	if o.cfg.StrictValidation && !fatal {
		for _, f := range result.CapTableFindings {
			if f.Severity == captable.SeverityWarning {
				fatal = true
				break
			}
		}
	}
	if fatal {
		result.Err = captable.NewMalformedCapTable("cap table snapshot failed validation")
		result.AuditTrail = log.Lines()
		result.fillFlatFindings()
		return result
	}

	var raw []breakpoint.Breakpoint
	expected := map[breakpoint.Type]int{}
	for _, a := range analyzers.Sequence(o.cfg.Solver) {
		t := typeFor(a)
		expected[t] = a.ExpectedCount(snap)
		produced, findings, err := a.Analyze(snap, raw, log)
		if err != nil {
			result.Err = fmt.Errorf("%s analyzer: %w", a.Name(), err)
			result.AuditTrail = log.Lines()
			result.fillFlatFindings()
			return result
		}
		// A documented solver divergence legitimately omits a breakpoint
		// the naive ExpectedCount assumed would exist; discount it here
		// so Consistency doesn't raise a false error over it.
		for _, f := range findings {
			if f.Category == captable.CategorySolverDivergence {
				expected[t]--
			}
		}
		result.ConsistencyFindings = append(result.ConsistencyFindings, findings...)
		result.ExecutionOrder = append(result.ExecutionOrder, fmt.Sprintf("%s Analysis: %d breakpoint(s)", a.Name(), len(produced)))
		raw = append(raw, produced...)
	}

	finalBPs := finalize.Finalize(raw)
	result.Breakpoints = finalBPs

	result.TypeCounts = map[breakpoint.Type]int{}
	for _, bp := range finalBPs {
		result.TypeCounts[bp.Type]++
	}

	result.BreakpointFindings = validate.Breakpoints(finalBPs)
	result.BreakpointFindings = append(result.BreakpointFindings, validate.MonotonicCumulativeRVPS(finalBPs)...)
	result.ConsistencyFindings = append(result.ConsistencyFindings, validate.Consistency(snap, finalBPs, expected)...)

	result.AuditTrail = log.Lines()
	result.fillFlatFindings()
	return result
}

// fillFlatFindings populates the flat Errors/Warnings lists from every
// structured finding list, plus the terminal Err if the run aborted.
func (r *OrchestrationResult) fillFlatFindings() {
	for _, list := range [][]captable.TestResult{r.CapTableFindings, r.BreakpointFindings, r.ConsistencyFindings} {
		for _, f := range list {
			switch f.Severity {
			case captable.SeverityError:
				r.Errors = append(r.Errors, f.Message)
			case captable.SeverityWarning:
				r.Warnings = append(r.Warnings, f.Message)
			}
		}
	}
	if r.Err != nil {
		r.Errors = append(r.Errors, r.Err.Error())
	}
}

func typeFor(a analyzers.Analyzer) breakpoint.Type {
	switch a.Name() {
	case "LiquidationPreference":
		return breakpoint.LiquidationPreference
	case "ProRata":
		return breakpoint.ProRataDistribution
	case "OptionExercise":
		return breakpoint.OptionExercise
	case "VoluntaryConversion":
		return breakpoint.VoluntaryConversion
	case "ParticipationCap":
		return breakpoint.ParticipationCap
	default:
		return ""
	}
}
