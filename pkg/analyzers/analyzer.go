// Package analyzers implements the five breakpoint analyzers:
// liquidation preference, pro-rata, option exercise, voluntary
// conversion, and participation cap. They run in that fixed order,
// each one seeing every breakpoint produced by the analyzers before
// it.
package analyzers

import (
	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/solver"
)

// Analyzer produces zero or more raw (not-yet-finalized) breakpoints
// for a snapshot, given the breakpoints every earlier-sequenced
// analyzer already produced. The second return value carries non-fatal
// findings discovered while analyzing (e.g. a solver divergence that
// caused a breakpoint to be omitted); these never stop the pipeline,
// unlike the error return, which is reserved for invariant violations.
type Analyzer interface {
	Name() string
	ExpectedCount(snap captable.CapTableSnapshot) int
	Analyze(snap captable.CapTableSnapshot, prior []breakpoint.Breakpoint, log *audit.Logger) ([]breakpoint.Breakpoint, []captable.TestResult, error)
}

// Sequence is the fixed analyzer order. The solver config is injected
// into the option-exercise analyzer, the only stage that solves a
// circular reference.
func Sequence(solverCfg solver.Config) []Analyzer {
	return []Analyzer{
		LiquidationPreferenceAnalyzer{},
		ProRataAnalyzer{},
		OptionExerciseAnalyzer{Solver: solverCfg},
		VoluntaryConversionAnalyzer{},
		ParticipationCapAnalyzer{},
	}
}

func priorOfType(prior []breakpoint.Breakpoint, t breakpoint.Type) []breakpoint.Breakpoint {
	var out []breakpoint.Breakpoint
	for _, bp := range prior {
		if bp.Type == t {
			out = append(out, bp)
		}
	}
	return out
}

func findProRata(prior []breakpoint.Breakpoint) (breakpoint.Breakpoint, bool) {
	for _, bp := range prior {
		if bp.Type == breakpoint.ProRataDistribution {
			return bp, true
		}
	}
	return breakpoint.Breakpoint{}, false
}
