package analyzers

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/solver"
)

// SanityMaxExitMultiple bounds the option solver's estimate at total LP
// plus this many dollars per participating share. Since the estimate is
// total LP plus strike times the share base, the bound trips exactly
// when the strike exceeds this value; the strike is then reported as
// unreachable and its breakpoint omitted. A zero share base is caught
// earlier, before the bound is checked.
var SanityMaxExitMultiple = decimal.NewFromInt(1_000_000)

// OptionExerciseAnalyzer finds, for each strike price (ascending), the
// exit value at which cumulative per-share value to the pro-rata pool
// first reaches that strike, the point a rational holder exercises.
// Strikes already folded into common are skipped.
type OptionExerciseAnalyzer struct {
	Solver solver.Config
}

func (OptionExerciseAnalyzer) Name() string { return "OptionExercise" }

func (OptionExerciseAnalyzer) ExpectedCount(snap captable.CapTableSnapshot) int {
	return len(snap.OptionPoolsByStrike())
}

func (a OptionExerciseAnalyzer) Analyze(snap captable.CapTableSnapshot, prior []breakpoint.Breakpoint, log *audit.Logger) ([]breakpoint.Breakpoint, []captable.TestResult, error) {
	cfg := a.Solver
	if cfg.MaxIterations == 0 {
		cfg = solver.DefaultConfig()
	}

	proRata, ok := findProRata(prior)
	if !ok {
		return nil, nil, captable.NewInternalInvariant("option exercise analyzer ran before pro-rata", nil)
	}
	// The base includes every pro-rata participant already in the pool
	// (common plus as-converted participating preferred), not just raw
	// common shares: options dilute into the full pool.
	baseShares := proRata.TotalParticipatingShares
	totalLP := snap.TotalLiquidationPreference()

	var out []breakpoint.Breakpoint
	var findings []captable.TestResult
	exercisedSoFar := decimal.Zero

	for _, pool := range snap.OptionPoolsByStrike() {
		currentBase := baseShares.Add(exercisedSoFar)
		if currentBase.LessThanOrEqual(decimal.Zero) {
			log.Recordf("Option", "strike %s: no participating shares to value against, solver diverged", pool.Strike)
			divergence := captable.NewSolverDivergence(
				fmt.Sprintf("strike %s has no participating shares to solve against, breakpoint omitted", pool.Strike),
				0, pool.Strike, pool.Names...)
			findings = append(findings, captable.TestResult{
				Name: "solver-divergence", Severity: captable.SeverityWarning,
				Message: divergence.Error(), Category: captable.CategorySolverDivergence,
			})
			continue
		}

		// f(v) = (v - totalLP) / currentBase is affine on this bracket
		// by construction, so the analytic estimate is exact; Newton-
		// Raphson from that seed confirms the crossing under the
		// injected iteration cap and tolerance, and its iteration count
		// goes into the breakpoint metadata.
		estimate := solver.SolveAnalyticLinear(totalLP, currentBase, pool.Strike)

		maxReasonable := totalLP.Add(currentBase.Mul(SanityMaxExitMultiple))
		if estimate.GreaterThan(maxReasonable) {
			log.Recordf("Option", "strike %s: indifference point %s exceeds sanity bound, solver diverged", pool.Strike, estimate)
			divergence := captable.NewSolverDivergence(
				fmt.Sprintf("strike %s indifference point %s exceeds sanity bound, breakpoint omitted", pool.Strike, estimate),
				1, estimate.Sub(maxReasonable), pool.Names...)
			findings = append(findings, captable.TestResult{
				Name: "solver-divergence", Severity: captable.SeverityWarning,
				Message: divergence.Error(), Category: captable.CategorySolverDivergence,
			})
			continue
		}

		f := func(v decimal.Decimal) decimal.Decimal { return v.Sub(totalLP).Div(currentBase) }
		slope := decimal.NewFromInt(1).Div(currentBase)
		root, iterations, converged := solver.NewtonRaphson(f, estimate, slope, pool.Strike, cfg)
		if !converged {
			residual := f(root).Sub(pool.Strike)
			log.Recordf("Option", "strike %s: solver exhausted %d iteration(s) with residual %s", pool.Strike, iterations, residual)
			divergence := captable.NewSolverDivergence(
				fmt.Sprintf("strike %s did not converge, breakpoint omitted", pool.Strike),
				iterations, residual, pool.Names...)
			findings = append(findings, captable.TestResult{
				Name: "solver-divergence", Severity: captable.SeverityWarning,
				Message: divergence.Error(), Category: captable.CategorySolverDivergence,
			})
			continue
		}

		name := fmt.Sprintf("Options @ %s", pool.Strike)
		bp := breakpoint.Breakpoint{
			ID:          fmt.Sprintf("Option-%s", pool.Strike),
			Type:        breakpoint.OptionExercise,
			RangeFrom:   root,
			IsOpenEnded: true,
			// ParticipationPercentage of 1 here is a deliberate
			// don't-care: the finalizer recomputes every participant's
			// percentage against the full, post-exercise participant
			// map once ranges are connected.
			Participants: []breakpoint.Participant{{
				SecurityName:            name,
				SecurityType:            breakpoint.SecurityOptionPool,
				ParticipatingShares:     pool.Options,
				ParticipationPercentage: decimal.NewFromInt(1),
				Status:                  breakpoint.StatusExercised,
			}},
			TotalParticipatingShares: pool.Options,
			Dependencies:             []string{"ProRata"},
			AffectedSecurities:       pool.Names,
			PriorityOrder:            breakpoint.PriorityOptionBase + strikeOrderKey(pool.Strike),
			Explanation:              fmt.Sprintf("Options at strike %s become in-the-money once per-share value reaches the strike", pool.Strike),
			MathematicalDerivation:   audit.Derivation("(%s - %s) / %s = %s", "V", totalLP, currentBase, pool.Strike),
			Metadata:                 map[string]interface{}{"iterations": iterations},
		}
		out = append(out, bp)
		exercisedSoFar = exercisedSoFar.Add(pool.Options)
		log.Recordf("Option", "strike %s exercises at V=%s, adding %s shares", pool.Strike, root, pool.Options)
	}
	return out, findings, nil
}

// strikeOrderKey turns a strike price into a small non-negative integer
// offset that preserves ascending strike order within PriorityOptionBase.
func strikeOrderKey(strike decimal.Decimal) int {
	f, _ := strike.Mul(decimal.NewFromInt(100)).Float64()
	if f < 0 {
		f = 0
	}
	return int(math.Round(f))
}
