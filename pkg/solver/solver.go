// Package solver implements the circular-dependency root finder used
// by the option-exercise analyzer: option participation
// changes the share base used to compute per-share value, which in turn
// determines when an option becomes worth exercising. Most brackets the
// analyzers build are a single affine segment and are solved in closed
// form; Bisect and NewtonRaphson exist for the general, non-affine case
// and for reporting realistic iteration counts.
package solver

import (
	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/decimalx"
)

// DefaultMaxIterations caps bisection/Newton-Raphson iterations before
// the solver reports divergence.
const DefaultMaxIterations = 100

// DefaultTolerance is the residual below which a root is accepted.
var DefaultTolerance = decimal.New(1, -6) // 1e-6

// Config bounds a solve.
type Config struct {
	MaxIterations int
	Tolerance     decimal.Decimal
}

// DefaultConfig returns the default iteration cap and tolerance.
func DefaultConfig() Config {
	return Config{MaxIterations: DefaultMaxIterations, Tolerance: DefaultTolerance}
}

// Function evaluates the quantity being solved for (e.g. cumulative
// per-share value) at a candidate exit value.
type Function func(exitValue decimal.Decimal) decimal.Decimal

// SolveAnalyticLinear solves f(v) = target for v, returning
// intercept + target*slope, where f is known to be the affine function
// f(v) = (v - intercept) / slope. This is the closed-form path taken
// whenever a breakpoint's bracket spans exactly one linear segment,
// which the option-exercise analyzer arranges for by construction.
func SolveAnalyticLinear(intercept, slope, target decimal.Decimal) decimal.Decimal {
	return intercept.Add(target.Mul(slope))
}

// Bisect finds v in [lo, hi] such that f(v) == target within
// cfg.Tolerance, assuming f is non-decreasing on the bracket. It
// reports the iteration count and whether it converged, for the audit
// trail and for SolverDivergence errors.
func Bisect(f Function, lo, hi, target decimal.Decimal, cfg Config) (root decimal.Decimal, iterations int, converged bool) {
	flo, fhi := f(lo), f(hi)
	if flo.GreaterThan(target) || fhi.LessThan(target) {
		return decimal.Zero, 0, false
	}
	for iterations < cfg.MaxIterations {
		iterations++
		mid := lo.Add(hi).Div(decimalx.Two)
		fm := f(mid)
		diff := fm.Sub(target)
		if diff.Abs().LessThan(cfg.Tolerance) {
			return mid, iterations, true
		}
		if diff.LessThan(decimal.Zero) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo.Add(hi).Div(decimalx.Two), iterations, false
}

// NewtonRaphson finds a root of f(v) - target starting from seed, given
// a (locally constant) slope. The option-exercise analyzer runs it from
// the analytic estimate to confirm the crossing and count iterations.
func NewtonRaphson(f Function, seed, slope, target decimal.Decimal, cfg Config) (root decimal.Decimal, iterations int, converged bool) {
	if slope.IsZero() {
		return decimal.Zero, 0, false
	}
	v := seed
	for iterations < cfg.MaxIterations {
		iterations++
		diff := f(v).Sub(target)
		if diff.Abs().LessThan(cfg.Tolerance) {
			return v, iterations, true
		}
		v = v.Sub(diff.Div(slope))
	}
	return v, iterations, false
}

