// Package validate implements the breakpoint and consistency
// validators that run after finalization: the orchestrator treats
// their error-severity findings as fatal and their warnings as
// advisory.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/decimalx"
)

// Breakpoints checks the finalized list's structural invariants:
// contiguity, positive range widths, ordering, resolvable
// dependencies, and that percentages sum to one within the named
// tolerance.
func Breakpoints(bps []breakpoint.Breakpoint) []captable.TestResult {
	var results []captable.TestResult

	earlierIDs := map[string]bool{}
	for i, bp := range bps {
		if i > 0 {
			prev := bps[i-1]
			if !prev.IsOpenEnded && !prev.RangeTo.Equal(bp.RangeFrom) {
				results = append(results, captable.TestResult{
					Name: "contiguous-ranges", Severity: captable.SeverityError,
					Message: fmt.Sprintf("breakpoint %d (%s) rangeFrom %s does not match breakpoint %d's rangeTo %s",
						i, bp.ID, bp.RangeFrom, i-1, prev.RangeTo),
				})
			}
		}
		if !bp.IsOpenEnded && bp.RangeTo.LessThanOrEqual(bp.RangeFrom) {
			results = append(results, captable.TestResult{
				Name: "positive-range-width", Severity: captable.SeverityError,
				Message: fmt.Sprintf("breakpoint %s has rangeTo %s at or before rangeFrom %s", bp.ID, bp.RangeTo, bp.RangeFrom),
			})
		}
		for _, dep := range bp.Dependencies {
			if !earlierIDs[dep] {
				results = append(results, captable.TestResult{
					Name: "unresolved-dependency", Severity: captable.SeverityError,
					Message: fmt.Sprintf("breakpoint %s depends on %q, which is not an earlier breakpoint", bp.ID, dep),
				})
			}
		}
		earlierIDs[bp.ID] = true
		if i == len(bps)-1 && !bp.IsOpenEnded {
			results = append(results, captable.TestResult{
				Name: "final-open-ended", Severity: captable.SeverityError,
				Message: "the final breakpoint must be open-ended",
			})
		}
		if i < len(bps)-1 && bp.IsOpenEnded {
			results = append(results, captable.TestResult{
				Name: "only-final-open-ended", Severity: captable.SeverityError,
				Message: fmt.Sprintf("breakpoint %s is open-ended but is not the final breakpoint", bp.ID),
			})
		}

		sum := decimal.Zero
		for _, p := range bp.Participants {
			sum = sum.Add(p.ParticipationPercentage)
		}
		if len(bp.Participants) > 0 && !decimalx.WithinTolerance(sum, decimalx.One, decimalx.PercentageTolerance) {
			results = append(results, captable.TestResult{
				Name: "percentages-sum-to-one", Severity: captable.SeverityError,
				Message: fmt.Sprintf("breakpoint %s participation percentages sum to %s, not 1", bp.ID, sum),
			})
		}
	}

	return results
}

// MonotonicCumulativeRVPS checks that every security's cumulative RVPS
// is non-decreasing across the breakpoints it appears in, in order.
func MonotonicCumulativeRVPS(bps []breakpoint.Breakpoint) []captable.TestResult {
	var results []captable.TestResult
	last := map[string]decimal.Decimal{}
	for _, bp := range bps {
		for _, p := range bp.Participants {
			if prev, ok := last[p.SecurityName]; ok && p.CumulativeRVPS.LessThan(prev) {
				results = append(results, captable.TestResult{
					Name: "monotonic-cumulative-rvps", Severity: captable.SeverityError,
					Message: fmt.Sprintf("security %s cumulative RVPS decreased from %s to %s at breakpoint %s", p.SecurityName, prev, p.CumulativeRVPS, bp.ID),
				})
			}
			last[p.SecurityName] = p.CumulativeRVPS
		}
	}
	return results
}
