package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// Consistency cross-checks the finalized breakpoints against the
// original snapshot: expected breakpoint counts per analyzer and the
// presence of every security somewhere in the output.
func Consistency(snap captable.CapTableSnapshot, bps []breakpoint.Breakpoint, expected map[breakpoint.Type]int) []captable.TestResult {
	var results []captable.TestResult

	actual := map[breakpoint.Type]int{}
	for _, bp := range bps {
		actual[bp.Type]++
	}
	for t, want := range expected {
		if actual[t] != want {
			results = append(results, captable.TestResult{
				Name: "breakpoint-count", Severity: captable.SeverityError,
				Message: fmt.Sprintf("expected %d %s breakpoint(s), got %d", want, t, actual[t]),
			})
		}
	}

	seen := map[string]bool{}
	for _, bp := range bps {
		for _, s := range bp.AffectedSecurities {
			seen[s] = true
		}
	}
	for _, p := range snap.Preferred {
		if !seen[p.Name] {
			results = append(results, captable.TestResult{
				Name: "security-present", Severity: captable.SeverityWarning,
				Message: fmt.Sprintf("series %s never appears as an affected security in any breakpoint", p.Name),
			})
		}
	}
	if !snap.Common.Shares.Equal(decimal.Zero) && !seen["Common"] {
		results = append(results, captable.TestResult{
			Name: "security-present", Severity: captable.SeverityError,
			Message: "Common never appears as an affected security in any breakpoint",
		})
	}

	return results
}
