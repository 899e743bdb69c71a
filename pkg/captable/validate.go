package captable

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/decimalx"
)

// Severity grades a validator finding; only error-level findings stop
// a run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// TestResult is one validator finding. Category is set only for
// findings that originate from a structured AnalysisError (e.g. a
// solver divergence); plain structural findings leave it empty.
type TestResult struct {
	Name     string
	Severity Severity
	Message  string
	Category ErrorCategory
}

// HasErrors reports whether any result in the list is SeverityError.
func HasErrors(results []TestResult) bool {
	for _, r := range results {
		if r.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateCapTable checks the snapshot is internally well-formed
// before any analyzer runs.
func ValidateCapTable(s CapTableSnapshot) []TestResult {
	var results []TestResult

	names := map[string]bool{}
	ranks := map[int]bool{}
	for _, p := range s.Preferred {
		if p.Shares.LessThanOrEqual(decimal.Zero) {
			results = append(results, TestResult{Name: "positive-shares", Severity: SeverityError,
				Message: fmt.Sprintf("series %s has non-positive share count %s", p.Name, p.Shares)})
		}
		if p.PricePerShare.LessThanOrEqual(decimal.Zero) {
			results = append(results, TestResult{Name: "positive-price", Severity: SeverityError,
				Message: fmt.Sprintf("series %s has non-positive price per share %s", p.Name, p.PricePerShare)})
		}
		if names[p.Name] {
			results = append(results, TestResult{Name: "unique-series-name", Severity: SeverityError,
				Message: fmt.Sprintf("duplicate series name %q", p.Name)})
		}
		names[p.Name] = true
		ranks[p.SeniorityRank] = true

		if p.Type == ParticipatingWithCap {
			// The cap is a participation multiple, not a dollar
			// figure; at 1x or below the series could never collect
			// more than its bare liquidation preference.
			if !p.ParticipationCap.GreaterThan(decimalx.One) {
				results = append(results, TestResult{Name: "participation-cap-multiple", Severity: SeverityError,
					Message: fmt.Sprintf("series %s has participation cap multiple %s, must exceed 1", p.Name, p.ParticipationCap)})
			}
		} else if p.ParticipationCap.GreaterThan(decimal.Zero) {
			results = append(results, TestResult{Name: "participation-cap-unused", Severity: SeverityWarning,
				Message: fmt.Sprintf("series %s sets a participation cap but is not participating-with-cap", p.Name)})
		}
	}

	if seniorityRanksHaveGap(ranks) {
		results = append(results, TestResult{Name: "contiguous-seniority", Severity: SeverityError,
			Message: "seniority ranks are not a contiguous non-negative sequence starting at 0"})
	}

	for _, o := range s.Options {
		if o.Vested.GreaterThan(o.Options) {
			results = append(results, TestResult{Name: "vested-le-issued", Severity: SeverityError,
				Message: fmt.Sprintf("option pool %s has more vested (%s) than issued (%s) options", o.PoolName, o.Vested, o.Options)})
		}
		if o.StrikePrice.LessThan(decimal.Zero) {
			results = append(results, TestResult{Name: "non-negative-strike", Severity: SeverityError,
				Message: fmt.Sprintf("option pool %s has a negative strike price %s", o.PoolName, o.StrikePrice)})
		}
	}

	if s.Common.Shares.LessThan(decimal.Zero) {
		results = append(results, TestResult{Name: "non-negative-common", Severity: SeverityError, Message: "common share count is negative"})
	}

	return results
}

func seniorityRanksHaveGap(ranks map[int]bool) bool {
	if len(ranks) == 0 {
		return false
	}
	sorted := make([]int, 0, len(ranks))
	for r := range ranks {
		sorted = append(sorted, r)
	}
	sort.Ints(sorted)
	if sorted[0] != 0 {
		return true
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return true
		}
	}
	return false
}
