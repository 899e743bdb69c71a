// Package decimalx collects the small arbitrary-precision helpers the
// breakpoint analyzers share: weighted shares, tolerance comparisons,
// clamping. Every monetary, share-count, and ratio value in the core
// flows through decimal.Decimal rather than float64.
package decimalx

import "github.com/shopspring/decimal"

// PercentageTolerance is the tolerance applied when checking that a
// breakpoint's participation percentages sum to one.
var PercentageTolerance = decimal.New(1, -4) // 1e-4

// Zero and One are reused across analyzers to avoid re-allocating.
var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
	Two  = decimal.NewFromInt(2)
)

// Sum adds a list of decimals, returning Zero for an empty list.
func Sum(vals ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vals {
		total = total.Add(v)
	}
	return total
}

// Share returns part/total, or Zero when total is zero rather than
// panicking on a divide-by-zero; callers treat a zero-share pool as
// "no participants yet", not an error.
func Share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total)
}

// WithinTolerance reports whether a and b differ by less than tol.
func WithinTolerance(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(tol)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return Max(lo, Min(v, hi))
}

// MustParse parses a decimal literal used for constants; it panics on a
// malformed literal since callers only ever pass compile-time constants.
func MustParse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("decimalx: invalid literal " + s)
	}
	return d
}
