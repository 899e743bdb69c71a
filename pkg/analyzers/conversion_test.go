package analyzers

import (
	"testing"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// Two non-participating series convert strictly sequentially: the
// cheaper class RVPS converts first, and its waived preference plus
// its as-converted shares shift the second series' indifference point.
func TestVoluntaryConversionIsSequential(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("6000000")},
		Preferred: []captable.PreferredShareClass{
			{Name: "Series B", Shares: d("1000000"), PricePerShare: d("8"), LiquidationMultiple: d("1"), SeniorityRank: 1, Type: captable.NonParticipating},
			{Name: "Series A", Shares: d("1000000"), PricePerShare: d("2"), LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating},
		},
	}

	prior := runThrough(t, snap, "VoluntaryConversion")
	var convs []breakpoint.Breakpoint
	for _, bp := range prior {
		if bp.Type == breakpoint.VoluntaryConversion {
			convs = append(convs, bp)
		}
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversion breakpoints, got %d", len(convs))
	}

	// Series A has class RVPS 2, Series B has 8, so A converts first.
	if convs[0].AffectedSecurities[0] != "Series A" || convs[1].AffectedSecurities[0] != "Series B" {
		t.Fatalf("expected Series A then Series B, got %+v, %+v", convs[0].AffectedSecurities, convs[1].AffectedSecurities)
	}

	// A: remainingLP = 10M - 2M = 8M; pool = 6M common + 1M own;
	// V = 8M + 2M / (1M/7M) = 22M.
	if !convs[0].RangeFrom.Equal(d("22000000")) {
		t.Fatalf("expected Series A indifference at 22,000,000, got %s", convs[0].RangeFrom)
	}
	// B: A's 2M LP is already waived, so remainingLP = 10M - 2M - 8M = 0;
	// pool = 6M + 1M converted A + 1M own; V = 0 + 8M / (1M/8M) = 64M.
	if !convs[1].RangeFrom.Equal(d("64000000")) {
		t.Fatalf("expected Series B indifference at 64,000,000, got %s", convs[1].RangeFrom)
	}

	if !convs[0].RangeFrom.LessThan(convs[1].RangeFrom) {
		t.Fatal("conversion breakpoints must be strictly increasing")
	}
}

func TestVoluntaryConversionRejectsZeroConvertibleShares(t *testing.T) {
	// The pre-validator normally rejects a zero-share series before any
	// analyzer runs, but the analyzer must fail cleanly on its own too.
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("1000000")},
		Preferred: []captable.PreferredShareClass{
			{Name: "Series A", Shares: d("0"), PricePerShare: d("1"), LiquidationMultiple: d("1"),
				SeniorityRank: 0, Type: captable.NonParticipating},
		},
	}

	prior := runThrough(t, snap, "ProRata")
	_, _, err := VoluntaryConversionAnalyzer{}.Analyze(snap, prior, audit.NewLogger())
	if err == nil {
		t.Fatal("expected a malformed-cap-table error for zero convertible shares")
	}
}
