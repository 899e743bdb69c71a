package analyzers

import (
	"testing"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// With no intervening events the cap hit is a single linear solve from
// the pro-rata start: LP + pct * (V - proRataStart) = cap * LP.
func TestParticipationCapSimpleHit(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("8000000")},
		Preferred: []captable.PreferredShareClass{
			{Name: "Series A", Shares: d("2000000"), PricePerShare: d("1"), LiquidationMultiple: d("1"),
				SeniorityRank: 0, Type: captable.ParticipatingWithCap, ParticipationCap: d("3")},
		},
	}

	prior := runThrough(t, snap, "VoluntaryConversion")
	out, _, err := ParticipationCapAnalyzer{}.Analyze(snap, prior, audit.NewLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 cap breakpoint, got %d", len(out))
	}
	// 2M LP + 20% * (V - 2M) = 6M  =>  V = 22M.
	if !out[0].RangeFrom.Equal(d("22000000")) {
		t.Fatalf("expected the cap to hit at 22,000,000, got %s", out[0].RangeFrom)
	}
	if out[0].Participants[0].Status != breakpoint.StatusCapped {
		t.Fatalf("expected capped status, got %s", out[0].Participants[0].Status)
	}
}

// An option exercise before the cap hit dilutes the capped series'
// share of each incremental dollar, so the cap analyzer must walk the
// timeline segment by segment rather than extrapolating the pro-rata
// rate.
func TestParticipationCapWalksInterveningEvents(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("8000000")},
		Preferred: []captable.PreferredShareClass{
			{Name: "Series A", Shares: d("2000000"), PricePerShare: d("1"), LiquidationMultiple: d("1"),
				SeniorityRank: 0, Type: captable.ParticipatingWithCap, ParticipationCap: d("3")},
		},
		Options: []captable.OptionGrant{
			{PoolName: "Pool 1", Options: d("1000000"), StrikePrice: d("0.5"), Vested: d("1000000")},
		},
	}

	prior := runThrough(t, snap, "VoluntaryConversion")
	out, _, err := ParticipationCapAnalyzer{}.Analyze(snap, prior, audit.NewLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 cap breakpoint, got %d", len(out))
	}
	// Pro-rata pool is 10M shares (8M common + 2M as-converted A), so
	// the options exercise at V = 2M + 0.5 * 10M = 7M. Up to there A
	// accrues 2M LP + 20% * 5M = 3M. Past 7M its rate drops to 2/11,
	// so the remaining 3M arrives at V = 7M + 3M / (2/11) = 23.5M.
	if !out[0].RangeFrom.Equal(d("23500000")) {
		t.Fatalf("expected the cap to hit at 23,500,000, got %s", out[0].RangeFrom)
	}
}

func TestParticipationCapExpectedCountCountsOnlyCappedSeries(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Preferred: []captable.PreferredShareClass{
			{Name: "Series A", Type: captable.ParticipatingWithCap},
			{Name: "Series B", Type: captable.Participating},
			{Name: "Series C", Type: captable.NonParticipating},
		},
	}
	if got := (ParticipationCapAnalyzer{}).ExpectedCount(snap); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}
