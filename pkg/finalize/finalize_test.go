package finalize

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
)

func TestFinalizeConnectsRangesAndSortsByPriority(t *testing.T) {
	raw := []breakpoint.Breakpoint{
		{
			ID: "ProRata", Type: breakpoint.ProRataDistribution, RangeFrom: decimal.NewFromInt(10000000),
			IsOpenEnded: true, PriorityOrder: breakpoint.PriorityProRata,
			Participants: []breakpoint.Participant{
				{SecurityName: "Common", SecurityType: breakpoint.SecurityCommon, ParticipatingShares: decimal.NewFromInt(10000000)},
			},
		},
		{
			ID: "LP-0", Type: breakpoint.LiquidationPreference, RangeFrom: decimal.NewFromInt(0), RangeTo: decimal.NewFromInt(10000000),
			PriorityOrder: breakpoint.PriorityLPBase,
			Participants: []breakpoint.Participant{
				{SecurityName: "Series A", SecurityType: breakpoint.SecurityPreferredSeries, ParticipatingShares: decimal.NewFromInt(2000000), SectionValue: decimal.NewFromInt(10000000), CumulativeValue: decimal.NewFromInt(10000000)},
			},
		},
		{
			ID: "Conversion-A", Type: breakpoint.VoluntaryConversion, RangeFrom: decimal.NewFromInt(60000000),
			IsOpenEnded: true, PriorityOrder: breakpoint.PriorityConversionBase,
			Participants: []breakpoint.Participant{
				{SecurityName: "Series A", SecurityType: breakpoint.SecurityPreferredSeries, ParticipatingShares: decimal.NewFromInt(2000000)},
			},
		},
	}

	out := Finalize(raw)

	if len(out) != 3 {
		t.Fatalf("expected 3 breakpoints, got %d", len(out))
	}
	if out[0].ID != "LP-0" || out[1].ID != "ProRata" || out[2].ID != "Conversion-A" {
		t.Fatalf("expected LP, ProRata, Conversion order, got %s, %s, %s", out[0].ID, out[1].ID, out[2].ID)
	}
	if !out[0].RangeTo.Equal(decimal.NewFromInt(10000000)) {
		t.Fatalf("expected LP rangeTo to connect to ProRata's rangeFrom, got %s", out[0].RangeTo)
	}
	if !out[1].RangeTo.Equal(decimal.NewFromInt(60000000)) {
		t.Fatalf("expected ProRata rangeTo to connect to Conversion's rangeFrom, got %s", out[1].RangeTo)
	}
	if !out[2].IsOpenEnded {
		t.Fatal("expected the final breakpoint to remain open-ended")
	}

	proRata := out[1]
	common, ok := participant(proRata, "Common")
	if !ok {
		t.Fatalf("expected Common in the pro-rata breakpoint, got %+v", proRata)
	}
	if !common.ParticipationPercentage.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected Common to hold 100%% of the pro-rata pool before conversion, got %s", common.ParticipationPercentage)
	}

	conv := out[2]
	commonAfter, _ := participant(conv, "Common")
	seriesAfter, _ := participant(conv, "Series A")
	sum := commonAfter.ParticipationPercentage.Add(seriesAfter.ParticipationPercentage)
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.New(1, -6)) {
		t.Fatalf("expected post-conversion percentages to sum to 1, got %s", sum)
	}
}

func participant(bp breakpoint.Breakpoint, name string) (breakpoint.Participant, bool) {
	for _, p := range bp.Participants {
		if p.SecurityName == name {
			return p, true
		}
	}
	return breakpoint.Participant{}, false
}
