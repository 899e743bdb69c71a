package analyzers

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/decimalx"
)

// ProRataAnalyzer produces exactly one breakpoint, starting where the
// liquidation preference stack is exhausted, over which common stock
// and already-participating preferred split proceeds pro rata.
type ProRataAnalyzer struct{}

func (ProRataAnalyzer) Name() string { return "ProRata" }

func (ProRataAnalyzer) ExpectedCount(captable.CapTableSnapshot) int { return 1 }

func (ProRataAnalyzer) Analyze(snap captable.CapTableSnapshot, prior []breakpoint.Breakpoint, log *audit.Logger) ([]breakpoint.Breakpoint, []captable.TestResult, error) {
	rangeFrom := snap.TotalLiquidationPreference()

	var participants []breakpoint.Participant
	var affected []string
	if commonShares := snap.EffectiveCommonShares(); commonShares.GreaterThan(decimal.Zero) {
		participants = append(participants, breakpoint.Participant{
			SecurityName:        "Common",
			SecurityType:        breakpoint.SecurityCommon,
			ParticipatingShares: commonShares,
			Status:              breakpoint.StatusActive,
		})
		affected = append(affected, "Common")
	}

	for _, p := range participatingByName(snap) {
		if p.Type == captable.Participating || p.Type == captable.ParticipatingWithCap {
			participants = append(participants, breakpoint.Participant{
				SecurityName:        p.Name,
				SecurityType:        breakpoint.SecurityPreferredSeries,
				ParticipatingShares: p.AsConvertedShares(),
				Status:              breakpoint.StatusActive,
			})
			affected = append(affected, p.Name)
		}
	}

	total := decimal.Zero
	for _, part := range participants {
		total = total.Add(part.ParticipatingShares)
	}
	for i := range participants {
		participants[i].ParticipationPercentage = decimalx.Share(participants[i].ParticipatingShares, total)
	}

	var lpIDs []string
	for _, bp := range priorOfType(prior, breakpoint.LiquidationPreference) {
		lpIDs = append(lpIDs, bp.ID)
	}

	log.Recordf("ProRata", "starts at %s with %d participant(s), %s total shares", rangeFrom, len(participants), total)

	bp := breakpoint.Breakpoint{
		ID:                       "ProRata",
		Type:                     breakpoint.ProRataDistribution,
		RangeFrom:                rangeFrom,
		IsOpenEnded:              true,
		Participants:             participants,
		TotalParticipatingShares: total,
		Dependencies:             lpIDs,
		AffectedSecurities:       affected,
		PriorityOrder:            breakpoint.PriorityProRata,
		Explanation:              "Liquidation preferences are exhausted; proceeds split pro rata among common and participating preferred",
	}
	return []breakpoint.Breakpoint{bp}, nil, nil
}

// participatingByName returns the preferred series sorted by name, so
// participant order is independent of snapshot input order.
func participatingByName(snap captable.CapTableSnapshot) []captable.PreferredShareClass {
	sorted := append([]captable.PreferredShareClass(nil), snap.Preferred...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}
