package analyzers

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// LiquidationPreferenceAnalyzer produces one breakpoint per distinct
// seniority rank with positive aggregate LP, most senior first.
type LiquidationPreferenceAnalyzer struct{}

func (LiquidationPreferenceAnalyzer) Name() string { return "LiquidationPreference" }

func (LiquidationPreferenceAnalyzer) ExpectedCount(snap captable.CapTableSnapshot) int {
	byRank := map[int]decimal.Decimal{}
	for _, p := range snap.Preferred {
		byRank[p.SeniorityRank] = byRank[p.SeniorityRank].Add(p.TotalLP())
	}
	count := 0
	for _, lp := range byRank {
		if lp.GreaterThan(decimal.Zero) {
			count++
		}
	}
	return count
}

func (LiquidationPreferenceAnalyzer) Analyze(snap captable.CapTableSnapshot, prior []breakpoint.Breakpoint, log *audit.Logger) ([]breakpoint.Breakpoint, []captable.TestResult, error) {
	ranks := map[int][]captable.PreferredShareClass{}
	for _, p := range snap.Preferred {
		ranks[p.SeniorityRank] = append(ranks[p.SeniorityRank], p)
	}
	sortedRanks := make([]int, 0, len(ranks))
	for r := range ranks {
		sortedRanks = append(sortedRanks, r)
	}
	sort.Ints(sortedRanks)

	cumulative := decimal.Zero
	var out []breakpoint.Breakpoint
	var dependencyIDs []string

	for _, rank := range sortedRanks {
		series := ranks[rank]
		// Pari-passu series share one breakpoint; order them by name so
		// permuting the snapshot's input order cannot change the output.
		sort.Slice(series, func(i, j int) bool { return series[i].Name < series[j].Name })
		rankLP := decimal.Zero
		for _, p := range series {
			rankLP = rankLP.Add(p.TotalLP())
		}
		if !rankLP.GreaterThan(decimal.Zero) {
			continue
		}

		rangeFrom := cumulative
		rangeTo := cumulative.Add(rankLP)

		var participants []breakpoint.Participant
		var affected []string
		totalShares := decimal.Zero
		for _, p := range series {
			rvps := p.PricePerShare.Mul(p.LiquidationMultiple)
			if p.LiquidationMultiple.IsZero() {
				rvps = p.PricePerShare
			}
			sectionValue := p.TotalLP()
			participants = append(participants, breakpoint.Participant{
				SecurityName:            p.Name,
				SecurityType:            breakpoint.SecurityPreferredSeries,
				ParticipatingShares:     p.Shares,
				ParticipationPercentage: sectionValue.Div(rankLP),
				RVPSAtBreakpoint:        rvps,
				CumulativeRVPS:          rvps,
				SectionValue:            sectionValue,
				CumulativeValue:         sectionValue,
				Status:                  breakpoint.StatusActive,
			})
			affected = append(affected, p.Name)
			totalShares = totalShares.Add(p.Shares)
		}

		id := fmt.Sprintf("LP-%d", rank)
		bp := breakpoint.Breakpoint{
			ID:                       id,
			Type:                     breakpoint.LiquidationPreference,
			RangeFrom:                rangeFrom,
			RangeTo:                  rangeTo,
			IsOpenEnded:              false,
			Participants:             participants,
			TotalParticipatingShares: totalShares,
			Dependencies:             append([]string(nil), dependencyIDs...),
			AffectedSecurities:       affected,
			PriorityOrder:            breakpoint.PriorityLPBase + rank,
			Explanation:              fmt.Sprintf("Seniority rank %d liquidation preference, totaling %s", rank, rankLP),
			MathematicalDerivation:   audit.Derivation("range = [%s, %s]; each series receives shares * price * multiple", rangeFrom, rangeTo),
		}
		out = append(out, bp)
		dependencyIDs = append(dependencyIDs, id)
		cumulative = rangeTo
		log.Recordf("LP", "rank %d: range [%s, %s], %d participant(s)", rank, rangeFrom, rangeTo, len(participants))
	}
	return out, nil, nil
}
