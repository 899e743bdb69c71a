package analyzers

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/rvps"
)

// VoluntaryConversionAnalyzer computes, for each non-participating
// series in conversion order, the exit value at which it becomes
// indifferent between keeping its liquidation preference and
// converting to common. This stage is strictly sequential: each
// series' indifference point depends on which earlier series (in
// rvps.ConversionOrder) have already converted.
type VoluntaryConversionAnalyzer struct{}

func (VoluntaryConversionAnalyzer) Name() string { return "VoluntaryConversion" }

func (VoluntaryConversionAnalyzer) ExpectedCount(snap captable.CapTableSnapshot) int {
	count := 0
	for _, p := range snap.Preferred {
		if p.Type == captable.NonParticipating {
			count++
		}
	}
	return count
}

func (VoluntaryConversionAnalyzer) Analyze(snap captable.CapTableSnapshot, prior []breakpoint.Breakpoint, log *audit.Logger) ([]breakpoint.Breakpoint, []captable.TestResult, error) {
	ranked, err := rvps.ConversionOrder(snap)
	if err != nil {
		return nil, nil, err
	}
	if len(ranked) == 0 {
		return nil, nil, nil
	}

	proRata, ok := findProRata(prior)
	if !ok {
		return nil, nil, captable.NewInternalInvariant("voluntary conversion analyzer ran before pro-rata", nil)
	}
	optionBPs := priorOfType(prior, breakpoint.OptionExercise)

	totalLP := snap.TotalLiquidationPreference()
	waivedSoFar := decimal.Zero
	convertedSharesSoFar := decimal.Zero
	basePoolShares := proRata.TotalParticipatingShares

	var out []breakpoint.Breakpoint
	for _, rs := range ranked {
		series := rs.Series
		seriesLP := series.TotalLP()
		// RemainingLP excludes both previously-waived LP and this
		// series' own LP: converting means the series forfeits its own
		// reserved tranche, freeing it into the pro-rata pool alongside
		// whatever's left over.
		remainingLP := totalLP.Sub(waivedSoFar).Sub(seriesLP)

		seriesPool := basePoolShares.Add(convertedSharesSoFar).Add(series.AsConvertedShares())
		poolShares := seriesPool
		v := indifferenceValue(remainingLP, seriesLP, series.AsConvertedShares(), poolShares)

		// Converge in the already-exercised option pools whose own
		// indifference point falls below the candidate V: once an
		// option pool has exercised, its shares join the pro-rata base
		// too. V only grows as the pool grows, so the pool changes at
		// most len(optionBPs) times before the loop exits.
		for {
			included := decimal.Zero
			for _, ob := range optionBPs {
				if ob.RangeFrom.LessThan(v) {
					included = included.Add(ob.TotalParticipatingShares)
				}
			}
			newPool := seriesPool.Add(included)
			if newPool.Equal(poolShares) {
				break
			}
			newV := indifferenceValue(remainingLP, seriesLP, series.AsConvertedShares(), newPool)
			poolShares = newPool
			if newV.Equal(v) {
				v = newV
				break
			}
			v = newV
		}

		id := fmt.Sprintf("Conversion-%s", series.Name)
		bp := breakpoint.Breakpoint{
			ID:          id,
			Type:        breakpoint.VoluntaryConversion,
			RangeFrom:   v,
			IsOpenEnded: true,
			// ParticipationPercentage is a don't-care pre-finalization
			// placeholder, same as the option-exercise analyzer's.
			Participants: []breakpoint.Participant{{
				SecurityName:            series.Name,
				SecurityType:            breakpoint.SecurityPreferredSeries,
				ParticipatingShares:     series.AsConvertedShares(),
				ParticipationPercentage: decimal.NewFromInt(1),
				Status:                  breakpoint.StatusConverted,
			}},
			TotalParticipatingShares: series.AsConvertedShares(),
			Dependencies:             []string{"ProRata"},
			AffectedSecurities:       []string{series.Name},
			PriorityOrder:            breakpoint.PriorityConversionBase + rs.Index,
			Explanation:              fmt.Sprintf("Series %s is indifferent between its liquidation preference and converting at this exit value", series.Name),
			MathematicalDerivation:   audit.Derivation("V = %s + %s / (%s / %s)", remainingLP, seriesLP, series.AsConvertedShares(), poolShares),
		}
		out = append(out, bp)
		waivedSoFar = waivedSoFar.Add(seriesLP)
		convertedSharesSoFar = convertedSharesSoFar.Add(series.AsConvertedShares())
		log.Recordf("Conversion", "series %s converts at V=%s", series.Name, v)
	}
	return out, nil, nil
}

// indifferenceValue solves seriesLP = (ownShares/poolShares) * (V - remainingLP)
// for V. Multiplying before the single division keeps the result exact
// when the shares divide evenly, instead of compounding two rounded
// quotients.
func indifferenceValue(remainingLP, seriesLP, ownShares, poolShares decimal.Decimal) decimal.Decimal {
	return remainingLP.Add(seriesLP.Mul(poolShares).Div(ownShares))
}
