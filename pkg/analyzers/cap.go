package analyzers

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/audit"
	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// ParticipationCapAnalyzer finds, for each participating-with-cap
// series, the exit value at which its cumulative total value (LP plus
// pro-rata proceeds) reaches cap x LP, the point it stops participating
// further. It runs
// last in the sequence so it can see every prior
// breakpoint (pro-rata, option exercise, voluntary conversion) and walk
// the timeline segment by segment.
type ParticipationCapAnalyzer struct{}

func (ParticipationCapAnalyzer) Name() string { return "ParticipationCap" }

func (ParticipationCapAnalyzer) ExpectedCount(snap captable.CapTableSnapshot) int {
	count := 0
	for _, p := range snap.Preferred {
		if p.Type == captable.ParticipatingWithCap {
			count++
		}
	}
	return count
}

func (ParticipationCapAnalyzer) Analyze(snap captable.CapTableSnapshot, prior []breakpoint.Breakpoint, log *audit.Logger) ([]breakpoint.Breakpoint, []captable.TestResult, error) {
	proRata, ok := findProRata(prior)
	if !ok {
		return nil, nil, captable.NewInternalInvariant("participation cap analyzer ran before pro-rata", nil)
	}

	var events []breakpoint.Breakpoint
	events = append(events, priorOfType(prior, breakpoint.OptionExercise)...)
	events = append(events, priorOfType(prior, breakpoint.VoluntaryConversion)...)
	sort.Slice(events, func(i, j int) bool { return events[i].RangeFrom.LessThan(events[j].RangeFrom) })

	var out []breakpoint.Breakpoint
	idx := 0
	for _, series := range participatingByName(snap) {
		if series.Type != captable.ParticipatingWithCap {
			continue
		}
		targetValue := series.TotalLP().Mul(series.ParticipationCap)
		ownShares := series.AsConvertedShares()

		cum := series.TotalLP()
		currentFrom := proRata.RangeFrom
		totalPool := proRata.TotalParticipatingShares

		// The series collects ownShares/totalPool of each incremental
		// dollar. Multiply before dividing so segment arithmetic stays
		// exact when the shares divide evenly.
		var hit decimal.Decimal
		found := false
		for _, ev := range events {
			width := ev.RangeFrom.Sub(currentFrom)
			potential := cum.Add(ownShares.Mul(width).Div(totalPool))
			if potential.GreaterThanOrEqual(targetValue) {
				hit = currentFrom.Add(targetValue.Sub(cum).Mul(totalPool).Div(ownShares))
				found = true
				break
			}
			cum = potential
			currentFrom = ev.RangeFrom
			totalPool = totalPool.Add(ev.TotalParticipatingShares)
		}
		if !found {
			hit = currentFrom.Add(targetValue.Sub(cum).Mul(totalPool).Div(ownShares))
		}

		id := fmt.Sprintf("Cap-%s", series.Name)
		bp := breakpoint.Breakpoint{
			ID:          id,
			Type:        breakpoint.ParticipationCap,
			RangeFrom:   hit,
			IsOpenEnded: true,
			Participants: []breakpoint.Participant{{
				SecurityName:            series.Name,
				SecurityType:            breakpoint.SecurityPreferredSeries,
				ParticipatingShares:     ownShares,
				ParticipationPercentage: decimal.NewFromInt(1),
				Status:                  breakpoint.StatusCapped,
			}},
			TotalParticipatingShares: ownShares,
			Dependencies:             []string{"ProRata"},
			AffectedSecurities:       []string{series.Name},
			PriorityOrder:            breakpoint.PriorityCapBase + idx,
			Explanation:              fmt.Sprintf("Series %s reaches its participation cap of %sx LP at this exit value", series.Name, series.ParticipationCap),
			MathematicalDerivation:   audit.Derivation("%s + (%s - %s) * %s / %s", currentFrom, targetValue, cum, totalPool, ownShares),
		}
		out = append(out, bp)
		idx++
		log.Recordf("Cap", "series %s hits its cap at V=%s", series.Name, hit)
	}
	return out, nil, nil
}
