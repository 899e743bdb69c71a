// Package rvps computes per-class residual-value-per-share figures and
// the deterministic order in which non-participating preferred series
// are tested for voluntary conversion.
package rvps

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

// RankedSeries is one non-participating series placed in conversion
// order.
type RankedSeries struct {
	Series    *captable.PreferredShareClass
	ClassRVPS decimal.Decimal
	Index     int
}

// ConversionOrder ranks every non-participating preferred series by
// ascending class RVPS, breaking ties by descending seniority (the more
// senior series converts last at equal RVPS) and finally by name for
// full determinism.
func ConversionOrder(snap captable.CapTableSnapshot) ([]RankedSeries, error) {
	var candidates []*captable.PreferredShareClass
	for i := range snap.Preferred {
		p := &snap.Preferred[i]
		if p.Type == captable.NonParticipating {
			candidates = append(candidates, p)
		}
	}

	for _, p := range candidates {
		if p.AsConvertedShares().IsZero() {
			return nil, captable.NewMalformedCapTable(
				fmt.Sprintf("series %s has zero convertible shares", p.Name), p.Name)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].ClassRVPS(), candidates[j].ClassRVPS()
		if !ri.Equal(rj) {
			return ri.LessThan(rj)
		}
		if candidates[i].SeniorityRank != candidates[j].SeniorityRank {
			// Higher rank number = more junior = converts first at a tie.
			return candidates[i].SeniorityRank > candidates[j].SeniorityRank
		}
		return candidates[i].Name < candidates[j].Name
	})

	result := make([]RankedSeries, len(candidates))
	for idx, c := range candidates {
		result[idx] = RankedSeries{Series: c, ClassRVPS: c.ClassRVPS(), Index: idx}
	}
	return result, nil
}
