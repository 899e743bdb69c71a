// Package finalize implements the range-finalization processor: it
// connects each analyzer's open-ended raw breakpoint
// into a closed range, threads a running participant map forward
// through pro-rata, option-exercise, and voluntary-conversion events,
// and recomputes per-segment RVPS, percentages, and values.
package finalize

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/decimalx"
)

// Finalize sorts raw breakpoints into final order, connects their
// ranges, and recomputes participant figures that depend on the
// running pool of participants.
//
// Liquidation-preference breakpoints are left untouched beyond range
// connection: their participants each redeem at a different per-share
// price (their own price * multiple), so the uniform section-RVPS
// formula below does not apply to them; it only holds once every
// participant in a range shares the same pro-rata rate.
func Finalize(raw []breakpoint.Breakpoint) []breakpoint.Breakpoint {
	out := make([]breakpoint.Breakpoint, len(raw))
	copy(out, raw)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityOrder != out[j].PriorityOrder {
			return out[i].PriorityOrder < out[j].PriorityOrder
		}
		return out[i].RangeFrom.LessThan(out[j].RangeFrom)
	})

	// Step 1: connect ranges and assign the 1-based sequential order.
	for i := 0; i < len(out)-1; i++ {
		out[i].RangeTo = out[i+1].RangeFrom
		out[i].IsOpenEnded = false
	}
	if len(out) > 0 {
		out[len(out)-1].IsOpenEnded = true
	}
	for i := range out {
		out[i].Order = i + 1
	}

	// Step 2 + 3: thread the running participant map through every
	// non-LP breakpoint, recomputing percentages/values against it.
	pool := map[string]breakpoint.Participant{}
	cumulativeValue := map[string]decimal.Decimal{}

	for i := range out {
		bp := &out[i]
		switch bp.Type {
		case breakpoint.LiquidationPreference:
			for _, p := range bp.Participants {
				cumulativeValue[p.SecurityName] = p.CumulativeValue
			}
			continue
		case breakpoint.ProRataDistribution:
			for _, p := range bp.Participants {
				pool[p.SecurityName] = p
			}
		case breakpoint.OptionExercise, breakpoint.VoluntaryConversion:
			for _, p := range bp.Participants {
				pool[p.SecurityName] = p
			}
		case breakpoint.ParticipationCap:
			// The capped series has collected cap x LP by the start of
			// this range, so it drops out of the pool from this range on.
			delete(pool, bp.AffectedSecurities[0])
		}

		width := decimal.Zero
		if !bp.IsOpenEnded {
			width = bp.RangeTo.Sub(bp.RangeFrom)
		}
		totalShares := decimal.Zero
		for _, p := range pool {
			totalShares = totalShares.Add(p.ParticipatingShares)
		}
		bp.TotalParticipatingShares = totalShares
		bp.SectionRVPS = decimalx.Share(width, totalShares)

		names := make([]string, 0, len(pool))
		for name := range pool {
			names = append(names, name)
		}
		sort.Strings(names)

		recomputed := make([]breakpoint.Participant, 0, len(names))
		for _, name := range names {
			p := pool[name]
			p.ParticipationPercentage = decimalx.Share(p.ParticipatingShares, totalShares)
			p.RVPSAtBreakpoint = bp.SectionRVPS
			sectionValue := p.ParticipatingShares.Mul(bp.SectionRVPS)
			p.SectionValue = sectionValue
			prior := cumulativeValue[name]
			p.CumulativeValue = prior.Add(sectionValue)
			p.CumulativeRVPS = decimalx.Share(p.CumulativeValue, p.ParticipatingShares)
			cumulativeValue[name] = p.CumulativeValue
			recomputed = append(recomputed, p)
			pool[name] = p
		}
		bp.Participants = recomputed
	}

	return out
}
