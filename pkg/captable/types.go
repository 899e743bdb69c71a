// Package captable defines the input data model for a waterfall
// breakpoint analysis run: common stock, preferred share classes with
// liquidation preferences, and option grants.
package captable

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/decimalx"
)

// PreferenceType distinguishes how a preferred series participates once
// its liquidation preference has been paid.
type PreferenceType string

const (
	NonParticipating     PreferenceType = "non_participating"
	Participating        PreferenceType = "participating"
	ParticipatingWithCap PreferenceType = "participating_with_cap"
)

// AlreadyExercisedStrikeThreshold is the strike at or below which an option
// grant is treated as already-exercised and folded into common for
// pro-rata purposes.
var AlreadyExercisedStrikeThreshold = decimalx.MustParse("0.01")

// PreferredShareClass is one series of preferred stock.
type PreferredShareClass struct {
	Name                string
	Shares              decimal.Decimal
	PricePerShare       decimal.Decimal
	LiquidationMultiple decimal.Decimal
	SeniorityRank       int // lower = more senior; ties are pari passu
	Type                PreferenceType
	// ParticipationCap is the participation multiple (e.g. 3 for "3x"),
	// required iff Type == ParticipatingWithCap.
	ParticipationCap decimal.Decimal
	// ConversionRatio converts preferred shares to as-converted common
	// shares; defaults to 1 when unset.
	ConversionRatio decimal.Decimal
}

// TotalLP returns the series' aggregate liquidation preference.
func (p PreferredShareClass) TotalLP() decimal.Decimal {
	return p.Shares.Mul(p.PricePerShare).Mul(p.effectiveMultiple())
}

func (p PreferredShareClass) effectiveMultiple() decimal.Decimal {
	if p.LiquidationMultiple.IsZero() {
		return decimalx.One
	}
	return p.LiquidationMultiple
}

func (p PreferredShareClass) effectiveConversionRatio() decimal.Decimal {
	if p.ConversionRatio.IsZero() {
		return decimalx.One
	}
	return p.ConversionRatio
}

// AsConvertedShares returns the number of common-equivalent shares this
// series would hold if fully converted.
func (p PreferredShareClass) AsConvertedShares() decimal.Decimal {
	return p.Shares.Mul(p.effectiveConversionRatio())
}

// ClassRVPS is the per-as-converted-share value of the series'
// liquidation preference, used to rank voluntary-conversion order.
func (p PreferredShareClass) ClassRVPS() decimal.Decimal {
	return decimalx.Share(p.TotalLP(), p.AsConvertedShares())
}

// CommonStock is the single common-stock line of the cap table.
type CommonStock struct {
	Shares decimal.Decimal
}

// OptionGrant is one pool of options or warrants at a single strike
// price.
type OptionGrant struct {
	PoolName    string
	Options     decimal.Decimal
	StrikePrice decimal.Decimal
	Vested      decimal.Decimal
}

// IsAlreadyExercised reports whether the grant's strike is low enough
// that it's treated as already-exercised common stock.
func (o OptionGrant) IsAlreadyExercised() bool {
	return o.StrikePrice.LessThanOrEqual(AlreadyExercisedStrikeThreshold)
}

// CapTableSnapshot is the complete, immutable input to an analysis run.
type CapTableSnapshot struct {
	ID        string
	Preferred []PreferredShareClass
	Common    CommonStock
	Options   []OptionGrant
	Timestamp time.Time
}

// NewSnapshot builds a snapshot with a freshly generated ID and
// timestamp; tests that need reproducible output build the struct
// literal directly instead.
func NewSnapshot(common CommonStock, preferred []PreferredShareClass, options []OptionGrant) CapTableSnapshot {
	return CapTableSnapshot{
		ID:        uuid.NewString(),
		Common:    common,
		Preferred: preferred,
		Options:   options,
		Timestamp: time.Now(),
	}
}

// EffectiveCommonShares returns common shares plus any option pools
// already folded into common (strike at or below the exercised
// threshold).
func (s CapTableSnapshot) EffectiveCommonShares() decimal.Decimal {
	total := s.Common.Shares
	for _, o := range s.Options {
		if o.IsAlreadyExercised() {
			total = total.Add(o.Options)
		}
	}
	return total
}

// TotalLiquidationPreference sums the LP of every preferred series.
func (s CapTableSnapshot) TotalLiquidationPreference() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Preferred {
		total = total.Add(p.TotalLP())
	}
	return total
}

// OptionPool groups grants that share a strike price and are not
// already folded into common.
type OptionPool struct {
	Strike  decimal.Decimal
	Options decimal.Decimal
	Names   []string
}

// OptionPoolsByStrike groups exercisable option grants by strike price,
// ascending, so the option-exercise analyzer can walk them in order.
func (s CapTableSnapshot) OptionPoolsByStrike() []OptionPool {
	byStrike := map[string]*OptionPool{}
	var order []string
	for _, o := range s.Options {
		if o.IsAlreadyExercised() {
			continue
		}
		key := o.StrikePrice.String()
		pool, ok := byStrike[key]
		if !ok {
			pool = &OptionPool{Strike: o.StrikePrice}
			byStrike[key] = pool
			order = append(order, key)
		}
		pool.Options = pool.Options.Add(o.Options)
		pool.Names = append(pool.Names, o.PoolName)
	}
	pools := make([]OptionPool, 0, len(order))
	for _, key := range order {
		pool := *byStrike[key]
		sort.Strings(pool.Names)
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Strike.LessThan(pools[j].Strike) })
	return pools
}
