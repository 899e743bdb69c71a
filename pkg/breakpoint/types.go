// Package breakpoint defines the output model of a waterfall analysis:
// the ordered, contiguous, non-overlapping exit-value ranges over which
// the distribution function keeps a single form.
package breakpoint

import "github.com/shopspring/decimal"

// Type identifies which analyzer produced a breakpoint.
type Type string

const (
	LiquidationPreference Type = "liquidation_preference"
	ProRataDistribution   Type = "pro_rata_distribution"
	OptionExercise        Type = "option_exercise"
	VoluntaryConversion   Type = "voluntary_conversion"
	ParticipationCap      Type = "participation_cap"
)

// SecurityType classifies a participant.
type SecurityType string

const (
	SecurityCommon          SecurityType = "common"
	SecurityPreferredSeries SecurityType = "preferred_series"
	SecurityOptionPool      SecurityType = "option_pool"
)

// ParticipationStatus describes a participant's standing within a
// breakpoint's range.
type ParticipationStatus string

const (
	StatusActive    ParticipationStatus = "active"
	StatusCapped    ParticipationStatus = "capped"
	StatusConverted ParticipationStatus = "converted"
	StatusExercised ParticipationStatus = "exercised"
	StatusInactive  ParticipationStatus = "inactive"
)

// Priority-order base constants: breakpoints are sorted by
// PriorityOrder before rangeFrom, so that analyzer type, not raw
// indifference arithmetic, decides ties.
const (
	PriorityLPBase        = 100
	PriorityProRata        = 1000
	PriorityOptionBase     = 2000
	PriorityConversionBase = 3000
	PriorityCapBase        = 4000
)

// Participant is one security's standing within a single breakpoint
// range. It is a plain value type on purpose: copying it by value (as
// happens whenever it's appended into a new breakpoint's Participants
// slice) can never alias shared state the way a reference type would,
// so later breakpoints cannot reach back and mutate earlier ones'
// participant records.
type Participant struct {
	SecurityName            string
	SecurityType            SecurityType
	ParticipatingShares     decimal.Decimal
	ParticipationPercentage decimal.Decimal
	RVPSAtBreakpoint        decimal.Decimal
	CumulativeRVPS          decimal.Decimal
	SectionValue            decimal.Decimal
	CumulativeValue         decimal.Decimal
	Status                  ParticipationStatus
}

// Breakpoint is one range-based entry in an analysis result.
type Breakpoint struct {
	ID                       string
	Type                     Type
	RangeFrom                decimal.Decimal
	RangeTo                  decimal.Decimal
	IsOpenEnded              bool
	Participants             []Participant
	TotalParticipatingShares decimal.Decimal
	SectionRVPS              decimal.Decimal
	Dependencies             []string
	AffectedSecurities       []string
	PriorityOrder            int
	// Order is the 1-based sequential position assigned during
	// finalization, distinct from PriorityOrder (the pre-finalization
	// sort key).
	Order                    int
	Explanation              string
	MathematicalDerivation   string
	Metadata                 map[string]interface{}
}
