package orchestrator

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Eran5102/valuation-waterfall/pkg/breakpoint"
	"github.com/Eran5102/valuation-waterfall/pkg/captable"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func requireNoErrors(t *testing.T, r OrchestrationResult) {
	t.Helper()
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if captable.HasErrors(r.CapTableFindings) {
		t.Fatalf("cap table findings: %+v", r.CapTableFindings)
	}
	if captable.HasErrors(r.BreakpointFindings) {
		t.Fatalf("breakpoint findings: %+v", r.BreakpointFindings)
	}
	if captable.HasErrors(r.ConsistencyFindings) {
		t.Fatalf("consistency findings: %+v", r.ConsistencyFindings)
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

// A simple seed round: a single non-participating series and no
// options. The pro-rata breakpoint is unconditionally emitted once
// the preference stack is exhausted, so the run produces three
// breakpoints: LP, pro-rata, and the Series A conversion.
func TestScenarioA_SingleSeriesConversion(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("10000000")},
		Preferred: []captable.PreferredShareClass{
			{
				Name: "Series A", Shares: d("2000000"), PricePerShare: d("5"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating,
			},
		},
	}

	r := New(DefaultConfig()).Analyze(snap)
	requireNoErrors(t, r)

	if len(r.Breakpoints) != 3 {
		t.Fatalf("expected 3 breakpoints, got %d: %+v", len(r.Breakpoints), r.Breakpoints)
	}

	lp := r.Breakpoints[0]
	if lp.Type != breakpoint.LiquidationPreference || !lp.RangeFrom.Equal(d("0")) || !lp.RangeTo.Equal(d("10000000")) {
		t.Fatalf("unexpected LP breakpoint: %+v", lp)
	}

	proRata := r.Breakpoints[1]
	if proRata.Type != breakpoint.ProRataDistribution || !proRata.RangeFrom.Equal(d("10000000")) {
		t.Fatalf("unexpected pro-rata breakpoint: %+v", proRata)
	}

	conv := r.Breakpoints[2]
	if conv.Type != breakpoint.VoluntaryConversion {
		t.Fatalf("expected final breakpoint to be voluntary conversion, got %s", conv.Type)
	}
	// V = 0 + 10,000,000 / (2,000,000 / 12,000,000) = 60,000,000
	if !conv.RangeFrom.Equal(d("60000000")) {
		t.Fatalf("expected conversion indifference at 60,000,000, got %s", conv.RangeFrom)
	}
	common, ok := participant(conv, "Common")
	if !ok {
		t.Fatalf("expected Common in final breakpoint: %+v", conv)
	}
	if !common.ParticipationPercentage.Sub(d("0.833333")).Abs().LessThan(d("0.001")) {
		t.Fatalf("expected Common ~83.33%%, got %s", common.ParticipationPercentage)
	}
}

// Two seniority ranks, one participating. Converting costs Series B
// only its own $5M reservation, not the full $7M preference stack, so
// the remaining-LP term at its indifference point is
// TotalLP - SeriesLP_B = 2,000,000 and
// V = 2,000,000 + 5,000,000/(500,000/6,500,000) = 67,000,000.
func TestScenarioB_TwoRanksOneParticipating(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("5000000")},
		Preferred: []captable.PreferredShareClass{
			{
				Name: "Series A", Shares: d("1000000"), PricePerShare: d("2"),
				LiquidationMultiple: d("1"), SeniorityRank: 1, Type: captable.Participating,
			},
			{
				Name: "Series B", Shares: d("500000"), PricePerShare: d("10"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating,
			},
		},
	}

	r := New(DefaultConfig()).Analyze(snap)
	requireNoErrors(t, r)

	if len(r.Breakpoints) != 4 {
		t.Fatalf("expected 4 breakpoints, got %d: %+v", len(r.Breakpoints), r.Breakpoints)
	}

	lpB := r.Breakpoints[0]
	if lpB.ID != "LP-0" || !lpB.RangeFrom.Equal(d("0")) || !lpB.RangeTo.Equal(d("5000000")) {
		t.Fatalf("unexpected first LP breakpoint: %+v", lpB)
	}
	lpA := r.Breakpoints[1]
	if lpA.ID != "LP-1" || !lpA.RangeFrom.Equal(d("5000000")) || !lpA.RangeTo.Equal(d("7000000")) {
		t.Fatalf("unexpected second LP breakpoint: %+v", lpA)
	}

	proRata := r.Breakpoints[2]
	if !proRata.RangeFrom.Equal(d("7000000")) {
		t.Fatalf("expected pro-rata to start at 7,000,000, got %s", proRata.RangeFrom)
	}

	conv := r.Breakpoints[3]
	if !conv.RangeFrom.Equal(d("67000000")) {
		t.Fatalf("expected conversion indifference at 67,000,000, got %s", conv.RangeFrom)
	}
}

// A single participating-with-cap series with no
// conflicting events hits its cap at a value computable from the
// participation rate alone.
func TestScenarioE_ParticipationCap(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("8000000")},
		Preferred: []captable.PreferredShareClass{
			{
				Name: "Series A", Shares: d("2000000"), PricePerShare: d("1"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.ParticipatingWithCap,
				ParticipationCap: d("3"),
			},
		},
	}

	r := New(DefaultConfig()).Analyze(snap)
	requireNoErrors(t, r)

	var cap *breakpoint.Breakpoint
	for i := range r.Breakpoints {
		if r.Breakpoints[i].Type == breakpoint.ParticipationCap {
			cap = &r.Breakpoints[i]
		}
	}
	if cap == nil {
		t.Fatalf("expected a participation-cap breakpoint, got %+v", r.Breakpoints)
	}
	if !cap.RangeFrom.Equal(d("22000000")) {
		t.Fatalf("expected cap hit at 22,000,000, got %s", cap.RangeFrom)
	}
}

// Common, one non-participating series, and two option pools: one
// folded into common (strike below the already-exercised threshold),
// one priced normally. The priced strike sits in the money before
// Series A's conversion point, so the exercised pool both earns its
// own breakpoint and dilutes the conversion indifference value.
func TestScenarioC_OptionPoolAndConversion(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("10000000")},
		Preferred: []captable.PreferredShareClass{
			{
				Name: "Series A", Shares: d("2000000"), PricePerShare: d("1"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating,
			},
		},
		Options: []captable.OptionGrant{
			{PoolName: "Pool 1", Options: d("1000000"), StrikePrice: d("0.005"), Vested: d("1000000")},
			{PoolName: "Pool 2", Options: d("500000"), StrikePrice: d("0.9"), Vested: d("500000")},
		},
	}

	r := New(DefaultConfig()).Analyze(snap)
	requireNoErrors(t, r)
	if !r.Succeeded() {
		t.Fatalf("expected a successful run, got errors: %v", r.Errors)
	}

	if len(r.Breakpoints) != 4 {
		t.Fatalf("expected 4 breakpoints, got %d: %+v", len(r.Breakpoints), r.Breakpoints)
	}
	if r.TypeCounts[breakpoint.LiquidationPreference] != 1 ||
		r.TypeCounts[breakpoint.ProRataDistribution] != 1 ||
		r.TypeCounts[breakpoint.OptionExercise] != 1 ||
		r.TypeCounts[breakpoint.VoluntaryConversion] != 1 {
		t.Fatalf("unexpected breakpoint type breakdown: %+v", r.TypeCounts)
	}

	var opt *breakpoint.Breakpoint
	for i := range r.Breakpoints {
		if r.Breakpoints[i].Type == breakpoint.OptionExercise {
			opt = &r.Breakpoints[i]
		}
	}
	if opt == nil {
		t.Fatalf("expected an option-exercise breakpoint, got %+v", r.Breakpoints)
	}
	// V = 2M LP + 0.9 * 11M effective common shares = 11.9M.
	if !opt.RangeFrom.Equal(d("11900000")) {
		t.Fatalf("expected option exercise at 11,900,000, got %s", opt.RangeFrom)
	}
	// Conversion values Series A against the post-exercise pool of
	// 13.5M shares: V = 2M * 13.5M / 2M = 13.5M.
	last := r.Breakpoints[len(r.Breakpoints)-1]
	if last.Type != breakpoint.VoluntaryConversion || !last.RangeFrom.Equal(d("13500000")) {
		t.Fatalf("expected conversion at 13,500,000, got %+v", last)
	}
	iterations, ok := opt.Metadata["iterations"].(int)
	if !ok {
		t.Fatalf("expected option breakpoint metadata to record an iteration count, got %+v", opt.Metadata)
	}
	if iterations < 1 || iterations > 100 {
		t.Fatalf("expected iteration count between 1 and 100, got %d", iterations)
	}
}

// Degenerate case: a strike so far beyond any feasible per-share
// value (here, against a 100-share base) that the solver's sanity
// bound trips. The analyzer must report the divergence rather than
// panicking or silently fabricating a breakpoint. A documented
// divergence is a warning, not an error, so the run still succeeds
// overall.
func TestOptionExerciseDivergenceDoesNotFailRun(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("100")},
		Preferred: []captable.PreferredShareClass{
			{
				Name: "Series A", Shares: d("1000000"), PricePerShare: d("10"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating,
			},
		},
		Options: []captable.OptionGrant{
			{PoolName: "Pool 1", Options: d("100000"), StrikePrice: d("2000000"), Vested: d("100000")},
		},
	}

	r := New(DefaultConfig()).Analyze(snap)
	if r.Err != nil {
		t.Fatalf("unexpected hard error: %v", r.Err)
	}
	for _, bp := range r.Breakpoints {
		if bp.Type == breakpoint.OptionExercise {
			t.Fatalf("expected option exercise to diverge, but got a breakpoint: %+v", bp)
		}
	}
	if !r.Succeeded() {
		t.Fatalf("a documented solver divergence must not fail the run, got errors: %v", r.Errors)
	}

	found := false
	for _, f := range r.ConsistencyFindings {
		if f.Category == captable.CategorySolverDivergence {
			found = true
			if f.Severity != captable.SeverityWarning {
				t.Fatalf("expected solver divergence to be a warning, got %s", f.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected a solver-divergence finding, got %+v", r.ConsistencyFindings)
	}
}

// The analysis is a pure function of the snapshot: running it twice,
// or permuting the input order of series and option grants, must
// produce identical breakpoints once the internal canonical sorts
// (pari-passu participants by name, option pools by strike) have run.
func TestAnalysisIsDeterministicUnderInputPermutation(t *testing.T) {
	series := []captable.PreferredShareClass{
		{Name: "Series A", Shares: d("1000000"), PricePerShare: d("2"),
			LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating},
		{Name: "Series B", Shares: d("1000000"), PricePerShare: d("6"),
			LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating},
	}
	grants := []captable.OptionGrant{
		{PoolName: "2021 Plan", Options: d("300000"), StrikePrice: d("1.5"), Vested: d("300000")},
		{PoolName: "2023 Plan", Options: d("200000"), StrikePrice: d("1.5"), Vested: d("200000")},
		{PoolName: "Founder Warrants", Options: d("500000"), StrikePrice: d("0.005"), Vested: d("500000")},
	}

	forward := captable.CapTableSnapshot{
		Common:    captable.CommonStock{Shares: d("6000000")},
		Preferred: series,
		Options:   grants,
	}
	reversed := captable.CapTableSnapshot{
		Common:    captable.CommonStock{Shares: d("6000000")},
		Preferred: []captable.PreferredShareClass{series[1], series[0]},
		Options:   []captable.OptionGrant{grants[2], grants[1], grants[0]},
	}

	first := New(DefaultConfig()).Analyze(forward)
	second := New(DefaultConfig()).Analyze(forward)
	permuted := New(DefaultConfig()).Analyze(reversed)
	requireNoErrors(t, first)

	firstJSON := marshalBreakpoints(t, first.Breakpoints)
	if !bytes.Equal(firstJSON, marshalBreakpoints(t, second.Breakpoints)) {
		t.Fatal("two runs over the same snapshot produced different breakpoints")
	}
	if !bytes.Equal(firstJSON, marshalBreakpoints(t, permuted.Breakpoints)) {
		t.Fatalf("permuting the input order changed the result:\n%s\nvs\n%s",
			firstJSON, marshalBreakpoints(t, permuted.Breakpoints))
	}
}

func marshalBreakpoints(t *testing.T, bps []breakpoint.Breakpoint) []byte {
	t.Helper()
	data, err := json.Marshal(bps)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// Serializing a finalized result to the canonical wire shape and back
// preserves every decimal and enum field.
func TestBreakpointWireRoundTrip(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("5000000")},
		Preferred: []captable.PreferredShareClass{
			{Name: "Series A", Shares: d("1000000"), PricePerShare: d("2"),
				LiquidationMultiple: d("1"), SeniorityRank: 1, Type: captable.Participating},
			{Name: "Series B", Shares: d("500000"), PricePerShare: d("10"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating},
		},
	}

	r := New(DefaultConfig()).Analyze(snap)
	requireNoErrors(t, r)

	data := marshalBreakpoints(t, r.Breakpoints)
	var decoded []breakpoint.Breakpoint
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != len(r.Breakpoints) {
		t.Fatalf("expected %d breakpoints back, got %d", len(r.Breakpoints), len(decoded))
	}
	for i, bp := range r.Breakpoints {
		got := decoded[i]
		if got.Type != bp.Type || got.Order != bp.Order || got.IsOpenEnded != bp.IsOpenEnded {
			t.Fatalf("breakpoint %d enum/order fields changed: %+v vs %+v", i, got, bp)
		}
		if !got.RangeFrom.Equal(bp.RangeFrom) {
			t.Fatalf("breakpoint %d rangeFrom changed: %s vs %s", i, got.RangeFrom, bp.RangeFrom)
		}
		if !bp.IsOpenEnded && !got.RangeTo.Equal(bp.RangeTo) {
			t.Fatalf("breakpoint %d rangeTo changed: %s vs %s", i, got.RangeTo, bp.RangeTo)
		}
		for j, p := range bp.Participants {
			q := got.Participants[j]
			if q.SecurityName != p.SecurityName || q.SecurityType != p.SecurityType || q.Status != p.Status {
				t.Fatalf("participant %d/%d identity changed: %+v vs %+v", i, j, q, p)
			}
			if !q.ParticipatingShares.Equal(p.ParticipatingShares) ||
				!q.ParticipationPercentage.Equal(p.ParticipationPercentage) ||
				!q.CumulativeRVPS.Equal(p.CumulativeRVPS) ||
				!q.SectionValue.Equal(p.SectionValue) {
				t.Fatalf("participant %d/%d decimal fields changed: %+v vs %+v", i, j, q, p)
			}
		}
	}
}

// Strict validation promotes cap table warnings (here: a participation
// cap set on a series that isn't participating-with-cap) to fatal.
func TestStrictValidationPromotesWarnings(t *testing.T) {
	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: d("1000000")},
		Preferred: []captable.PreferredShareClass{
			{Name: "Series A", Shares: d("1000000"), PricePerShare: d("1"),
				LiquidationMultiple: d("1"), SeniorityRank: 0, Type: captable.NonParticipating,
				ParticipationCap: d("3")},
		},
	}

	lenient := New(DefaultConfig()).Analyze(snap)
	if lenient.Err != nil {
		t.Fatalf("a lenient run must tolerate the warning, got %v", lenient.Err)
	}

	cfg := DefaultConfig()
	cfg.StrictValidation = true
	strict := New(cfg).Analyze(snap)
	if strict.Err == nil {
		t.Fatal("expected a strict run to fail on the warning")
	}
	if len(strict.Breakpoints) != 0 {
		t.Fatalf("a failed validation must return no breakpoints, got %d", len(strict.Breakpoints))
	}
}
