// Command waterfall runs a breakpoint analysis against a cap table
// scenario file and prints the resulting breakpoints and audit trail.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/Eran5102/valuation-waterfall/pkg/captable"
	"github.com/Eran5102/valuation-waterfall/pkg/orchestrator"
)

// scenarioFile is the YAML shape accepted on disk; decimals are plain
// YAML scalars and get parsed into decimal.Decimal below.
type scenarioFile struct {
	CommonShares string `yaml:"common_shares"`
	Preferred    []struct {
		Name                string `yaml:"name"`
		Shares              string `yaml:"shares"`
		PricePerShare       string `yaml:"price_per_share"`
		LiquidationMultiple string `yaml:"liquidation_multiple"`
		SeniorityRank       int    `yaml:"seniority_rank"`
		Type                string `yaml:"type"`
		ParticipationCap    string `yaml:"participation_cap"`
		ConversionRatio     string `yaml:"conversion_ratio"`
	} `yaml:"preferred"`
	Options []struct {
		PoolName    string `yaml:"pool_name"`
		Options     string `yaml:"options"`
		StrikePrice string `yaml:"strike_price"`
		Vested      string `yaml:"vested"`
	} `yaml:"options"`
}

func logStep(step string, details string) {
	fmt.Printf("\n[STEP] %s\n", step)
	fmt.Println("---------------------------------------------------------")
	fmt.Println(details)
	fmt.Println("---------------------------------------------------------")
}

func main() {
	godotenv.Load()

	path := "scenario.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	snap, err := loadScenario(path)
	if err != nil {
		fmt.Printf("[FATAL] failed to load scenario %s: %v\n", path, err)
		os.Exit(1)
	}

	logStep("1. Cap Table Loaded", fmt.Sprintf(
		"Source: %s\nCommon shares: %s\nPreferred series: %d\nOption pools: %d",
		path, snap.Common.Shares, len(snap.Preferred), len(snap.Options)))

	orc := orchestrator.New(orchestrator.DefaultConfig())
	result := orc.Analyze(snap)

	if len(result.CapTableFindings) > 0 {
		fmt.Println("\n[STEP] Cap Table Validation Findings")
		fmt.Println("---------------------------------------------------------")
		for _, f := range result.CapTableFindings {
			fmt.Printf(" [%s] %s: %s\n", f.Severity, f.Name, f.Message)
		}
	}

	if !result.Succeeded() {
		fmt.Println("\n[FATAL] analysis failed:")
		for _, msg := range result.Errors {
			fmt.Println("  - " + msg)
		}
		os.Exit(1)
	}

	fmt.Println("\n[STEP] 2. Breakpoints")
	fmt.Println("---------------------------------------------------------")
	for _, bp := range result.Breakpoints {
		to := "open-ended"
		if !bp.IsOpenEnded {
			to = bp.RangeTo.String()
		}
		fmt.Printf(" %-22s [%s, %s)\n", bp.Type, bp.RangeFrom, to)
		for _, p := range bp.Participants {
			fmt.Printf("   - %-20s %-10s shares=%-14s pct=%-10s status=%s\n",
				p.SecurityName, p.SecurityType, p.ParticipatingShares, p.ParticipationPercentage, p.Status)
		}
	}

	if len(result.BreakpointFindings) > 0 || len(result.ConsistencyFindings) > 0 {
		fmt.Println("\n[STEP] 3. Post-Analysis Validation")
		fmt.Println("---------------------------------------------------------")
		for _, f := range append(result.BreakpointFindings, result.ConsistencyFindings...) {
			fmt.Printf(" [%s] %s: %s\n", f.Severity, f.Name, f.Message)
		}
	}

	fmt.Println("\n[STEP] 4. Audit Trail")
	fmt.Println("---------------------------------------------------------")
	for _, line := range result.AuditTrail {
		fmt.Println(" " + line)
	}
}

func loadScenario(path string) (captable.CapTableSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return captable.CapTableSnapshot{}, err
	}

	var sf scenarioFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return captable.CapTableSnapshot{}, fmt.Errorf("failed to parse scenario yaml: %w", err)
	}

	snap := captable.CapTableSnapshot{
		Common: captable.CommonStock{Shares: parseDecimal(sf.CommonShares)},
	}
	for _, p := range sf.Preferred {
		snap.Preferred = append(snap.Preferred, captable.PreferredShareClass{
			Name:                p.Name,
			Shares:              parseDecimal(p.Shares),
			PricePerShare:       parseDecimal(p.PricePerShare),
			LiquidationMultiple: parseDecimal(p.LiquidationMultiple),
			SeniorityRank:       p.SeniorityRank,
			Type:                captable.PreferenceType(p.Type),
			ParticipationCap:    parseDecimal(p.ParticipationCap),
			ConversionRatio:     parseDecimal(p.ConversionRatio),
		})
	}
	for _, o := range sf.Options {
		snap.Options = append(snap.Options, captable.OptionGrant{
			PoolName:    o.PoolName,
			Options:     parseDecimal(o.Options),
			StrikePrice: parseDecimal(o.StrikePrice),
			Vested:      parseDecimal(o.Vested),
		})
	}
	return snap, nil
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
