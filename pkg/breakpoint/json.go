package breakpoint

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// The canonical wire shape: decimals travel as strings so precision
// survives the round trip, and an open-ended range's rangeTo
// serializes as null.

type jsonParticipant struct {
	SecurityName            string `json:"securityName"`
	SecurityType            string `json:"securityType"`
	ParticipatingShares     string `json:"participatingShares"`
	ParticipationPercentage string `json:"participationPercentage"`
	RVPSAtBreakpoint        string `json:"rvpsAtBreakpoint"`
	CumulativeRVPS          string `json:"cumulativeRVPS"`
	SectionValue            string `json:"sectionValue"`
	CumulativeValue         string `json:"cumulativeValue"`
	ParticipationStatus     string `json:"participationStatus"`
}

type jsonBreakpoint struct {
	BreakpointType  string             `json:"breakpointType"`
	BreakpointOrder int                `json:"breakpointOrder"`
	RangeFrom       string             `json:"rangeFrom"`
	RangeTo         *string            `json:"rangeTo"`
	IsOpenEnded     bool               `json:"isOpenEnded"`
	Participants    []jsonParticipant  `json:"participants"`
}

// MarshalJSON renders the canonical wire shape.
func (b Breakpoint) MarshalJSON() ([]byte, error) {
	jb := jsonBreakpoint{
		BreakpointType:  string(b.Type),
		BreakpointOrder: b.Order,
		RangeFrom:       b.RangeFrom.String(),
		IsOpenEnded:     b.IsOpenEnded,
	}
	if !b.IsOpenEnded {
		s := b.RangeTo.String()
		jb.RangeTo = &s
	}
	for _, p := range b.Participants {
		jb.Participants = append(jb.Participants, jsonParticipant{
			SecurityName:            p.SecurityName,
			SecurityType:            string(p.SecurityType),
			ParticipatingShares:     p.ParticipatingShares.String(),
			ParticipationPercentage: p.ParticipationPercentage.String(),
			RVPSAtBreakpoint:        p.RVPSAtBreakpoint.String(),
			CumulativeRVPS:          p.CumulativeRVPS.String(),
			SectionValue:            p.SectionValue.String(),
			CumulativeValue:         p.CumulativeValue.String(),
			ParticipationStatus:     string(p.Status),
		})
	}
	return json.Marshal(jb)
}

// UnmarshalJSON parses the canonical wire shape back into a Breakpoint.
// Fields outside the stable contract (ID, PriorityOrder, Dependencies,
// Explanation, ...) are not part of the wire shape and are left zero;
// the round trip only promises equality on decimal and enum fields.
func (b *Breakpoint) UnmarshalJSON(data []byte) error {
	var jb jsonBreakpoint
	if err := json.Unmarshal(data, &jb); err != nil {
		return err
	}
	b.Type = Type(jb.BreakpointType)
	b.Order = jb.BreakpointOrder
	rf, err := decimal.NewFromString(jb.RangeFrom)
	if err != nil {
		return fmt.Errorf("breakpoint: invalid rangeFrom %q: %w", jb.RangeFrom, err)
	}
	b.RangeFrom = rf
	b.IsOpenEnded = jb.IsOpenEnded
	if jb.RangeTo != nil {
		rt, err := decimal.NewFromString(*jb.RangeTo)
		if err != nil {
			return fmt.Errorf("breakpoint: invalid rangeTo %q: %w", *jb.RangeTo, err)
		}
		b.RangeTo = rt
	}
	b.Participants = nil
	for _, jp := range jb.Participants {
		p := Participant{
			SecurityName: jp.SecurityName,
			SecurityType: SecurityType(jp.SecurityType),
			Status:       ParticipationStatus(jp.ParticipationStatus),
		}
		if p.ParticipatingShares, err = decimal.NewFromString(jp.ParticipatingShares); err != nil {
			return err
		}
		if p.ParticipationPercentage, err = decimal.NewFromString(jp.ParticipationPercentage); err != nil {
			return err
		}
		if p.RVPSAtBreakpoint, err = decimal.NewFromString(jp.RVPSAtBreakpoint); err != nil {
			return err
		}
		if p.CumulativeRVPS, err = decimal.NewFromString(jp.CumulativeRVPS); err != nil {
			return err
		}
		if p.SectionValue, err = decimal.NewFromString(jp.SectionValue); err != nil {
			return err
		}
		if p.CumulativeValue, err = decimal.NewFromString(jp.CumulativeValue); err != nil {
			return err
		}
		b.Participants = append(b.Participants, p)
	}
	return nil
}
