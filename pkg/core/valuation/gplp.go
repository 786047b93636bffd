package valuation

import (
	"math"

	"vc_termsheet/pkg/core/ledger"
)

// GPLPSplit is a round's partial valuation divided between GP and LPs.
type GPLPSplit struct {
	PartialValuation float64 `json:"partial_valuation"`
	LPCost           float64 `json:"lp_cost"`
	Profit           float64 `json:"profit"`
	Hurdle           float64 `json:"hurdle"`
	GPCarry          float64 `json:"gp_carry"`
	LPValuation      float64 `json:"lp_valuation"`
}

// LPCost grosses the investment up for fees:
// committed / investable × investment. Without investable capital the
// investment itself is the cost.
func LPCost(fund ledger.FundTerms, investment float64) float64 {
	investable := fund.InvestableCapital()
	if investable > 0 {
		return fund.CommittedCapital / investable * investment
	}
	return investment
}

// SplitGPLP divides pv between GP carry and LP value.
//
// Hurdle mode: profit = max(0, pv − investment), hurdle = lpCost × hurdle
// rate × carry period, carry = (profit − hurdle) × carry rate above the
// hurdle. Flat mode: carry = pv × carry rate.
func SplitGPLP(pv float64, fund ledger.FundTerms, investment float64, mode SplitMode) GPLPSplit {
	s := GPLPSplit{
		PartialValuation: pv,
		LPCost:           LPCost(fund, investment),
		Profit:           math.Max(0, pv-investment),
	}

	switch mode {
	case SplitFlat:
		s.GPCarry = pv * fund.CarryRate
	default:
		s.Hurdle = s.LPCost * fund.HurdleRate * fund.CarryPeriod()
		if s.Profit > s.Hurdle {
			s.GPCarry = (s.Profit - s.Hurdle) * fund.CarryRate
		}
	}

	s.LPValuation = pv - s.GPCarry
	return s
}
