package valuation

import (
	"math"

	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/waterfall"
)

// ComputePartialValuation prices one round as
//
//	PV = C(start) − C(start + RV) + o × C(CP)
//
// where start is the redemption value of the rounds ahead of it in
// conversion order, o its ownership on conversion and CP its conversion
// point. C(0) is the spot value itself. The result is floored at 0.
//
// An unknown round is an error; an inactive or share-less round is worth 0.
func ComputePartialValuation(roundName string, rounds []ledger.Round, founderShares float64, g ledger.GlobalAssumptions, opts Options) (float64, error) {
	if _, err := ledger.FindRound(rounds, roundName); err != nil {
		return 0, err
	}
	opts = opts.withDefaults()

	target, start, ok := locate(roundName, waterfall.ConversionSchedule(rounds, founderShares))
	if !ok {
		return 0, nil
	}

	call := func(strike float64) float64 {
		return opts.Pricer.Call(g.CurrentValuation, strike, g.HoldingPeriod, g.RiskFreeRate, g.Volatility)
	}

	// 1. Claim from where this round's seniority begins
	seniority := g.CurrentValuation
	if start > 0 {
		seniority = call(start)
	}

	// 2. Less the value above its redemption claim
	covered := call(start + target.RedemptionValue)

	// 3. Plus its pro-rata upside once converted
	upside := target.Ownership() * call(target.ConversionPoint)

	return math.Max(0, seniority-covered+upside), nil
}

// locate finds roundName in the schedule and the cumulative redemption
// value of the rounds ranked before it.
func locate(roundName string, schedule []waterfall.ConversionPoint) (waterfall.ConversionPoint, float64, bool) {
	start := 0.0
	for _, cp := range schedule {
		if cp.Name == roundName {
			return cp, start, true
		}
		start += cp.RedemptionValue
	}
	return waterfall.ConversionPoint{}, 0, false
}
