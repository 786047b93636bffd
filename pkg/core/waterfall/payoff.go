package waterfall

import (
	"fmt"
	"math"

	"vc_termsheet/pkg/core/ledger"
)

// Payoff is the cash one party receives at a given exit value.
type Payoff struct {
	Preference    float64 `json:"preference"`
	Participation float64 `json:"participation"`
	Conversion    float64 `json:"conversion"`
	Total         float64 `json:"total"`
}

func (p *Payoff) sum() {
	p.Total = p.Preference + p.Participation + p.Conversion
}

// Mode selects the payoff algorithm.
type Mode string

const (
	// ModeIndependent resolves redeem-vs-convert per round against its
	// fully diluted stake (the term-sheet payoff schedule).
	ModeIndependent Mode = "independent"
	// ModeSequential converts every round whose conversion point has been
	// reached and shares the residual among common holders.
	ModeSequential Mode = "sequential"
)

// ParseMode maps a config string to a Mode; empty means independent.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeIndependent:
		return ModeIndependent, nil
	case ModeSequential:
		return ModeSequential, nil
	}
	return ModeIndependent, fmt.Errorf("unknown payoff mode %q", s)
}

// Payoffs dispatches to the payoff algorithm for mode.
func Payoffs(mode Mode, exitValue float64, rounds []ledger.Round, founderShares float64) map[string]Payoff {
	if mode == ModeSequential {
		return ComputeSequentialPayoffs(exitValue, rounds, founderShares)
	}
	return ComputeExitPayoffs(exitValue, rounds, founderShares)
}

// ComputeExitPayoffs splits exitValue between founders and every
// participating round.
//
//  1. Preferences are paid most-recent round first (later money is senior).
//  2. Participating rounds add their fully diluted share of what is left,
//     limited by ParticipationCap × Investment when a cap is set.
//  3. Convertible-only rounds take V × ownership instead of their
//     preference when that is larger, never both.
//  4. Founders receive the residual.
//
// When step 3 hands converting rounds more than the exit can fund, the
// participation amounts and the part of each conversion above the
// preference it replaced are scaled down pro rata, so the totals add up to
// exitValue. Preferences are never reduced and a converting round never
// ends up below the preference it gave up.
func ComputeExitPayoffs(exitValue float64, rounds []ledger.Round, founderShares float64) map[string]Payoff {
	exitValue = math.Max(0, exitValue)
	active := ledger.ActiveRounds(rounds)
	ownership := fullyDiluted(active, founderShares)

	payoffs := make(map[string]Payoff, len(active)+1)
	remaining := exitValue

	// seniority: most recent first
	senior := make([]ledger.Round, len(active))
	for i, r := range active {
		senior[len(active)-1-i] = r
	}

	for _, r := range senior {
		pref := math.Min(r.RedemptionValue(), remaining)
		remaining -= pref
		payoffs[r.Name] = Payoff{Preference: pref}
	}

	for _, r := range senior {
		if !r.Security.Participates() || remaining <= 0 {
			continue
		}
		p := payoffs[r.Name]
		participation := remaining * ownership[r.Name]
		if r.ParticipationCap > 0 {
			ceiling := r.ParticipationCap * r.Investment
			participation = math.Min(participation, math.Max(0, ceiling-p.Preference))
		}
		p.Participation = participation
		payoffs[r.Name] = p
	}

	// forgone holds the preference each converting round gave up
	forgone := make(map[string]float64, len(senior))
	for _, r := range senior {
		if !r.Security.ConvertsOnly() {
			continue
		}
		conversion := exitValue * ownership[r.Name]
		if pref := payoffs[r.Name].Preference; conversion > pref {
			forgone[r.Name] = pref
			payoffs[r.Name] = Payoff{Conversion: conversion}
		}
	}

	investors, variable := 0.0, 0.0
	for _, r := range senior {
		p := payoffs[r.Name]
		investors += p.Preference + p.Participation + p.Conversion
		variable += p.Participation + p.Conversion - forgone[r.Name]
	}

	// Fixed amounts (preferences paid or forgone) never exceed exitValue,
	// so the excess always fits inside the variable pool.
	if excess := investors - exitValue; excess > 0 && variable > 0 {
		scale := math.Max(0, variable-excess) / variable
		investors = 0
		for _, r := range senior {
			p := payoffs[r.Name]
			p.Participation *= scale
			if floor, ok := forgone[r.Name]; ok {
				p.Conversion = floor + (p.Conversion-floor)*scale
			}
			investors += p.Preference + p.Participation + p.Conversion
			payoffs[r.Name] = p
		}
	}

	for name, p := range payoffs {
		p.sum()
		payoffs[name] = p
	}

	founders := Payoff{Conversion: math.Max(0, exitValue-investors)}
	founders.sum()
	payoffs[ledger.FoundersParty] = founders

	return payoffs
}

// ComputeSequentialPayoffs uses the conversion points: every round whose
// conversion point is at or below exitValue converts, the others redeem
// starting from the last round in conversion order, and whatever is left is
// shared pro rata among founders and the converted rounds.
func ComputeSequentialPayoffs(exitValue float64, rounds []ledger.Round, founderShares float64) map[string]Payoff {
	exitValue = math.Max(0, exitValue)
	schedule := ConversionSchedule(rounds, founderShares)

	payoffs := make(map[string]Payoff, len(schedule)+1)
	converted := make([]ConversionPoint, 0, len(schedule))
	remaining := exitValue

	for i := len(schedule) - 1; i >= 0; i-- {
		cp := schedule[i]
		if exitValue >= cp.ConversionPoint {
			converted = append(converted, cp)
			continue
		}
		payout := math.Min(cp.RedemptionValue, remaining)
		remaining = math.Max(0, remaining-payout)
		payoffs[cp.Name] = Payoff{Preference: payout}
	}

	commonShares := founderShares
	for _, cp := range converted {
		commonShares += cp.Shares
	}

	founders := Payoff{}
	switch {
	case remaining <= 0:
	case commonShares > 0:
		founders.Conversion = founderShares / commonShares * remaining
	default:
		founders.Conversion = remaining
	}
	payoffs[ledger.FoundersParty] = founders

	for _, cp := range converted {
		p := Payoff{}
		if remaining > 0 && commonShares > 0 {
			p.Conversion = cp.Shares / commonShares * remaining
		}
		payoffs[cp.Name] = p
	}

	for name, p := range payoffs {
		p.sum()
		payoffs[name] = p
	}
	return payoffs
}

// SumTotals adds up every party's total.
func SumTotals(payoffs map[string]Payoff) float64 {
	total := 0.0
	for _, p := range payoffs {
		total += p.Total
	}
	return total
}

func fullyDiluted(active []ledger.Round, founderShares float64) map[string]float64 {
	total := founderShares
	for _, r := range active {
		total += r.Shares
	}
	out := make(map[string]float64, len(active))
	for _, r := range active {
		if total > 0 {
			out[r.Name] = r.Shares / total
		}
	}
	return out
}
