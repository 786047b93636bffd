package valuation

import (
	"fmt"

	"vc_termsheet/pkg/core/ledger"
)

// Breakeven is the result of a breakeven search.
type Breakeven struct {
	Round     string    `json:"round"`
	Valuation float64   `json:"valuation"`
	Split     GPLPSplit `json:"split"`
}

// FindBreakevenValuation bisects the current valuation over
// [BreakevenLow, BreakevenHigh] for the value at which the round's LP
// valuation equals its LP cost. An empty targetRound means the latest
// participating round.
//
// LP valuation must be non-decreasing in the current valuation and cross
// LP cost inside the bounds; otherwise the result sits at a bound.
func FindBreakevenValuation(targetRound string, rounds []ledger.Round, founderShares float64, g ledger.GlobalAssumptions, fund ledger.FundTerms, opts Options) (Breakeven, error) {
	opts = opts.withDefaults()

	if targetRound == "" {
		latest, ok := ledger.Ledger{Rounds: rounds}.Latest()
		if !ok {
			return Breakeven{}, fmt.Errorf("breakeven: %w: no participating round", ledger.ErrRoundNotFound)
		}
		targetRound = latest.Name
	}
	target, err := ledger.FindRound(rounds, targetRound)
	if err != nil {
		return Breakeven{}, err
	}
	if opts.BreakevenLow >= opts.BreakevenHigh {
		return Breakeven{}, fmt.Errorf("breakeven: invalid bounds [%g, %g]", opts.BreakevenLow, opts.BreakevenHigh)
	}

	evaluate := func(v float64) (GPLPSplit, error) {
		pv, err := ComputePartialValuation(target.Name, rounds, founderShares, g.WithCurrentValuation(v), opts)
		if err != nil {
			return GPLPSplit{}, err
		}
		return SplitGPLP(pv, fund, target.Investment, opts.SplitMode), nil
	}

	low, high := opts.BreakevenLow, opts.BreakevenHigh
	var mid float64
	var split GPLPSplit
	for i := 0; i < opts.BreakevenIterations; i++ {
		mid = (low + high) / 2
		split, err = evaluate(mid)
		if err != nil {
			return Breakeven{}, err
		}
		if split.LPValuation < split.LPCost {
			low = mid
		} else {
			high = mid
		}
	}

	return Breakeven{Round: target.Name, Valuation: mid, Split: split}, nil
}
