package valuation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/waterfall"
)

// RoundValuation represents one row in the valuation table.
type RoundValuation struct {
	Round            string  `json:"round"`
	Security         string  `json:"security"`
	Investment       float64 `json:"investment"`
	ImpliedPostMoney float64 `json:"implied_post_money"`
	LPCost           float64 `json:"lp_cost"`
	PartialValuation float64 `json:"partial_valuation"`
	GPValuation      float64 `json:"gp_valuation"`
	LPValuation      float64 `json:"lp_valuation"`
}

// ValueAll computes partial valuation and GP/LP split for every
// participating round, in issuance order. Rounds are independent and are
// valued concurrently.
func ValueAll(ctx context.Context, l ledger.Ledger, assumptions ledger.GlobalAssumptions, fund ledger.FundTerms, opts Options) ([]RoundValuation, error) {
	opts = opts.withDefaults()
	active := ledger.ActiveRounds(l.Rounds)

	postMoney := make(map[string]float64, len(active))
	for _, e := range waterfall.BuildCapTable(l.Rounds, l.FounderShares).Entries {
		postMoney[e.Party] = e.PostMoney
	}

	rows := make([]RoundValuation, len(active))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, r := range active {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pv, err := ComputePartialValuation(r.Name, l.Rounds, l.FounderShares, assumptions, opts)
			if err != nil {
				return err
			}
			split := SplitGPLP(pv, fund, r.Investment, opts.SplitMode)
			rows[i] = RoundValuation{
				Round:            r.Name,
				Security:         r.Security.String(),
				Investment:       r.Investment,
				ImpliedPostMoney: postMoney[r.Name],
				LPCost:           split.LPCost,
				PartialValuation: pv,
				GPValuation:      split.GPCarry,
				LPValuation:      split.LPValuation,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
