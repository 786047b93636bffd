package waterfall

import (
	"vc_termsheet/pkg/core/ledger"
)

// CapEntry is one holder in the fully diluted cap table.
type CapEntry struct {
	Party            string  `json:"party"`
	Shares           float64 `json:"shares"`
	Investment       float64 `json:"investment"`
	OwnershipPercent float64 `json:"ownership_percent"`
	PostMoney        float64 `json:"post_money"` // implied by the round price, 0 for founders
}

// CapTable lists founders first, then rounds in issuance order.
type CapTable struct {
	TotalShares float64    `json:"total_shares"`
	Entries     []CapEntry `json:"entries"`
}

// BuildCapTable computes fully diluted ownership over founders and every
// participating round.
func BuildCapTable(rounds []ledger.Round, founderShares float64) CapTable {
	active := ledger.ActiveRounds(rounds)

	total := founderShares
	for _, r := range active {
		total += r.Shares
	}

	pct := func(shares float64) float64 {
		if total <= 0 {
			return 0
		}
		return shares / total * 100
	}

	table := CapTable{TotalShares: total}
	table.Entries = append(table.Entries, CapEntry{
		Party:            ledger.FoundersParty,
		Shares:           founderShares,
		OwnershipPercent: pct(founderShares),
	})
	for _, r := range active {
		own := pct(r.Shares)
		table.Entries = append(table.Entries, CapEntry{
			Party:            r.Name,
			Shares:           r.Shares,
			Investment:       r.Investment,
			OwnershipPercent: own,
			PostMoney:        ImpliedPostMoney(r.Investment, own),
		})
	}
	return table
}

// ImpliedPostMoney = investment / ownership. ownershipPct is in percent.
func ImpliedPostMoney(investment, ownershipPct float64) float64 {
	if ownershipPct > 0 {
		return investment / (ownershipPct / 100)
	}
	return 0
}
