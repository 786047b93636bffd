package valuation

import (
	"fmt"
	"strings"

	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/waterfall"
)

// dilutionThreshold hides dilution terms too small to read.
const dilutionThreshold = 0.001

// FormulaEntry is the option combination that values one round.
type FormulaEntry struct {
	Round           string  `json:"round"`
	Rank            int     `json:"rank"`
	ConversionPoint float64 `json:"conversion_point"`
	Expression      string  `json:"expression"`
}

// Formula writes each round's value as calls on the firm, e.g.
//
//	V - C(20) + 0.3333×C(60) - 0.0833×C(80)
//
// Every later round that converts dilutes the earlier converters, which
// shows up as a short call at the later round's conversion point.
func Formula(rounds []ledger.Round, founderShares float64) []FormulaEntry {
	schedule := waterfall.ConversionSchedule(rounds, founderShares)
	entries := make([]FormulaEntry, 0, len(schedule))

	start := 0.0
	for i, target := range schedule {
		var b strings.Builder
		if start > 0 {
			fmt.Fprintf(&b, "C(%.0f)", start)
		} else {
			b.WriteString("V")
		}
		fmt.Fprintf(&b, " - C(%.0f)", start+target.RedemptionValue)

		total := founderShares
		for j, cp := range schedule {
			prev := total
			total += cp.Shares
			switch {
			case j == i:
				fmt.Fprintf(&b, " + %.4f×C(%.0f)", target.Shares/total, cp.ConversionPoint)
			case j > i:
				if delta := target.Shares/prev - target.Shares/total; delta > dilutionThreshold {
					fmt.Fprintf(&b, " - %.4f×C(%.0f)", delta, cp.ConversionPoint)
				}
			}
		}

		entries = append(entries, FormulaEntry{
			Round:           target.Name,
			Rank:            target.Rank,
			ConversionPoint: target.ConversionPoint,
			Expression:      b.String(),
		})
		start += target.RedemptionValue
	}
	return entries
}
