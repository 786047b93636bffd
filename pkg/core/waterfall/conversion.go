// Package waterfall decides, for a given exit value, how proceeds flow to
// founders and preferred rounds: which rounds convert, where each round's
// conversion point sits, and what every party is paid.
package waterfall

import (
	"sort"

	"vc_termsheet/pkg/core/ledger"
)

// OrderEntry is one row of the conversion order.
type OrderEntry struct {
	Name string  `json:"name"`
	RVPS float64 `json:"rvps"`
}

// ResolveConversionOrder ranks participating rounds by redemption value per
// share, lowest first. A low-RVPS round gives up the least preference per
// share it receives, so it converts earliest. Ties keep input order.
func ResolveConversionOrder(rounds []ledger.Round) []OrderEntry {
	active := ledger.ActiveRounds(rounds)
	order := make([]OrderEntry, len(active))
	for i, r := range active {
		order[i] = OrderEntry{Name: r.Name, RVPS: r.RVPS()}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].RVPS < order[j].RVPS
	})
	return order
}

// ConversionPoint describes where a round switches from redeeming to
// converting.
type ConversionPoint struct {
	Name             string  `json:"name"`
	RVPS             float64 `json:"rvps"`
	RedemptionValue  float64 `json:"redemption_value"`
	Shares           float64 `json:"shares"`
	ConversionPoint  float64 `json:"conversion_point"`
	OwnershipPercent float64 `json:"ownership_percent"`
	Rank             int     `json:"rank"`
	// PriorRV is the redemption value still outstanding from the other
	// unconverted rounds when this round converts.
	PriorRV float64 `json:"prior_rv"`
}

// Ownership returns the fraction (not percent) held on conversion.
func (c ConversionPoint) Ownership() float64 {
	return c.OwnershipPercent / 100
}

// ConversionSchedule walks the conversion order and derives each round's
// conversion point.
//
// A round prefers conversion exactly when
//
//	ownership × (W − priorRV) > RV
//
// so its conversion point is W = RV / ownership + priorRV, where ownership
// counts founders plus every round ranked before it as already converted.
func ConversionSchedule(rounds []ledger.Round, founderShares float64) []ConversionPoint {
	order := ResolveConversionOrder(rounds)
	byName := make(map[string]ledger.Round, len(rounds))
	for _, r := range rounds {
		byName[r.Name] = r
	}

	convertedShares := founderShares
	remainingRV := ledger.TotalRedemptionValue(rounds)

	schedule := make([]ConversionPoint, 0, len(order))
	for i, entry := range order {
		r := byName[entry.Name]
		rv := r.RedemptionValue()

		ownership := r.Shares / (convertedShares + r.Shares)
		priorRV := remainingRV - rv

		schedule = append(schedule, ConversionPoint{
			Name:             r.Name,
			RVPS:             entry.RVPS,
			RedemptionValue:  rv,
			Shares:           r.Shares,
			ConversionPoint:  rv/ownership + priorRV,
			OwnershipPercent: ownership * 100,
			Rank:             i + 1,
			PriorRV:          priorRV,
		})

		convertedShares += r.Shares
		remainingRV -= rv
	}
	return schedule
}

// ComputeConversionPoints is ConversionSchedule keyed by round name.
func ComputeConversionPoints(rounds []ledger.Round, founderShares float64) map[string]ConversionPoint {
	schedule := ConversionSchedule(rounds, founderShares)
	points := make(map[string]ConversionPoint, len(schedule))
	for _, cp := range schedule {
		points[cp.Name] = cp
	}
	return points
}

// MaxConversionPoint returns the highest conversion point, or false when no
// round participates.
func MaxConversionPoint(schedule []ConversionPoint) (float64, bool) {
	if len(schedule) == 0 {
		return 0, false
	}
	highest := schedule[0].ConversionPoint
	for _, cp := range schedule[1:] {
		if cp.ConversionPoint > highest {
			highest = cp.ConversionPoint
		}
	}
	return highest, true
}
