package ledger

import (
	"errors"
	"fmt"
)

// Ledger is one snapshot of the cap table: founder common plus the
// preferred rounds in issuance order (earliest first).
type Ledger struct {
	FounderShares float64 `json:"founder_shares" yaml:"founder_shares"`
	Rounds        []Round `json:"rounds" yaml:"rounds"`
}

// Find returns the round with the given name.
func (l Ledger) Find(name string) (Round, error) {
	return FindRound(l.Rounds, name)
}

// FindRound looks a round up by name.
func FindRound(rounds []Round, name string) (Round, error) {
	for _, r := range rounds {
		if r.Name == name {
			return r, nil
		}
	}
	return Round{}, fmt.Errorf("%w: %s", ErrRoundNotFound, name)
}

// ActiveRounds returns the participating rounds (active, with shares) in
// issuance order.
func ActiveRounds(rounds []Round) []Round {
	out := make([]Round, 0, len(rounds))
	for _, r := range rounds {
		if r.Participating() {
			out = append(out, r)
		}
	}
	return out
}

// TotalRedemptionValue sums RV over active rounds. Rounds without shares
// still count here: their preference is a claim even if they never convert.
func TotalRedemptionValue(rounds []Round) float64 {
	total := 0.0
	for _, r := range rounds {
		if r.Active {
			total += r.RedemptionValue()
		}
	}
	return total
}

// Latest returns the most recently issued participating round.
func (l Ledger) Latest() (Round, bool) {
	active := ActiveRounds(l.Rounds)
	if len(active) == 0 {
		return Round{}, false
	}
	return active[len(active)-1], true
}

// Validate checks the invariants the engine relies on.
func (l Ledger) Validate() error {
	var errs []error
	if l.FounderShares < 0 {
		errs = append(errs, fmt.Errorf("founder shares must be non-negative, got %g", l.FounderShares))
	}
	seen := make(map[string]bool, len(l.Rounds))
	for i, r := range l.Rounds {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("round %d has no name", i))
		} else if r.Name == FoundersParty {
			errs = append(errs, fmt.Errorf("round name %q is reserved", r.Name))
		} else if seen[r.Name] {
			errs = append(errs, fmt.Errorf("duplicate round name %q", r.Name))
		}
		seen[r.Name] = true

		if r.Investment < 0 {
			errs = append(errs, fmt.Errorf("%s: investment must be non-negative", r.Name))
		}
		if r.Shares < 0 {
			errs = append(errs, fmt.Errorf("%s: shares must be non-negative", r.Name))
		}
		if r.LiquidationPref < 0 {
			errs = append(errs, fmt.Errorf("%s: liquidation preference must be non-negative", r.Name))
		}
		if r.ParticipationCap < 0 {
			errs = append(errs, fmt.Errorf("%s: participation cap must be non-negative", r.Name))
		}
		if _, ok := securityCodes[r.Security]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown security %d", r.Name, int(r.Security)))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidLedger, errors.Join(errs...))
	}
	return nil
}
