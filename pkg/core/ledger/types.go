// Package ledger holds the input data model for the term-sheet engine:
// founder equity, preferred rounds, fund terms and market assumptions.
// Values are immutable snapshots; the engine never mutates them.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrRoundNotFound is returned when a computation references a round
	// that is not part of the ledger.
	ErrRoundNotFound = errors.New("round not found")
	// ErrInvalidLedger wraps every input validation failure.
	ErrInvalidLedger = errors.New("invalid ledger")
)

// FoundersParty is the payoff key used for founder common stock.
const FoundersParty = "founders"

// =============================================================================
// SECURITY TYPE
// =============================================================================

// Security is the closed set of preferred-stock variants.
type Security int

const (
	ConvertiblePreferred Security = iota
	RedeemablePreferred
	ParticipatingConvertible
	ParticipatingConvertibleCapped
)

var securityCodes = map[Security]string{
	ConvertiblePreferred:           "CP",
	RedeemablePreferred:            "RP",
	ParticipatingConvertible:       "PCP",
	ParticipatingConvertibleCapped: "PCPC",
}

// ParseSecurity maps the term-sheet shorthand (CP, RP, PCP, PCPC and the
// Korean-market aliases CPS, RCPS) to a Security. Empty input means CP.
func ParseSecurity(code string) (Security, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "CP", "CPS":
		return ConvertiblePreferred, nil
	case "RP", "RCPS":
		return RedeemablePreferred, nil
	case "PCP":
		return ParticipatingConvertible, nil
	case "PCPC":
		return ParticipatingConvertibleCapped, nil
	}
	return ConvertiblePreferred, fmt.Errorf("%w: unknown security type %q", ErrInvalidLedger, code)
}

func (s Security) String() string {
	if c, ok := securityCodes[s]; ok {
		return c
	}
	return fmt.Sprintf("Security(%d)", int(s))
}

// Participates reports whether holders share residual proceeds on top of
// their liquidation preference.
func (s Security) Participates() bool {
	switch s {
	case ParticipatingConvertible, ParticipatingConvertibleCapped:
		return true
	case ConvertiblePreferred, RedeemablePreferred:
		return false
	}
	return false
}

// ConvertsOnly reports whether holders choose between preference and
// conversion (never both).
func (s Security) ConvertsOnly() bool {
	switch s {
	case ConvertiblePreferred:
		return true
	case RedeemablePreferred, ParticipatingConvertible, ParticipatingConvertibleCapped:
		return false
	}
	return false
}

func (s Security) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Security) UnmarshalText(b []byte) error {
	v, err := ParseSecurity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalYAML lets yaml.v2 scenario files use the shorthand codes.
func (s *Security) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(raw))
}

// =============================================================================
// ANTI-DILUTION (metadata only)
// =============================================================================

type AntiDilution string

const (
	AntiDilutionNone            AntiDilution = "None"
	AntiDilutionFullRatchet     AntiDilution = "Full Ratchet"
	AntiDilutionWeightedAverage AntiDilution = "Weighted Average"
)

// =============================================================================
// ROUND
// =============================================================================

// Round is one preferred-equity investment round. Amounts are in the
// ledger's currency unit (e.g. millions), shares in the ledger's share unit.
type Round struct {
	Name             string       `json:"name" yaml:"name"`
	Active           bool         `json:"active" yaml:"active"`
	Security         Security     `json:"security" yaml:"security"`
	Investment       float64      `json:"investment" yaml:"investment"`
	Shares           float64      `json:"shares" yaml:"shares"`
	LiquidationPref  float64      `json:"liquidation_pref" yaml:"liquidation_pref"`
	ParticipationCap float64      `json:"participation_cap" yaml:"participation_cap"` // 0 = uncapped
	AntiDilution     AntiDilution `json:"anti_dilution,omitempty" yaml:"anti_dilution,omitempty"`
}

// RedemptionValue = Investment × LiquidationPref
func (r Round) RedemptionValue() float64 {
	return r.Investment * r.LiquidationPref
}

// RVPS is the redemption value per share. Rounds without shares report
// +Inf so they never rank ahead of a real round.
func (r Round) RVPS() float64 {
	if r.Shares > 0 {
		return r.RedemptionValue() / r.Shares
	}
	return math.Inf(1)
}

// Participating reports whether the round takes part in ordering,
// conversion-point and payoff computations.
func (r Round) Participating() bool {
	return r.Active && r.Shares > 0
}

// =============================================================================
// FUND TERMS & GLOBAL ASSUMPTIONS
// =============================================================================

const (
	DefaultFundLifeYears    = 10.0
	DefaultCarryPeriodYears = 5.0
)

// FundTerms describes the investing VC fund. Rates are fractions.
type FundTerms struct {
	CommittedCapital float64 `json:"committed_capital" yaml:"committed_capital"`
	FeeRate          float64 `json:"fee_rate" yaml:"fee_rate"`           // annual management fee
	LifetimeFees     float64 `json:"lifetime_fees" yaml:"lifetime_fees"` // wins over FeeRate when > 0
	CarryRate        float64 `json:"carry_rate" yaml:"carry_rate"`
	HurdleRate       float64 `json:"hurdle_rate" yaml:"hurdle_rate"`
	FundLifeYears    float64 `json:"fund_life_years" yaml:"fund_life_years"`
	CarryPeriodYears float64 `json:"carry_period_years" yaml:"carry_period_years"`
}

// TotalFees returns lifetime management fees, either as given or derived
// from the annual fee rate over the fund life.
func (f FundTerms) TotalFees() float64 {
	if f.LifetimeFees > 0 {
		return f.LifetimeFees
	}
	return f.CommittedCapital * f.FeeRate * f.fundLife()
}

// InvestableCapital = committed capital − lifetime fees
func (f FundTerms) InvestableCapital() float64 {
	return f.CommittedCapital - f.TotalFees()
}

func (f FundTerms) fundLife() float64 {
	if f.FundLifeYears > 0 {
		return f.FundLifeYears
	}
	return DefaultFundLifeYears
}

// CarryPeriod is the number of years the hurdle compounds over (simple).
func (f FundTerms) CarryPeriod() float64 {
	if f.CarryPeriodYears > 0 {
		return f.CarryPeriodYears
	}
	return DefaultCarryPeriodYears
}

// GlobalAssumptions are the market inputs. Volatility and RiskFreeRate are
// fractions, HoldingPeriod is in years.
type GlobalAssumptions struct {
	CurrentValuation float64 `json:"current_valuation" yaml:"current_valuation"`
	ExitValuation    float64 `json:"exit_valuation" yaml:"exit_valuation"`
	Volatility       float64 `json:"volatility" yaml:"volatility"`
	RiskFreeRate     float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	HoldingPeriod    float64 `json:"holding_period" yaml:"holding_period"`
}

// WithCurrentValuation returns a copy with a different current valuation.
func (g GlobalAssumptions) WithCurrentValuation(v float64) GlobalAssumptions {
	g.CurrentValuation = v
	return g
}
