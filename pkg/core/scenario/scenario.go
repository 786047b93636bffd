// Package scenario bundles a ledger snapshot with its market assumptions and
// fund terms, and reads it from YAML, JSON or Hjson documents.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/utils"
)

// Scenario is the explicit input of every computation.
type Scenario struct {
	Name        string                   `json:"name" yaml:"name"`
	Description string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Ledger      ledger.Ledger            `json:"ledger" yaml:"ledger"`
	Assumptions ledger.GlobalAssumptions `json:"assumptions" yaml:"assumptions"`
	Fund        ledger.FundTerms         `json:"fund" yaml:"fund"`
}

// Format is a document encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatHJSON Format = "hjson"
)

// FormatFromPath picks the format from a file extension; unknown
// extensions are read as YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".hjson":
		return FormatHJSON
	default:
		return FormatYAML
	}
}

// Decode parses and validates a scenario document. JSON input is accepted
// even when hand-edited (comments, trailing commas, single quotes).
func Decode(data []byte, format Format) (Scenario, error) {
	var s Scenario

	switch format {
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Scenario{}, fmt.Errorf("decode yaml scenario: %w", err)
		}
	case FormatHJSON:
		converted, err := utils.ParseHJSON(data)
		if err != nil {
			return Scenario{}, fmt.Errorf("decode hjson scenario: %w", err)
		}
		if s, _, err = utils.SmartParse[Scenario](converted); err != nil {
			return Scenario{}, fmt.Errorf("decode hjson scenario: %w", err)
		}
	case FormatJSON:
		var err error
		if s, _, err = utils.SmartParse[Scenario](data); err != nil {
			return Scenario{}, fmt.Errorf("decode json scenario: %w", err)
		}
	default:
		return Scenario{}, fmt.Errorf("unknown scenario format %q", format)
	}

	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Validate checks the ledger and rejects negative market inputs.
func (s Scenario) Validate() error {
	if err := s.Ledger.Validate(); err != nil {
		return err
	}
	a := s.Assumptions
	if a.CurrentValuation < 0 || a.ExitValuation < 0 || a.Volatility < 0 || a.HoldingPeriod < 0 {
		return fmt.Errorf("%w: negative market assumption", ledger.ErrInvalidLedger)
	}
	f := s.Fund
	if f.CommittedCapital < 0 || f.FeeRate < 0 || f.LifetimeFees < 0 || f.CarryRate < 0 || f.HurdleRate < 0 {
		return fmt.Errorf("%w: negative fund term", ledger.ErrInvalidLedger)
	}
	return nil
}

// Encode writes the scenario in the given format. Hjson output is plain
// JSON, which every Hjson reader accepts.
func (s Scenario) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		return yaml.Marshal(s)
	case FormatJSON, FormatHJSON:
		return jsonIndent(s)
	}
	return nil, fmt.Errorf("unknown scenario format %q", format)
}

func jsonIndent(s Scenario) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Default is the reference case: 10 founder shares, a 1x convertible
// Series A of 20 for 5 shares and an inactive Series B, valued at 100 with
// 90% volatility over a 5 year holding period.
func Default() Scenario {
	return Scenario{
		Name: "default",
		Ledger: ledger.Ledger{
			FounderShares: 10,
			Rounds: []ledger.Round{
				{Name: "Series A", Active: true, Security: ledger.ConvertiblePreferred, Investment: 20, Shares: 5, LiquidationPref: 1, AntiDilution: ledger.AntiDilutionNone},
				{Name: "Series B", Active: false, Security: ledger.ConvertiblePreferred, Investment: 40, Shares: 5, LiquidationPref: 1, AntiDilution: ledger.AntiDilutionNone},
			},
		},
		Assumptions: ledger.GlobalAssumptions{
			CurrentValuation: 100,
			ExitValuation:    100,
			Volatility:       0.9,
			RiskFreeRate:     0.05,
			HoldingPeriod:    5,
		},
		Fund: ledger.FundTerms{
			CommittedCapital: 100,
			LifetimeFees:     20,
			CarryRate:        0.2,
			HurdleRate:       0.08,
		},
	}
}
