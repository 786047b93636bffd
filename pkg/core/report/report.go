// Package report renders a scenario's term-sheet analysis as Markdown and
// HTML.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/scenario"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

// Report is every computed view of one scenario.
type Report struct {
	Scenario   scenario.Scenario           `json:"scenario"`
	ExitValue  float64                     `json:"exit_value"`
	CapTable   waterfall.CapTable          `json:"cap_table"`
	Order      []waterfall.OrderEntry      `json:"order"`
	Points     []waterfall.ConversionPoint `json:"points"`
	Payoffs    map[string]waterfall.Payoff `json:"payoffs"`
	Formulas   []valuation.FormulaEntry    `json:"formulas"`
	Valuations []valuation.RoundValuation  `json:"valuations"`
	Breakeven  *valuation.Breakeven        `json:"breakeven,omitempty"`
}

// Build runs the engine over s. The payoff schedule uses the scenario's
// exit valuation, or its current valuation when no exit is set.
func Build(ctx context.Context, s scenario.Scenario, opts valuation.Options) (*Report, error) {
	exit := s.Assumptions.ExitValuation
	if exit <= 0 {
		exit = s.Assumptions.CurrentValuation
	}
	return BuildAt(ctx, s, exit, opts)
}

// BuildAt is Build with the payoff schedule taken at an explicit exit
// value; 0 is a valid exit.
func BuildAt(ctx context.Context, s scenario.Scenario, exit float64, opts valuation.Options) (*Report, error) {
	if exit < 0 {
		return nil, fmt.Errorf("%w: exit value must be non-negative, got %g", ledger.ErrInvalidLedger, exit)
	}
	l := s.Ledger
	s.Assumptions.ExitValuation = exit

	r := &Report{
		Scenario:  s,
		ExitValue: exit,
		CapTable:  waterfall.BuildCapTable(l.Rounds, l.FounderShares),
		Order:     waterfall.ResolveConversionOrder(l.Rounds),
		Points:    waterfall.ConversionSchedule(l.Rounds, l.FounderShares),
		Payoffs:   waterfall.Payoffs(opts.PayoffMode, exit, l.Rounds, l.FounderShares),
		Formulas:  valuation.Formula(l.Rounds, l.FounderShares),
	}

	rows, err := valuation.ValueAll(ctx, l, s.Assumptions, s.Fund, opts)
	if err != nil {
		return nil, fmt.Errorf("value rounds: %w", err)
	}
	r.Valuations = rows

	if _, ok := l.Latest(); ok {
		be, err := valuation.FindBreakevenValuation("", l.Rounds, l.FounderShares, s.Assumptions, s.Fund, opts)
		if err != nil {
			return nil, fmt.Errorf("breakeven: %w", err)
		}
		r.Breakeven = &be
	}
	return r, nil
}

// Markdown renders the report as GitHub-flavoured Markdown.
func (r *Report) Markdown() string {
	var sb strings.Builder

	title := r.Scenario.Name
	if title == "" {
		title = "Scenario"
	}
	sb.WriteString(fmt.Sprintf("# Term Sheet Analysis: %s\n\n", cell(title)))
	if r.Scenario.Description != "" {
		sb.WriteString(r.Scenario.Description + "\n\n")
	}

	// Cap table
	sb.WriteString("## Cap Table\n\n")
	sb.WriteString("| Party | Shares | Investment | Ownership | Implied Post-Money |\n")
	sb.WriteString("|---|---:|---:|---:|---:|\n")
	for _, e := range r.CapTable.Entries {
		post := "-"
		if e.Party != ledger.FoundersParty {
			post = FormatMoney(e.PostMoney)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			cell(e.Party), FormatNumber(e.Shares), FormatMoney(e.Investment), FormatPercent(e.OwnershipPercent), post))
	}

	// Conversion order and points
	sb.WriteString("\n## Conversion Order\n\n")
	if len(r.Points) == 0 {
		sb.WriteString("No participating rounds.\n")
	} else {
		sb.WriteString("| Rank | Round | RVPS | Redemption Value | Ownership on Conversion | Conversion Point |\n")
		sb.WriteString("|---:|---|---:|---:|---:|---:|\n")
		for _, cp := range r.Points {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %s | %s | %s |\n",
				cp.Rank, cell(cp.Name), cp.RVPS, FormatMoney(cp.RedemptionValue), FormatPercent(cp.OwnershipPercent), FormatMoney(cp.ConversionPoint)))
		}
	}

	// Payoffs
	sb.WriteString(fmt.Sprintf("\n## Payoffs at Exit %s\n\n", FormatMoney(r.ExitValue)))
	sb.WriteString("| Party | Preference | Participation | Conversion | Total |\n")
	sb.WriteString("|---|---:|---:|---:|---:|\n")
	for _, party := range r.parties() {
		p := r.Payoffs[party]
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			cell(party), FormatMoney(p.Preference), FormatMoney(p.Participation), FormatMoney(p.Conversion), FormatMoney(p.Total)))
	}

	// Valuation
	if len(r.Valuations) > 0 {
		sb.WriteString("\n## Partial Valuation\n\n")
		sb.WriteString("| Round | Security | Investment | LP Cost | Partial Valuation | GP Valuation | LP Valuation |\n")
		sb.WriteString("|---|---|---:|---:|---:|---:|---:|\n")
		for _, v := range r.Valuations {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
				cell(v.Round), v.Security, FormatMoney(v.Investment), FormatMoney(v.LPCost),
				FormatMoney(v.PartialValuation), FormatMoney(v.GPValuation), FormatMoney(v.LPValuation)))
		}

		sb.WriteString("\n### Option Formulas\n\n")
		for _, f := range r.Formulas {
			sb.WriteString(fmt.Sprintf("- **%s**: `%s`\n", f.Round, f.Expression))
		}
	}

	if r.Breakeven != nil {
		sb.WriteString("\n## Breakeven\n\n")
		sb.WriteString(fmt.Sprintf("%s breaks even for its LPs at a current valuation of **%s** (LP cost %s).\n",
			r.Breakeven.Round, FormatMoney(r.Breakeven.Valuation), FormatMoney(r.Breakeven.Split.LPCost)))
	}

	return sb.String()
}

// HTML renders the Markdown report to an HTML fragment.
func (r *Report) HTML() (string, error) {
	return RenderHTML(r.Markdown())
}

// RenderHTML converts Markdown with GFM tables to HTML.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// parties lists founders first, then rounds in issuance order.
func (r *Report) parties() []string {
	out := []string{ledger.FoundersParty}
	for _, rd := range ledger.ActiveRounds(r.Scenario.Ledger.Rounds) {
		out = append(out, rd.Name)
	}
	return out
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
