package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vc_termsheet/pkg/core/report"
	"vc_termsheet/pkg/core/scenario"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "List participating rounds in conversion order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		order := waterfall.ResolveConversionOrder(e.scenario.Ledger.Rounds)
		if flags.json {
			return printJSON(cmd.OutOrStdout(), order)
		}
		tw := table(cmd.OutOrStdout(), "#", "ROUND", "RVPS")
		for i, o := range order {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, o.Name, report.FormatNumber(o.RVPS))
		}
		return tw.Flush()
	},
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Show each round's conversion point",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		l := e.scenario.Ledger
		schedule := waterfall.ConversionSchedule(l.Rounds, l.FounderShares)
		if flags.json {
			return printJSON(cmd.OutOrStdout(), schedule)
		}
		tw := table(cmd.OutOrStdout(), "RANK", "ROUND", "RV", "OWNERSHIP", "PRIOR RV", "CONVERSION POINT")
		for _, p := range schedule {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.Rank, p.Name,
				report.FormatMoney(p.RedemptionValue), report.FormatPercent(p.OwnershipPercent),
				report.FormatMoney(p.PriorRV), report.FormatMoney(p.ConversionPoint))
		}
		return tw.Flush()
	},
}

var payoffExit float64

var payoffCmd = &cobra.Command{
	Use:   "payoff",
	Short: "Split an exit value between founders and rounds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		exit := payoffExit
		if !cmd.Flags().Changed("exit") {
			exit = e.scenario.Assumptions.ExitValuation
		}
		if exit < 0 {
			return fmt.Errorf("exit value must be non-negative, got %g", exit)
		}

		l := e.scenario.Ledger
		payoffs := waterfall.Payoffs(e.opts.PayoffMode, exit, l.Rounds, l.FounderShares)
		if flags.json {
			return printJSON(cmd.OutOrStdout(), payoffs)
		}

		tw := table(cmd.OutOrStdout(), "PARTY", "PREFERENCE", "PARTICIPATION", "CONVERSION", "TOTAL")
		for _, c := range waterfall.BuildCapTable(l.Rounds, l.FounderShares).Entries {
			p := payoffs[c.Party]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Party,
				report.FormatMoney(p.Preference), report.FormatMoney(p.Participation),
				report.FormatMoney(p.Conversion), report.FormatMoney(p.Total))
		}
		fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\n", report.FormatMoney(waterfall.SumTotals(payoffs)))
		return tw.Flush()
	},
}

var diagramCmd = &cobra.Command{
	Use:   "diagram",
	Short: "Print payoffs across exit values as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		l := e.scenario.Ledger
		d, err := waterfall.ExitDiagram(cmd.Context(), l.Rounds, l.FounderShares, e.diagram)
		if err != nil {
			return err
		}
		if flags.json {
			return printJSON(cmd.OutOrStdout(), d)
		}

		w := csv.NewWriter(cmd.OutOrStdout())
		if err := w.Write(append([]string{"exit_value"}, d.Parties...)); err != nil {
			return err
		}
		for i, v := range d.ExitValues {
			row := []string{strconv.FormatFloat(v, 'f', 4, 64)}
			for _, p := range d.Parties {
				row = append(row, strconv.FormatFloat(d.Series[p][i], 'f', 4, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	},
}

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Value every participating round and split GP/LP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		s := e.scenario
		rows, err := valuation.ValueAll(cmd.Context(), s.Ledger, s.Assumptions, s.Fund, e.opts)
		if err != nil {
			return err
		}
		formulas := valuation.Formula(s.Ledger.Rounds, s.Ledger.FounderShares)
		e.logger.Debug("valued rounds", zap.Int("rounds", len(rows)), zap.String("split_mode", string(e.opts.SplitMode)))

		if flags.json {
			return printJSON(cmd.OutOrStdout(), struct {
				Rows     []valuation.RoundValuation `json:"rows"`
				Formulas []valuation.FormulaEntry   `json:"formulas"`
			}{rows, formulas})
		}

		tw := table(cmd.OutOrStdout(), "ROUND", "SECURITY", "INVESTMENT", "POST-MONEY", "LP COST", "PARTIAL", "GP", "LP")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Round, r.Security,
				report.FormatMoney(r.Investment), report.FormatMoney(r.ImpliedPostMoney),
				report.FormatMoney(r.LPCost), report.FormatMoney(r.PartialValuation),
				report.FormatMoney(r.GPValuation), report.FormatMoney(r.LPValuation))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range formulas {
			fmt.Fprintf(out, "\n%s = %s", f.Round, f.Expression)
		}
		if len(formulas) > 0 {
			fmt.Fprintln(out)
		}
		return nil
	},
}

var breakevenRound string

var breakevenCmd = &cobra.Command{
	Use:   "breakeven",
	Short: "Find the current valuation at which a round's LPs break even",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		s := e.scenario
		be, err := valuation.FindBreakevenValuation(breakevenRound, s.Ledger.Rounds, s.Ledger.FounderShares, s.Assumptions, s.Fund, e.opts)
		if err != nil {
			return err
		}
		if flags.json {
			return printJSON(cmd.OutOrStdout(), be)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s breaks even at a current valuation of %s (LP value %s vs LP cost %s)\n",
			be.Round, report.FormatMoney(be.Valuation),
			report.FormatMoney(be.Split.LPValuation), report.FormatMoney(be.Split.LPCost))
		return nil
	},
}

var (
	reportHTML bool
	reportExit float64
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the full analysis as Markdown or HTML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		var rep *report.Report
		if cmd.Flags().Changed("exit") {
			rep, err = report.BuildAt(cmd.Context(), e.scenario, reportExit, e.opts)
		} else {
			rep, err = report.Build(cmd.Context(), e.scenario, e.opts)
		}
		if err != nil {
			return err
		}
		switch {
		case flags.json:
			return printJSON(cmd.OutOrStdout(), rep)
		case reportHTML:
			html, err := rep.HTML()
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), html)
			return err
		default:
			_, err = io.WriteString(cmd.OutOrStdout(), rep.Markdown())
			return err
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the example scenario to path (stdout when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, argv []string) error {
		s := scenario.Default()
		if len(argv) == 0 {
			data, err := s.Encode(scenario.FormatYAML)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		data, err := s.Encode(scenario.FormatFromPath(argv[0]))
		if err != nil {
			return err
		}
		return os.WriteFile(argv[0], data, 0o644)
	},
}

func init() {
	payoffCmd.Flags().Float64VarP(&payoffExit, "exit", "e", 0, "exit value (default: scenario exit valuation)")
	breakevenCmd.Flags().StringVarP(&breakevenRound, "round", "r", "", "round to solve for (default: latest participating round)")
	reportCmd.Flags().BoolVar(&reportHTML, "html", false, "render HTML instead of Markdown")
	reportCmd.Flags().Float64VarP(&reportExit, "exit", "e", 0, "exit value for the payoff table (default: scenario exit valuation)")
}

func table(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	return tw
}
