// Command termsheet runs the term-sheet engine over a scenario file from
// the command line.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vc_termsheet/pkg/core/config"
	"vc_termsheet/pkg/core/logging"
	"vc_termsheet/pkg/core/scenario"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

var flags struct {
	config   string
	scenario string
	json     bool
	verbose  bool
}

var Cmd = &cobra.Command{
	Use:           "termsheet",
	Short:         "Venture term-sheet payoff and valuation engine",
	Long:          "Compute conversion order, exit payoffs, option-based partial valuations and LP breakeven for a venture cap table.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := Cmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "engine config (default $TERMSHEET_CONFIG or "+config.DefaultPath+")")
	pf.StringVarP(&flags.scenario, "scenario", "s", "", "scenario file (.yaml, .json, .hjson); built-in example when empty")
	pf.BoolVar(&flags.json, "json", false, "print JSON instead of tables")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging to stderr")

	Cmd.AddCommand(orderCmd, pointsCmd, payoffCmd, diagramCmd, valueCmd, breakevenCmd, reportCmd, initCmd)
}

func main() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: the scenario, the engine settings
// and a logger.
type env struct {
	scenario scenario.Scenario
	engine   config.EngineConfig
	opts     valuation.Options
	diagram  waterfall.DiagramOptions
	logger   *zap.Logger
}

func setup() (*env, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}
	cfg.Log.Encoding = "console"
	if flags.verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	opts, err := cfg.Engine.Options()
	if err != nil {
		return nil, err
	}

	s := scenario.Default()
	if flags.scenario != "" {
		if s, err = scenario.Load(flags.scenario); err != nil {
			return nil, err
		}
	}
	logger.Debug("scenario loaded",
		zap.String("name", s.Name),
		zap.Int("rounds", len(s.Ledger.Rounds)),
		zap.String("option_model", cfg.Engine.OptionModel),
		zap.String("payoff_mode", cfg.Engine.PayoffMode),
	)

	return &env{
		scenario: s,
		engine:   cfg.Engine,
		opts:     opts,
		diagram:  cfg.Engine.DiagramOptions(),
		logger:   logger,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
