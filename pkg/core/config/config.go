// Package config loads the service configuration from a YAML file, with
// .env and environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"vc_termsheet/pkg/core/option"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

const (
	DefaultPath     = "config/termsheet.yaml"
	DefaultAddr     = ":8080"
	DefaultCacheDir = ".cache/termsheet"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Engine EngineConfig `yaml:"engine"`
	Store  StoreConfig  `yaml:"store"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level             string `yaml:"level"`
	Encoding          string `yaml:"encoding"` // json | console
	Development       bool   `yaml:"development"`
	Sampling          bool   `yaml:"sampling"`
	DisableCaller     bool   `yaml:"disable_caller"`
	DisableStacktrace bool   `yaml:"disable_stacktrace"`
}

// EngineConfig holds the numeric choices of a deployment. One CDF per
// deployment keeps conversion points reproducible across runs.
type EngineConfig struct {
	OptionModel         string  `yaml:"option_model"` // re | bs
	CDF                 string  `yaml:"cdf"`          // approx | exact
	REPeriods           int     `yaml:"re_periods"`
	NormalizeRE         bool    `yaml:"normalize_re"`
	SplitMode           string  `yaml:"split_mode"`  // hurdle | flat
	PayoffMode          string  `yaml:"payoff_mode"` // independent | sequential
	BreakevenLow        float64 `yaml:"breakeven_low"`
	BreakevenHigh       float64 `yaml:"breakeven_high"`
	BreakevenIterations int     `yaml:"breakeven_iterations"`
	DiagramPoints       int     `yaml:"diagram_points"`
	DiagramHeadroom     float64 `yaml:"diagram_headroom"`
	Workers             int     `yaml:"workers"`
}

type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	CacheDir    string `yaml:"cache_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: DefaultAddr},
		Log:    LogConfig{Level: "info", Encoding: "json"},
		Engine: EngineConfig{
			OptionModel:         string(option.ModelRandomExpiration),
			CDF:                 string(option.CDFApprox),
			REPeriods:           option.DefaultPeriods,
			SplitMode:           string(valuation.SplitHurdle),
			PayoffMode:          string(waterfall.ModeIndependent),
			BreakevenLow:        valuation.DefaultBreakevenLow,
			BreakevenHigh:       valuation.DefaultBreakevenHigh,
			BreakevenIterations: valuation.DefaultBreakevenIterations,
			DiagramPoints:       waterfall.DefaultDiagramPoints,
			DiagramHeadroom:     waterfall.DefaultDiagramHeadroom,
			Workers:             waterfall.DefaultWorkers,
		},
		Store: StoreConfig{CacheDir: DefaultCacheDir},
	}
}

// Load reads .env (if present), then the YAML file at path, then applies
// environment overrides. An empty path means TERMSHEET_CONFIG or
// DefaultPath; a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("TERMSHEET_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TERMSHEET_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("TERMSHEET_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects unknown engine choices.
func (c Config) Validate() error {
	_, err := c.Engine.Options()
	return err
}

// Options converts the engine section to valuation options.
func (e EngineConfig) Options() (valuation.Options, error) {
	opts := valuation.DefaultOptions()

	switch option.Model(e.OptionModel) {
	case "":
	case option.ModelRandomExpiration, option.ModelBlackScholes:
		opts.Pricer.Model = option.Model(e.OptionModel)
	default:
		return opts, fmt.Errorf("engine: unknown option model %q", e.OptionModel)
	}

	switch option.CDF(e.CDF) {
	case "":
	case option.CDFApprox, option.CDFExact:
		opts.Pricer.CDF = option.CDF(e.CDF)
	default:
		return opts, fmt.Errorf("engine: unknown cdf %q", e.CDF)
	}

	if e.REPeriods > 0 {
		opts.Pricer.Periods = e.REPeriods
	}
	opts.Pricer.NormalizeRE = e.NormalizeRE

	split, err := valuation.ParseSplitMode(e.SplitMode)
	if err != nil {
		return opts, fmt.Errorf("engine: %w", err)
	}
	opts.SplitMode = split

	mode, err := waterfall.ParseMode(e.PayoffMode)
	if err != nil {
		return opts, fmt.Errorf("engine: %w", err)
	}
	opts.PayoffMode = mode

	if e.BreakevenLow != 0 || e.BreakevenHigh != 0 {
		if e.BreakevenLow >= e.BreakevenHigh {
			return opts, fmt.Errorf("engine: breakeven_low %g must be below breakeven_high %g", e.BreakevenLow, e.BreakevenHigh)
		}
		opts.BreakevenLow, opts.BreakevenHigh = e.BreakevenLow, e.BreakevenHigh
	}
	if e.BreakevenIterations > 0 {
		opts.BreakevenIterations = e.BreakevenIterations
	}
	if e.Workers > 0 {
		opts.Workers = e.Workers
	}
	return opts, nil
}

// DiagramOptions converts the engine section to exit-diagram options.
func (e EngineConfig) DiagramOptions() waterfall.DiagramOptions {
	mode, _ := waterfall.ParseMode(e.PayoffMode)
	return waterfall.DiagramOptions{
		Points:   e.DiagramPoints,
		Headroom: e.DiagramHeadroom,
		Workers:  e.Workers,
		Mode:     mode,
	}
}
