package config

import (
	"os"
	"path/filepath"
	"testing"

	"vc_termsheet/pkg/core/option"
	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TERMSHEET_ADDR", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != DefaultAddr || cfg.Store.CacheDir != DefaultCacheDir {
		t.Errorf("Unexpected defaults %+v", cfg)
	}

	opts, err := cfg.Engine.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Pricer.Model != option.ModelRandomExpiration || opts.Pricer.CDF != option.CDFApprox || opts.SplitMode != valuation.SplitHurdle {
		t.Errorf("Unexpected default options %+v", opts)
	}
	if opts.BreakevenLow != 10 || opts.BreakevenHigh != 10000 || opts.BreakevenIterations != 50 {
		t.Errorf("Unexpected breakeven bounds %+v", opts)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "termsheet.yaml")
	doc := `
server:
  addr: ":9000"
log:
  level: debug
  encoding: console
engine:
  option_model: bs
  cdf: exact
  split_mode: flat
  breakeven_high: 500
store:
  cache_dir: /tmp/ts
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("TERMSHEET_ADDR", ":9100")
	t.Setenv("DATABASE_URL", "postgres://localhost/termsheet")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("Expected env to override addr, got %s", cfg.Server.Addr)
	}
	if cfg.Store.DatabaseURL != "postgres://localhost/termsheet" || cfg.Store.CacheDir != "/tmp/ts" {
		t.Errorf("Unexpected store config %+v", cfg.Store)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Encoding != "console" {
		t.Errorf("Unexpected log config %+v", cfg.Log)
	}

	opts, err := cfg.Engine.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Pricer.Model != option.ModelBlackScholes || opts.Pricer.CDF != option.CDFExact || opts.SplitMode != valuation.SplitFlat {
		t.Errorf("Unexpected options %+v", opts)
	}
	// low keeps its default
	if opts.BreakevenLow != 10 || opts.BreakevenHigh != 500 {
		t.Errorf("Expected bounds [10, 500], got [%f, %f]", opts.BreakevenLow, opts.BreakevenHigh)
	}
	if cfg.Engine.DiagramPoints != waterfall.DefaultDiagramPoints {
		t.Errorf("Expected default diagram points, got %d", cfg.Engine.DiagramPoints)
	}
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  option_model: binomial\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unknown option model")
	}
}

func TestManagerApply(t *testing.T) {
	m, err := NewManager(Default().Engine)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.Apply(Switch{OptionModel: "bs", CDF: "exact"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	opts := m.Options()
	if opts.Pricer.Model != option.ModelBlackScholes || opts.Pricer.CDF != option.CDFExact {
		t.Errorf("Switch not applied: %+v", opts.Pricer)
	}
	if opts.SplitMode != valuation.SplitHurdle {
		t.Errorf("Expected split mode to be kept, got %s", opts.SplitMode)
	}

	if _, err := m.Apply(Switch{SplitMode: "tiered", CDF: "approx"}); err == nil {
		t.Fatal("Expected error for unknown split mode")
	}
	if got := m.Engine().CDF; got != "exact" {
		t.Errorf("Rejected switch must not change state, cdf is %s", got)
	}
}
