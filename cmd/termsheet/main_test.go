package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vc_termsheet/pkg/core/ledger"
	"vc_termsheet/pkg/core/waterfall"
)

// run executes the CLI with fresh flag state and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TERMSHEET_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	Cmd.PersistentFlags().VisitAll(reset)
	for _, c := range Cmd.Commands() {
		c.Flags().VisitAll(reset)
	}

	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(&out)
	Cmd.SetArgs(args)
	_, err := Cmd.ExecuteC()
	return out.String(), err
}

func TestPayoffCommand(t *testing.T) {
	out, err := run(t, "payoff", "--exit", "50", "--json")
	if err != nil {
		t.Fatalf("payoff: %v", err)
	}
	var payoffs map[string]waterfall.Payoff
	if err := json.Unmarshal([]byte(out), &payoffs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if a := payoffs["Series A"].Total; math.Abs(a-20) > 1e-9 {
		t.Errorf("Expected Series A 20, got %f", a)
	}
	if f := payoffs[ledger.FoundersParty].Total; math.Abs(f-30) > 1e-9 {
		t.Errorf("Expected founders 30, got %f", f)
	}

	// without --exit the scenario's exit valuation applies
	out, err = run(t, "payoff")
	if err != nil {
		t.Fatalf("payoff: %v", err)
	}
	if !strings.Contains(out, "TOTAL") || !strings.Contains(out, "100.00M") {
		t.Errorf("Expected total row of 100.00M, got:\n%s", out)
	}
}

func TestScenarioRoundTripThroughInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	if _, err := run(t, "init", path); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := run(t, "--scenario", path, "points", "--json")
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	var points []waterfall.ConversionPoint
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(points) != 1 || math.Abs(points[0].ConversionPoint-60) > 1e-9 {
		t.Errorf("Expected one conversion point at 60, got %+v", points)
	}
}

func TestBreakevenUnknownRound(t *testing.T) {
	_, err := run(t, "breakeven", "--round", "Series Z")
	if !errors.Is(err, ledger.ErrRoundNotFound) {
		t.Errorf("Expected ErrRoundNotFound, got %v", err)
	}
}

func TestDiagramCSV(t *testing.T) {
	out, err := run(t, "diagram")
	if err != nil {
		t.Fatalf("diagram: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "exit_value,founders,Series A" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if len(lines) != waterfall.DefaultDiagramPoints+1 {
		t.Errorf("Expected %d lines, got %d", waterfall.DefaultDiagramPoints+1, len(lines))
	}
}

func TestReportAndValue(t *testing.T) {
	out, err := run(t, "report")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.HasPrefix(out, "# Term Sheet Analysis: default") {
		t.Errorf("Unexpected report start:\n%s", out)
	}

	out, err = run(t, "report", "--html")
	if err != nil {
		t.Fatalf("report --html: %v", err)
	}
	if !strings.Contains(out, "<table>") {
		t.Errorf("Expected html tables, got:\n%s", out)
	}

	out, err = run(t, "value")
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if !strings.Contains(out, "Series A = V - C(20) + 0.3333×C(60)") {
		t.Errorf("Expected formula line, got:\n%s", out)
	}
}

func TestCommandsRejectArgs(t *testing.T) {
	for _, c := range []*cobra.Command{orderCmd, pointsCmd, payoffCmd, valueCmd} {
		if _, err := run(t, c.Name(), "extra"); err == nil {
			t.Errorf("%s: expected error for positional argument", c.Name())
		}
	}
}
