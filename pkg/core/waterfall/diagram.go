package waterfall

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"vc_termsheet/pkg/core/ledger"
)

const (
	DefaultDiagramPoints   = 200
	DefaultDiagramHeadroom = 1.5
	// DefaultDiagramMaxExit is used when no round has a conversion point.
	DefaultDiagramMaxExit = 100.0
	DefaultWorkers        = 4
)

// DiagramOptions controls the exit-value sweep.
type DiagramOptions struct {
	Points   int     // samples including both ends
	MaxExit  float64 // 0 = Headroom × highest conversion point
	Headroom float64
	Workers  int
	Mode     Mode
}

func (o DiagramOptions) withDefaults() DiagramOptions {
	if o.Points < 2 {
		o.Points = DefaultDiagramPoints
	}
	if o.Headroom <= 0 {
		o.Headroom = DefaultDiagramHeadroom
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Mode == "" {
		o.Mode = ModeIndependent
	}
	return o
}

// Diagram is the payoff of every party across a grid of exit values.
type Diagram struct {
	ExitValues       []float64            `json:"exit_values"`
	Parties          []string             `json:"parties"`
	Series           map[string][]float64 `json:"series"`
	ConversionPoints map[string]float64   `json:"conversion_points"`
}

// ExitDiagram evaluates the payoff engine on an evenly spaced grid from 0
// to the maximum exit value. Samples are independent, so they are computed
// concurrently; each worker writes only its own index.
func ExitDiagram(ctx context.Context, rounds []ledger.Round, founderShares float64, opts DiagramOptions) (*Diagram, error) {
	opts = opts.withDefaults()
	schedule := ConversionSchedule(rounds, founderShares)

	maxExit := opts.MaxExit
	if maxExit <= 0 {
		maxExit = DefaultDiagramMaxExit
		if highest, ok := MaxConversionPoint(schedule); ok && highest > 0 {
			maxExit = highest * opts.Headroom
		}
	}

	d := &Diagram{
		ExitValues:       floats.Span(make([]float64, opts.Points), 0, maxExit),
		Parties:          []string{ledger.FoundersParty},
		Series:           make(map[string][]float64),
		ConversionPoints: make(map[string]float64, len(schedule)),
	}
	for _, r := range ledger.ActiveRounds(rounds) {
		d.Parties = append(d.Parties, r.Name)
	}
	for _, party := range d.Parties {
		d.Series[party] = make([]float64, opts.Points)
	}
	for _, cp := range schedule {
		d.ConversionPoints[cp.Name] = cp.ConversionPoint
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, v := range d.ExitValues {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			payoffs := Payoffs(opts.Mode, v, rounds, founderShares)
			for _, party := range d.Parties {
				d.Series[party][i] = payoffs[party].Total
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
