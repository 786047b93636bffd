// Package valuation prices preferred rounds as combinations of call options
// and splits each round's value between the fund's GP and its LPs.
package valuation

import (
	"fmt"

	"vc_termsheet/pkg/core/option"
	"vc_termsheet/pkg/core/waterfall"
)

// SplitMode selects how a round's value is divided between GP and LPs.
type SplitMode string

const (
	// SplitHurdle charges carry only on profit above a simple hurdle.
	SplitHurdle SplitMode = "hurdle"
	// SplitFlat gives the GP CarryRate of the whole partial valuation.
	SplitFlat SplitMode = "flat"
)

// ParseSplitMode maps a config string to a SplitMode; empty means hurdle.
func ParseSplitMode(s string) (SplitMode, error) {
	switch SplitMode(s) {
	case "", SplitHurdle:
		return SplitHurdle, nil
	case SplitFlat:
		return SplitFlat, nil
	}
	return SplitHurdle, fmt.Errorf("unknown split mode %q", s)
}

const (
	DefaultBreakevenLow        = 10.0
	DefaultBreakevenHigh       = 10000.0
	DefaultBreakevenIterations = 50
)

// Options carries the engine choices of one deployment.
type Options struct {
	Pricer    option.Pricer
	SplitMode SplitMode

	BreakevenLow        float64
	BreakevenHigh       float64
	BreakevenIterations int

	PayoffMode waterfall.Mode
	Workers    int
}

// DefaultOptions: RE calls with the A&S CDF, hurdle split, bisection over
// [10, 10000] for 50 iterations.
func DefaultOptions() Options {
	return Options{
		Pricer:              option.DefaultPricer(),
		SplitMode:           SplitHurdle,
		BreakevenLow:        DefaultBreakevenLow,
		BreakevenHigh:       DefaultBreakevenHigh,
		BreakevenIterations: DefaultBreakevenIterations,
		PayoffMode:          waterfall.ModeIndependent,
		Workers:             waterfall.DefaultWorkers,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Pricer.Model == "" {
		o.Pricer.Model = d.Pricer.Model
	}
	if o.Pricer.CDF == "" {
		o.Pricer.CDF = d.Pricer.CDF
	}
	if o.SplitMode == "" {
		o.SplitMode = d.SplitMode
	}
	if o.BreakevenLow == 0 && o.BreakevenHigh == 0 {
		o.BreakevenLow, o.BreakevenHigh = d.BreakevenLow, d.BreakevenHigh
	}
	if o.BreakevenIterations <= 0 {
		o.BreakevenIterations = d.BreakevenIterations
	}
	if o.PayoffMode == "" {
		o.PayoffMode = d.PayoffMode
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}
