package config

import (
	"fmt"
	"sync"

	"vc_termsheet/pkg/core/valuation"
	"vc_termsheet/pkg/core/waterfall"
)

// Manager holds the engine configuration shared by request handlers and
// lets an operator switch model choices at runtime.
type Manager struct {
	mu     sync.RWMutex
	engine EngineConfig
}

func NewManager(engine EngineConfig) (*Manager, error) {
	if _, err := engine.Options(); err != nil {
		return nil, err
	}
	return &Manager{engine: engine}, nil
}

// Engine returns a copy of the current engine section.
func (m *Manager) Engine() EngineConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine
}

// Options returns valuation options for the current engine section.
func (m *Manager) Options() valuation.Options {
	opts, _ := m.Engine().Options()
	return opts
}

// DiagramOptions returns exit-diagram options for the current engine section.
func (m *Manager) DiagramOptions() waterfall.DiagramOptions {
	return m.Engine().DiagramOptions()
}

// Switch is a partial update; empty fields keep their current value.
type Switch struct {
	OptionModel string `json:"option_model"`
	CDF         string `json:"cdf"`
	SplitMode   string `json:"split_mode"`
	PayoffMode  string `json:"payoff_mode"`
}

// Apply validates and installs a switch. Nothing changes on error.
func (m *Manager) Apply(s Switch) (EngineConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.engine
	if s.OptionModel != "" {
		next.OptionModel = s.OptionModel
	}
	if s.CDF != "" {
		next.CDF = s.CDF
	}
	if s.SplitMode != "" {
		next.SplitMode = s.SplitMode
	}
	if s.PayoffMode != "" {
		next.PayoffMode = s.PayoffMode
	}
	if _, err := next.Options(); err != nil {
		return m.engine, fmt.Errorf("switch rejected: %w", err)
	}

	m.engine = next
	return next, nil
}
