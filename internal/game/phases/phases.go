// Package phases implements the finite state machine over the named phases
// of a game definition.
package phases

import (
	"fmt"

	"go.uber.org/zap"
)

// MaxAutoAdvances is the hard cap on consecutive automatic phase
// transitions after a single action. Phase graphs are author-defined data
// and may contain cycles with no loop-breaking condition; the cap keeps the
// engine from spinning on them.
const MaxAutoAdvances = 10

// Phase declares one named stage of a turn.
type Phase struct {
	Name           string
	AllowedActions []string
	AutoAdvance    bool
	NextPhase      string
}

// allows reports whether the action type is legal in this phase. A phase
// declaring no allowed actions restricts nothing.
func (p Phase) allows(actionType string) bool {
	if len(p.AllowedActions) == 0 {
		return true
	}
	for _, a := range p.AllowedActions {
		if a == actionType {
			return true
		}
	}
	return false
}

// Manager tracks the current phase and performs transitions over the
// declared catalog.
type Manager struct {
	catalog map[string]Phase
	initial string
	current string
	log     *zap.Logger
}

// NewManager builds a phase manager from the catalog, positioned at the
// initial phase.
func NewManager(catalog []Phase, initial string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		catalog: make(map[string]Phase, len(catalog)),
		initial: initial,
		current: initial,
		log:     logger,
	}
	for _, p := range catalog {
		if p.Name == "" {
			return nil, fmt.Errorf("phase catalog: phase with empty name")
		}
		if _, dup := m.catalog[p.Name]; dup {
			return nil, fmt.Errorf("phase catalog: duplicate phase %q", p.Name)
		}
		m.catalog[p.Name] = p
	}
	if _, ok := m.catalog[initial]; !ok {
		return nil, fmt.Errorf("phase catalog: initial phase %q not declared", initial)
	}
	return m, nil
}

// Current returns the name of the active phase.
func (m *Manager) Current() string {
	return m.current
}

// CurrentPhase returns the active phase's declaration.
func (m *Manager) CurrentPhase() (Phase, bool) {
	p, ok := m.catalog[m.current]
	return p, ok
}

// ActionAllowed reports whether the action type is legal in the current
// phase. Implements the action system's phase gate.
func (m *Manager) ActionAllowed(actionType string) bool {
	p, ok := m.catalog[m.current]
	if !ok {
		return false
	}
	return p.allows(actionType)
}

// CanAdvance reports whether the current phase advances automatically.
func (m *Manager) CanAdvance() bool {
	p, ok := m.catalog[m.current]
	return ok && p.AutoAdvance
}

// Advance transitions to the current phase's declared successor, returning
// the phase names left and entered.
func (m *Manager) Advance() (from, to string, err error) {
	p, ok := m.catalog[m.current]
	if !ok {
		return m.current, m.current, fmt.Errorf("advance phase: current phase %q not declared", m.current)
	}
	if p.NextPhase == "" {
		return m.current, m.current, fmt.Errorf("advance phase: phase %q has no next phase", m.current)
	}
	if _, ok := m.catalog[p.NextPhase]; !ok {
		return m.current, m.current, fmt.Errorf("advance phase: next phase %q not declared", p.NextPhase)
	}
	from = m.current
	m.current = p.NextPhase
	m.log.Debug("phase advanced", zap.String("from", from), zap.String("to", m.current))
	return from, m.current, nil
}

// Reset returns to the initial phase. Used when a turn rotates.
func (m *Manager) Reset() {
	m.current = m.initial
}

// Set jumps directly to a declared phase. Used when restoring a snapshot.
func (m *Manager) Set(name string) error {
	if _, ok := m.catalog[name]; !ok {
		return fmt.Errorf("set phase: %q not declared", name)
	}
	m.current = name
	return nil
}
