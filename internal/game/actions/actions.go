// Package actions implements the action catalog: computing the set of
// currently legal actions for an actor and executing a chosen action as
// costs followed by effects.
package actions

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/effects"
	"github.com/tableforge/engine-go/internal/game/events"
)

// ErrIllegalAction is returned when an action is executed whose
// preconditions do not hold at execute time. The orchestrator treats this
// as fatal to the current PerformAction call.
var ErrIllegalAction = errors.New("action preconditions not satisfied")

// Definition declares an action type: its targeting arity, the
// preconditions gating it, and the costs and effects applied on execution.
type Definition struct {
	Type          string
	TargetCount   int
	Preconditions []conditions.Precondition
	Costs         []effects.Effect
	Effects       []effects.Effect
}

// Action binds a definition to a concrete actor and targets.
type Action struct {
	ID      string
	Type    string
	Actor   ecs.Entity
	Targets []ecs.Entity

	def *Definition
}

// Binding returns the actor/target binding for condition and effect
// evaluation.
func (a *Action) Binding() conditions.Binding {
	return conditions.Binding{Actor: a.Actor, Targets: a.Targets}
}

// CanExecute re-checks the definition's preconditions against current
// state.
func (a *Action) CanExecute(env *conditions.Env) bool {
	if a.def == nil {
		return false
	}
	return conditions.CheckAll(a.def.Preconditions, env, a.Binding())
}

// PhaseGate restricts which action types are legal in the current phase.
type PhaseGate interface {
	ActionAllowed(actionType string) bool
}

// System holds the registered action definitions and derives legal actions
// on demand. Results are never cached: state mutates between calls.
type System struct {
	defs  map[string]*Definition
	order []string
	gate  PhaseGate
	log   *zap.Logger
}

// NewSystem creates an empty action system.
func NewSystem(logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		defs: make(map[string]*Definition),
		log:  logger,
	}
}

// Register adds an action definition to the catalog.
func (s *System) Register(def Definition) error {
	if def.Type == "" {
		return fmt.Errorf("register action: empty type")
	}
	if _, exists := s.defs[def.Type]; exists {
		return fmt.Errorf("register action: %q already registered", def.Type)
	}
	d := def
	s.defs[def.Type] = &d
	s.order = append(s.order, def.Type)
	return nil
}

// AttachPhaseGate wires phase-aware legality into action enumeration.
func (s *System) AttachPhaseGate(gate PhaseGate) {
	s.gate = gate
}

// Definition returns a registered definition by type.
func (s *System) Definition(actionType string) (*Definition, bool) {
	d, ok := s.defs[actionType]
	return d, ok
}

// Instantiate binds a registered definition to an actor and targets without
// checking legality. Unknown types return nil.
func (s *System) Instantiate(actionType string, actor ecs.Entity, targets []ecs.Entity) *Action {
	def, ok := s.defs[actionType]
	if !ok {
		return nil
	}
	return &Action{
		ID:      uuid.NewString(),
		Type:    actionType,
		Actor:   actor,
		Targets: targets,
		def:     def,
	}
}

// ValidActions computes all currently legal actions for the actor. For each
// registered definition allowed in the current phase, every ordered
// combination of distinct candidate targets of the required arity is tested
// against the preconditions; only fully satisfied bindings survive.
func (s *System) ValidActions(env *conditions.Env, actor ecs.Entity) []*Action {
	candidates := env.Store.AllEntities()
	var out []*Action
	for _, actionType := range s.order {
		def := s.defs[actionType]
		if s.gate != nil && !s.gate.ActionAllowed(actionType) {
			continue
		}
		for _, targets := range targetTuples(candidates, def.TargetCount) {
			a := s.Instantiate(actionType, actor, targets)
			if a.CanExecute(env) {
				out = append(out, a)
			}
		}
	}
	return out
}

// Execute applies the action's costs, then its effects, in declared order,
// and returns the events they emitted. The events are not queued here; the
// caller owns downstream queueing. Costs, once applied, are never rolled
// back, even if a later effect declines to apply.
func (s *System) Execute(env *conditions.Env, a *Action) ([]events.Event, error) {
	if a == nil {
		return nil, fmt.Errorf("execute action: nil action")
	}
	def, ok := s.defs[a.Type]
	if !ok {
		return nil, fmt.Errorf("execute action: type %q not registered", a.Type)
	}
	if a.def == nil {
		a.def = def
	}
	if s.gate != nil && !s.gate.ActionAllowed(a.Type) {
		return nil, fmt.Errorf("execute action %q: not allowed in current phase: %w", a.Type, ErrIllegalAction)
	}
	if !a.CanExecute(env) {
		return nil, fmt.Errorf("execute action %q: %w", a.Type, ErrIllegalAction)
	}

	var emitted []events.Event
	ctx := &effects.Context{
		Env:  env,
		Emit: func(e events.Event) { emitted = append(emitted, e) },
	}
	b := a.Binding()
	effects.ApplyAll(def.Costs, ctx, b)
	effects.ApplyAll(def.Effects, ctx, b)

	s.log.Debug("action executed",
		zap.String("type", a.Type),
		zap.Int("actor", int(a.Actor)),
		zap.Int("targets", len(a.Targets)),
		zap.Int("events", len(emitted)))
	return emitted, nil
}

// targetTuples enumerates ordered tuples of distinct entities of the given
// arity. Arity zero yields a single empty tuple.
func targetTuples(candidates []ecs.Entity, arity int) [][]ecs.Entity {
	if arity <= 0 {
		return [][]ecs.Entity{nil}
	}
	var out [][]ecs.Entity
	tuple := make([]ecs.Entity, 0, arity)
	used := make(map[ecs.Entity]bool, len(candidates))
	var build func()
	build = func() {
		if len(tuple) == arity {
			cp := make([]ecs.Entity, arity)
			copy(cp, tuple)
			out = append(out, cp)
			return
		}
		for _, c := range candidates {
			if used[c] {
				continue
			}
			used[c] = true
			tuple = append(tuple, c)
			build()
			tuple = tuple[:len(tuple)-1]
			used[c] = false
		}
	}
	build()
	return out
}
