// Package rules implements the event-triggered rule engine: a priority-
// sorted set of declarative rules matched against a drained event queue.
package rules

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/effects"
	"github.com/tableforge/engine-go/internal/game/events"
)

// DefaultPriority is used when a rule declares no priority. Lower priority
// numbers fire first among rules matching the same event.
const DefaultPriority = 100

// DefaultMaxChain bounds the number of events processed in one drain. An
// infinite rule chain is almost always an authoring bug, so exceeding the
// ceiling fails loudly instead of being swallowed.
const DefaultMaxChain = 1000

// ErrEventChainExceeded is returned when a single drain processes more
// events than the configured ceiling allows.
var ErrEventChainExceeded = errors.New("event chain ceiling exceeded")

// Trigger keys a rule to an event type, with optional exact-equality
// filters over the event payload.
type Trigger struct {
	EventType string
	Filters   map[string]any
}

// Matches reports whether the event satisfies the trigger.
func (t Trigger) Matches(e events.Event) bool {
	if t.EventType != e.Type {
		return false
	}
	for field, want := range t.Filters {
		got, ok := e.Data[field]
		if !ok || !conditions.Equal(got, want) {
			return false
		}
	}
	return true
}

// Rule is a declarative event reaction: when the trigger matches and the
// conditions hold, the effects are applied. Rules are immutable once
// loaded. A non-empty Phase scopes the rule to that phase.
type Rule struct {
	ID         string
	Trigger    Trigger
	Conditions []conditions.Precondition
	Effects    []effects.Effect
	Priority   int
	Phase      string
}

// Engine matches drained events against the loaded rules.
type Engine struct {
	rules    []Rule
	phase    func() string
	maxChain int
	log      *zap.Logger
}

// NewEngine creates a rule engine. maxChain <= 0 selects DefaultMaxChain.
func NewEngine(maxChain int, logger *zap.Logger) *Engine {
	if maxChain <= 0 {
		maxChain = DefaultMaxChain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{maxChain: maxChain, log: logger}
}

// SetPhaseProvider wires in the current-phase lookup used for phase-scoped
// rules. Without a provider, phase-scoped rules never fire.
func (e *Engine) SetPhaseProvider(provider func() string) {
	e.phase = provider
}

// AddRule loads a rule. A missing ID gets a generated one; a zero priority
// gets the default.
func (e *Engine) AddRule(r Rule) string {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	e.rules = append(e.rules, r)
	return r.ID
}

// Rules returns the loaded rules in declaration order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ProcessAll drains the queue breadth-first: each popped event is dispatched
// to all matching rules in ascending priority order (stable on declaration
// order), and rule effects may enqueue further events that are processed in
// this same drain. A monotonic processed-event counter guards against
// unbounded rule chains.
func (e *Engine) ProcessAll(env *conditions.Env, q *events.Queue) error {
	processed := 0
	for {
		ev, ok := q.Pop()
		if !ok {
			return nil
		}
		processed++
		if processed > e.maxChain {
			e.log.Error("event chain ceiling exceeded",
				zap.Int("ceiling", e.maxChain),
				zap.String("event_type", ev.Type))
			return fmt.Errorf("processing event %q: %w", ev.Type, ErrEventChainExceeded)
		}
		e.dispatch(env, q, ev)
	}
}

func (e *Engine) dispatch(env *conditions.Env, q *events.Queue, ev events.Event) {
	matched := e.matching(ev)
	if len(matched) == 0 {
		return
	}
	ctx := &effects.Context{
		Env:  env,
		Emit: func(next events.Event) { q.Add(next) },
	}
	b := bindingFor(ev)
	for _, r := range matched {
		if !conditions.CheckAll(r.Conditions, env, b) {
			continue
		}
		e.log.Debug("rule fired",
			zap.String("rule_id", r.ID),
			zap.String("event_type", ev.Type),
			zap.Int("priority", r.Priority))
		effects.ApplyAll(r.Effects, ctx, b)
	}
}

// bindingFor derives the binding a rule's conditions and effects evaluate
// under. The event's actor, player, or entity payload entry, in that order,
// becomes the bound actor; events without one bind no actor.
func bindingFor(ev events.Event) conditions.Binding {
	for _, key := range []string{"actor", "player", "entity"} {
		if e, ok := ev.Data[key].(ecs.Entity); ok && e != ecs.None {
			return conditions.Binding{Actor: e}
		}
	}
	return conditions.Binding{}
}

// matching returns the rules whose trigger and phase scope match the event,
// sorted by ascending priority with declaration order as tie-break.
func (e *Engine) matching(ev events.Event) []Rule {
	var matched []Rule
	current := ""
	if e.phase != nil {
		current = e.phase()
	}
	for _, r := range e.rules {
		if r.Phase != "" && r.Phase != current {
			continue
		}
		if r.Trigger.Matches(ev) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	return matched
}
