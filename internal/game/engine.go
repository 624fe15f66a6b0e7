// Package game implements the top-level rules engine orchestrator: action
// execution, event drains, phase progression, and win-condition evaluation
// over a declarative game definition.
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/actions"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/events"
	"github.com/tableforge/engine-go/internal/game/phases"
	"github.com/tableforge/engine-go/internal/game/rules"
	"github.com/tableforge/engine-go/internal/game/zones"
)

// ErrGameOver is returned when an action is performed after the game has
// ended.
var ErrGameOver = errors.New("game is over")

const historyLimit = 256

// Options configures a new engine. Zero values select defaults.
type Options struct {
	MaxEventChain     int
	MaxPhaseAdvances  int
	MaxConditionDepth int
	Seed              int64
	Logger            *zap.Logger
}

// Engine owns the component store and the rule/action/event/phase
// subsystems. All public operations run to completion synchronously; the
// engine assumes exactly one in-flight action at a time.
type Engine struct {
	store     *ecs.Store
	zones     *zones.System
	actionSys *actions.System
	ruleEng   *rules.Engine
	phaseMgr  *phases.Manager
	queue     *events.Queue

	winConds  []WinCondition
	players   []ecs.Entity
	activeIdx int
	status    GameStatus

	healthComponent string
	healthField     string

	maxPhaseAdvances int
	maxCondDepth     int
	rng              *rand.Rand
	log              *zap.Logger
	history          []events.Event
}

// New creates an engine with registered zone components and empty catalogs.
// Phases must be configured via SetPhases before actions are performed.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxAdvances := opts.MaxPhaseAdvances
	if maxAdvances <= 0 {
		maxAdvances = phases.MaxAutoAdvances
	}

	store := ecs.NewStore()
	rng := rand.New(rand.NewSource(seed))
	zoneSys := zones.NewSystem(store, rng, logger)
	if err := zoneSys.Register(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	return &Engine{
		store:            store,
		zones:            zoneSys,
		actionSys:        actions.NewSystem(logger),
		ruleEng:          rules.NewEngine(opts.MaxEventChain, logger),
		queue:            events.NewQueue(),
		healthComponent:  "stats",
		healthField:      "health",
		maxPhaseAdvances: maxAdvances,
		maxCondDepth:     opts.MaxConditionDepth,
		rng:              rng,
		log:              logger,
	}, nil
}

// Store exposes the component store collaborator.
func (e *Engine) Store() *ecs.Store { return e.store }

// Zones exposes the zone system.
func (e *Engine) Zones() *zones.System { return e.zones }

// Actions exposes the action system.
func (e *Engine) Actions() *actions.System { return e.actionSys }

// Rules exposes the rule engine.
func (e *Engine) Rules() *rules.Engine { return e.ruleEng }

// Env builds the evaluation environment conditions and effects run in.
func (e *Engine) Env() *conditions.Env {
	return &conditions.Env{
		Store:    e.store,
		Zones:    e.zones,
		MaxDepth: e.maxCondDepth,
		Log:      e.log,
	}
}

// SetPhases installs the phase catalog, wires phase-gated action legality,
// and scopes phase-bound rules to the current phase.
func (e *Engine) SetPhases(catalog []phases.Phase, initial string) error {
	mgr, err := phases.NewManager(catalog, initial, e.log)
	if err != nil {
		return err
	}
	e.phaseMgr = mgr
	e.actionSys.AttachPhaseGate(mgr)
	e.ruleEng.SetPhaseProvider(mgr.Current)
	return nil
}

// CurrentPhase returns the active phase name, or empty when no phases are
// configured.
func (e *Engine) CurrentPhase() string {
	if e.phaseMgr == nil {
		return ""
	}
	return e.phaseMgr.Current()
}

// AddPlayer appends a player entity to the turn order.
func (e *Engine) AddPlayer(p ecs.Entity) {
	e.players = append(e.players, p)
}

// Players returns the player entities in turn order.
func (e *Engine) Players() []ecs.Entity {
	out := make([]ecs.Entity, len(e.players))
	copy(out, e.players)
	return out
}

// ActivePlayer returns the player whose turn it is.
func (e *Engine) ActivePlayer() ecs.Entity {
	if len(e.players) == 0 {
		return ecs.None
	}
	return e.players[e.activeIdx]
}

// ShufflePlayerOrder randomizes the turn order before the game starts.
func (e *Engine) ShufflePlayerOrder() {
	e.zones.ShuffleEntities(e.players)
	e.activeIdx = 0
}

// SetWinConditions installs the declarative win conditions, replacing any
// previous set and clearing the cached game status.
func (e *Engine) SetWinConditions(conds []WinCondition) {
	e.winConds = conds
	e.status = GameStatus{}
}

// SetHealthResource configures the component and field consulted by the
// legacy win-condition fallback.
func (e *Engine) SetHealthResource(component, field string) {
	e.healthComponent = component
	e.healthField = field
}

// ValidActions computes the legal actions for an actor against current
// state. Results are derived fresh on every call.
func (e *Engine) ValidActions(actor ecs.Entity) []*actions.Action {
	return e.actionSys.ValidActions(e.Env(), actor)
}

// PerformAction executes one top-level player action: costs and effects
// first, then a full drain of the resulting events through the rule engine,
// then automatic phase advancement. Illegal actions fail the whole call;
// costs already applied are never rolled back.
func (e *Engine) PerformAction(a *actions.Action) error {
	if e.status.IsGameOver {
		return ErrGameOver
	}
	env := e.Env()
	emitted, err := e.actionSys.Execute(env, a)
	if err != nil {
		e.log.Error("action execution failed",
			zap.String("type", a.Type),
			zap.Error(err))
		return fmt.Errorf("perform action: %w", err)
	}

	performed := events.New(events.ActionPerformed, map[string]any{
		"action": a.Type,
		"actor":  a.Actor,
	})
	e.record(performed)
	e.queue.Add(performed)
	for _, ev := range emitted {
		e.record(ev)
	}
	e.queue.AddMultiple(emitted)

	if err := e.ruleEng.ProcessAll(env, e.queue); err != nil {
		return fmt.Errorf("perform action: %w", err)
	}
	return e.autoAdvancePhases()
}

// EndTurn rotates the active player, resets the phase machine to the
// initial phase, and drains the turn transition events.
func (e *Engine) EndTurn() error {
	if e.status.IsGameOver {
		return ErrGameOver
	}
	if len(e.players) == 0 {
		return fmt.Errorf("end turn: no players")
	}
	prev := e.players[e.activeIdx]
	e.activeIdx = (e.activeIdx + 1) % len(e.players)
	next := e.players[e.activeIdx]
	if e.phaseMgr != nil {
		e.phaseMgr.Reset()
	}

	ended := events.New(events.TurnEnded, map[string]any{"player": prev})
	began := events.New(events.TurnBegan, map[string]any{"player": next})
	e.record(ended)
	e.record(began)
	e.queue.Add(ended)
	e.queue.Add(began)
	if err := e.ruleEng.ProcessAll(e.Env(), e.queue); err != nil {
		return fmt.Errorf("end turn: %w", err)
	}
	return e.autoAdvancePhases()
}

// autoAdvancePhases advances the phase machine while the current phase is
// flagged auto-advance, bounded both by a hard iteration cap and by a
// visited-phase set. Hitting either bound logs a warning and abandons the
// loop. Each transition drains its phase events once, without re-entrant
// advancement checks.
func (e *Engine) autoAdvancePhases() error {
	if e.phaseMgr == nil {
		return nil
	}
	visited := map[string]bool{e.phaseMgr.Current(): true}
	for i := 0; ; i++ {
		if !e.phaseMgr.CanAdvance() {
			return nil
		}
		if i >= e.maxPhaseAdvances {
			e.log.Warn("phase auto-advance cap reached",
				zap.Int("cap", e.maxPhaseAdvances),
				zap.String("phase", e.phaseMgr.Current()))
			return nil
		}
		p, ok := e.phaseMgr.CurrentPhase()
		if !ok {
			return nil
		}
		if visited[p.NextPhase] {
			e.log.Warn("phase auto-advance cycle detected",
				zap.String("phase", e.phaseMgr.Current()),
				zap.String("next", p.NextPhase))
			return nil
		}
		from, to, err := e.phaseMgr.Advance()
		if err != nil {
			e.log.Warn("phase auto-advance stopped", zap.Error(err))
			return nil
		}
		visited[to] = true

		exited := events.New(events.PhaseExited, map[string]any{"phase": from})
		entered := events.New(events.PhaseEntered, map[string]any{"phase": to})
		e.record(exited)
		e.record(entered)
		e.queue.Add(exited)
		e.queue.Add(entered)
		if err := e.ruleEng.ProcessAll(e.Env(), e.queue); err != nil {
			return err
		}
	}
}

// History returns the most recent engine events, oldest first. Intended for
// demo surfaces and authoring telemetry, not for rule logic.
func (e *Engine) History() []events.Event {
	out := make([]events.Event, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) record(ev events.Event) {
	e.history = append(e.history, ev)
	if len(e.history) > historyLimit {
		e.history = e.history[len(e.history)-historyLimit:]
	}
}
