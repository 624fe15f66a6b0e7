package game

import (
	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/conditions"
)

// GameStatus is the memoized result of win-condition evaluation, owned
// directly by the engine aggregate.
type GameStatus struct {
	IsGameOver bool
	Winner     ecs.Entity
	EndReason  string
}

// WinScope selects how a win condition is evaluated.
type WinScope string

const (
	// WinScopeGlobal evaluates the condition once against global state.
	WinScopeGlobal WinScope = "global"
	// WinScopePerPlayer evaluates the condition once per player, bound as
	// the actor; the first matching player wins.
	WinScopePerPlayer WinScope = "perPlayer"
)

// WinCondition is a declarative game-over predicate. Conditions are
// evaluated in declaration order; the first match decides the game. A
// global condition with Winner == ecs.None ends the game as a draw.
type WinCondition struct {
	Name      string
	Scope     WinScope
	Winner    ecs.Entity
	Condition conditions.Precondition
}

// IsGameOver reports whether the game has ended, evaluating win conditions
// lazily and caching the result.
func (e *Engine) IsGameOver() bool {
	e.checkWinConditions()
	return e.status.IsGameOver
}

// Winner returns the winning player entity, or ecs.None for a draw or a
// game still in progress.
func (e *Engine) Winner() ecs.Entity {
	e.checkWinConditions()
	return e.status.Winner
}

// Status returns the current cached game status.
func (e *Engine) Status() GameStatus {
	e.checkWinConditions()
	return e.status
}

// checkWinConditions re-evaluates only when the cached status is not
// already game-over. With no declared win conditions it falls back to the
// legacy rule: any player whose health-like resource reaches zero ends the
// game, and an opponent with positive health wins.
func (e *Engine) checkWinConditions() {
	if e.status.IsGameOver {
		return
	}
	var result *GameStatus
	if len(e.winConds) > 0 {
		result = e.evaluateWinConditions()
	} else {
		result = e.legacyHealthFallback()
	}
	if result == nil {
		return
	}
	e.status = *result
	e.log.Info("game over",
		zap.String("reason", e.status.EndReason),
		zap.Int("winner", int(e.status.Winner)))
}

func (e *Engine) evaluateWinConditions() *GameStatus {
	env := e.Env()
	for _, wc := range e.winConds {
		if wc.Condition == nil {
			continue
		}
		switch wc.Scope {
		case WinScopePerPlayer:
			for _, p := range e.players {
				if wc.Condition.Check(env, conditions.Binding{Actor: p}) {
					return &GameStatus{IsGameOver: true, Winner: p, EndReason: wc.Name}
				}
			}
		default:
			if wc.Condition.Check(env, conditions.Binding{}) {
				return &GameStatus{IsGameOver: true, Winner: wc.Winner, EndReason: wc.Name}
			}
		}
	}
	return nil
}

// legacyHealthFallback exists for game definitions lacking explicit win
// conditions. It is a degenerate default, not a model to extend.
func (e *Engine) legacyHealthFallback() *GameStatus {
	eliminated := false
	for _, p := range e.players {
		h, ok := e.playerHealth(p)
		if ok && h <= 0 {
			eliminated = true
			break
		}
	}
	if !eliminated {
		return nil
	}
	for _, p := range e.players {
		h, ok := e.playerHealth(p)
		if ok && h > 0 {
			return &GameStatus{IsGameOver: true, Winner: p, EndReason: "opponent eliminated"}
		}
	}
	return &GameStatus{IsGameOver: true, Winner: ecs.None, EndReason: "all players eliminated"}
}

func (e *Engine) playerHealth(p ecs.Entity) (float64, bool) {
	v, ok := e.store.Field(e.healthComponent, p, e.healthField)
	if !ok {
		return 0, false
	}
	return ecs.ToFloat(v)
}
