package definition

import (
	"fmt"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game"
	"github.com/tableforge/engine-go/internal/game/actions"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/effects"
	"github.com/tableforge/engine-go/internal/game/phases"
	"github.com/tableforge/engine-go/internal/game/rules"
	"github.com/tableforge/engine-go/internal/game/zones"
)

// CompileCondition turns a declarative condition into its evaluator form.
func CompileCondition(def ConditionDef, cat *Catalog) (conditions.Precondition, error) {
	switch def.Type {
	case "compare":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		return conditions.Comparison{
			Entity:    entity,
			Component: def.Component,
			Field:     def.Field,
			Operator:  conditions.Operator(def.Operator),
			Value:     def.Value,
		}, nil
	case "propertyEquals":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		return conditions.PropertyEquals{
			Entity:    entity,
			Component: def.Component,
			Field:     def.Field,
			Value:     def.Value,
		}, nil
	case "entityExists":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		return conditions.EntityExists{Entity: entity}, nil
	case "inZone":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		zone, err := cat.resolveRef(def.Zone)
		if err != nil {
			return nil, err
		}
		return conditions.InZone{Entity: entity, Zone: zone}, nil
	case "hasComponent":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		return conditions.HasComponent{Entity: entity, Component: def.Component}, nil
	case "and", "or":
		clauses, err := compileConditions(def.Clauses, cat)
		if err != nil {
			return nil, err
		}
		if def.Type == "and" {
			return conditions.And{Clauses: clauses}, nil
		}
		return conditions.Or{Clauses: clauses}, nil
	case "not":
		if def.Clause == nil {
			return conditions.Not{}, nil
		}
		inner, err := CompileCondition(*def.Clause, cat)
		if err != nil {
			return nil, err
		}
		return conditions.Not{Clause: inner}, nil
	}
	return nil, fmt.Errorf("compile condition: unknown type %q", def.Type)
}

func compileConditions(defs []ConditionDef, cat *Catalog) ([]conditions.Precondition, error) {
	out := make([]conditions.Precondition, 0, len(defs))
	for i, d := range defs {
		c, err := CompileCondition(d, cat)
		if err != nil {
			return nil, fmt.Errorf("condition[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// CompileEffect turns a declarative effect into its applier form.
func CompileEffect(def EffectDef, cat *Catalog) (effects.Effect, error) {
	switch def.Type {
	case "modifyNumber":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		return effects.NumberModification{
			Entity:    entity,
			Component: def.Component,
			Field:     def.Field,
			Op:        effects.NumOp(def.Op),
			Amount:    def.Amount,
		}, nil
	case "setString":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		value, _ := def.Value.(string)
		return effects.StringModification{
			Entity:    entity,
			Component: def.Component,
			Field:     def.Field,
			Value:     value,
			Allowed:   def.Allowed,
		}, nil
	case "setValue":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		return effects.SetFieldValue{
			Entity:    entity,
			Component: def.Component,
			Field:     def.Field,
			Value:     def.Value,
		}, nil
	case "moveToZone":
		entity, err := cat.resolveRef(def.Entity)
		if err != nil {
			return nil, err
		}
		zone, err := cat.resolveRef(def.Zone)
		if err != nil {
			return nil, err
		}
		return effects.MoveToZone{
			Entity:    entity,
			Zone:      zone,
			Placement: zones.Placement(def.Placement),
		}, nil
	case "shuffleZone":
		zone, err := cat.resolveRef(def.Zone)
		if err != nil {
			return nil, err
		}
		return effects.ShuffleZone{Zone: zone}, nil
	case "transfer":
		from, err := cat.resolveRef(def.From)
		if err != nil {
			return nil, err
		}
		to, err := cat.resolveRef(def.To)
		if err != nil {
			return nil, err
		}
		return effects.TransferResource{
			From:      from,
			To:        to,
			Component: def.Component,
			Field:     def.Field,
			Amount:    def.Amount,
		}, nil
	case "emitEvent":
		if def.EventType == "" {
			return nil, fmt.Errorf("compile effect: emitEvent requires eventType")
		}
		refs := make(map[string]conditions.EntityRef, len(def.Entities))
		for key, ref := range def.Entities {
			r, err := cat.resolveRef(ref)
			if err != nil {
				return nil, err
			}
			refs[key] = r
		}
		return effects.EmitEvent{
			EventType: def.EventType,
			Data:      def.Data,
			Entities:  refs,
		}, nil
	case "conditional":
		var cond conditions.Precondition
		if def.If != nil {
			var err error
			cond, err = CompileCondition(*def.If, cat)
			if err != nil {
				return nil, err
			}
		}
		then, err := compileEffects(def.Then, cat)
		if err != nil {
			return nil, err
		}
		els, err := compileEffects(def.Else, cat)
		if err != nil {
			return nil, err
		}
		return effects.Conditional{If: cond, Then: then, Else: els}, nil
	case "sequence":
		effs, err := compileEffects(def.Effects, cat)
		if err != nil {
			return nil, err
		}
		return effects.Sequence{Effects: effs}, nil
	}
	return nil, fmt.Errorf("compile effect: unknown type %q", def.Type)
}

func compileEffects(defs []EffectDef, cat *Catalog) ([]effects.Effect, error) {
	out := make([]effects.Effect, 0, len(defs))
	for i, d := range defs {
		e, err := CompileEffect(d, cat)
		if err != nil {
			return nil, fmt.Errorf("effect[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// CompileAction builds an action definition.
func CompileAction(actionType string, def ActionDef, cat *Catalog) (actions.Definition, error) {
	pre, err := compileConditions(def.Preconditions, cat)
	if err != nil {
		return actions.Definition{}, fmt.Errorf("action %q: %w", actionType, err)
	}
	costs, err := compileEffects(def.Costs, cat)
	if err != nil {
		return actions.Definition{}, fmt.Errorf("action %q costs: %w", actionType, err)
	}
	effs, err := compileEffects(def.Effects, cat)
	if err != nil {
		return actions.Definition{}, fmt.Errorf("action %q effects: %w", actionType, err)
	}
	return actions.Definition{
		Type:          actionType,
		TargetCount:   def.TargetCount,
		Preconditions: pre,
		Costs:         costs,
		Effects:       effs,
	}, nil
}

// CompileRule builds a rule for the rule engine.
func CompileRule(def RuleDef, cat *Catalog) (rules.Rule, error) {
	conds, err := compileConditions(def.Conditions, cat)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("rule %q: %w", def.ID, err)
	}
	effs, err := compileEffects(def.Effects, cat)
	if err != nil {
		return rules.Rule{}, fmt.Errorf("rule %q: %w", def.ID, err)
	}
	return rules.Rule{
		ID: def.ID,
		Trigger: rules.Trigger{
			EventType: def.Trigger.EventType,
			Filters:   def.Trigger.Filters,
		},
		Conditions: conds,
		Effects:    effs,
		Priority:   def.Priority,
		Phase:      def.Phase,
	}, nil
}

// CompileWinCondition builds a win condition for the evaluator.
func CompileWinCondition(def WinConditionDef, cat *Catalog) (game.WinCondition, error) {
	cond, err := CompileCondition(def.Condition, cat)
	if err != nil {
		return game.WinCondition{}, fmt.Errorf("win condition %q: %w", def.Name, err)
	}
	scope := game.WinScopeGlobal
	if def.Scope == "perPlayer" {
		scope = game.WinScopePerPlayer
	}
	winner := ecs.None
	if def.Winner != "" {
		ref, err := cat.resolveRef(def.Winner)
		if err != nil {
			return game.WinCondition{}, fmt.Errorf("win condition %q: %w", def.Name, err)
		}
		if ref.Kind != conditions.RefLiteral {
			return game.WinCondition{}, fmt.Errorf("win condition %q: winner must name a player or zone entity", def.Name)
		}
		winner = ref.Entity
	}
	return game.WinCondition{
		Name:      def.Name,
		Scope:     scope,
		Winner:    winner,
		Condition: cond,
	}, nil
}

// CompilePhases builds the phase catalog.
func CompilePhases(defs map[string]PhaseDef) []phases.Phase {
	out := make([]phases.Phase, 0, len(defs))
	for name, p := range defs {
		out = append(out, phases.Phase{
			Name:           name,
			AllowedActions: p.AllowedActions,
			AutoAdvance:    p.AutoAdvance,
			NextPhase:      p.NextPhase,
		})
	}
	return out
}
