// Package conditions implements the pure boolean predicates that gate action
// legality and rule firing. Checks are total: a missing entity, component,
// or field, or a wrongly typed value, is a failed check, never an error.
package conditions

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/zones"
)

// DefaultMaxDepth bounds And/Or/Not nesting. The evaluator enforces this
// itself rather than trusting authoring tools.
const DefaultMaxDepth = 3

// Operator names the comparison applied by a Comparison condition.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Env carries the state a condition may read. MaxDepth of zero means
// DefaultMaxDepth.
type Env struct {
	Store    *ecs.Store
	Zones    *zones.System
	MaxDepth int
	Log      *zap.Logger
}

func (e *Env) maxDepth() int {
	if e.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return e.MaxDepth
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// Precondition is a pure predicate over current state. Check never panics
// and never mutates; absence of referenced data yields false.
type Precondition interface {
	Check(env *Env, b Binding) bool
}

// CheckAll evaluates preconditions in order with AND semantics. An empty
// list is vacuously true.
func CheckAll(conds []Precondition, env *Env, b Binding) bool {
	for _, c := range conds {
		if c == nil || !c.Check(env, b) {
			return false
		}
	}
	return true
}

// Comparison compares a component field against a literal value using the
// configured operator. Ordering operators require both sides numeric;
// eq/ne fall back to generic equality for non-numeric values.
type Comparison struct {
	Entity    EntityRef
	Component string
	Field     string
	Operator  Operator
	Value     any
}

func (c Comparison) Check(env *Env, b Binding) bool {
	e := c.Entity.Resolve(env, b)
	if e == ecs.None {
		return false
	}
	current, ok := env.Store.Field(c.Component, e, c.Field)
	if !ok {
		return false
	}
	return compare(current, c.Operator, c.Value)
}

// PropertyEquals checks a component field for exact equality with a value
// of any supported type.
type PropertyEquals struct {
	Entity    EntityRef
	Component string
	Field     string
	Value     any
}

func (c PropertyEquals) Check(env *Env, b Binding) bool {
	e := c.Entity.Resolve(env, b)
	if e == ecs.None {
		return false
	}
	current, ok := env.Store.Field(c.Component, e, c.Field)
	if !ok {
		return false
	}
	return Equal(current, c.Value)
}

// EntityExists checks that the referenced entity is alive in the store.
type EntityExists struct {
	Entity EntityRef
}

func (c EntityExists) Check(env *Env, b Binding) bool {
	e := c.Entity.Resolve(env, b)
	return e != ecs.None && env.Store.EntityExists(e)
}

// InZone checks zone membership of an entity.
type InZone struct {
	Entity EntityRef
	Zone   EntityRef
}

func (c InZone) Check(env *Env, b Binding) bool {
	if env.Zones == nil {
		return false
	}
	e := c.Entity.Resolve(env, b)
	z := c.Zone.Resolve(env, b)
	if e == ecs.None || z == ecs.None {
		return false
	}
	return env.Zones.Contains(z, e)
}

// HasComponent checks that the entity carries the named component.
type HasComponent struct {
	Entity    EntityRef
	Component string
}

func (c HasComponent) Check(env *Env, b Binding) bool {
	e := c.Entity.Resolve(env, b)
	if e == ecs.None {
		return false
	}
	return env.Store.HasComponent(c.Component, e)
}

// And is true when every clause is true. Composites past the evaluator's
// nesting depth limit evaluate to false.
type And struct {
	Clauses []Precondition
}

func (c And) Check(env *Env, b Binding) bool {
	return c.checkAt(env, b, 1)
}

func (c And) checkAt(env *Env, b Binding, depth int) bool {
	if exceeded(env, depth) {
		return false
	}
	for _, clause := range c.Clauses {
		if !checkClause(clause, env, b, depth+1) {
			return false
		}
	}
	return true
}

// Or is true when at least one clause is true. An empty Or is false.
type Or struct {
	Clauses []Precondition
}

func (c Or) Check(env *Env, b Binding) bool {
	return c.checkAt(env, b, 1)
}

func (c Or) checkAt(env *Env, b Binding, depth int) bool {
	if exceeded(env, depth) {
		return false
	}
	for _, clause := range c.Clauses {
		if checkClause(clause, env, b, depth+1) {
			return true
		}
	}
	return false
}

// Not negates its clause. A nil clause is true (negation of nothing).
type Not struct {
	Clause Precondition
}

func (c Not) Check(env *Env, b Binding) bool {
	return c.checkAt(env, b, 1)
}

func (c Not) checkAt(env *Env, b Binding, depth int) bool {
	if exceeded(env, depth) {
		return false
	}
	if c.Clause == nil {
		return true
	}
	return !checkClause(c.Clause, env, b, depth+1)
}

type depthChecker interface {
	checkAt(env *Env, b Binding, depth int) bool
}

func checkClause(p Precondition, env *Env, b Binding, depth int) bool {
	if p == nil {
		return false
	}
	if dc, ok := p.(depthChecker); ok {
		return dc.checkAt(env, b, depth)
	}
	return p.Check(env, b)
}

func exceeded(env *Env, depth int) bool {
	if depth > env.maxDepth() {
		env.logger().Warn("condition nesting depth limit exceeded",
			zap.Int("depth", depth),
			zap.Int("limit", env.maxDepth()))
		return true
	}
	return false
}

// compare applies an operator to a current value and a literal.
func compare(current any, op Operator, value any) bool {
	cf, cok := ecs.ToFloat(current)
	vf, vok := ecs.ToFloat(value)
	if cok && vok {
		switch op {
		case OpEq:
			return cf == vf
		case OpNe:
			return cf != vf
		case OpGt:
			return cf > vf
		case OpGte:
			return cf >= vf
		case OpLt:
			return cf < vf
		case OpLte:
			return cf <= vf
		}
		return false
	}
	switch op {
	case OpEq:
		return Equal(current, value)
	case OpNe:
		return !Equal(current, value)
	}
	// Ordering on non-numeric values is a failed check.
	return false
}

// Equal compares two runtime values, treating all numeric encodings of the
// same number as equal and entity handles by identity.
func Equal(a, b any) bool {
	if ea, aIsEnt := a.(ecs.Entity); aIsEnt {
		eb, ok := ecs.ToEntity(b)
		return ok && ea == eb
	}
	if eb, bIsEnt := b.(ecs.Entity); bIsEnt {
		ea, ok := ecs.ToEntity(a)
		return ok && ea == eb
	}
	if af, aok := ecs.ToFloat(a); aok {
		bf, bok := ecs.ToFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}
