package conditions

import "github.com/tableforge/engine-go/internal/ecs"

// RefKind selects how an EntityRef resolves against a binding.
type RefKind int

const (
	// RefLiteral resolves to a fixed entity handle.
	RefLiteral RefKind = iota
	// RefActor resolves to the binding's actor.
	RefActor
	// RefTarget resolves to the binding's target at Index.
	RefTarget
	// RefOwnedZone resolves to the actor-owned zone named ZoneName.
	RefOwnedZone
)

// EntityRef names an entity either literally or by its role in the action
// binding (actor, nth target, a zone the actor owns). Definitions use role
// references; the runtime resolves them when a concrete action is bound.
type EntityRef struct {
	Kind     RefKind
	Index    int
	Entity   ecs.Entity
	ZoneName string
}

// Literal builds a reference to a concrete entity.
func Literal(e ecs.Entity) EntityRef {
	return EntityRef{Kind: RefLiteral, Entity: e}
}

// Actor builds a reference to the acting entity.
func Actor() EntityRef {
	return EntityRef{Kind: RefActor}
}

// Target builds a reference to the nth bound target.
func Target(index int) EntityRef {
	return EntityRef{Kind: RefTarget, Index: index}
}

// OwnedZone builds a reference to the zone of the given name owned by the
// acting entity.
func OwnedZone(name string) EntityRef {
	return EntityRef{Kind: RefOwnedZone, ZoneName: name}
}

// Resolve maps the reference to a concrete entity. Unresolvable references
// (no actor bound, target index out of range, no matching zone) yield
// ecs.None, which every check and effect treats as absence.
func (r EntityRef) Resolve(env *Env, b Binding) ecs.Entity {
	switch r.Kind {
	case RefActor:
		return b.Actor
	case RefTarget:
		if r.Index < 0 || r.Index >= len(b.Targets) {
			return ecs.None
		}
		return b.Targets[r.Index]
	case RefOwnedZone:
		if env == nil || env.Zones == nil {
			return ecs.None
		}
		z, ok := env.Zones.FindZone(r.ZoneName, b.Actor)
		if !ok {
			return ecs.None
		}
		return z
	default:
		return r.Entity
	}
}

// Binding ties role references to concrete entities for one evaluation.
// Actions bind actor and targets; rules bind the event's source entity as
// the actor when the payload names one.
type Binding struct {
	Actor   ecs.Entity
	Targets []ecs.Entity
}
