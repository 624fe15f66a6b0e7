// Package effects implements the state mutations applied by action costs,
// action effects, and rule reactions. Effects have no return value and no
// error path: when the referenced entity, component, or field is missing or
// wrongly typed, the effect silently declines to mutate.
package effects

import (
	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/events"
	"github.com/tableforge/engine-go/internal/game/zones"
)

// Context carries the state an effect may mutate and the sink new events go
// to. Emit may be nil when the caller does not collect events.
type Context struct {
	Env  *conditions.Env
	Emit func(events.Event)
}

func (ctx *Context) emit(e events.Event) {
	if ctx.Emit != nil {
		ctx.Emit(e)
	}
}

func (ctx *Context) logger() *zap.Logger {
	if ctx.Env != nil && ctx.Env.Log != nil {
		return ctx.Env.Log
	}
	return zap.NewNop()
}

// Effect mutates state. Apply never panics; absence of referenced data makes
// the effect a no-op.
type Effect interface {
	Apply(ctx *Context, b conditions.Binding)
}

// ApplyAll applies effects in declared order.
func ApplyAll(effs []Effect, ctx *Context, b conditions.Binding) {
	for _, eff := range effs {
		if eff != nil {
			eff.Apply(ctx, b)
		}
	}
}

// NumOp selects the arithmetic a NumberModification performs.
type NumOp string

const (
	NumAdd      NumOp = "add"
	NumSubtract NumOp = "subtract"
	NumSet      NumOp = "set"
)

// NumberModification adjusts a numeric component field. The current field
// value must already be numeric or the effect declines.
type NumberModification struct {
	Entity    conditions.EntityRef
	Component string
	Field     string
	Op        NumOp
	Amount    float64
}

func (m NumberModification) Apply(ctx *Context, b conditions.Binding) {
	e := m.Entity.Resolve(ctx.Env, b)
	if e == ecs.None {
		return
	}
	current, ok := ctx.Env.Store.Field(m.Component, e, m.Field)
	if !ok {
		return
	}
	cf, ok := ecs.ToFloat(current)
	if !ok {
		return
	}
	var next float64
	switch m.Op {
	case NumAdd:
		next = cf + m.Amount
	case NumSubtract:
		next = cf - m.Amount
	case NumSet:
		next = m.Amount
	default:
		return
	}
	ctx.Env.Store.SetField(m.Component, e, m.Field, next)
}

// StringModification sets a string field, optionally validated against an
// allow-list. A value outside the allow-list leaves the field unchanged;
// this is the only primitive with value-domain validation.
type StringModification struct {
	Entity    conditions.EntityRef
	Component string
	Field     string
	Value     string
	Allowed   []string
}

func (m StringModification) Apply(ctx *Context, b conditions.Binding) {
	e := m.Entity.Resolve(ctx.Env, b)
	if e == ecs.None {
		return
	}
	if len(m.Allowed) > 0 {
		found := false
		for _, v := range m.Allowed {
			if v == m.Value {
				found = true
				break
			}
		}
		if !found {
			return
		}
	}
	if _, ok := ctx.Env.Store.Field(m.Component, e, m.Field); !ok {
		return
	}
	ctx.Env.Store.SetField(m.Component, e, m.Field, m.Value)
}

// SetFieldValue sets a component field to an arbitrary typed value. The
// accessor's runtime type validation decides whether the write happens.
type SetFieldValue struct {
	Entity    conditions.EntityRef
	Component string
	Field     string
	Value     any
}

func (m SetFieldValue) Apply(ctx *Context, b conditions.Binding) {
	e := m.Entity.Resolve(ctx.Env, b)
	if e == ecs.None {
		return
	}
	ctx.Env.Store.SetField(m.Component, e, m.Field, m.Value)
}

// MoveToZone relocates an entity into a destination zone. Successful moves
// emit a ZONE_CHANGED event so rules can react to relocation.
type MoveToZone struct {
	Entity    conditions.EntityRef
	Zone      conditions.EntityRef
	Placement zones.Placement
}

func (m MoveToZone) Apply(ctx *Context, b conditions.Binding) {
	if ctx.Env.Zones == nil {
		return
	}
	e := m.Entity.Resolve(ctx.Env, b)
	z := m.Zone.Resolve(ctx.Env, b)
	if e == ecs.None || z == ecs.None {
		return
	}
	if ctx.Env.Zones.Move(e, z, m.Placement) {
		ctx.emit(events.New(events.ZoneChanged, map[string]any{
			"entity": e,
			"zone":   z,
		}))
	}
}

// ShuffleZone randomizes the order of a zone's members.
type ShuffleZone struct {
	Zone conditions.EntityRef
}

func (m ShuffleZone) Apply(ctx *Context, b conditions.Binding) {
	if ctx.Env.Zones == nil {
		return
	}
	z := m.Zone.Resolve(ctx.Env, b)
	if z == ecs.None || !ctx.Env.Zones.IsZone(z) {
		return
	}
	ctx.Env.Zones.Shuffle(z)
	ctx.emit(events.New(events.ZoneShuffled, map[string]any{"zone": z}))
}

// TransferResource moves up to Amount of a numeric field from one entity to
// another, capped at what the source holds. Both fields must be numeric or
// the transfer declines entirely.
type TransferResource struct {
	From      conditions.EntityRef
	To        conditions.EntityRef
	Component string
	Field     string
	Amount    float64
}

func (m TransferResource) Apply(ctx *Context, b conditions.Binding) {
	from := m.From.Resolve(ctx.Env, b)
	to := m.To.Resolve(ctx.Env, b)
	if from == ecs.None || to == ecs.None {
		return
	}
	store := ctx.Env.Store
	fromVal, ok := store.Field(m.Component, from, m.Field)
	if !ok {
		return
	}
	ff, ok := ecs.ToFloat(fromVal)
	if !ok {
		return
	}
	toVal, ok := store.Field(m.Component, to, m.Field)
	if !ok {
		return
	}
	tf, ok := ecs.ToFloat(toVal)
	if !ok {
		return
	}
	amount := m.Amount
	if amount > ff {
		amount = ff
	}
	if amount <= 0 {
		return
	}
	store.SetField(m.Component, from, m.Field, ff-amount)
	store.SetField(m.Component, to, m.Field, tf+amount)
}

// EmitEvent pushes a new event into the drain, carrying literal data plus
// any bound entities resolved at apply time.
type EmitEvent struct {
	EventType string
	Data      map[string]any
	Entities  map[string]conditions.EntityRef
}

func (m EmitEvent) Apply(ctx *Context, b conditions.Binding) {
	if m.EventType == "" {
		return
	}
	data := make(map[string]any, len(m.Data)+len(m.Entities))
	for k, v := range m.Data {
		data[k] = v
	}
	for k, ref := range m.Entities {
		data[k] = ref.Resolve(ctx.Env, b)
	}
	ctx.emit(events.New(m.EventType, data))
}

// Conditional applies Then when the condition holds, Else otherwise.
// Nesting depth is bounded by the same limit the condition evaluator uses;
// effects past the limit are skipped with a warning.
type Conditional struct {
	If   conditions.Precondition
	Then []Effect
	Else []Effect
}

func (m Conditional) Apply(ctx *Context, b conditions.Binding) {
	m.applyAt(ctx, b, 1)
}

func (m Conditional) applyAt(ctx *Context, b conditions.Binding, depth int) {
	if depthExceeded(ctx, depth) {
		return
	}
	branch := m.Else
	if m.If == nil || m.If.Check(ctx.Env, b) {
		branch = m.Then
	}
	for _, eff := range branch {
		applyNested(eff, ctx, b, depth+1)
	}
}

// Sequence applies its effects in order.
type Sequence struct {
	Effects []Effect
}

func (m Sequence) Apply(ctx *Context, b conditions.Binding) {
	m.applyAt(ctx, b, 1)
}

func (m Sequence) applyAt(ctx *Context, b conditions.Binding, depth int) {
	if depthExceeded(ctx, depth) {
		return
	}
	for _, eff := range m.Effects {
		applyNested(eff, ctx, b, depth+1)
	}
}

type depthApplier interface {
	applyAt(ctx *Context, b conditions.Binding, depth int)
}

func applyNested(eff Effect, ctx *Context, b conditions.Binding, depth int) {
	if eff == nil {
		return
	}
	if da, ok := eff.(depthApplier); ok {
		da.applyAt(ctx, b, depth)
		return
	}
	eff.Apply(ctx, b)
}

func depthExceeded(ctx *Context, depth int) bool {
	limit := conditions.DefaultMaxDepth
	if ctx.Env != nil && ctx.Env.MaxDepth > 0 {
		limit = ctx.Env.MaxDepth
	}
	if depth > limit {
		ctx.logger().Warn("effect nesting depth limit exceeded",
			zap.Int("depth", depth),
			zap.Int("limit", limit))
		return true
	}
	return false
}
