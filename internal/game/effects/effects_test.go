package effects

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/events"
	"github.com/tableforge/engine-go/internal/game/zones"
)

type effectFixture struct {
	env     *Context
	store   *ecs.Store
	zones   *zones.System
	player  ecs.Entity
	emitted []events.Event
}

func newEffectFixture(t *testing.T) *effectFixture {
	t.Helper()
	store := ecs.NewStore()
	zoneSys := zones.NewSystem(store, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, zoneSys.Register())
	require.NoError(t, store.RegisterComponentWithSchema(ecs.Schema{
		ComponentName: "stats",
		Fields: []ecs.FieldSchema{
			{Name: "health", Type: ecs.FieldNumber},
			{Name: "energy", Type: ecs.FieldNumber},
			{Name: "stance", Type: ecs.FieldString},
		},
	}))

	player := store.CreateEntity()
	require.NoError(t, store.AddComponent("stats", player, map[string]any{
		"health": float64(20),
		"energy": float64(3),
		"stance": "neutral",
	}))

	f := &effectFixture{
		store:  store,
		zones:  zoneSys,
		player: player,
	}
	f.env = &Context{
		Env:  &conditions.Env{Store: store, Zones: zoneSys},
		Emit: func(e events.Event) { f.emitted = append(f.emitted, e) },
	}
	return f
}

func (f *effectFixture) healthOf(e ecs.Entity) float64 {
	v, _ := f.store.Field("stats", e, "health")
	n, _ := ecs.ToFloat(v)
	return n
}

func TestNumberModification(t *testing.T) {
	f := newEffectFixture(t)
	b := conditions.Binding{Actor: f.player}

	NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumSubtract, Amount: 3}.Apply(f.env, b)
	assert.Equal(t, 17.0, f.healthOf(f.player))

	NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumAdd, Amount: 1}.Apply(f.env, b)
	assert.Equal(t, 18.0, f.healthOf(f.player))

	NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumSet, Amount: 5}.Apply(f.env, b)
	assert.Equal(t, 5.0, f.healthOf(f.player))

	// Subtraction may cross zero; clamping is game data's concern.
	NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumSubtract, Amount: 9}.Apply(f.env, b)
	assert.Equal(t, -4.0, f.healthOf(f.player))
}

func TestEffectsDeclineSilently(t *testing.T) {
	f := newEffectFixture(t)
	before := f.store.Checksum()

	// None of these reference resolvable data; state must be untouched.
	NumberModification{Entity: conditions.Literal(ecs.Entity(99)), Component: "stats", Field: "health", Op: NumAdd, Amount: 1}.Apply(f.env, conditions.Binding{})
	NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumAdd, Amount: 1}.Apply(f.env, conditions.Binding{})
	NumberModification{Entity: conditions.Literal(f.player), Component: "stats", Field: "stance", Op: NumAdd, Amount: 1}.Apply(f.env, conditions.Binding{})
	SetFieldValue{Entity: conditions.Literal(f.player), Component: "stats", Field: "health", Value: "full"}.Apply(f.env, conditions.Binding{})
	MoveToZone{Entity: conditions.Literal(f.player), Zone: conditions.Literal(ecs.Entity(99))}.Apply(f.env, conditions.Binding{})
	ShuffleZone{Zone: conditions.Literal(f.player)}.Apply(f.env, conditions.Binding{})

	assert.Equal(t, before, f.store.Checksum(), "declined effects must not mutate state")
	assert.Empty(t, f.emitted)
}

func TestStringModificationAllowList(t *testing.T) {
	f := newEffectFixture(t)
	b := conditions.Binding{Actor: f.player}
	stance := func() any {
		v, _ := f.store.Field("stats", f.player, "stance")
		return v
	}

	StringModification{Entity: conditions.Actor(), Component: "stats", Field: "stance", Value: "aggressive", Allowed: []string{"neutral", "aggressive"}}.Apply(f.env, b)
	assert.Equal(t, "aggressive", stance())

	StringModification{Entity: conditions.Actor(), Component: "stats", Field: "stance", Value: "berserk", Allowed: []string{"neutral", "aggressive"}}.Apply(f.env, b)
	assert.Equal(t, "aggressive", stance(), "value outside allow-list leaves field unchanged")

	StringModification{Entity: conditions.Actor(), Component: "stats", Field: "stance", Value: "defensive"}.Apply(f.env, b)
	assert.Equal(t, "defensive", stance(), "empty allow-list accepts any value")
}

func TestMoveToZoneEmitsEvent(t *testing.T) {
	f := newEffectFixture(t)
	hand := f.zones.CreateZone("hand", f.player, zones.VisibilityOwnerOnly, true)
	card := f.store.CreateEntity()

	MoveToZone{Entity: conditions.Literal(card), Zone: conditions.OwnedZone("hand"), Placement: zones.PlacementTop}.Apply(f.env, conditions.Binding{Actor: f.player})

	assert.True(t, f.zones.Contains(hand, card))
	require.Len(t, f.emitted, 1)
	assert.Equal(t, events.ZoneChanged, f.emitted[0].Type)
	assert.Equal(t, card, f.emitted[0].Data["entity"])
	assert.Equal(t, hand, f.emitted[0].Data["zone"])

	// Moving into the current zone declines and stays silent.
	f.emitted = nil
	MoveToZone{Entity: conditions.Literal(card), Zone: conditions.Literal(hand)}.Apply(f.env, conditions.Binding{})
	assert.Empty(t, f.emitted)
}

func TestShuffleZoneEmitsEvent(t *testing.T) {
	f := newEffectFixture(t)
	deck := f.zones.CreateZone("deck", ecs.None, zones.VisibilityPrivate, true)
	for i := 0; i < 5; i++ {
		f.zones.Move(f.store.CreateEntity(), deck, zones.PlacementBottom)
	}

	ShuffleZone{Zone: conditions.Literal(deck)}.Apply(f.env, conditions.Binding{})

	require.Len(t, f.emitted, 1)
	assert.Equal(t, events.ZoneShuffled, f.emitted[0].Type)
	assert.Equal(t, 5, f.zones.Count(deck))
}

func TestTransferResource(t *testing.T) {
	f := newEffectFixture(t)
	other := f.store.CreateEntity()
	require.NoError(t, f.store.AddComponent("stats", other, map[string]any{
		"health": float64(2),
		"energy": float64(0),
	}))

	t.Run("full transfer", func(t *testing.T) {
		TransferResource{From: conditions.Literal(f.player), To: conditions.Literal(other), Component: "stats", Field: "health", Amount: 5}.Apply(f.env, conditions.Binding{})
		assert.Equal(t, 15.0, f.healthOf(f.player))
		assert.Equal(t, 7.0, f.healthOf(other))
	})

	t.Run("capped at source value", func(t *testing.T) {
		TransferResource{From: conditions.Literal(other), To: conditions.Literal(f.player), Component: "stats", Field: "health", Amount: 100}.Apply(f.env, conditions.Binding{})
		assert.Equal(t, 0.0, f.healthOf(other))
		assert.Equal(t, 22.0, f.healthOf(f.player))
	})

	t.Run("empty source declines", func(t *testing.T) {
		before := f.store.Checksum()
		TransferResource{From: conditions.Literal(other), To: conditions.Literal(f.player), Component: "stats", Field: "health", Amount: 1}.Apply(f.env, conditions.Binding{})
		assert.Equal(t, before, f.store.Checksum())
	})
}

func TestEmitEvent(t *testing.T) {
	f := newEffectFixture(t)

	EmitEvent{
		EventType: "DAMAGE_DEALT",
		Data:      map[string]any{"amount": 3},
		Entities:  map[string]conditions.EntityRef{"source": conditions.Actor()},
	}.Apply(f.env, conditions.Binding{Actor: f.player})

	require.Len(t, f.emitted, 1)
	assert.Equal(t, "DAMAGE_DEALT", f.emitted[0].Type)
	assert.Equal(t, 3, f.emitted[0].Data["amount"])
	assert.Equal(t, f.player, f.emitted[0].Data["source"])

	EmitEvent{}.Apply(f.env, conditions.Binding{})
	assert.Len(t, f.emitted, 1, "empty event type declines")
}

func TestConditional(t *testing.T) {
	f := newEffectFixture(t)
	b := conditions.Binding{Actor: f.player}
	healthy := conditions.Comparison{Entity: conditions.Actor(), Component: "stats", Field: "health", Operator: conditions.OpGt, Value: 10}
	damage := NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumSubtract, Amount: 1}
	heal := NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumAdd, Amount: 1}

	Conditional{If: healthy, Then: []Effect{damage}, Else: []Effect{heal}}.Apply(f.env, b)
	assert.Equal(t, 19.0, f.healthOf(f.player), "then branch taken")

	f.store.SetField("stats", f.player, "health", float64(5))
	Conditional{If: healthy, Then: []Effect{damage}, Else: []Effect{heal}}.Apply(f.env, b)
	assert.Equal(t, 6.0, f.healthOf(f.player), "else branch taken")

	Conditional{Then: []Effect{damage}}.Apply(f.env, b)
	assert.Equal(t, 5.0, f.healthOf(f.player), "nil condition selects then")
}

func TestNestedEffectDepthLimit(t *testing.T) {
	f := newEffectFixture(t)
	b := conditions.Binding{Actor: f.player}
	damage := NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumSubtract, Amount: 1}

	// Three nested composites sit inside the default limit.
	Sequence{Effects: []Effect{
		Sequence{Effects: []Effect{
			Sequence{Effects: []Effect{damage}},
		}},
	}}.Apply(f.env, b)
	assert.Equal(t, 19.0, f.healthOf(f.player))

	// A fourth composite level is skipped entirely.
	Sequence{Effects: []Effect{
		Sequence{Effects: []Effect{
			Sequence{Effects: []Effect{
				Sequence{Effects: []Effect{damage}},
			}},
		}},
	}}.Apply(f.env, b)
	assert.Equal(t, 19.0, f.healthOf(f.player), "effects past the depth limit are skipped")
}

func TestApplyAllOrder(t *testing.T) {
	f := newEffectFixture(t)
	b := conditions.Binding{Actor: f.player}

	ApplyAll([]Effect{
		NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumSet, Amount: 10},
		NumberModification{Entity: conditions.Actor(), Component: "stats", Field: "health", Op: NumAdd, Amount: 2},
		nil,
	}, f.env, b)
	assert.Equal(t, 12.0, f.healthOf(f.player))
}
