package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game"
	"github.com/tableforge/engine-go/internal/game/conditions"
	"github.com/tableforge/engine-go/internal/game/rules"
)

const duelJSON = `{
  "name": "Test Duel",
  "playerCount": 2,
  "components": {
    "stats": {
      "properties": {
        "health": {"type": "number", "default": 10},
        "energy": {"type": "number", "default": 2}
      }
    },
    "card": {
      "properties": {
        "name": {"type": "string"}
      }
    }
  },
  "zones": {
    "deck": {"visibility": "private", "ordered": true},
    "pot":  {"visibility": "public", "shared": true}
  },
  "templates": {
    "player": {"stats": {"health": 10, "energy": 2}},
    "pebble": {"card": {"name": "Pebble"}}
  },
  "setup": [
    {"template": "pebble", "zone": "deck", "count": 3, "perPlayer": true}
  ],
  "actions": {
    "strike": {
      "targetCount": 1,
      "preconditions": [
        {"type": "hasComponent", "entity": "target", "component": "stats"},
        {"type": "compare", "entity": "actor", "component": "stats", "field": "energy", "operator": "gte", "value": 1}
      ],
      "costs": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "energy", "op": "subtract", "amount": 1}
      ],
      "effects": [
        {"type": "modifyNumber", "entity": "target", "component": "stats", "field": "health", "op": "subtract", "amount": 2}
      ]
    },
    "rest": {
      "effects": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "energy", "op": "add", "amount": 1}
      ]
    }
  },
  "phases": {
    "main": {"allowedActions": ["strike", "rest"], "nextPhase": "main"}
  },
  "initialPhase": "main",
  "rules": [
    {
      "id": "rest-bonus",
      "trigger": {"eventType": "ACTION_PERFORMED", "filters": {"action": "rest"}},
      "effects": [
        {"type": "modifyNumber", "entity": "actor", "component": "stats", "field": "health", "op": "add", "amount": 1}
      ]
    }
  ],
  "health": {"component": "stats", "field": "health"}
}`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(duelJSON))
	require.NoError(t, err)
	assert.Equal(t, "Test Duel", def.Name)
	assert.Equal(t, 2, def.PlayerCount)
	assert.Len(t, def.Actions, 2)
	assert.Len(t, def.Rules, 1)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte("{"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *GameDefinition {
		def, err := Parse([]byte(duelJSON))
		require.NoError(t, err)
		return def
	}

	t.Run("player count", func(t *testing.T) {
		def := base(t)
		def.PlayerCount = 0
		assert.Error(t, def.Validate())
	})

	t.Run("initial phase must exist", func(t *testing.T) {
		def := base(t)
		def.InitialPhase = "combat"
		assert.Error(t, def.Validate())
	})

	t.Run("next phase must exist", func(t *testing.T) {
		def := base(t)
		p := def.Phases["main"]
		p.NextPhase = "combat"
		def.Phases["main"] = p
		assert.Error(t, def.Validate())
	})

	t.Run("allowed actions must exist", func(t *testing.T) {
		def := base(t)
		p := def.Phases["main"]
		p.AllowedActions = append(p.AllowedActions, "fly")
		def.Phases["main"] = p
		assert.Error(t, def.Validate())
	})

	t.Run("setup references", func(t *testing.T) {
		def := base(t)
		def.Setup[0].Template = "boulder"
		assert.Error(t, def.Validate())
	})

	t.Run("win condition scope", func(t *testing.T) {
		def := base(t)
		def.WinConditions = []WinConditionDef{{Name: "x", Scope: "sometimes"}}
		assert.Error(t, def.Validate())
	})
}

func buildDuel(t *testing.T) (*game.Engine, *Catalog) {
	t.Helper()
	def, err := Parse([]byte(duelJSON))
	require.NoError(t, err)
	eng, cat, err := Build(def, game.Options{Seed: 1})
	require.NoError(t, err)
	return eng, cat
}

func TestBuild(t *testing.T) {
	eng, cat := buildDuel(t)

	require.Len(t, cat.Players, 2)
	assert.Len(t, eng.Players(), 2)

	t.Run("player template applied", func(t *testing.T) {
		for _, p := range cat.Players {
			v, ok := eng.Store().Field("stats", p, "health")
			require.True(t, ok)
			assert.Equal(t, float64(10), v)
		}
	})

	t.Run("zones instantiated per sharing", func(t *testing.T) {
		for seat := range cat.Players {
			z, ok := cat.Zone("deck", seat)
			require.True(t, ok)
			assert.Equal(t, 3, eng.Zones().Count(z), "setup dealt three pebbles per deck")
		}
		_, ok := cat.Zone("pot", -1)
		assert.True(t, ok)
		_, ok = cat.Zone("deck", -1)
		assert.False(t, ok, "per-player zone has no shared instance")
	})

	t.Run("phases active", func(t *testing.T) {
		assert.Equal(t, "main", eng.CurrentPhase())
	})

	t.Run("rule priority defaults", func(t *testing.T) {
		loaded := eng.Rules().Rules()
		require.Len(t, loaded, 1)
		assert.Equal(t, "rest-bonus", loaded[0].ID)
		assert.Equal(t, rules.DefaultPriority, loaded[0].Priority)
	})
}

func TestBuiltGamePlays(t *testing.T) {
	eng, cat := buildDuel(t)
	actor := eng.ActivePlayer()
	var target ecs.Entity
	for _, p := range cat.Players {
		if p != actor {
			target = p
		}
	}

	a := eng.Actions().Instantiate("strike", actor, []ecs.Entity{target})
	require.NoError(t, eng.PerformAction(a))
	v, _ := eng.Store().Field("stats", target, "health")
	assert.Equal(t, float64(8), v)

	rest := eng.Actions().Instantiate("rest", actor, nil)
	require.NoError(t, eng.PerformAction(rest))
	v, _ = eng.Store().Field("stats", actor, "energy")
	assert.Equal(t, float64(2), v, "rest restores the struck energy")
	v, _ = eng.Store().Field("stats", actor, "health")
	assert.Equal(t, float64(11), v, "rest-bonus rule fired")

	t.Run("health fallback ends the game", func(t *testing.T) {
		require.True(t, eng.Store().SetField("stats", target, "health", float64(0)))
		assert.True(t, eng.IsGameOver())
		assert.Equal(t, actor, eng.Winner())
	})
}

func TestResolveRef(t *testing.T) {
	_, cat := buildDuel(t)

	cases := []struct {
		ref  string
		kind conditions.RefKind
	}{
		{"actor", conditions.RefActor},
		{"", conditions.RefActor},
		{"target", conditions.RefTarget},
		{"target:1", conditions.RefTarget},
		{"player:0", conditions.RefLiteral},
		{"zone:pot", conditions.RefLiteral},
		{"zone:deck:0", conditions.RefLiteral},
		{"zone:deck:actor", conditions.RefOwnedZone},
	}
	for _, tc := range cases {
		ref, err := cat.resolveRef(tc.ref)
		require.NoError(t, err, "ref %q", tc.ref)
		assert.Equal(t, tc.kind, ref.Kind, "ref %q", tc.ref)
	}

	for _, bad := range []string{"player:9", "player:x", "zone:graveyard", "owner", "target:x"} {
		_, err := cat.resolveRef(bad)
		assert.Error(t, err, "ref %q", bad)
	}
}

func TestCompileWinConditionWinnerMustBeLiteral(t *testing.T) {
	_, cat := buildDuel(t)

	wc, err := CompileWinCondition(WinConditionDef{
		Name:      "pot empty",
		Scope:     "global",
		Winner:    "player:0",
		Condition: ConditionDef{Type: "entityExists", Entity: "player:0"},
	}, cat)
	require.NoError(t, err)
	assert.Equal(t, cat.Players[0], wc.Winner)

	_, err = CompileWinCondition(WinConditionDef{
		Name:      "bad winner",
		Winner:    "actor",
		Condition: ConditionDef{Type: "entityExists", Entity: "player:0"},
	}, cat)
	assert.Error(t, err)
}

func TestCompileRejectsUnknownTypes(t *testing.T) {
	_, cat := buildDuel(t)

	_, err := CompileCondition(ConditionDef{Type: "sometimes"}, cat)
	assert.Error(t, err)
	_, err = CompileEffect(EffectDef{Type: "teleport"}, cat)
	assert.Error(t, err)
	_, err = CompileEffect(EffectDef{Type: "emitEvent"}, cat)
	assert.Error(t, err, "emitEvent requires an event type")
}
