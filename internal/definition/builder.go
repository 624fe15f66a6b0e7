package definition

import (
	"fmt"
	"sort"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game"
	"github.com/tableforge/engine-go/internal/game/zones"
)

// playerTemplate, when declared, is applied to every player entity the
// builder creates.
const playerTemplate = "player"

// Build instantiates a game definition into a ready-to-play engine:
// components registered, zones and players created, setup entities dealt,
// and the action/phase/rule/win-condition catalogs compiled and loaded.
// The returned catalog maps definition names to the created entities.
func Build(def *GameDefinition, opts game.Options) (*game.Engine, *Catalog, error) {
	eng, err := game.New(opts)
	if err != nil {
		return nil, nil, err
	}
	store := eng.Store()

	for _, name := range sortedKeys(def.Components) {
		comp := def.Components[name]
		schema := ecs.Schema{ComponentName: name}
		for _, prop := range sortedKeys(comp.Properties) {
			p := comp.Properties[prop]
			schema.Fields = append(schema.Fields, ecs.FieldSchema{
				Name:         prop,
				Type:         ecs.FieldType(p.Type),
				Optional:     p.Optional,
				DefaultValue: p.Default,
			})
		}
		if err := store.RegisterComponentWithSchema(schema); err != nil {
			return nil, nil, fmt.Errorf("build game: %w", err)
		}
	}

	cat := newCatalog(def.PlayerCount)
	for i := 0; i < def.PlayerCount; i++ {
		p := store.CreateEntity()
		cat.Players = append(cat.Players, p)
		eng.AddPlayer(p)
		if tmpl, ok := def.Templates[playerTemplate]; ok {
			if err := applyTemplate(store, p, tmpl); err != nil {
				return nil, nil, fmt.Errorf("build game: player %d: %w", i, err)
			}
		}
	}

	for _, name := range sortedKeys(def.Zones) {
		z := def.Zones[name]
		vis := zones.Visibility(z.Visibility)
		if vis == "" {
			vis = zones.VisibilityPublic
		}
		if z.Shared {
			e := eng.Zones().CreateZone(name, ecs.None, vis, z.Ordered)
			cat.addZone(name, -1, e)
			continue
		}
		for seat, p := range cat.Players {
			e := eng.Zones().CreateZone(name, p, vis, z.Ordered)
			cat.addZone(name, seat, e)
		}
	}

	for i, spawn := range def.Setup {
		if err := runSpawn(eng, cat, def, spawn); err != nil {
			return nil, nil, fmt.Errorf("build game: setup[%d]: %w", i, err)
		}
	}

	for _, actionType := range sortedKeys(def.Actions) {
		compiled, err := CompileAction(actionType, def.Actions[actionType], cat)
		if err != nil {
			return nil, nil, fmt.Errorf("build game: %w", err)
		}
		if err := eng.Actions().Register(compiled); err != nil {
			return nil, nil, fmt.Errorf("build game: %w", err)
		}
	}

	if len(def.Phases) > 0 {
		if err := eng.SetPhases(CompilePhases(def.Phases), def.InitialPhase); err != nil {
			return nil, nil, fmt.Errorf("build game: %w", err)
		}
	}

	for _, ruleDef := range def.Rules {
		compiled, err := CompileRule(ruleDef, cat)
		if err != nil {
			return nil, nil, fmt.Errorf("build game: %w", err)
		}
		eng.Rules().AddRule(compiled)
	}

	if len(def.WinConditions) > 0 {
		wcs := make([]game.WinCondition, 0, len(def.WinConditions))
		for _, wcDef := range def.WinConditions {
			wc, err := CompileWinCondition(wcDef, cat)
			if err != nil {
				return nil, nil, fmt.Errorf("build game: %w", err)
			}
			wcs = append(wcs, wc)
		}
		eng.SetWinConditions(wcs)
	}
	if def.Health != nil {
		eng.SetHealthResource(def.Health.Component, def.Health.Field)
	}

	eng.ShufflePlayerOrder()
	return eng, cat, nil
}

func runSpawn(eng *game.Engine, cat *Catalog, def *GameDefinition, spawn SpawnDef) error {
	tmpl := def.Templates[spawn.Template]
	count := spawn.Count
	if count <= 0 {
		count = 1
	}
	seats := []int{-1}
	if spawn.PerPlayer {
		seats = seats[:0]
		for seat := range cat.Players {
			seats = append(seats, seat)
		}
	}
	for _, seat := range seats {
		zone, ok := cat.Zone(spawn.Zone, seat)
		if !ok && seat >= 0 {
			// Per-player spawn into a shared zone.
			zone, ok = cat.Zone(spawn.Zone, -1)
		}
		if !ok && seat < 0 {
			return fmt.Errorf("zone %q is per-player; use perPlayer spawn", spawn.Zone)
		}
		if !ok {
			return fmt.Errorf("zone %q not found", spawn.Zone)
		}
		for i := 0; i < count; i++ {
			e := eng.Store().CreateEntity()
			if err := applyTemplate(eng.Store(), e, tmpl); err != nil {
				return err
			}
			eng.Zones().Move(e, zone, zones.PlacementBottom)
		}
	}
	return nil
}

func applyTemplate(store *ecs.Store, e ecs.Entity, tmpl TemplateDef) error {
	for _, comp := range sortedKeys(tmpl) {
		if !store.Registered(comp) {
			return fmt.Errorf("template references unregistered component %q", comp)
		}
		value, _ := store.NewComponent(comp)
		if m, ok := value.(map[string]any); ok {
			for field, v := range tmpl[comp] {
				m[field] = v
			}
		}
		if err := store.AddComponent(comp, e, value); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
