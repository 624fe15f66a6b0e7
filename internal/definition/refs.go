package definition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tableforge/engine-go/internal/ecs"
	"github.com/tableforge/engine-go/internal/game/conditions"
)

// Catalog maps the definition's symbolic names to the entities the builder
// created. Compiled conditions and effects hold resolved handles; the
// catalog is only needed while compiling.
type Catalog struct {
	Players []ecs.Entity
	zones   map[string]ecs.Entity
}

func newCatalog(playerCount int) *Catalog {
	return &Catalog{
		Players: make([]ecs.Entity, 0, playerCount),
		zones:   make(map[string]ecs.Entity),
	}
}

func zoneKey(name string, seat int) string {
	if seat < 0 {
		return name
	}
	return name + "#" + strconv.Itoa(seat)
}

func (c *Catalog) addZone(name string, seat int, e ecs.Entity) {
	c.zones[zoneKey(name, seat)] = e
}

// Zone resolves a zone by definition name. Shared zones use seat -1;
// per-player zones use the owner's seat index.
func (c *Catalog) Zone(name string, seat int) (ecs.Entity, bool) {
	e, ok := c.zones[zoneKey(name, seat)]
	return e, ok
}

// resolveRef parses an entity reference string:
//
//	actor          the acting entity
//	target         first bound target
//	target:N       nth bound target
//	player:N       player at seat N
//	zone:NAME       shared zone NAME
//	zone:NAME:N     per-player zone NAME of seat N
//	zone:NAME:actor the acting player's zone NAME
func (c *Catalog) resolveRef(ref string) (conditions.EntityRef, error) {
	switch {
	case ref == "" || ref == "actor":
		return conditions.Actor(), nil
	case ref == "target":
		return conditions.Target(0), nil
	case strings.HasPrefix(ref, "target:"):
		n, err := strconv.Atoi(strings.TrimPrefix(ref, "target:"))
		if err != nil {
			return conditions.EntityRef{}, fmt.Errorf("entity ref %q: %w", ref, err)
		}
		return conditions.Target(n), nil
	case strings.HasPrefix(ref, "player:"):
		n, err := strconv.Atoi(strings.TrimPrefix(ref, "player:"))
		if err != nil {
			return conditions.EntityRef{}, fmt.Errorf("entity ref %q: %w", ref, err)
		}
		if n < 0 || n >= len(c.Players) {
			return conditions.EntityRef{}, fmt.Errorf("entity ref %q: seat out of range", ref)
		}
		return conditions.Literal(c.Players[n]), nil
	case strings.HasPrefix(ref, "zone:"):
		rest := strings.TrimPrefix(ref, "zone:")
		if name, ok := strings.CutSuffix(rest, ":actor"); ok {
			return conditions.OwnedZone(name), nil
		}
		name, seat := rest, -1
		if idx := strings.LastIndex(rest, ":"); idx >= 0 {
			if n, err := strconv.Atoi(rest[idx+1:]); err == nil {
				name, seat = rest[:idx], n
			}
		}
		z, ok := c.Zone(name, seat)
		if !ok {
			return conditions.EntityRef{}, fmt.Errorf("entity ref %q: unknown zone", ref)
		}
		return conditions.Literal(z), nil
	}
	return conditions.EntityRef{}, fmt.Errorf("entity ref %q: unknown form", ref)
}
