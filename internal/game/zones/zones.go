// Package zones maintains entity-to-zone assignment and intra-zone ordering.
// Zones are themselves entities carrying a zone component; membership is
// recorded on the member entities via a location component and derived by
// scanning, never stored on the zone.
package zones

import (
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tableforge/engine-go/internal/ecs"
)

// Component names used by the zone system.
const (
	ComponentZone     = "zone"
	ComponentLocation = "location"
)

// Visibility controls who may see a zone's contents.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityOwnerOnly Visibility = "ownerOnly"
)

// Placement selects where a moved entity lands in an ordered zone.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
)

// ZoneComponent marks an entity as a zone and carries its metadata.
type ZoneComponent struct {
	Name       string
	Owner      ecs.Entity
	Visibility Visibility
	Ordered    bool
}

// LocationComponent records which zone an entity occupies and its position
// within that zone. SortIndex is meaningful only in ordered zones.
type LocationComponent struct {
	Zone      ecs.Entity
	SortIndex int
}

// System implements zone membership, ordering, shuffling, and movement on
// top of the component store.
type System struct {
	store *ecs.Store
	rng   *rand.Rand
	log   *zap.Logger
}

// NewSystem creates a zone system bound to a store. A nil rng gets a
// time-seeded source; a nil logger is replaced with a no-op logger.
func NewSystem(store *ecs.Store, rng *rand.Rand, logger *zap.Logger) *System {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{store: store, rng: rng, log: logger}
}

// Register registers the zone and location components on the store. Must be
// called once before any zone operation.
func (s *System) Register() error {
	if err := s.store.RegisterComponent(ComponentZone, ZoneComponent{}); err != nil {
		return err
	}
	return s.store.RegisterComponent(ComponentLocation, LocationComponent{})
}

// CreateZone creates a zone entity with the given metadata.
func (s *System) CreateZone(name string, owner ecs.Entity, visibility Visibility, ordered bool) ecs.Entity {
	e := s.store.CreateEntity()
	_ = s.store.AddComponent(ComponentZone, e, ZoneComponent{
		Name:       name,
		Owner:      owner,
		Visibility: visibility,
		Ordered:    ordered,
	})
	return e
}

// IsZone reports whether the entity carries a zone component.
func (s *System) IsZone(e ecs.Entity) bool {
	return s.store.HasComponent(ComponentZone, e)
}

// Zone returns the zone component of an entity.
func (s *System) Zone(e ecs.Entity) (ZoneComponent, bool) {
	return ecs.ComponentAs[ZoneComponent](s.store, ComponentZone, e)
}

// Location returns the location component of an entity.
func (s *System) Location(e ecs.Entity) (LocationComponent, bool) {
	return ecs.ComponentAs[LocationComponent](s.store, ComponentLocation, e)
}

// FindZone returns the zone entity with the given name and owner.
func (s *System) FindZone(name string, owner ecs.Entity) (ecs.Entity, bool) {
	for _, e := range s.store.EntitiesWith(ComponentZone) {
		zc, ok := s.Zone(e)
		if ok && zc.Name == name && zc.Owner == owner {
			return e, true
		}
	}
	return ecs.None, false
}

// EntitiesIn returns the entities currently located in the zone, derived by
// scanning all location components. For ordered zones the result is sorted
// ascending by sort index; unordered zones return store-iteration order.
func (s *System) EntitiesIn(zone ecs.Entity) []ecs.Entity {
	var members []ecs.Entity
	for _, e := range s.store.EntitiesWith(ComponentLocation) {
		loc, ok := s.Location(e)
		if ok && loc.Zone == zone {
			members = append(members, e)
		}
	}
	zc, ok := s.Zone(zone)
	if ok && zc.Ordered {
		sort.SliceStable(members, func(i, j int) bool {
			li, _ := s.Location(members[i])
			lj, _ := s.Location(members[j])
			return li.SortIndex < lj.SortIndex
		})
	}
	return members
}

// Count returns the number of entities in the zone.
func (s *System) Count(zone ecs.Entity) int {
	n := 0
	for _, e := range s.store.EntitiesWith(ComponentLocation) {
		if loc, ok := s.Location(e); ok && loc.Zone == zone {
			n++
		}
	}
	return n
}

// Contains reports whether the entity is currently located in the zone.
func (s *System) Contains(zone, e ecs.Entity) bool {
	loc, ok := s.Location(e)
	return ok && loc.Zone == zone
}

// Shuffle applies a uniform random permutation to the zone's members and
// reassigns sort indexes to match the permuted order.
func (s *System) Shuffle(zone ecs.Entity) {
	members := s.EntitiesIn(zone)
	s.ShuffleEntities(members)
	for i, e := range members {
		s.setSortIndex(e, i)
	}
}

// ShuffleEntities permutes a slice of entities in place with a Fisher-Yates
// shuffle. Also used outside zones, e.g. for player-order randomization.
func (s *System) ShuffleEntities(list []ecs.Entity) {
	for i := len(list) - 1; i >= 1; i-- {
		j := s.rng.Intn(i + 1)
		list[i], list[j] = list[j], list[i]
	}
}

// Organize reassigns the zone members' sort indexes to a dense 0..n-1
// sequence in current order and returns the member count. The returned
// count is the next free index at the tail.
func (s *System) Organize(zone ecs.Entity) int {
	members := s.EntitiesIn(zone)
	for i, e := range members {
		s.setSortIndex(e, i)
	}
	return len(members)
}

// Offset densifies the zone's sort indexes and then shifts every member by
// delta, making room at the head for top insertion.
func (s *System) Offset(zone ecs.Entity, delta int) {
	members := s.EntitiesIn(zone)
	for i, e := range members {
		s.setSortIndex(e, i+delta)
	}
}

// Move relocates an entity into a destination zone. It is a no-op when the
// destination is not a zone or the entity already sits there. Ordered
// destinations honor the placement; unordered destinations assign index 0.
func (s *System) Move(e, dest ecs.Entity, placement Placement) bool {
	if !s.IsZone(dest) {
		return false
	}
	if s.Contains(dest, e) {
		return false
	}
	zc, _ := s.Zone(dest)
	idx := 0
	if zc.Ordered {
		switch placement {
		case PlacementBottom:
			idx = s.Organize(dest)
		default:
			s.Offset(dest, 1)
			idx = 0
		}
	}
	loc := LocationComponent{Zone: dest, SortIndex: idx}
	if err := s.store.AddComponent(ComponentLocation, e, loc); err != nil {
		s.log.Warn("move into zone failed",
			zap.Int("entity", int(e)),
			zap.Int("zone", int(dest)),
			zap.Error(err))
		return false
	}
	return true
}

func (s *System) setSortIndex(e ecs.Entity, idx int) {
	loc, ok := s.Location(e)
	if !ok {
		return
	}
	loc.SortIndex = idx
	_ = s.store.AddComponent(ComponentLocation, e, loc)
}
