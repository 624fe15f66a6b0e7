package zones

import (
	"math/rand"
	"testing"

	"github.com/tableforge/engine-go/internal/ecs"
)

func newTestSystem(t *testing.T, seed int64) (*System, *ecs.Store) {
	t.Helper()
	store := ecs.NewStore()
	sys := NewSystem(store, rand.New(rand.NewSource(seed)), nil)
	if err := sys.Register(); err != nil {
		t.Fatalf("Failed to register zone components: %v", err)
	}
	return sys, store
}

func TestCreateZoneAndLookup(t *testing.T) {
	sys, store := newTestSystem(t, 1)
	owner := store.CreateEntity()
	deck := sys.CreateZone("deck", owner, VisibilityPrivate, true)

	if !sys.IsZone(deck) {
		t.Error("Expected created zone to be a zone")
	}
	zc, ok := sys.Zone(deck)
	if !ok {
		t.Fatal("Expected zone component")
	}
	if zc.Name != "deck" || zc.Owner != owner || !zc.Ordered {
		t.Errorf("Unexpected zone component: %+v", zc)
	}

	found, ok := sys.FindZone("deck", owner)
	if !ok || found != deck {
		t.Errorf("Expected FindZone to return %d, got %d (ok=%v)", deck, found, ok)
	}
	if _, ok := sys.FindZone("deck", ecs.None); ok {
		t.Error("Expected no shared deck zone")
	}
}

func TestMoveOrderedPlacement(t *testing.T) {
	sys, store := newTestSystem(t, 1)
	deck := sys.CreateZone("deck", ecs.None, VisibilityPrivate, true)

	a := store.CreateEntity()
	b := store.CreateEntity()
	c := store.CreateEntity()

	sys.Move(a, deck, PlacementBottom)
	sys.Move(b, deck, PlacementBottom)
	sys.Move(c, deck, PlacementTop)

	got := sys.EntitiesIn(deck)
	want := []ecs.Entity{c, a, b}
	if len(got) != len(want) {
		t.Fatalf("Expected %d members, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected entity %d, got %d", i, want[i], got[i])
		}
	}
	if sys.Count(deck) != 3 {
		t.Errorf("Expected count 3, got %d", sys.Count(deck))
	}
}

func TestMoveBetweenZones(t *testing.T) {
	sys, store := newTestSystem(t, 1)
	deck := sys.CreateZone("deck", ecs.None, VisibilityPrivate, true)
	hand := sys.CreateZone("hand", ecs.None, VisibilityOwnerOnly, true)

	card := store.CreateEntity()
	if !sys.Move(card, deck, PlacementBottom) {
		t.Fatal("Expected move into deck to succeed")
	}
	if !sys.Move(card, hand, PlacementTop) {
		t.Fatal("Expected move into hand to succeed")
	}

	if sys.Contains(deck, card) {
		t.Error("Expected card to have left the deck")
	}
	if !sys.Contains(hand, card) {
		t.Error("Expected card in hand")
	}
	if sys.Count(deck) != 0 {
		t.Errorf("Expected empty deck, got %d members", sys.Count(deck))
	}
}

func TestMoveNoOps(t *testing.T) {
	sys, store := newTestSystem(t, 1)
	deck := sys.CreateZone("deck", ecs.None, VisibilityPrivate, true)
	card := store.CreateEntity()
	notAZone := store.CreateEntity()

	if sys.Move(card, notAZone, PlacementTop) {
		t.Error("Expected move into a non-zone to be refused")
	}

	sys.Move(card, deck, PlacementBottom)
	loc, _ := sys.Location(card)
	if sys.Move(card, deck, PlacementTop) {
		t.Error("Expected move into current zone to be a no-op")
	}
	after, _ := sys.Location(card)
	if after != loc {
		t.Errorf("Expected location unchanged, got %+v then %+v", loc, after)
	}
}

func TestUnorderedZoneIgnoresPlacement(t *testing.T) {
	sys, store := newTestSystem(t, 1)
	arena := sys.CreateZone("arena", ecs.None, VisibilityPublic, false)

	a := store.CreateEntity()
	b := store.CreateEntity()
	sys.Move(a, arena, PlacementTop)
	sys.Move(b, arena, PlacementTop)

	la, _ := sys.Location(a)
	lb, _ := sys.Location(b)
	if la.SortIndex != 0 || lb.SortIndex != 0 {
		t.Errorf("Expected index 0 in unordered zone, got %d and %d", la.SortIndex, lb.SortIndex)
	}
	if sys.Count(arena) != 2 {
		t.Errorf("Expected 2 members, got %d", sys.Count(arena))
	}
}

func TestShufflePreservesMembership(t *testing.T) {
	sys, store := newTestSystem(t, 99)
	deck := sys.CreateZone("deck", ecs.None, VisibilityPrivate, true)

	var cards []ecs.Entity
	for i := 0; i < 10; i++ {
		c := store.CreateEntity()
		sys.Move(c, deck, PlacementBottom)
		cards = append(cards, c)
	}

	sys.Shuffle(deck)

	got := sys.EntitiesIn(deck)
	if len(got) != len(cards) {
		t.Fatalf("Expected %d members after shuffle, got %d", len(cards), len(got))
	}
	seen := make(map[ecs.Entity]bool)
	for _, e := range got {
		if seen[e] {
			t.Errorf("Entity %d appears twice after shuffle", e)
		}
		seen[e] = true
	}
	for _, c := range cards {
		if !seen[c] {
			t.Errorf("Entity %d lost in shuffle", c)
		}
	}

	// Indexes are dense 0..n-1 after a shuffle.
	for i, e := range got {
		loc, _ := sys.Location(e)
		if loc.SortIndex != i {
			t.Errorf("Expected dense index %d, got %d", i, loc.SortIndex)
		}
	}
}

func TestShuffleIsSeedDeterministic(t *testing.T) {
	order := func(seed int64) []ecs.Entity {
		sys, store := newTestSystem(t, seed)
		deck := sys.CreateZone("deck", ecs.None, VisibilityPrivate, true)
		for i := 0; i < 8; i++ {
			sys.Move(store.CreateEntity(), deck, PlacementBottom)
		}
		sys.Shuffle(deck)
		return sys.EntitiesIn(deck)
	}

	a := order(7)
	b := order(7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical order for identical seeds, diverged at %d", i)
		}
	}
}
