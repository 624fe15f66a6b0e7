// Package ecs implements the entity-component store the rules engine runs on.
// Entities are opaque integer handles; all state lives in named components
// attached to entities. Components are registered either with a schema
// (generic, map-backed field access) or with a typed prototype (struct-backed
// field access via reflection).
package ecs

import (
	"encoding/gob"
	"fmt"
	"sort"
)

// Entity is an opaque handle into the store. The zero value None is never a
// valid entity.
type Entity int

// None is the absent-entity sentinel.
const None Entity = 0

// Store owns all entity and component data. It is not safe for concurrent
// use; the engine contract is single-threaded (one in-flight action at a
// time).
type Store struct {
	nextEntity Entity
	entities   map[Entity]struct{}
	pools      map[string]*componentPool
	order      []string
}

type componentPool struct {
	name     string
	values   map[Entity]any
	schema   *Schema
	accessor accessor
}

// NewStore creates an empty store. Entity handles start at 1.
func NewStore() *Store {
	return &Store{
		nextEntity: 1,
		entities:   make(map[Entity]struct{}),
		pools:      make(map[string]*componentPool),
	}
}

// CreateEntity allocates a fresh entity handle.
func (s *Store) CreateEntity() Entity {
	e := s.nextEntity
	s.nextEntity++
	s.entities[e] = struct{}{}
	return e
}

// EntityExists reports whether the handle refers to a live entity.
func (s *Store) EntityExists(e Entity) bool {
	_, ok := s.entities[e]
	return ok
}

// AllEntities returns every live entity in ascending handle order.
func (s *Store) AllEntities() []Entity {
	out := make([]Entity, 0, len(s.entities))
	for e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DestroyEntity removes an entity and all components attached to it.
func (s *Store) DestroyEntity(e Entity) {
	delete(s.entities, e)
	for _, pool := range s.pools {
		delete(pool.values, e)
	}
}

// RegisterComponent registers a statically typed component. The prototype
// fixes the component's Go type; field access goes through reflection over
// its exported fields. The prototype is also registered with gob so the
// component survives snapshots.
func (s *Store) RegisterComponent(name string, prototype any) error {
	if name == "" {
		return fmt.Errorf("register component: empty name")
	}
	if _, exists := s.pools[name]; exists {
		return fmt.Errorf("register component: %q already registered", name)
	}
	if prototype != nil {
		gob.Register(prototype)
	}
	s.pools[name] = &componentPool{
		name:     name,
		values:   make(map[Entity]any),
		accessor: newStaticAccessor(prototype),
	}
	s.order = append(s.order, name)
	return nil
}

// RegisterComponentWithSchema registers a schema-described component. Values
// are map-backed; field access is validated against the schema.
func (s *Store) RegisterComponentWithSchema(schema Schema) error {
	if schema.ComponentName == "" {
		return fmt.Errorf("register component: empty name")
	}
	if _, exists := s.pools[schema.ComponentName]; exists {
		return fmt.Errorf("register component: %q already registered", schema.ComponentName)
	}
	sc := schema
	s.pools[schema.ComponentName] = &componentPool{
		name:     schema.ComponentName,
		values:   make(map[Entity]any),
		schema:   &sc,
		accessor: &schemaAccessor{schema: &sc},
	}
	s.order = append(s.order, schema.ComponentName)
	return nil
}

// Registered reports whether a component name is known to the store.
func (s *Store) Registered(name string) bool {
	_, ok := s.pools[name]
	return ok
}

// SchemaOf returns the schema of a component, if it was registered with one.
func (s *Store) SchemaOf(name string) (Schema, bool) {
	pool, ok := s.pools[name]
	if !ok || pool.schema == nil {
		return Schema{}, false
	}
	return *pool.schema, true
}

// NewComponent builds a fresh component value: schema components get a map
// populated with field defaults, typed components get their prototype's zero
// value.
func (s *Store) NewComponent(name string) (any, bool) {
	pool, ok := s.pools[name]
	if !ok {
		return nil, false
	}
	if pool.schema != nil {
		v := make(map[string]any, len(pool.schema.Fields))
		for _, f := range pool.schema.Fields {
			if f.DefaultValue != nil {
				v[f.Name] = f.DefaultValue
			}
		}
		return v, true
	}
	return pool.accessor.zero(), true
}

// AddComponent attaches (or replaces) a component value on an entity.
func (s *Store) AddComponent(name string, e Entity, value any) error {
	pool, ok := s.pools[name]
	if !ok {
		return fmt.Errorf("add component: %q not registered", name)
	}
	if !s.EntityExists(e) {
		return fmt.Errorf("add component %q: entity %d does not exist", name, e)
	}
	pool.values[e] = value
	return nil
}

// RemoveComponent detaches a component from an entity, if present.
func (s *Store) RemoveComponent(name string, e Entity) {
	if pool, ok := s.pools[name]; ok {
		delete(pool.values, e)
	}
}

// Component returns the raw component value attached to an entity.
func (s *Store) Component(name string, e Entity) (any, bool) {
	pool, ok := s.pools[name]
	if !ok {
		return nil, false
	}
	v, ok := pool.values[e]
	return v, ok
}

// HasComponent reports whether the entity carries the named component.
func (s *Store) HasComponent(name string, e Entity) bool {
	pool, ok := s.pools[name]
	if !ok {
		return false
	}
	_, ok = pool.values[e]
	return ok
}

// EntitiesWith returns all entities carrying the named component, in
// ascending handle order.
func (s *Store) EntitiesWith(name string) []Entity {
	pool, ok := s.pools[name]
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(pool.values))
	for e := range pool.values {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Field reads a single field of a component by name, going through the
// accessor selected at registration time. Missing entity, component, or
// field all report !ok rather than failing.
func (s *Store) Field(name string, e Entity, field string) (any, bool) {
	pool, ok := s.pools[name]
	if !ok {
		return nil, false
	}
	v, ok := pool.values[e]
	if !ok {
		return nil, false
	}
	return pool.accessor.get(v, field)
}

// SetField writes a single field of a component by name. The write is
// refused (returning false) when the entity or component is missing, the
// field is unknown, or the value's runtime type does not match the field.
func (s *Store) SetField(name string, e Entity, field string, value any) bool {
	pool, ok := s.pools[name]
	if !ok {
		return false
	}
	v, ok := pool.values[e]
	if !ok {
		return false
	}
	updated, ok := pool.accessor.set(v, field, value)
	if !ok {
		return false
	}
	pool.values[e] = updated
	return true
}

// ComponentAs returns a component value asserted to a concrete type.
func ComponentAs[T any](s *Store, name string, e Entity) (T, bool) {
	var zero T
	v, ok := s.Component(name, e)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(Entity(0))
}
