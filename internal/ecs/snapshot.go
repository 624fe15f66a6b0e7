package ecs

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
)

// storeSnapshot is the gob wire form of a store. Component pools must be
// re-registered (same names, same prototypes) before Restore.
type storeSnapshot struct {
	NextEntity Entity
	Entities   []Entity
	Components map[string]map[Entity]any
}

// Snapshot serializes the full store state into an opaque byte slice.
func (s *Store) Snapshot() ([]byte, error) {
	snap := storeSnapshot{
		NextEntity: s.nextEntity,
		Entities:   s.AllEntities(),
		Components: make(map[string]map[Entity]any, len(s.pools)),
	}
	for name, pool := range s.pools {
		values := make(map[Entity]any, len(pool.values))
		for e, v := range pool.values {
			values[e] = v
		}
		snap.Components[name] = values
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore replaces the store's contents with a previously taken snapshot.
func (s *Store) Restore(data []byte) error {
	var snap storeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("restore store: %w", err)
	}
	s.nextEntity = snap.NextEntity
	s.entities = make(map[Entity]struct{}, len(snap.Entities))
	for _, e := range snap.Entities {
		s.entities[e] = struct{}{}
	}
	for name, pool := range s.pools {
		values := snap.Components[name]
		pool.values = make(map[Entity]any, len(values))
		for e, v := range values {
			pool.values[e] = v
		}
	}
	return nil
}

// Checksum computes a deterministic SHA-256 over the store contents,
// independent of map iteration order. Two stores holding the same entities
// and component values produce the same checksum, which guards against
// divergent states across snapshot/restore cycles.
func (s *Store) Checksum() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "NEXT:%d\n", s.nextEntity)
	for _, e := range s.AllEntities() {
		fmt.Fprintf(&buf, "ENTITY:%d\n", e)
	}
	names := make([]string, 0, len(s.pools))
	for name := range s.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pool := s.pools[name]
		for _, e := range s.EntitiesWith(name) {
			fmt.Fprintf(&buf, "COMPONENT:%s|%d|%s\n", name, e, canonical(pool.values[e]))
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// canonical renders a component value as a stable string. Map-backed values
// are printed with sorted keys; struct values print in field order.
func canonical(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Sprintf("%+v", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%s=%v", k, m[k])
	}
	buf.WriteByte('}')
	return buf.String()
}
