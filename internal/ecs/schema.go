package ecs

import (
	"reflect"
	"strings"
)

// FieldType enumerates the primitive types a schema field may carry.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldEntity  FieldType = "entity"
	FieldArray   FieldType = "array"
)

// FieldSchema describes one field of a schema-backed component.
type FieldSchema struct {
	Name             string
	Type             FieldType
	Optional         bool
	DefaultValue     any
	ArrayElementType FieldType
}

// Schema describes the shape of a schema-backed component.
type Schema struct {
	ComponentName string
	Fields        []FieldSchema
}

// Field looks up a field schema by name.
func (s Schema) Field(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// accessor is the per-component field access capability, selected once at
// registration time: schema-backed components validate against their schema,
// typed components reflect over struct fields.
type accessor interface {
	get(component any, field string) (any, bool)
	set(component any, field string, value any) (any, bool)
	zero() any
}

type schemaAccessor struct {
	schema *Schema
}

func (a *schemaAccessor) get(component any, field string) (any, bool) {
	m, ok := component.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, ok := a.schema.Field(field); !ok {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

func (a *schemaAccessor) set(component any, field string, value any) (any, bool) {
	m, ok := component.(map[string]any)
	if !ok {
		return nil, false
	}
	fs, ok := a.schema.Field(field)
	if !ok {
		return nil, false
	}
	if !MatchesFieldType(fs.Type, value) {
		return nil, false
	}
	m[field] = value
	return m, true
}

func (a *schemaAccessor) zero() any {
	return map[string]any{}
}

type staticAccessor struct {
	typ reflect.Type
}

func newStaticAccessor(prototype any) *staticAccessor {
	if prototype == nil {
		return &staticAccessor{}
	}
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return &staticAccessor{typ: t}
}

func (a *staticAccessor) fieldIndex(field string) (int, bool) {
	if a.typ == nil || a.typ.Kind() != reflect.Struct {
		return 0, false
	}
	for i := 0; i < a.typ.NumField(); i++ {
		f := a.typ.Field(i)
		if !f.IsExported() {
			continue
		}
		if strings.EqualFold(f.Name, field) {
			return i, true
		}
	}
	return 0, false
}

func (a *staticAccessor) get(component any, field string) (any, bool) {
	idx, ok := a.fieldIndex(field)
	if !ok {
		return nil, false
	}
	v := reflect.ValueOf(component)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Type() != a.typ {
		return nil, false
	}
	return v.Field(idx).Interface(), true
}

func (a *staticAccessor) set(component any, field string, value any) (any, bool) {
	idx, ok := a.fieldIndex(field)
	if !ok {
		return nil, false
	}
	v := reflect.ValueOf(component)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Type() != a.typ {
		return nil, false
	}
	// Components are stored by value; mutate an addressable copy.
	copied := reflect.New(a.typ).Elem()
	copied.Set(v)
	fv := copied.Field(idx)
	nv, ok := convertAssignable(value, fv.Type())
	if !ok {
		return nil, false
	}
	fv.Set(nv)
	return copied.Interface(), true
}

func (a *staticAccessor) zero() any {
	if a.typ == nil {
		return nil
	}
	return reflect.New(a.typ).Elem().Interface()
}

// convertAssignable coerces value into the target type when the conversion
// is lossless in kind (numeric to numeric, same kind otherwise).
func convertAssignable(value any, target reflect.Type) (reflect.Value, bool) {
	if value == nil {
		return reflect.Zero(target), true
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, true
	}
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if f, ok := ToFloat(value); ok {
			return reflect.ValueOf(f).Convert(target), true
		}
	}
	if v.Type().ConvertibleTo(target) && v.Kind() == target.Kind() {
		return v.Convert(target), true
	}
	return reflect.Value{}, false
}

// MatchesFieldType reports whether a runtime value is acceptable for a
// schema field type.
func MatchesFieldType(t FieldType, v any) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		if _, isEntity := v.(Entity); isEntity {
			return false
		}
		_, ok := ToFloat(v)
		return ok
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldEntity:
		switch v.(type) {
		case Entity, int, float64:
			return true
		}
		return false
	case FieldArray:
		if v == nil {
			return false
		}
		return reflect.TypeOf(v).Kind() == reflect.Slice
	}
	return false
}

// ToFloat extracts a float64 from any numeric runtime value. Entity handles
// are deliberately not numbers.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case Entity:
		return 0, false
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ToEntity extracts an entity handle from a runtime value, accepting the
// numeric encodings JSON decoding produces.
func ToEntity(v any) (Entity, bool) {
	switch n := v.(type) {
	case Entity:
		return n, true
	case int:
		return Entity(n), true
	case float64:
		return Entity(n), true
	}
	return None, false
}
