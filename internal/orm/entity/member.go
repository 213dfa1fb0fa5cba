package entity

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// MemberKey is the stable identity of a property: the field index path
// relative to the entity type, e.g. "2" or "0.1" for a promoted field.
type MemberKey string

// keyOf renders an index path as a MemberKey
func keyOf(index []int) MemberKey {
	parts := make([]string, len(index))
	for i, x := range index {
		parts[i] = strconv.Itoa(x)
	}
	return MemberKey(strings.Join(parts, "."))
}

// Property is a struct field as reflected on the entity type
type Property struct {
	Name  string
	Type  reflect.Type
	Index []int // path from the entity type, including embedded structs
}

// PropertyOf looks up the named field (including promoted fields) on an entity type
func PropertyOf(entityType reflect.Type, name string) (Property, error) {
	t := indirect(entityType)
	if t == nil || t.Kind() != reflect.Struct {
		return Property{}, fmt.Errorf("%w: %v is not a struct type", ErrInvalidDefinition, entityType)
	}
	sf, ok := t.FieldByName(name)
	if !ok {
		return Property{}, fmt.Errorf("%w: type %s has no field %s", ErrInvalidDefinition, t.Name(), name)
	}
	return propertyFromField(sf), nil
}

func propertyFromField(sf reflect.StructField) Property {
	index := make([]int, len(sf.Index))
	copy(index, sf.Index)
	return Property{Name: sf.Name, Type: sf.Type, Index: index}
}

// Key returns the property's identity key
func (p Property) Key() MemberKey {
	return keyOf(p.Index)
}

// Member is a reflected member token: a name observed on some owner type.
// The owner may be the entity type itself, a struct the entity embeds, a
// struct embedding the entity, or an interface the entity implements.
type Member struct {
	Owner reflect.Type
	Name  string
}

// MemberOf creates a member token
func MemberOf(owner reflect.Type, name string) Member {
	return Member{Owner: owner, Name: name}
}

// String returns "Owner.Name"
func (m Member) String() string {
	if m.Owner == nil {
		return m.Name
	}
	return TypeName(m.Owner) + "." + m.Name
}

// ReflectedOn normalizes the member to the key of the same logical property
// as reflected on entityType. It reports false when the member does not
// denote a field of entityType.
func (m Member) ReflectedOn(entityType reflect.Type) (MemberKey, bool) {
	entity := indirect(entityType)
	owner := indirect(m.Owner)
	if entity == nil || owner == nil || entity.Kind() != reflect.Struct || m.Name == "" {
		return "", false
	}

	switch {
	case owner == entity:
		sf, ok := entity.FieldByName(m.Name)
		if !ok {
			return "", false
		}
		return keyOf(sf.Index), true

	case owner.Kind() == reflect.Interface:
		return interfaceMemberKey(entity, owner, m.Name)

	case owner.Kind() == reflect.Struct:
		if path, ok := embedPath(owner, entity); ok {
			return derivedMemberKey(owner, path, m.Name)
		}
		if _, ok := embedPath(entity, owner); ok {
			return baseMemberKey(entity, owner, m.Name)
		}
	}

	return "", false
}

// interfaceMemberKey maps an interface method to the field it exposes. A Go
// type cannot declare a field and a method with the same name at the same
// depth, so getters follow the GetX convention; a bare X is also accepted
// for fields promoted from an embedded struct.
func interfaceMemberKey(entity, iface reflect.Type, method string) (MemberKey, bool) {
	if !entity.Implements(iface) && !reflect.PointerTo(entity).Implements(iface) {
		return "", false
	}
	if _, ok := iface.MethodByName(method); !ok {
		return "", false
	}

	candidates := []string{method}
	if trimmed := strings.TrimPrefix(method, "Get"); trimmed != method && trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	for _, name := range candidates {
		if sf, ok := entity.FieldByName(name); ok {
			return keyOf(sf.Index), true
		}
	}
	return "", false
}

// derivedMemberKey resolves a member observed on a type that embeds the
// entity at path. Fields the derived type shadows do not pass through the
// embedded entity and therefore miss.
func derivedMemberKey(derived reflect.Type, path []int, name string) (MemberKey, bool) {
	sf, ok := derived.FieldByName(name)
	if !ok || len(sf.Index) <= len(path) {
		return "", false
	}
	for i, x := range path {
		if sf.Index[i] != x {
			return "", false
		}
	}
	return keyOf(sf.Index[len(path):]), true
}

// baseMemberKey resolves a member observed on a struct the entity embeds.
// The entity's promoted field must actually come from that struct.
func baseMemberKey(entity, base reflect.Type, name string) (MemberKey, bool) {
	sf, ok := entity.FieldByName(name)
	if !ok {
		return "", false
	}
	t := entity
	for depth := 0; depth < len(sf.Index)-1; depth++ {
		f := t.Field(sf.Index[depth])
		t = indirect(f.Type)
		if t == base {
			return keyOf(sf.Index), true
		}
	}
	return "", false
}

// embedPath finds the index path of an anonymous field of type target inside
// outer, searching breadth-first so the shallowest embedding wins.
func embedPath(outer, target reflect.Type) ([]int, bool) {
	type node struct {
		t    reflect.Type
		path []int
	}
	queue := []node{{t: outer}}
	seen := map[reflect.Type]bool{outer: true}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for i := 0; i < n.t.NumField(); i++ {
			f := n.t.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := indirect(f.Type)
			if ft.Kind() != reflect.Struct || seen[ft] {
				continue
			}
			path := append(append([]int(nil), n.path...), i)
			if ft == target {
				return path, true
			}
			seen[ft] = true
			queue = append(queue, node{t: ft, path: path})
		}
	}
	return nil, false
}

// indirect strips pointer types
func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
