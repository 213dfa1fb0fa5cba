// Package entity defines the declarative mapping of entity types: which
// table a type maps to and how each of its properties maps to columns or
// to related entities.
package entity

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
)

// ErrInvalidDefinition is returned when a definition violates its construction contract
var ErrInvalidDefinition = errors.New("invalid entity definition")

// Kind tags the variant of a property definition
type Kind int

const (
	KindPrimitive Kind = iota
	KindComplex
	KindCollection
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindComplex:
		return "complex"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "primitive":
		return KindPrimitive, nil
	case "complex":
		return KindComplex, nil
	case "collection":
		return KindCollection, nil
	default:
		return 0, fmt.Errorf("unknown property kind: %s", s)
	}
}

// PropertyDefinition describes how one property is mapped. The variants are
// *PrimitivePropertyDefinition, *ComplexPropertyDefinition and
// *CollectionPropertyDefinition; no other implementations exist.
type PropertyDefinition interface {
	Property() Property
	Kind() Kind
	Annotations() []interface{}

	isPropertyDefinition()
}

type propertyDefinition struct {
	property    Property
	annotations []interface{}
}

func newPropertyDefinition(property Property, annotations []interface{}) (propertyDefinition, error) {
	if property.Name == "" || property.Type == nil || len(property.Index) == 0 {
		return propertyDefinition{}, fmt.Errorf("%w: incomplete property %q", ErrInvalidDefinition, property.Name)
	}
	return propertyDefinition{
		property:    property,
		annotations: append([]interface{}(nil), annotations...),
	}, nil
}

// Property returns the mapped struct field
func (d *propertyDefinition) Property() Property {
	return d.property
}

// Annotations returns the opaque annotations attached by configuration
func (d *propertyDefinition) Annotations() []interface{} {
	return append([]interface{}(nil), d.annotations...)
}

func (d *propertyDefinition) isPropertyDefinition() {}

// PrimitivePropertyDefinition maps a scalar property to a column
type PrimitivePropertyDefinition struct {
	propertyDefinition
	column          *dbexpr.Column
	isPrimaryKey    bool
	isAutoIncrement bool
	sequenceName    string
}

// NewPrimitivePropertyDefinition creates a primitive definition. The column is required.
func NewPrimitivePropertyDefinition(property Property, column *dbexpr.Column, isPrimaryKey, isAutoIncrement bool, sequenceName string, annotations []interface{}) (*PrimitivePropertyDefinition, error) {
	if column == nil {
		return nil, fmt.Errorf("%w: property %s has no column", ErrInvalidDefinition, property.Name)
	}
	base, err := newPropertyDefinition(property, annotations)
	if err != nil {
		return nil, err
	}
	return &PrimitivePropertyDefinition{
		propertyDefinition: base,
		column:             column,
		isPrimaryKey:       isPrimaryKey,
		isAutoIncrement:    isAutoIncrement,
		sequenceName:       sequenceName,
	}, nil
}

// Kind returns KindPrimitive
func (d *PrimitivePropertyDefinition) Kind() Kind { return KindPrimitive }

// Column returns the target column
func (d *PrimitivePropertyDefinition) Column() *dbexpr.Column { return d.column }

// IsPrimaryKey reports whether the column is part of the primary key
func (d *PrimitivePropertyDefinition) IsPrimaryKey() bool { return d.isPrimaryKey }

// IsAutoIncrement reports whether the database assigns the value on insert
func (d *PrimitivePropertyDefinition) IsAutoIncrement() bool { return d.isAutoIncrement }

// SequenceName returns the database sequence feeding the column, if any
func (d *PrimitivePropertyDefinition) SequenceName() string { return d.sequenceName }

// ComplexPropertyDefinition maps a single-valued navigation property
type ComplexPropertyDefinition struct {
	propertyDefinition
	foreignKey string
}

// NewComplexPropertyDefinition creates a navigation definition realized by
// the named foreign-key property on the same declaring type
func NewComplexPropertyDefinition(property Property, foreignKey string, annotations []interface{}) (*ComplexPropertyDefinition, error) {
	if foreignKey == "" {
		return nil, fmt.Errorf("%w: navigation property %s has no foreign key", ErrInvalidDefinition, property.Name)
	}
	base, err := newPropertyDefinition(property, annotations)
	if err != nil {
		return nil, err
	}
	if indirect(property.Type).Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: navigation property %s must be a struct or struct pointer, got %s",
			ErrInvalidDefinition, property.Name, property.Type)
	}
	return &ComplexPropertyDefinition{propertyDefinition: base, foreignKey: foreignKey}, nil
}

// Kind returns KindComplex
func (d *ComplexPropertyDefinition) Kind() Kind { return KindComplex }

// ForeignKey returns the name of the foreign-key property on the declaring type
func (d *ComplexPropertyDefinition) ForeignKey() string { return d.foreignKey }

// TargetType returns the related entity type
func (d *ComplexPropertyDefinition) TargetType() reflect.Type { return indirect(d.property.Type) }

// CollectionPropertyDefinition maps a multi-valued navigation property
type CollectionPropertyDefinition struct {
	propertyDefinition
	elementType reflect.Type
	foreignKey  string
}

// NewCollectionPropertyDefinition creates a collection definition. foreignKey
// names the key field on the element type and may be left empty; whether it
// is required is decided by the collection resolver.
func NewCollectionPropertyDefinition(property Property, foreignKey string, annotations []interface{}) (*CollectionPropertyDefinition, error) {
	base, err := newPropertyDefinition(property, annotations)
	if err != nil {
		return nil, err
	}
	kind := property.Type.Kind()
	if kind != reflect.Slice && kind != reflect.Array {
		return nil, fmt.Errorf("%w: collection property %s must be a slice or array, got %s",
			ErrInvalidDefinition, property.Name, property.Type)
	}
	elem := indirect(property.Type.Elem())
	if elem.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: collection property %s must hold structs, got %s",
			ErrInvalidDefinition, property.Name, property.Type.Elem())
	}
	return &CollectionPropertyDefinition{
		propertyDefinition: base,
		elementType:        elem,
		foreignKey:         foreignKey,
	}, nil
}

// Kind returns KindCollection
func (d *CollectionPropertyDefinition) Kind() Kind { return KindCollection }

// ElementType returns the related entity type
func (d *CollectionPropertyDefinition) ElementType() reflect.Type { return d.elementType }

// ForeignKey returns the name of the key field on the element type
func (d *CollectionPropertyDefinition) ForeignKey() string { return d.foreignKey }

// TypeDefinition describes one mapped entity type
type TypeDefinition struct {
	typ         reflect.Type
	name        string
	table       *dbexpr.Table
	properties  []PropertyDefinition
	constructor interface{}
}

// TypeOption configures a TypeDefinition
type TypeOption func(*TypeDefinition)

// WithConstructor registers the function used to create new entity values.
// It should have the shape func() *T or func() T.
func WithConstructor(fn interface{}) TypeOption {
	return func(d *TypeDefinition) {
		d.constructor = fn
	}
}

// WithName names the entity. Types built at run time have no Go name.
func WithName(name string) TypeOption {
	return func(d *TypeDefinition) {
		d.name = name
	}
}

// NewTypeDefinition creates a type definition. Properties keep their order.
func NewTypeDefinition(typ reflect.Type, table *dbexpr.Table, properties []PropertyDefinition, opts ...TypeOption) (*TypeDefinition, error) {
	t := indirect(typ)
	if t == nil {
		return nil, fmt.Errorf("%w: nil entity type", ErrInvalidDefinition)
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: entity type %s is not a struct", ErrInvalidDefinition, t)
	}
	if table == nil || table.Name == "" {
		return nil, fmt.Errorf("%w: entity type %s has no table", ErrInvalidDefinition, t.Name())
	}

	seen := make(map[MemberKey]string, len(properties))
	for i, p := range properties {
		if p == nil {
			return nil, fmt.Errorf("%w: %s property %d is nil", ErrInvalidDefinition, t.Name(), i)
		}
		prop := p.Property()
		sf, ok := fieldByIndex(t, prop.Index)
		if !ok || sf.Name != prop.Name {
			return nil, fmt.Errorf("%w: %s has no field %s at index %v",
				ErrInvalidDefinition, t.Name(), prop.Name, prop.Index)
		}
		key := prop.Key()
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s maps field %s more than once (%s)",
				ErrInvalidDefinition, t.Name(), prop.Name, other)
		}
		seen[key] = prop.Name
	}

	d := &TypeDefinition{
		typ:        t,
		table:      table,
		properties: append([]PropertyDefinition(nil), properties...),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Type returns the entity type
func (d *TypeDefinition) Type() reflect.Type { return d.typ }

// Name returns the entity name, defaulting to the Go type name
func (d *TypeDefinition) Name() string {
	if d.name != "" {
		return d.name
	}
	return TypeName(d.typ)
}

// Table returns the mapped table
func (d *TypeDefinition) Table() *dbexpr.Table { return d.table }

// Constructor returns the registered constructor, or nil
func (d *TypeDefinition) Constructor() interface{} { return d.constructor }

// Properties returns all property definitions in declaration order
func (d *TypeDefinition) Properties() []PropertyDefinition {
	return append([]PropertyDefinition(nil), d.properties...)
}

// PrimitiveProperties returns the primitive definitions in declaration order
func (d *TypeDefinition) PrimitiveProperties() []*PrimitivePropertyDefinition {
	var result []*PrimitivePropertyDefinition
	for _, p := range d.properties {
		if def, ok := p.(*PrimitivePropertyDefinition); ok {
			result = append(result, def)
		}
	}
	return result
}

// ComplexProperties returns the single-valued navigation definitions
func (d *TypeDefinition) ComplexProperties() []*ComplexPropertyDefinition {
	var result []*ComplexPropertyDefinition
	for _, p := range d.properties {
		if def, ok := p.(*ComplexPropertyDefinition); ok {
			result = append(result, def)
		}
	}
	return result
}

// CollectionProperties returns the multi-valued navigation definitions
func (d *TypeDefinition) CollectionProperties() []*CollectionPropertyDefinition {
	var result []*CollectionPropertyDefinition
	for _, p := range d.properties {
		if def, ok := p.(*CollectionPropertyDefinition); ok {
			result = append(result, def)
		}
	}
	return result
}

// fieldByIndex is reflect.Type.FieldByIndex without the panics
func fieldByIndex(t reflect.Type, index []int) (reflect.StructField, bool) {
	var sf reflect.StructField
	if len(index) == 0 {
		return sf, false
	}
	for i, x := range index {
		if i > 0 {
			t = indirect(sf.Type)
		}
		if t.Kind() != reflect.Struct || x < 0 || x >= t.NumField() {
			return reflect.StructField{}, false
		}
		sf = t.Field(x)
	}
	return sf, true
}
