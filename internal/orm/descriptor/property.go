package descriptor

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
)

// PropertyDescriptor is a resolved property bound to its declaring type.
// Implementations are *PrimitivePropertyDescriptor,
// *ComplexPropertyDescriptor and *CollectionPropertyDescriptor.
type PropertyDescriptor interface {
	Definition() entity.PropertyDefinition
	DeclaringType() *TypeDescriptor
	Kind() entity.Kind
}

// NavigationDescriptor is a PropertyDescriptor for a relationship to another
// entity type
type NavigationDescriptor interface {
	PropertyDescriptor
	TargetType() reflect.Type
}

// propertyDescriptor holds the back-reference shared by all variants. The
// declaring type owns its descriptors, never the other way around.
type propertyDescriptor struct {
	declaringType *TypeDescriptor
}

// DeclaringType returns the type descriptor the property belongs to
func (d *propertyDescriptor) DeclaringType() *TypeDescriptor {
	return d.declaringType
}

// PrimitivePropertyDescriptor binds a scalar property to its column
type PrimitivePropertyDescriptor struct {
	propertyDescriptor
	definition *entity.PrimitivePropertyDefinition
}

// NewPrimitivePropertyDescriptor creates a primitive descriptor
func NewPrimitivePropertyDescriptor(definition *entity.PrimitivePropertyDefinition, declaringType *TypeDescriptor) *PrimitivePropertyDescriptor {
	return &PrimitivePropertyDescriptor{
		propertyDescriptor: propertyDescriptor{declaringType: declaringType},
		definition:         definition,
	}
}

// Definition returns the underlying definition
func (d *PrimitivePropertyDescriptor) Definition() entity.PropertyDefinition {
	return d.definition
}

// PrimitiveDefinition returns the underlying definition with its concrete type
func (d *PrimitivePropertyDescriptor) PrimitiveDefinition() *entity.PrimitivePropertyDefinition {
	return d.definition
}

// Kind returns entity.KindPrimitive
func (d *PrimitivePropertyDescriptor) Kind() entity.Kind {
	return entity.KindPrimitive
}

// Property returns the mapped struct field
func (d *PrimitivePropertyDescriptor) Property() entity.Property {
	return d.definition.Property()
}

// Column returns the mapped column
func (d *PrimitivePropertyDescriptor) Column() *dbexpr.Column {
	return d.definition.Column()
}

// IsPrimaryKey reports whether the column is part of the primary key
func (d *PrimitivePropertyDescriptor) IsPrimaryKey() bool {
	return d.definition.IsPrimaryKey()
}

// IsAutoIncrement reports whether the database assigns the value on insert
func (d *PrimitivePropertyDescriptor) IsAutoIncrement() bool {
	return d.definition.IsAutoIncrement()
}

// ComplexPropertyDescriptor represents a single-valued navigation property,
// bound to the foreign-key property of its declaring type.
type ComplexPropertyDescriptor struct {
	propertyDescriptor
	definition         *entity.ComplexPropertyDefinition
	foreignKeyProperty *PrimitivePropertyDescriptor
}

// NewComplexPropertyDescriptor resolves the definition's foreign key against
// the primitive descriptors of the declaring type. An unknown foreign key is
// a *MappingError and no descriptor is returned.
func NewComplexPropertyDescriptor(definition *entity.ComplexPropertyDefinition, declaringType *TypeDescriptor) (*ComplexPropertyDescriptor, error) {
	var foreignKey *PrimitivePropertyDescriptor
	for _, pd := range declaringType.propertyDescriptors {
		if pd.Property().Name == definition.ForeignKey() {
			foreignKey = pd
			break
		}
	}
	if foreignKey == nil {
		return nil, &MappingError{
			Type:     declaringType.Type(),
			Property: definition.Property().Name,
			Reason:   fmt.Sprintf("can not find foreign key property named '%s'", definition.ForeignKey()),
		}
	}

	return &ComplexPropertyDescriptor{
		propertyDescriptor: propertyDescriptor{declaringType: declaringType},
		definition:         definition,
		foreignKeyProperty: foreignKey,
	}, nil
}

// Definition returns the underlying definition
func (d *ComplexPropertyDescriptor) Definition() entity.PropertyDefinition {
	return d.definition
}

// ComplexDefinition returns the underlying definition with its concrete type
func (d *ComplexPropertyDescriptor) ComplexDefinition() *entity.ComplexPropertyDefinition {
	return d.definition
}

// Kind returns entity.KindComplex
func (d *ComplexPropertyDescriptor) Kind() entity.Kind {
	return entity.KindComplex
}

// TargetType returns the related entity type
func (d *ComplexPropertyDescriptor) TargetType() reflect.Type {
	return d.definition.TargetType()
}

// ForeignKeyProperty returns the primitive property realizing the navigation
func (d *ComplexPropertyDescriptor) ForeignKeyProperty() *PrimitivePropertyDescriptor {
	return d.foreignKeyProperty
}

// CollectionPropertyDescriptor represents a multi-valued navigation property
type CollectionPropertyDescriptor struct {
	propertyDescriptor
	definition *entity.CollectionPropertyDefinition
	foreignKey entity.Property
	resolved   bool
}

// NewCollectionPropertyDescriptor creates a collection descriptor. With a nil
// resolver the element-side key stays unresolved and navigation lookups of
// this property report ErrUnsupportedOperation.
func NewCollectionPropertyDescriptor(definition *entity.CollectionPropertyDefinition, declaringType *TypeDescriptor, resolver CollectionResolver) (*CollectionPropertyDescriptor, error) {
	d := &CollectionPropertyDescriptor{
		propertyDescriptor: propertyDescriptor{declaringType: declaringType},
		definition:         definition,
	}
	if resolver == nil {
		return d, nil
	}

	fk, err := resolver(definition, declaringType)
	if err != nil {
		return nil, err
	}
	d.foreignKey = fk
	d.resolved = true
	return d, nil
}

// Definition returns the underlying definition
func (d *CollectionPropertyDescriptor) Definition() entity.PropertyDefinition {
	return d.definition
}

// CollectionDefinition returns the underlying definition with its concrete type
func (d *CollectionPropertyDescriptor) CollectionDefinition() *entity.CollectionPropertyDefinition {
	return d.definition
}

// Kind returns entity.KindCollection
func (d *CollectionPropertyDescriptor) Kind() entity.Kind {
	return entity.KindCollection
}

// TargetType returns the element entity type
func (d *CollectionPropertyDescriptor) TargetType() reflect.Type {
	return d.definition.ElementType()
}

// ElementType returns the element entity type
func (d *CollectionPropertyDescriptor) ElementType() reflect.Type {
	return d.definition.ElementType()
}

// ForeignKey returns the key field on the element type and whether it was resolved
func (d *CollectionPropertyDescriptor) ForeignKey() (entity.Property, bool) {
	return d.foreignKey, d.resolved
}

// ResolveElementForeignKey is a CollectionResolver binding a collection to
// the field its definition names on the element type. The field must exist
// and be unambiguous; when the declaring type has a single primary key, the
// field's type (pointers removed) must match the key's type.
func ResolveElementForeignKey(def *entity.CollectionPropertyDefinition, declaring *TypeDescriptor) (entity.Property, error) {
	name := def.Property().Name
	if def.ForeignKey() == "" {
		return entity.Property{}, &MappingError{
			Type:     declaring.Type(),
			Property: name,
			Reason:   "collection has no foreign key",
		}
	}

	fk, err := entity.PropertyOf(def.ElementType(), def.ForeignKey())
	if err != nil {
		return entity.Property{}, &MappingError{
			Type:     declaring.Type(),
			Property: name,
			Reason: fmt.Sprintf("can not find property named '%s' on %s",
				def.ForeignKey(), entity.TypeName(def.ElementType())),
		}
	}

	if keys := declaring.primaryKeys; len(keys) == 1 {
		keyType := deref(keys[0].Property().Type)
		if deref(fk.Type) != keyType {
			return entity.Property{}, &MappingError{
				Type:     declaring.Type(),
				Property: name,
				Reason: fmt.Sprintf("%s.%s has type %s, primary key %s has type %s",
					entity.TypeName(def.ElementType()), fk.Name, fk.Type, keys[0].Property().Name, keyType),
			}
		}
	}
	return fk, nil
}

func deref(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
