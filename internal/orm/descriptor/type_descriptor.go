// Package descriptor builds the validated, query-time index of entity
// mappings: for each entity type, which column realizes each property and
// which foreign key realizes each navigation.
//
// A TypeDescriptor is built once from an entity.TypeDefinition and is
// immutable afterwards. All lookups are safe for concurrent use without
// locking.
package descriptor

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
	"go.uber.org/zap"
)

// Constructor creates a new zero entity and returns a pointer to it
type Constructor func() reflect.Value

// TypeDescriptor is the resolved mapping of one entity type
type TypeDescriptor struct {
	definition *entity.TypeDefinition

	propertyDescriptors   []*PrimitivePropertyDescriptor
	navigationDescriptors []*ComplexPropertyDescriptor
	collectionDescriptors []*CollectionPropertyDescriptor
	primaryKeys           []*PrimitivePropertyDescriptor
	autoIncrement         *PrimitivePropertyDescriptor

	propertyDescriptorMap map[entity.MemberKey]*PrimitivePropertyDescriptor
	propertyColumnMap     map[entity.MemberKey]*dbexpr.ColumnAccess
	navigationMap         map[entity.MemberKey]NavigationDescriptor

	parserFactory ParserFactory
	parser        ExpressionParser
	resolver      CollectionResolver
}

// NewTypeDescriptor builds the descriptor for a type definition. It fails
// with a *MappingError when a navigation property cannot be resolved. The
// definition is not modified.
func NewTypeDescriptor(definition *entity.TypeDefinition, opts ...Option) (*TypeDescriptor, error) {
	if definition == nil {
		return nil, fmt.Errorf("%w: nil type definition", ErrMappingConfiguration)
	}
	o := buildOptions(opts)

	td := &TypeDescriptor{
		definition:    definition,
		parserFactory: o.parserFactory,
		resolver:      o.collectionResolver,
	}

	primitives := definition.PrimitiveProperties()
	td.propertyDescriptors = make([]*PrimitivePropertyDescriptor, 0, len(primitives))
	td.primaryKeys = make([]*PrimitivePropertyDescriptor, 0)
	td.propertyDescriptorMap = make(map[entity.MemberKey]*PrimitivePropertyDescriptor, len(primitives))
	td.propertyColumnMap = make(map[entity.MemberKey]*dbexpr.ColumnAccess, len(primitives))

	for _, def := range primitives {
		pd := NewPrimitivePropertyDescriptor(def, td)
		td.propertyDescriptors = append(td.propertyDescriptors, pd)

		if def.IsPrimaryKey() {
			td.primaryKeys = append(td.primaryKeys, pd)
		}
		// First auto-increment property in definition order wins.
		if def.IsAutoIncrement() && td.autoIncrement == nil {
			td.autoIncrement = pd
		}

		key := def.Property().Key()
		td.propertyDescriptorMap[key] = pd
		td.propertyColumnMap[key] = dbexpr.NewColumnAccess(definition.Table(), def.Column())
	}

	td.navigationMap = make(map[entity.MemberKey]NavigationDescriptor)
	for _, def := range definition.ComplexProperties() {
		cd, err := NewComplexPropertyDescriptor(def, td)
		if err != nil {
			return nil, err
		}
		td.navigationDescriptors = append(td.navigationDescriptors, cd)
		td.navigationMap[def.Property().Key()] = cd
	}
	for _, def := range definition.CollectionProperties() {
		cd, err := NewCollectionPropertyDescriptor(def, td, o.collectionResolver)
		if err != nil {
			return nil, err
		}
		td.collectionDescriptors = append(td.collectionDescriptors, cd)
		td.navigationMap[def.Property().Key()] = cd
	}

	// The default parser is created here rather than on first use so that
	// the descriptor has no mutable state once returned.
	if td.parserFactory != nil {
		td.parser = td.parserFactory(td, nil)
	}

	o.logger.Debug("type descriptor built",
		zap.String("type", definition.Name()),
		zap.String("table", definition.Table().String()),
		zap.Int("properties", len(td.propertyDescriptors)),
		zap.Int("primary_keys", len(td.primaryKeys)),
		zap.Int("navigations", len(td.navigationDescriptors)),
		zap.Int("collections", len(td.collectionDescriptors)))

	return td, nil
}

// Definition returns the type definition
func (td *TypeDescriptor) Definition() *entity.TypeDefinition {
	return td.definition
}

// Type returns the entity type
func (td *TypeDescriptor) Type() reflect.Type {
	return td.definition.Type()
}

// Name returns the entity name
func (td *TypeDescriptor) Name() string {
	return td.definition.Name()
}

// Table returns the mapped table
func (td *TypeDescriptor) Table() *dbexpr.Table {
	return td.definition.Table()
}

// PropertyDescriptors returns the primitive descriptors in definition order
func (td *TypeDescriptor) PropertyDescriptors() []*PrimitivePropertyDescriptor {
	return append([]*PrimitivePropertyDescriptor(nil), td.propertyDescriptors...)
}

// NavigationDescriptors returns the single-valued navigation descriptors
func (td *TypeDescriptor) NavigationDescriptors() []*ComplexPropertyDescriptor {
	return append([]*ComplexPropertyDescriptor(nil), td.navigationDescriptors...)
}

// CollectionDescriptors returns the multi-valued navigation descriptors
func (td *TypeDescriptor) CollectionDescriptors() []*CollectionPropertyDescriptor {
	return append([]*CollectionPropertyDescriptor(nil), td.collectionDescriptors...)
}

// PrimaryKeys returns the primary-key descriptors in definition order
func (td *TypeDescriptor) PrimaryKeys() []*PrimitivePropertyDescriptor {
	return append([]*PrimitivePropertyDescriptor(nil), td.primaryKeys...)
}

// AutoIncrement returns the auto-increment descriptor, or nil if the entity has none
func (td *TypeDescriptor) AutoIncrement() *PrimitivePropertyDescriptor {
	return td.autoIncrement
}

// HasPrimaryKey reports whether any property is part of the primary key
func (td *TypeDescriptor) HasPrimaryKey() bool {
	return len(td.primaryKeys) > 0
}

// GetExpressionParser returns the parser for this type. With a nil table the
// same instance is returned on every call; an explicit table yields a new
// parser bound to it each time.
func (td *TypeDescriptor) GetExpressionParser(explicitTable *dbexpr.Table) (ExpressionParser, error) {
	if td.parserFactory == nil {
		return nil, fmt.Errorf("%w: no expression parser configured for %s",
			ErrUnsupportedOperation, td.Name())
	}
	if explicitTable == nil {
		return td.parser, nil
	}
	return td.parserFactory(td, explicitTable), nil
}

// GetDefaultConstructor returns a function creating new entities. A
// constructor registered on the definition must take no arguments and return
// T or *T; otherwise the zero value is used.
func (td *TypeDescriptor) GetDefaultConstructor() (Constructor, error) {
	typ := td.Type()
	registered := td.definition.Constructor()
	if registered == nil {
		return func() reflect.Value {
			return reflect.New(typ)
		}, nil
	}

	fn := reflect.ValueOf(registered)
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, &ConstructionError{Type: typ, Reason: fmt.Sprintf("registered constructor is a %s", ft)}
	}
	if ft.NumIn() != 0 || ft.NumOut() != 1 {
		return nil, &ConstructionError{Type: typ, Reason: fmt.Sprintf("registered constructor has signature %s", ft)}
	}

	switch ft.Out(0) {
	case reflect.PointerTo(typ):
		return func() reflect.Value {
			v := fn.Call(nil)[0]
			if v.IsNil() {
				return reflect.New(typ)
			}
			return v
		}, nil
	case typ:
		return func() reflect.Value {
			v := reflect.New(typ)
			v.Elem().Set(fn.Call(nil)[0])
			return v
		}, nil
	default:
		return nil, &ConstructionError{Type: typ, Reason: fmt.Sprintf("registered constructor returns %s", ft.Out(0))}
	}
}

// TryGetPropertyDescriptor returns the primitive descriptor for member, or nil.
// The member may be observed on the entity type, a type it embeds, a type
// embedding it, or an interface it implements.
func (td *TypeDescriptor) TryGetPropertyDescriptor(member entity.Member) *PrimitivePropertyDescriptor {
	key, ok := member.ReflectedOn(td.Type())
	if !ok {
		return nil
	}
	return td.propertyDescriptorMap[key]
}

// GetPropertyDescriptor is TryGetPropertyDescriptor returning a
// *MemberNotMappedError on a miss
func (td *TypeDescriptor) GetPropertyDescriptor(member entity.Member) (*PrimitivePropertyDescriptor, error) {
	pd := td.TryGetPropertyDescriptor(member)
	if pd == nil {
		return nil, &MemberNotMappedError{Type: td.Type(), Member: member}
	}
	return pd, nil
}

// PropertyDescriptorByName looks up a primitive descriptor by field name
func (td *TypeDescriptor) PropertyDescriptorByName(name string) (*PrimitivePropertyDescriptor, error) {
	return td.GetPropertyDescriptor(entity.MemberOf(td.Type(), name))
}

// GetNavigationDescriptor returns the complex or collection descriptor for
// member. Collections whose key was never resolved report
// ErrUnsupportedOperation.
func (td *TypeDescriptor) GetNavigationDescriptor(member entity.Member) (NavigationDescriptor, error) {
	key, ok := member.ReflectedOn(td.Type())
	if ok {
		switch nd := td.navigationMap[key].(type) {
		case *ComplexPropertyDescriptor:
			return nd, nil
		case *CollectionPropertyDescriptor:
			if _, resolved := nd.ForeignKey(); !resolved {
				return nil, fmt.Errorf("%w: collection navigation %s has no resolution policy",
					ErrUnsupportedOperation, member)
			}
			return nd, nil
		}
	}
	return nil, &MemberNotMappedError{Type: td.Type(), Member: member}
}

// TryGetColumnAccessExpression returns the column access for member, or nil
func (td *TypeDescriptor) TryGetColumnAccessExpression(member entity.Member) *dbexpr.ColumnAccess {
	key, ok := member.ReflectedOn(td.Type())
	if !ok {
		return nil
	}
	return td.propertyColumnMap[key]
}
