package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
)

var scalarTypes = map[string]reflect.Type{
	"string":  reflect.TypeOf(""),
	"bool":    reflect.TypeOf(false),
	"int":     reflect.TypeOf(int(0)),
	"int8":    reflect.TypeOf(int8(0)),
	"int16":   reflect.TypeOf(int16(0)),
	"int32":   reflect.TypeOf(int32(0)),
	"int64":   reflect.TypeOf(int64(0)),
	"uint":    reflect.TypeOf(uint(0)),
	"uint8":   reflect.TypeOf(uint8(0)),
	"uint16":  reflect.TypeOf(uint16(0)),
	"uint32":  reflect.TypeOf(uint32(0)),
	"uint64":  reflect.TypeOf(uint64(0)),
	"float32": reflect.TypeOf(float32(0)),
	"float64": reflect.TypeOf(float64(0)),
	"time":    reflect.TypeOf(time.Time{}),
	"uuid":    reflect.TypeOf(uuid.UUID{}),
	"bytes":   reflect.TypeOf([]byte(nil)),
}

// Result is the outcome of building one entity's definition
type Result struct {
	Name       string
	Definition *entity.TypeDefinition
	Err        error
}

// entityModel holds the run-time types of one entity. The shape has only
// the scalar fields and is what navigations of other entities point to, so
// cyclic relationships need no recursive types.
type entityModel struct {
	entity Entity
	shape  reflect.Type
	full   reflect.Type
	err    error
}

type model struct {
	entities []*entityModel
	byName   map[string]*entityModel
	byShape  map[reflect.Type]*entityModel
}

func buildModel(entities []Entity) *model {
	m := &model{
		byName:  make(map[string]*entityModel, len(entities)),
		byShape: make(map[reflect.Type]*entityModel, len(entities)),
	}

	for _, e := range entities {
		em := &entityModel{entity: e}
		em.shape, em.err = shapeOf(e)
		m.entities = append(m.entities, em)
		m.byName[e.Name] = em
		if em.err == nil {
			m.byShape[em.shape] = em
		}
	}

	for _, em := range m.entities {
		if em.err != nil {
			continue
		}
		em.full, em.err = m.fullTypeOf(em.entity)
	}
	return m
}

// shapeOf builds the scalar-only struct type of an entity
func shapeOf(e Entity) (reflect.Type, error) {
	var fields []reflect.StructField
	var errs []string
	for _, p := range e.Properties {
		kind, err := p.kind()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.Name, err))
			continue
		}
		if kind != entity.KindPrimitive {
			continue
		}
		field, err := scalarField(e, p)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.Name, err))
			continue
		}
		fields = append(fields, field)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", entity.ErrInvalidDefinition, strings.Join(errs, "; "))
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: entity has no primitive properties", entity.ErrInvalidDefinition)
	}
	return reflect.StructOf(fields), nil
}

func scalarField(e Entity, p Property) (reflect.StructField, error) {
	if p.Target != "" {
		return reflect.StructField{}, fmt.Errorf("target is only valid on navigation properties")
	}
	t, ok := scalarTypes[p.Type]
	if !ok {
		return reflect.StructField{}, fmt.Errorf("unknown type %q", p.Type)
	}
	if p.Size < 0 {
		return reflect.StructField{}, fmt.Errorf("invalid size %d", p.Size)
	}
	if p.Nullable && t.Kind() != reflect.Slice {
		t = reflect.PointerTo(t)
	}
	return reflect.StructField{
		Name: p.Name,
		Type: t,
		// The entity name keeps identically shaped entities distinct types.
		Tag: reflect.StructTag(fmt.Sprintf(`db:%q %s:%q`, columnName(p), entity.EntityTag, e.Name)),
	}, nil
}

// fullTypeOf builds the entity type with every property in declaration order
func (m *model) fullTypeOf(e Entity) (reflect.Type, error) {
	fields := make([]reflect.StructField, 0, len(e.Properties))
	for _, p := range e.Properties {
		kind, _ := p.kind()
		if kind == entity.KindPrimitive {
			field, _ := scalarField(e, p)
			fields = append(fields, field)
			continue
		}

		target, ok := m.byName[p.Target]
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown target entity %q",
				descriptor.ErrMappingConfiguration, p.Name, p.Target)
		}
		if target.err != nil {
			return nil, fmt.Errorf("%w: %s: target entity %s is invalid",
				descriptor.ErrMappingConfiguration, p.Name, p.Target)
		}

		field := reflect.StructField{
			Name: p.Name,
			Tag:  reflect.StructTag(fmt.Sprintf(`db:",fk=%s" %s:%q`, p.ForeignKey, entity.EntityTag, e.Name)),
		}
		if kind == entity.KindComplex {
			field.Type = reflect.PointerTo(target.shape)
		} else {
			field.Type = reflect.SliceOf(target.shape)
		}
		fields = append(fields, field)
	}
	return reflect.StructOf(fields), nil
}

// Definitions builds a type definition per entity, in file order. An entity
// whose mapping is invalid gets a Result carrying the error.
func (f *File) Definitions() []Result {
	results := make([]Result, 0, len(f.model.entities))
	for _, em := range f.model.entities {
		def, err := em.definition()
		results = append(results, Result{Name: em.entity.Name, Definition: def, Err: err})
	}
	return results
}

func (em *entityModel) definition() (*entity.TypeDefinition, error) {
	if em.err != nil {
		return nil, fmt.Errorf("entity %s: %w", em.entity.Name, em.err)
	}

	properties := make([]entity.PropertyDefinition, 0, len(em.entity.Properties))
	for _, p := range em.entity.Properties {
		prop, err := entity.PropertyOf(em.full, p.Name)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", em.entity.Name, err)
		}
		annotations := []interface{}{p}

		var def entity.PropertyDefinition
		kind, _ := p.kind()
		switch kind {
		case entity.KindPrimitive:
			column := &dbexpr.Column{
				Name:     columnName(p),
				Type:     prop.Type,
				Size:     p.Size,
				Nullable: p.Nullable,
			}
			def, err = entity.NewPrimitivePropertyDefinition(prop, column, p.PrimaryKey, p.AutoIncrement, p.Sequence, annotations)
		case entity.KindComplex:
			def, err = entity.NewComplexPropertyDefinition(prop, p.ForeignKey, annotations)
		case entity.KindCollection:
			def, err = entity.NewCollectionPropertyDefinition(prop, p.ForeignKey, annotations)
		}
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", em.entity.Name, err)
		}
		properties = append(properties, def)
	}

	return entity.NewTypeDefinition(em.full, em.table(), properties, entity.WithName(em.entity.Name))
}

func (em *entityModel) table() *dbexpr.Table {
	name := em.entity.Table
	if name == "" {
		name = entity.ToSnakeCase(em.entity.Name)
	}
	return &dbexpr.Table{Name: name, Schema: em.entity.Schema}
}

// EntityType returns the run-time struct type built for the named entity
func (f *File) EntityType(name string) (reflect.Type, bool) {
	em, ok := f.model.byName[name]
	if !ok || em.err != nil {
		return nil, false
	}
	return em.full, true
}

// Lookup wraps a descriptor lookup so that navigation targets, which are
// scalar-only shapes, resolve to their entity's descriptor
func (f *File) Lookup(get func(reflect.Type) (*descriptor.TypeDescriptor, bool)) func(reflect.Type) (*descriptor.TypeDescriptor, bool) {
	return func(t reflect.Type) (*descriptor.TypeDescriptor, bool) {
		if em, ok := f.model.byShape[t]; ok && em.full != nil {
			return get(em.full)
		}
		return get(t)
	}
}

// Err joins the errors of every invalid entity, in file order
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// FromDescriptors renders registered descriptors as a mapping file. Targets
// are named through lookup when registered, by Go type name otherwise.
func FromDescriptors(tds []*descriptor.TypeDescriptor, lookup func(reflect.Type) (*descriptor.TypeDescriptor, bool)) *File {
	f := &File{Entities: make([]Entity, 0, len(tds))}
	for _, td := range tds {
		e := Entity{Name: td.Name(), Table: td.Table().Name, Schema: td.Table().Schema}

		for _, pd := range td.Definition().Properties() {
			p := Property{Name: pd.Property().Name}
			switch def := pd.(type) {
			case *entity.PrimitivePropertyDefinition:
				p.Type = typeName(def.Column().Type)
				p.Column = def.Column().Name
				p.PrimaryKey = def.IsPrimaryKey()
				p.AutoIncrement = def.IsAutoIncrement()
				p.Sequence = def.SequenceName()
				p.Nullable = def.Column().Nullable
				p.Size = def.Column().Size
			case *entity.ComplexPropertyDefinition:
				p.Kind = entity.KindComplex.String()
				p.Target = targetName(def.TargetType(), lookup)
				p.ForeignKey = def.ForeignKey()
			case *entity.CollectionPropertyDefinition:
				p.Kind = entity.KindCollection.String()
				p.Target = targetName(def.ElementType(), lookup)
				p.ForeignKey = def.ForeignKey()
			}
			e.Properties = append(e.Properties, p)
		}
		f.Entities = append(f.Entities, e)
	}
	return f
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for name, st := range scalarTypes {
		if st == t {
			return name
		}
	}
	return t.String()
}

func targetName(t reflect.Type, lookup func(reflect.Type) (*descriptor.TypeDescriptor, bool)) string {
	if lookup != nil {
		if td, ok := lookup(t); ok {
			return td.Name()
		}
	}
	return entity.TypeName(t)
}

func columnName(p Property) string {
	if p.Column != "" {
		return p.Column
	}
	return entity.ToSnakeCase(p.Name)
}
