package entity

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
)

// TagName is the struct tag read by Scan
const TagName = "db"

// Tabler lets an entity type choose its table name, optionally
// schema-qualified as "schema.table"
type Tabler interface {
	TableName() string
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// Scan builds a TypeDefinition from the `db` struct tags of t.
//
// Exported scalar fields are mapped to snake_case columns unless tagged "-".
// Tag options: pk, auto, null, seq=<sequence>, size=<n>, fk=<field>. A struct
// (or struct pointer) field tagged with fk becomes a single-valued navigation;
// a tagged slice of structs becomes a collection navigation. Untagged
// non-scalar fields are ignored.
func Scan(t reflect.Type, opts ...TypeOption) (*TypeDefinition, error) {
	t = indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: cannot scan %v, not a struct type", ErrInvalidDefinition, t)
	}

	var errs []string
	var properties []PropertyDefinition

	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() {
			continue
		}
		if sf.Anonymous && indirect(sf.Type).Kind() == reflect.Struct && !isScalar(sf.Type) {
			// Promoted fields are visited on their own.
			continue
		}
		tag, tagged := sf.Tag.Lookup(TagName)
		if tag == "-" {
			continue
		}

		def, err := scanField(t, sf, tag, tagged)
		if err != nil {
			errs = append(errs, fmt.Sprintf("field %s: %v", sf.Name, err))
			continue
		}
		if def != nil {
			properties = append(properties, def)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: scanning %s failed with %d errors:\n%s",
			ErrInvalidDefinition, t.Name(), len(errs), strings.Join(errs, "\n"))
	}

	return NewTypeDefinition(t, tableFor(t), properties, opts...)
}

type fieldTag struct {
	column   string
	pk       bool
	auto     bool
	null     bool
	sequence string
	size     int
	fk       string
}

func parseTag(tag string) (fieldTag, error) {
	var ft fieldTag
	parts := strings.Split(tag, ",")
	ft.column = strings.TrimSpace(parts[0])

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "":
		case "pk":
			ft.pk = true
		case "auto":
			ft.auto = true
		case "null":
			ft.null = true
		case "seq":
			ft.sequence = value
		case "fk":
			ft.fk = value
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return ft, fmt.Errorf("invalid size %q", value)
			}
			ft.size = n
		default:
			return ft, fmt.Errorf("unknown tag option %q", key)
		}
	}
	return ft, nil
}

func scanField(t reflect.Type, sf reflect.StructField, tag string, tagged bool) (PropertyDefinition, error) {
	ft, err := parseTag(tag)
	if err != nil {
		return nil, err
	}
	prop := propertyFromField(sf)
	annotations := []interface{}{sf.Tag}

	switch {
	case isScalar(sf.Type):
		if ft.fk != "" {
			return nil, fmt.Errorf("fk is only valid on navigation fields")
		}
		name := ft.column
		if name == "" {
			name = ToSnakeCase(sf.Name)
		}
		column := &dbexpr.Column{
			Name:     name,
			Type:     sf.Type,
			Size:     ft.size,
			Nullable: ft.null || sf.Type.Kind() == reflect.Pointer,
		}
		return NewPrimitivePropertyDefinition(prop, column, ft.pk, ft.auto, ft.sequence, annotations)

	case !tagged:
		return nil, nil

	case sf.Type.Kind() == reflect.Slice || sf.Type.Kind() == reflect.Array:
		return NewCollectionPropertyDefinition(prop, ft.fk, annotations)

	case indirect(sf.Type).Kind() == reflect.Struct:
		if ft.fk == "" {
			return nil, fmt.Errorf("navigation field needs fk=<field>")
		}
		return NewComplexPropertyDefinition(prop, ft.fk, annotations)

	default:
		return nil, fmt.Errorf("unsupported field type %s", sf.Type)
	}
}

// isScalar reports whether values of t are stored in a single column
func isScalar(t reflect.Type) bool {
	if t == bytesType || t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		return isScalar(t.Elem())
	}
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return true
	}
	return false
}

func tableFor(t reflect.Type) *dbexpr.Table {
	if tabler, ok := reflect.New(t).Interface().(Tabler); ok {
		if name := tabler.TableName(); name != "" {
			if schema, table, ok := strings.Cut(name, "."); ok {
				return &dbexpr.Table{Name: table, Schema: schema}
			}
			return dbexpr.NewTable(name)
		}
	}
	return dbexpr.NewTable(ToSnakeCase(t.Name()))
}
