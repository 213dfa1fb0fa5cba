package query

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
)

// Insert generates an INSERT statement for entity, a pointer to td's type.
// The auto-increment column is left to the database; on Postgres its value
// is returned.
func Insert(td *descriptor.TypeDescriptor, dialect dbexpr.Dialect, entity interface{}) (string, []interface{}, error) {
	v, err := entityValue(td, entity)
	if err != nil {
		return "", nil, err
	}

	auto := td.AutoIncrement()
	r := dbexpr.NewRenderer(dialect)

	var columns, values []string
	for _, pd := range td.PropertyDescriptors() {
		if pd == auto {
			continue
		}
		columns = append(columns, dialect.QuoteIdentifier(pd.Column().Name))
		values = append(values, r.Bind(fieldValue(v, pd.Property())))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(dialect.QuoteTable(td.Table()))
	switch {
	case len(columns) == 0 && dialect == dbexpr.MySQL:
		b.WriteString(" () VALUES ()")
	case len(columns) == 0:
		b.WriteString(" DEFAULT VALUES")
	default:
		b.WriteString(" (")
		b.WriteString(strings.Join(columns, ", "))
		b.WriteString(") VALUES (")
		b.WriteString(strings.Join(values, ", "))
		b.WriteString(")")
	}
	if auto != nil && dialect == dbexpr.Postgres {
		b.WriteString(" RETURNING ")
		b.WriteString(dialect.QuoteIdentifier(auto.Column().Name))
	}

	return b.String(), r.Args(), nil
}

// Create inserts entity and stores the generated auto-increment value back
// into it
func Create(ctx context.Context, db DB, td *descriptor.TypeDescriptor, dialect dbexpr.Dialect, entity interface{}) error {
	sqlStr, args, err := Insert(td, dialect, entity)
	if err != nil {
		return err
	}

	auto := td.AutoIncrement()
	if auto == nil {
		if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
			return ConvertDBError(err)
		}
		return nil
	}

	v, _ := entityValue(td, entity)
	field := fieldByIndex(v, auto.Property().Index)

	if dialect == dbexpr.Postgres {
		if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(field.Addr().Interface()); err != nil {
			return ConvertDBError(err)
		}
		return nil
	}

	result, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return ConvertDBError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading generated key: %w", err)
	}
	return setInt(field, id)
}

func entityValue(td *descriptor.TypeDescriptor, entity interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Type() != td.Type() {
		return reflect.Value{}, fmt.Errorf("%w: expected *%s, got %T", ErrTypeMismatch, td.Name(), entity)
	}
	return v.Elem(), nil
}

// fieldValue reads a property without allocating nil embedded pointers on
// its path; a broken path reads as the zero value
func fieldValue(v reflect.Value, prop entity.Property) interface{} {
	field, err := v.FieldByIndexErr(prop.Index)
	if err != nil {
		return reflect.Zero(prop.Type).Interface()
	}
	return field.Interface()
}

func setInt(field reflect.Value, id int64) error {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.SetInt(id)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.SetUint(uint64(id))
	default:
		return fmt.Errorf("cannot store generated key in %s field", field.Type())
	}
	return nil
}
