package query

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
)

// All runs q and materializes every row as a *T
func All[T any](ctx context.Context, db DB, q *Query) ([]*T, error) {
	if err := checkType[T](q.td); err != nil {
		return nil, err
	}

	values, err := q.fetch(ctx, db)
	if err != nil {
		return nil, err
	}

	results := make([]*T, len(values))
	for i, v := range values {
		results[i] = v.Interface().(*T)
	}
	return results, nil
}

// Fetch runs q and returns a pointer to a new entity per row. It serves
// entity types only known at run time.
func (q *Query) Fetch(ctx context.Context, db DB) ([]interface{}, error) {
	values, err := q.fetch(ctx, db)
	if err != nil {
		return nil, err
	}

	results := make([]interface{}, len(values))
	for i, v := range values {
		results[i] = v.Interface()
	}
	return results, nil
}

func (q *Query) fetch(ctx context.Context, db DB) ([]reflect.Value, error) {
	sqlStr, args, err := q.Build()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	defer rows.Close()

	return scanRows(rows, q.td)
}

// First runs q with LIMIT 1 and returns the row, or ErrNotFound
func First[T any](ctx context.Context, db DB, q *Query) (*T, error) {
	if err := checkType[T](q.td); err != nil {
		return nil, err
	}

	limited := *q
	limited.Limit(1)

	values, err := limited.fetch(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values[0].Interface().(*T), nil
}

func checkType[T any](td *descriptor.TypeDescriptor) error {
	want := reflect.TypeOf((*T)(nil)).Elem()
	if want != td.Type() {
		return fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, want, td.Type())
	}
	return nil
}

// scanRows materializes rows selected with the descriptor's column order
func scanRows(rows *sql.Rows, td *descriptor.TypeDescriptor) ([]reflect.Value, error) {
	construct, err := td.GetDefaultConstructor()
	if err != nil {
		return nil, err
	}
	properties := td.PropertyDescriptors()

	var results []reflect.Value
	for rows.Next() {
		entity := construct()
		dest := make([]interface{}, len(properties))
		for i, pd := range properties {
			dest[i] = fieldByIndex(entity.Elem(), pd.Property().Index).Addr().Interface()
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", td.Name(), err)
		}
		results = append(results, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, ConvertDBError(err)
	}

	return results, nil
}

// fieldByIndex walks an index path, allocating nil embedded pointers on the way
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}
