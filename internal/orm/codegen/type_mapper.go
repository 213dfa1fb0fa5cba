// Package codegen provides code generation for database schema DDL.
// It transforms registered type descriptors into CREATE TABLE, CREATE
// SEQUENCE, foreign key and index statements for the supported dialects.
package codegen

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/google/uuid"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))

	// database/sql null wrappers and the value they carry
	nullTypes = map[reflect.Type]reflect.Type{
		reflect.TypeOf(sql.NullString{}):  reflect.TypeOf(""),
		reflect.TypeOf(sql.NullInt64{}):   reflect.TypeOf(int64(0)),
		reflect.TypeOf(sql.NullInt32{}):   reflect.TypeOf(int32(0)),
		reflect.TypeOf(sql.NullInt16{}):   reflect.TypeOf(int16(0)),
		reflect.TypeOf(sql.NullByte{}):    reflect.TypeOf(uint8(0)),
		reflect.TypeOf(sql.NullFloat64{}): reflect.TypeOf(float64(0)),
		reflect.TypeOf(sql.NullBool{}):    reflect.TypeOf(false),
		reflect.TypeOf(sql.NullTime{}):    timeType,
	}
)

// TypeMapper maps Go column types to SQL column types for a dialect
type TypeMapper struct {
	dialect dbexpr.Dialect
}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper(dialect dbexpr.Dialect) *TypeMapper {
	return &TypeMapper{dialect: dialect}
}

// MapType converts a column's Go type to a SQL column type
func (tm *TypeMapper) MapType(col *dbexpr.Column) (string, error) {
	if col == nil || col.Type == nil {
		return "", fmt.Errorf("column has no type")
	}

	t := col.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if inner, ok := nullTypes[t]; ok {
		t = inner
	}

	switch t {
	case timeType:
		return tm.pick("TIMESTAMP WITH TIME ZONE", "DATETIME", "TIMESTAMP"), nil
	case uuidType:
		return tm.pick("UUID", "CHAR(36)", "TEXT"), nil
	case bytesType:
		return tm.pick("BYTEA", "BLOB", "BLOB"), nil
	}

	switch t.Kind() {
	case reflect.String:
		if col.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Size), nil
		}
		return tm.pick("VARCHAR(255)", "VARCHAR(255)", "TEXT"), nil

	case reflect.Bool:
		return "BOOLEAN", nil

	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return tm.pick("SMALLINT", "SMALLINT", "INTEGER"), nil

	case reflect.Int32, reflect.Uint16:
		return "INTEGER", nil

	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return tm.pick("BIGINT", "BIGINT", "INTEGER"), nil

	case reflect.Float32:
		return tm.pick("REAL", "FLOAT", "REAL"), nil

	case reflect.Float64:
		return tm.pick("DOUBLE PRECISION", "DOUBLE", "REAL"), nil

	default:
		return "", fmt.Errorf("unsupported column type: %s", col.Type)
	}
}

// MapNullability returns the NULL/NOT NULL constraint for a column
func (tm *TypeMapper) MapNullability(col *dbexpr.Column) string {
	if IsNullable(col) {
		return "NULL"
	}
	return "NOT NULL"
}

// SerialType returns the Postgres serial type for an integer column type
func (tm *TypeMapper) SerialType(sqlType string) (string, bool) {
	switch sqlType {
	case "SMALLINT":
		return "SMALLSERIAL", true
	case "INTEGER":
		return "SERIAL", true
	case "BIGINT":
		return "BIGSERIAL", true
	default:
		return "", false
	}
}

func (tm *TypeMapper) pick(postgres, mysql, sqlite string) string {
	switch tm.dialect {
	case dbexpr.MySQL:
		return mysql
	case dbexpr.SQLite:
		return sqlite
	default:
		return postgres
	}
}

// IsNullable reports whether a column accepts NULL: it is declared nullable,
// its Go type is a pointer, or it is a database/sql null wrapper.
func IsNullable(col *dbexpr.Column) bool {
	if col.Nullable {
		return true
	}
	if col.Type == nil {
		return false
	}
	if col.Type.Kind() == reflect.Pointer {
		return true
	}
	_, ok := nullTypes[col.Type]
	return ok
}

// quoteLiteral renders a SQL string literal
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
