package query

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestConvertDBErrorWithPgErrors(t *testing.T) {
	// Test unique violation
	pgErr := &pgconn.PgError{Code: "23505", Detail: "Key (email)=(test@test.com) already exists."}
	err := ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "Key (email)")

	// Test foreign key violation
	pgErr = &pgconn.PgError{Code: "23503", Detail: "Key (author_id)=(123) is not present in table authors."}
	err = ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.Contains(t, err.Error(), "Key (author_id)")

	// Test check violation
	pgErr = &pgconn.PgError{Code: "23514", Detail: "Check constraint failed"}
	err = ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrCheckViolation)

	// Test not null violation
	pgErr = &pgconn.PgError{Code: "23502", ColumnName: "title"}
	err = ConvertDBError(pgErr)
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "title")

	// Test unknown pg error
	pgErr = &pgconn.PgError{Code: "99999", Message: "Unknown error"}
	err = ConvertDBError(pgErr)
	assert.Equal(t, pgErr, err)
}

func TestConvertDBErrorWithPqErrors(t *testing.T) {
	err := ConvertDBError(&pq.Error{Code: "23505", Detail: "Key (slug)=(go) already exists."})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Contains(t, err.Error(), "Key (slug)")

	err = ConvertDBError(&pq.Error{Code: "23502", Column: "name"})
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "name")

	// Wrapped driver errors are still recognized
	err = ConvertDBError(fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}))
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
}

func TestConvertDBErrorWithSQLiteErrors(t *testing.T) {
	tests := []struct {
		code     sqlite3.ErrNoExtended
		expected error
	}{
		{sqlite3.ErrConstraintUnique, ErrUniqueViolation},
		{sqlite3.ErrConstraintPrimaryKey, ErrUniqueViolation},
		{sqlite3.ErrConstraintForeignKey, ErrForeignKeyViolation},
		{sqlite3.ErrConstraintNotNull, ErrNotNullViolation},
		{sqlite3.ErrConstraintCheck, ErrCheckViolation},
	}

	for _, tt := range tests {
		err := ConvertDBError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: tt.code})
		assert.ErrorIs(t, err, tt.expected)
	}

	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	assert.Equal(t, busy, ConvertDBError(busy))
}

func TestConvertDBErrorWithMySQLErrors(t *testing.T) {
	tests := []struct {
		number   uint16
		expected error
	}{
		{1062, ErrUniqueViolation},
		{1451, ErrForeignKeyViolation},
		{1452, ErrForeignKeyViolation},
		{1048, ErrNotNullViolation},
		{3819, ErrCheckViolation},
	}

	for _, tt := range tests {
		err := ConvertDBError(&mysql.MySQLError{Number: tt.number, Message: "constraint failed"})
		assert.ErrorIs(t, err, tt.expected)
		assert.Contains(t, err.Error(), "constraint failed")
	}

	deadlock := &mysql.MySQLError{Number: 1213}
	assert.Equal(t, deadlock, ConvertDBError(deadlock))
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))
	assert.ErrorIs(t, ConvertDBError(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, ConvertDBError(fmt.Errorf("lookup: %w", sql.ErrNoRows)), ErrNotFound)

	genericErr := errors.New("generic error")
	assert.Equal(t, genericErr, ConvertDBError(genericErr))
	assert.NotErrorIs(t, genericErr, ErrUniqueViolation)
}
