package dbexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect selects identifier quoting and placeholder syntax
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
	SQLite
)

// String returns the string representation of the dialect
func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// ParseDialect converts a string to a Dialect
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("unknown dialect: %s", s)
	}
}

// QuoteIdentifier quotes a single identifier for the dialect
func (d Dialect) QuoteIdentifier(identifier string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
	case SQLite:
		return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
	default:
		return pq.QuoteIdentifier(identifier)
	}
}

// QuoteTable quotes a possibly schema-qualified table name
func (d Dialect) QuoteTable(t *Table) string {
	if t.Schema != "" {
		return d.QuoteIdentifier(t.Schema) + "." + d.QuoteIdentifier(t.Name)
	}
	return d.QuoteIdentifier(t.Name)
}

// Placeholder returns the bind placeholder for the n-th (1-based) argument
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite3"
	default:
		return "pgx"
	}
}
