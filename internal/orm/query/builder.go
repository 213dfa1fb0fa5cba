// Package query builds and runs SQL statements for registered entity types.
// Filters are expressions over entity members, translated through the type
// descriptor's expression parser; rows are materialized into entity values
// through the descriptor's default constructor.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
)

// DB is satisfied by *sql.DB, *sql.Tx and *sql.Conn
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type orderTerm struct {
	property *descriptor.PrimitivePropertyDescriptor
	desc     bool
}

// Query builds a SELECT statement over one entity type
type Query struct {
	td      *descriptor.TypeDescriptor
	dialect dbexpr.Dialect
	alias   *dbexpr.Table

	conditions []string
	orderBy    []orderTerm
	limit      *int
	offset     *int

	errs []error
}

// New creates a query selecting every mapped column of td
func New(td *descriptor.TypeDescriptor, dialect dbexpr.Dialect) *Query {
	return &Query{
		td:         td,
		dialect:    dialect,
		conditions: make([]string, 0),
		orderBy:    make([]orderTerm, 0),
	}
}

// As selects from the entity's table under an alias
func (q *Query) As(alias string) *Query {
	q.alias = &dbexpr.Table{Name: alias}
	return q
}

// Where adds a filter expression over entity members. Multiple filters are
// combined with AND. Expressions are translated when the query is built.
func (q *Query) Where(expression string) *Query {
	q.conditions = append(q.conditions, expression)
	return q
}

// OrderBy adds an ORDER BY term for a mapped property
func (q *Query) OrderBy(property string, desc bool) *Query {
	pd, err := q.td.PropertyDescriptorByName(property)
	if err != nil {
		q.errs = append(q.errs, fmt.Errorf("order by: %w", err))
		return q
	}
	q.orderBy = append(q.orderBy, orderTerm{property: pd, desc: desc})
	return q
}

// Limit sets the LIMIT clause
func (q *Query) Limit(limit int) *Query {
	q.limit = &limit
	return q
}

// Offset sets the OFFSET clause
func (q *Query) Offset(offset int) *Query {
	q.offset = &offset
	return q
}

// Build generates the SQL statement and its arguments
func (q *Query) Build() (string, []interface{}, error) {
	if len(q.errs) > 0 {
		return "", nil, q.errs[0]
	}

	r := dbexpr.NewRenderer(q.dialect)
	var b strings.Builder

	columns, err := q.selectList(r)
	if err != nil {
		return "", nil, err
	}
	b.WriteString("SELECT ")
	b.WriteString(columns)

	b.WriteString(" FROM ")
	b.WriteString(q.dialect.QuoteTable(q.td.Table()))
	if q.alias != nil {
		b.WriteString(" AS ")
		b.WriteString(q.dialect.QuoteIdentifier(q.alias.Name))
	}

	where, err := q.filter()
	if err != nil {
		return "", nil, err
	}
	if where != nil {
		sql, err := r.Render(where)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(sql)
	}

	if len(q.orderBy) > 0 {
		terms := make([]string, len(q.orderBy))
		for i, term := range q.orderBy {
			sql, err := r.Render(q.access(term.property))
			if err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if term.desc {
				dir = "DESC"
			}
			terms[i] = sql + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if q.limit != nil {
		b.WriteString(fmt.Sprintf(" LIMIT %d", *q.limit))
	} else if q.offset != nil {
		// MySQL and SQLite only accept OFFSET after LIMIT.
		switch q.dialect {
		case dbexpr.MySQL:
			b.WriteString(" LIMIT 18446744073709551615")
		case dbexpr.SQLite:
			b.WriteString(" LIMIT -1")
		}
	}
	if q.offset != nil {
		b.WriteString(fmt.Sprintf(" OFFSET %d", *q.offset))
	}

	return b.String(), r.Args(), nil
}

func (q *Query) selectList(r *dbexpr.Renderer) (string, error) {
	properties := q.td.PropertyDescriptors()
	if len(properties) == 0 {
		return "", fmt.Errorf("%s has no mapped columns", q.td.Name())
	}

	columns := make([]string, len(properties))
	for i, pd := range properties {
		sql, err := r.Render(q.access(pd))
		if err != nil {
			return "", err
		}
		columns[i] = sql
	}
	return strings.Join(columns, ", "), nil
}

// filter translates the WHERE expressions with the parser for the query's table
func (q *Query) filter() (dbexpr.Expression, error) {
	if len(q.conditions) == 0 {
		return nil, nil
	}

	parser, err := q.td.GetExpressionParser(q.alias)
	if err != nil {
		return nil, err
	}

	var where dbexpr.Expression
	for _, source := range q.conditions {
		expr, err := parser.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", source, err)
		}
		if where == nil {
			where = expr
		} else {
			where = &dbexpr.Binary{Op: dbexpr.OpAnd, Left: where, Right: expr}
		}
	}
	return where, nil
}

// access returns the property's column access, rebound to the alias if any
func (q *Query) access(pd *descriptor.PrimitivePropertyDescriptor) *dbexpr.ColumnAccess {
	access := dbexpr.NewColumnAccess(q.td.Table(), pd.Column())
	if q.alias != nil {
		return access.WithTable(q.alias)
	}
	return access
}
