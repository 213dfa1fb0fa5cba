package dbexpr

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersID() *ColumnAccess {
	return NewColumnAccess(NewTable("orders"), NewColumn("id", reflect.TypeOf(int64(0))))
}

func TestRender(t *testing.T) {
	t.Run("comparison binds parameters in order", func(t *testing.T) {
		expr := &Binary{
			Op:    OpAnd,
			Left:  &Binary{Op: OpEqual, Left: ordersID(), Right: &Parameter{Value: 1}},
			Right: &Binary{Op: OpGreater, Left: ordersID(), Right: &Parameter{Value: 2}},
		}

		sql, args, err := Render(expr, Postgres)
		require.NoError(t, err)
		assert.Equal(t, `(("orders"."id" = $1) AND ("orders"."id" > $2))`, sql)
		assert.Equal(t, []interface{}{1, 2}, args)
	})

	t.Run("question placeholders for sqlite and mysql", func(t *testing.T) {
		expr := &Binary{Op: OpNotEqual, Left: ordersID(), Right: &Parameter{Value: 3}}

		sql, _, err := Render(expr, SQLite)
		require.NoError(t, err)
		assert.Equal(t, `("orders"."id" <> ?)`, sql)

		sql, _, err = Render(expr, MySQL)
		require.NoError(t, err)
		assert.Equal(t, "(`orders`.`id` <> ?)", sql)
	})

	t.Run("schema qualified table", func(t *testing.T) {
		access := NewColumnAccess(&Table{Name: "orders", Schema: "sales"}, NewColumn("id", nil))
		sql, _, err := Render(access, Postgres)
		require.NoError(t, err)
		assert.Equal(t, `"sales"."orders"."id"`, sql)
	})

	t.Run("null tests", func(t *testing.T) {
		sql, args, err := Render(&IsNull{Operand: ordersID()}, Postgres)
		require.NoError(t, err)
		assert.Equal(t, `"orders"."id" IS NULL`, sql)
		assert.Empty(t, args)

		sql, _, err = Render(&IsNull{Operand: ordersID(), Negated: true}, Postgres)
		require.NoError(t, err)
		assert.Equal(t, `"orders"."id" IS NOT NULL`, sql)
	})

	t.Run("in lists", func(t *testing.T) {
		expr := &In{Operand: ordersID(), Values: []Expression{&Parameter{Value: 1}, &Parameter{Value: 2}}}
		sql, args, err := Render(expr, Postgres)
		require.NoError(t, err)
		assert.Equal(t, `"orders"."id" IN ($1, $2)`, sql)
		assert.Len(t, args, 2)

		sql, _, err = Render(&In{Operand: ordersID(), Negated: true}, Postgres)
		require.NoError(t, err)
		assert.Equal(t, "TRUE", sql)
	})

	t.Run("not and constants", func(t *testing.T) {
		sql, _, err := Render(&Not{Operand: &Constant{Value: true}}, Postgres)
		require.NoError(t, err)
		assert.Equal(t, "NOT (TRUE)", sql)

		_, _, err = Render(&Constant{Value: 12}, Postgres)
		assert.Error(t, err)
	})

	t.Run("renderer keeps numbering across fragments", func(t *testing.T) {
		r := NewRenderer(Postgres)
		_, err := r.Render(&Binary{Op: OpEqual, Left: ordersID(), Right: &Parameter{Value: "a"}})
		require.NoError(t, err)
		assert.Equal(t, "$2", r.Bind(10))
		assert.Equal(t, []interface{}{"a", 10}, r.Args())
	})

	t.Run("nil expression", func(t *testing.T) {
		_, _, err := Render(nil, Postgres)
		assert.Error(t, err)
	})
}

func TestDialect(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Dialect
	}{
		{"postgres", Postgres},
		{"PostgreSQL", Postgres},
		{"mysql", MySQL},
		{"sqlite3", SQLite},
	} {
		d, err := ParseDialect(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)

	assert.Equal(t, `"we""ird"`, Postgres.QuoteIdentifier(`we"ird`))
	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", MySQL.Placeholder(3))

	assert.Equal(t, "pgx", Postgres.DriverName())
	assert.Equal(t, "mysql", MySQL.DriverName())
	assert.Equal(t, "sqlite3", SQLite.DriverName())
}
