// Package dbexpr defines the relational data structures shared between the
// descriptor registry, expression parsers and SQL generation.
package dbexpr

import (
	"fmt"
	"reflect"
)

// Table identifies a database table, optionally qualified by a schema.
type Table struct {
	Name   string
	Schema string
}

// NewTable creates a new table reference
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// String returns the qualified table name
func (t *Table) String() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// Column describes a mapped database column
type Column struct {
	Name     string
	Type     reflect.Type // Go type of the mapped property
	Size     int          // Length for variable-size types, 0 if unbounded
	Nullable bool
}

// NewColumn creates a new column reference
func NewColumn(name string, typ reflect.Type) *Column {
	return &Column{Name: name, Type: typ}
}

// Operator represents a binary relational operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

// String returns the SQL spelling of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	default:
		return "unknown"
	}
}

// IsLogical reports whether the operator combines boolean operands
func (o Operator) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

// Expression is a node of a relational expression tree. The set of node
// types is closed; callers switch over the concrete types below.
type Expression interface {
	fmt.Stringer
	expression()
}

// ColumnAccess references a column of a table. It is produced once per mapped
// property by the descriptor registry and consumed unchanged by SQL generation.
type ColumnAccess struct {
	Table  *Table
	Column *Column
}

// NewColumnAccess creates a column access expression
func NewColumnAccess(table *Table, column *Column) *ColumnAccess {
	return &ColumnAccess{Table: table, Column: column}
}

// WithTable returns a copy of the access bound to another table
func (c *ColumnAccess) WithTable(table *Table) *ColumnAccess {
	return &ColumnAccess{Table: table, Column: c.Column}
}

func (c *ColumnAccess) String() string {
	return c.Table.String() + "." + c.Column.Name
}

// Constant is a literal rendered inline (only nil and booleans are inlined)
type Constant struct {
	Value interface{}
}

func (c *Constant) String() string {
	if c.Value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", c.Value)
}

// Parameter is a value bound as a query argument
type Parameter struct {
	Value interface{}
}

func (p *Parameter) String() string {
	return fmt.Sprintf("@%v", p.Value)
}

// Binary applies an operator to two operands
type Binary struct {
	Op    Operator
	Left  Expression
	Right Expression
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Not negates a boolean expression
type Not struct {
	Operand Expression
}

func (n *Not) String() string {
	return fmt.Sprintf("NOT %s", n.Operand)
}

// IsNull tests an operand for NULL
type IsNull struct {
	Operand Expression
	Negated bool
}

func (n *IsNull) String() string {
	if n.Negated {
		return fmt.Sprintf("%s IS NOT NULL", n.Operand)
	}
	return fmt.Sprintf("%s IS NULL", n.Operand)
}

// In tests membership of an operand in a value list
type In struct {
	Operand Expression
	Values  []Expression
	Negated bool
}

func (n *In) String() string {
	op := "IN"
	if n.Negated {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s %v", n.Operand, op, n.Values)
}

func (*ColumnAccess) expression() {}
func (*Constant) expression()     {}
func (*Parameter) expression()    {}
func (*Binary) expression()       {}
func (*Not) expression()          {}
func (*IsNull) expression()       {}
func (*In) expression()           {}
