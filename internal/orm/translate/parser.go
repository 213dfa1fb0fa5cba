// Package translate turns expressions over entity members into relational
// expressions. Source text uses the expr language (github.com/expr-lang/expr):
//
//	Total > 100 && CustomerId != nil
//	Status in ["open", "held"] || not Archived
//
// Identifiers name mapped properties of the entity. A navigation property
// stands for its foreign-key column.
package translate

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var binaryOperators = map[string]dbexpr.Operator{
	"==":  dbexpr.OpEqual,
	"!=":  dbexpr.OpNotEqual,
	"<":   dbexpr.OpLess,
	"<=":  dbexpr.OpLessEqual,
	">":   dbexpr.OpGreater,
	">=":  dbexpr.OpGreaterEqual,
	"&&":  dbexpr.OpAnd,
	"and": dbexpr.OpAnd,
	"||":  dbexpr.OpOr,
	"or":  dbexpr.OpOr,
	"+":   dbexpr.OpAdd,
	"-":   dbexpr.OpSubtract,
	"*":   dbexpr.OpMultiply,
	"/":   dbexpr.OpDivide,
	"%":   dbexpr.OpModulo,
}

// Parser translates expressions for one entity type
type Parser struct {
	td    *descriptor.TypeDescriptor
	table *dbexpr.Table
}

// NewParser creates a parser. With a nil explicitTable, column accesses are
// the registry's own and refer to the entity's table.
func NewParser(td *descriptor.TypeDescriptor, explicitTable *dbexpr.Table) *Parser {
	return &Parser{td: td, table: explicitTable}
}

// Factory is a descriptor.ParserFactory producing *Parser values
func Factory(td *descriptor.TypeDescriptor, explicitTable *dbexpr.Table) descriptor.ExpressionParser {
	return NewParser(td, explicitTable)
}

// Table returns the table column accesses are bound to
func (p *Parser) Table() *dbexpr.Table {
	if p.table != nil {
		return p.table
	}
	return p.td.Table()
}

// Parse translates source into a relational expression
func (p *Parser) Parse(source string) (dbexpr.Expression, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", source, err)
	}
	return p.translate(tree.Node)
}

func (p *Parser) translate(node ast.Node) (dbexpr.Expression, error) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return p.column(n.Value)

	case *ast.NilNode:
		return &dbexpr.Constant{Value: nil}, nil
	case *ast.BoolNode:
		return &dbexpr.Parameter{Value: n.Value}, nil
	case *ast.IntegerNode:
		return &dbexpr.Parameter{Value: int64(n.Value)}, nil
	case *ast.FloatNode:
		return &dbexpr.Parameter{Value: n.Value}, nil
	case *ast.StringNode:
		return &dbexpr.Parameter{Value: n.Value}, nil
	case *ast.ConstantNode:
		return &dbexpr.Parameter{Value: n.Value}, nil

	case *ast.UnaryNode:
		return p.unary(n)
	case *ast.BinaryNode:
		return p.binary(n)

	case *ast.MemberNode, *ast.ChainNode:
		return nil, fmt.Errorf("%w: member access %s", descriptor.ErrUnsupportedOperation, node)
	case *ast.CallNode, *ast.BuiltinNode:
		return nil, fmt.Errorf("%w: function call %s", descriptor.ErrUnsupportedOperation, node)
	default:
		return nil, fmt.Errorf("%w: expression %s", descriptor.ErrUnsupportedOperation, node)
	}
}

// column resolves an identifier to a column access
func (p *Parser) column(name string) (dbexpr.Expression, error) {
	member := entity.MemberOf(p.td.Type(), name)

	if access := p.td.TryGetColumnAccessExpression(member); access != nil {
		return p.bind(access), nil
	}

	nav, err := p.td.GetNavigationDescriptor(member)
	if err != nil {
		return nil, err
	}
	complexNav, ok := nav.(*descriptor.ComplexPropertyDescriptor)
	if !ok {
		return nil, fmt.Errorf("%w: collection %s cannot be compared", descriptor.ErrUnsupportedOperation, member)
	}

	fk := complexNav.ForeignKeyProperty()
	return p.bind(dbexpr.NewColumnAccess(p.td.Table(), fk.Column())), nil
}

func (p *Parser) bind(access *dbexpr.ColumnAccess) *dbexpr.ColumnAccess {
	if p.table == nil {
		return access
	}
	return access.WithTable(p.table)
}

func (p *Parser) unary(n *ast.UnaryNode) (dbexpr.Expression, error) {
	operand, err := p.translate(n.Node)
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "!", "not":
		// "x not in [...]" arrives as not(in); fold negation into the node.
		switch e := operand.(type) {
		case *dbexpr.In:
			return &dbexpr.In{Operand: e.Operand, Values: e.Values, Negated: !e.Negated}, nil
		case *dbexpr.IsNull:
			return &dbexpr.IsNull{Operand: e.Operand, Negated: !e.Negated}, nil
		}
		return &dbexpr.Not{Operand: operand}, nil

	case "+":
		return operand, nil

	case "-":
		if param, ok := operand.(*dbexpr.Parameter); ok {
			if v, ok := negate(param.Value); ok {
				return &dbexpr.Parameter{Value: v}, nil
			}
		}
		return &dbexpr.Binary{Op: dbexpr.OpSubtract, Left: &dbexpr.Parameter{Value: int64(0)}, Right: operand}, nil

	default:
		return nil, fmt.Errorf("%w: unary operator %q", descriptor.ErrUnsupportedOperation, n.Operator)
	}
}

func (p *Parser) binary(n *ast.BinaryNode) (dbexpr.Expression, error) {
	if n.Operator == "in" {
		return p.in(n)
	}

	op, ok := binaryOperators[n.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: operator %q", descriptor.ErrUnsupportedOperation, n.Operator)
	}

	left, err := p.translate(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := p.translate(n.Right)
	if err != nil {
		return nil, err
	}

	if op == dbexpr.OpEqual || op == dbexpr.OpNotEqual {
		negated := op == dbexpr.OpNotEqual
		if isNil(right) {
			return &dbexpr.IsNull{Operand: left, Negated: negated}, nil
		}
		if isNil(left) {
			return &dbexpr.IsNull{Operand: right, Negated: negated}, nil
		}
	}

	return &dbexpr.Binary{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) in(n *ast.BinaryNode) (dbexpr.Expression, error) {
	array, ok := n.Right.(*ast.ArrayNode)
	if !ok {
		return nil, fmt.Errorf("%w: in requires an array literal, got %s", descriptor.ErrUnsupportedOperation, n.Right)
	}

	operand, err := p.translate(n.Left)
	if err != nil {
		return nil, err
	}

	values := make([]dbexpr.Expression, 0, len(array.Nodes))
	for _, node := range array.Nodes {
		v, err := p.translate(node)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &dbexpr.In{Operand: operand, Values: values}, nil
}

func isNil(e dbexpr.Expression) bool {
	c, ok := e.(*dbexpr.Constant)
	return ok && c.Value == nil
}

func negate(v interface{}) (interface{}, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return -rv.Int(), true
	case reflect.Float32, reflect.Float64:
		return -rv.Float(), true
	default:
		return nil, false
	}
}
