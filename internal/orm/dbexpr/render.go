package dbexpr

import (
	"fmt"
	"strings"
)

// Renderer turns expression trees into SQL text with bound arguments.
// Argument numbering continues across calls so that several fragments can
// share one statement.
type Renderer struct {
	dialect      Dialect
	paramCounter int
	args         []interface{}
}

// NewRenderer creates a renderer for the dialect
func NewRenderer(dialect Dialect) *Renderer {
	return &Renderer{
		dialect: dialect,
		args:    make([]interface{}, 0),
	}
}

// Render renders a single expression as a standalone fragment
func Render(expr Expression, dialect Dialect) (string, []interface{}, error) {
	r := NewRenderer(dialect)
	sql, err := r.Render(expr)
	if err != nil {
		return "", nil, err
	}
	return sql, r.Args(), nil
}

// Args returns the arguments bound so far
func (r *Renderer) Args() []interface{} {
	return r.args
}

// Bind appends an argument and returns its placeholder
func (r *Renderer) Bind(value interface{}) string {
	r.paramCounter++
	r.args = append(r.args, value)
	return r.dialect.Placeholder(r.paramCounter)
}

// Render renders expr, appending its parameters to the renderer's arguments
func (r *Renderer) Render(expr Expression) (string, error) {
	switch e := expr.(type) {
	case nil:
		return "", fmt.Errorf("cannot render nil expression")

	case *ColumnAccess:
		if e.Table == nil || e.Column == nil {
			return "", fmt.Errorf("column access missing table or column")
		}
		return r.dialect.QuoteTable(e.Table) + "." + r.dialect.QuoteIdentifier(e.Column.Name), nil

	case *Constant:
		switch v := e.Value.(type) {
		case nil:
			return "NULL", nil
		case bool:
			if v {
				return "TRUE", nil
			}
			return "FALSE", nil
		default:
			return "", fmt.Errorf("constant of type %T cannot be inlined", e.Value)
		}

	case *Parameter:
		return r.Bind(e.Value), nil

	case *Binary:
		left, err := r.Render(e.Left)
		if err != nil {
			return "", err
		}
		right, err := r.Render(e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, e.Op, right), nil

	case *Not:
		operand, err := r.Render(e.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", operand), nil

	case *IsNull:
		operand, err := r.Render(e.Operand)
		if err != nil {
			return "", err
		}
		if e.Negated {
			return operand + " IS NOT NULL", nil
		}
		return operand + " IS NULL", nil

	case *In:
		operand, err := r.Render(e.Operand)
		if err != nil {
			return "", err
		}
		if len(e.Values) == 0 {
			// An empty list matches nothing; NOT IN () matches everything.
			if e.Negated {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		values := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			s, err := r.Render(v)
			if err != nil {
				return "", err
			}
			values = append(values, s)
		}
		op := "IN"
		if e.Negated {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", operand, op, strings.Join(values, ", ")), nil

	default:
		return "", fmt.Errorf("unsupported expression type %T", expr)
	}
}
