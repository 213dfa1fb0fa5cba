package codegen

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
)

// Lookup finds the descriptor of a related entity type. (*descriptor.Registry).Get
// satisfies it.
type Lookup func(reflect.Type) (*descriptor.TypeDescriptor, bool)

type foreignKey struct {
	name         string
	column       *dbexpr.Column
	target       *dbexpr.Table
	targetColumn string
}

// foreignKeys collects the constraints of td's navigations whose target is
// known and has exactly one primary key, one per key column
func (g *DDLGenerator) foreignKeys(td *descriptor.TypeDescriptor, lookup Lookup) []foreignKey {
	var fks []foreignKey
	seen := make(map[string]bool)
	for _, nav := range td.NavigationDescriptors() {
		target, ok := lookup(nav.TargetType())
		if !ok {
			continue
		}
		keys := target.PrimaryKeys()
		if len(keys) != 1 {
			continue
		}

		column := nav.ForeignKeyProperty().Column()
		if seen[column.Name] {
			continue
		}
		seen[column.Name] = true
		fks = append(fks, foreignKey{
			name:         fmt.Sprintf("%s_%s_fkey", td.Table().Name, column.Name),
			column:       column,
			target:       target.Table(),
			targetColumn: keys[0].Column().Name,
		})
	}

	sort.Slice(fks, func(i, j int) bool { return fks[i].name < fks[j].name })
	return fks
}

// GenerateForeignKeys generates ALTER TABLE ... FOREIGN KEY statements for
// td's navigation properties. Navigations to unknown types or to types
// without a single-column primary key are skipped.
func (g *DDLGenerator) GenerateForeignKeys(td *descriptor.TypeDescriptor, lookup Lookup) ([]string, error) {
	if g.dialect == dbexpr.SQLite {
		return nil, fmt.Errorf("%w: sqlite cannot add foreign keys to existing tables",
			descriptor.ErrUnsupportedOperation)
	}

	fks := g.foreignKeys(td, lookup)
	constraints := make([]string, 0, len(fks))
	for _, fk := range fks {
		constraints = append(constraints, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;",
			g.dialect.QuoteTable(td.Table()),
			g.dialect.QuoteIdentifier(fk.name),
			g.foreignKeyClause(fk)))
	}
	return constraints, nil
}

func (g *DDLGenerator) foreignKeyClause(fk foreignKey) string {
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)%s",
		g.dialect.QuoteIdentifier(fk.column.Name),
		g.dialect.QuoteTable(fk.target),
		g.dialect.QuoteIdentifier(fk.targetColumn),
		g.onDelete(fk.column))
}

// onDelete clears nullable keys and blocks deletes referenced by required ones
func (g *DDLGenerator) onDelete(column *dbexpr.Column) string {
	if IsNullable(column) {
		return " ON DELETE SET NULL"
	}
	return " ON DELETE RESTRICT"
}
