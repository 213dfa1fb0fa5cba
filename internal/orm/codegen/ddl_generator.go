package codegen

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
)

// DDLGenerator generates DDL statements from type descriptors
type DDLGenerator struct {
	dialect    dbexpr.Dialect
	typeMapper *TypeMapper
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(dialect dbexpr.Dialect) *DDLGenerator {
	return &DDLGenerator{
		dialect:    dialect,
		typeMapper: NewTypeMapper(dialect),
	}
}

// Dialect returns the generator's dialect
func (g *DDLGenerator) Dialect() dbexpr.Dialect {
	return g.dialect
}

// GenerateCreateTable generates a CREATE TABLE statement for a type descriptor.
// Columns keep definition order.
func (g *DDLGenerator) GenerateCreateTable(td *descriptor.TypeDescriptor) (string, error) {
	return g.createTable(td, nil)
}

func (g *DDLGenerator) createTable(td *descriptor.TypeDescriptor, foreignKeys []foreignKey) (string, error) {
	if td == nil {
		return "", fmt.Errorf("type descriptor cannot be nil")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", g.dialect.QuoteTable(td.Table())))

	properties := td.PropertyDescriptors()
	defs := make([]string, 0, len(properties)+1+len(foreignKeys))
	inlineKey := false

	for _, pd := range properties {
		def, inline, err := g.generateColumnDefinition(td, pd)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", td.Name(), pd.Property().Name, err)
		}
		inlineKey = inlineKey || inline
		defs = append(defs, def)
	}

	if td.HasPrimaryKey() && !inlineKey {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", g.columnList(td.PrimaryKeys())))
	}

	for _, fk := range foreignKeys {
		defs = append(defs, g.foreignKeyClause(fk))
	}

	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString(");")

	return b.String(), nil
}

// generateColumnDefinition generates a column definition. The second result
// reports whether the column carries the primary key inline.
func (g *DDLGenerator) generateColumnDefinition(td *descriptor.TypeDescriptor, pd *descriptor.PrimitivePropertyDescriptor) (string, bool, error) {
	col := pd.Column()
	columnType, err := g.typeMapper.MapType(col)
	if err != nil {
		return "", false, fmt.Errorf("mapping type: %w", err)
	}

	parts := []string{g.dialect.QuoteIdentifier(col.Name)}

	if pd != td.AutoIncrement() {
		parts = append(parts, columnType)
		if pd.IsPrimaryKey() {
			parts = append(parts, "NOT NULL")
		} else {
			parts = append(parts, g.typeMapper.MapNullability(col))
		}
		return strings.Join(parts, " "), false, nil
	}

	switch g.dialect {
	case dbexpr.Postgres:
		if seq := pd.PrimitiveDefinition().SequenceName(); seq != "" {
			parts = append(parts, columnType, "NOT NULL",
				"DEFAULT nextval("+quoteLiteral(g.sequenceRef(td, seq))+")")
			break
		}
		serial, ok := g.typeMapper.SerialType(columnType)
		if !ok {
			return "", false, fmt.Errorf("auto-increment column must be an integer, got %s", columnType)
		}
		parts = append(parts, serial, "NOT NULL")

	case dbexpr.MySQL:
		parts = append(parts, columnType, "NOT NULL", "AUTO_INCREMENT")

	case dbexpr.SQLite:
		if !pd.IsPrimaryKey() || len(td.PrimaryKeys()) != 1 || columnType != "INTEGER" {
			return "", false, fmt.Errorf("sqlite supports auto-increment only on a single integer primary key")
		}
		parts = append(parts, "INTEGER PRIMARY KEY AUTOINCREMENT")
		return strings.Join(parts, " "), true, nil
	}

	return strings.Join(parts, " "), false, nil
}

// GenerateCreateSequence generates the CREATE SEQUENCE statement feeding the
// auto-increment column. Only Postgres uses named sequences.
func (g *DDLGenerator) GenerateCreateSequence(td *descriptor.TypeDescriptor) (string, bool) {
	if g.dialect != dbexpr.Postgres {
		return "", false
	}
	ai := td.AutoIncrement()
	if ai == nil || ai.PrimitiveDefinition().SequenceName() == "" {
		return "", false
	}
	return fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s;", g.sequenceRef(td, ai.PrimitiveDefinition().SequenceName())), true
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(td *descriptor.TypeDescriptor) string {
	if g.dialect == dbexpr.Postgres {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", g.dialect.QuoteTable(td.Table()))
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.dialect.QuoteTable(td.Table()))
}

// GenerateDropStatements generates DROP TABLE statements for types, dropping
// referencing tables before the tables they reference
func (g *DDLGenerator) GenerateDropStatements(types []*descriptor.TypeDescriptor, lookup Lookup) []string {
	order := dependencyOrder(types, lookup)
	statements := make([]string, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		statements = append(statements, g.GenerateDropTable(order[i]))
	}
	return statements
}

// dependencyOrder places every type after the types its navigations
// reference. Types on a reference cycle keep their relative input order.
func dependencyOrder(types []*descriptor.TypeDescriptor, lookup Lookup) []*descriptor.TypeDescriptor {
	included := make(map[*descriptor.TypeDescriptor]bool, len(types))
	for _, td := range types {
		included[td] = true
	}

	visited := make(map[*descriptor.TypeDescriptor]bool, len(types))
	order := make([]*descriptor.TypeDescriptor, 0, len(types))
	var visit func(td *descriptor.TypeDescriptor)
	visit = func(td *descriptor.TypeDescriptor) {
		if visited[td] {
			return
		}
		visited[td] = true
		for _, nav := range td.NavigationDescriptors() {
			if target, ok := lookup(nav.TargetType()); ok && included[target] {
				visit(target)
			}
		}
		order = append(order, td)
	}
	for _, td := range types {
		visit(td)
	}
	return order
}

// GenerateSchema generates the complete DDL of every registered type:
// sequences, tables, foreign keys, then foreign key indexes. Types are
// processed in name order.
func (g *DDLGenerator) GenerateSchema(registry *descriptor.Registry) (string, error) {
	return g.GenerateSchemaFor(registry.List(), registry.Get)
}

// GenerateSchemaFor generates the DDL of types in the given order, resolving
// navigation targets through lookup
func (g *DDLGenerator) GenerateSchemaFor(types []*descriptor.TypeDescriptor, lookup Lookup) (string, error) {
	statements, err := g.GenerateStatements(types, lookup)
	if err != nil {
		return "", err
	}
	return strings.Join(statements, "\n\n"), nil
}

// GenerateStatements returns the schema of types as separate statements,
// in the order they must be executed
func (g *DDLGenerator) GenerateStatements(types []*descriptor.TypeDescriptor, lookup Lookup) ([]string, error) {
	var statements []string

	for _, td := range types {
		if seq, ok := g.GenerateCreateSequence(td); ok {
			statements = append(statements, seq)
		}
	}

	for _, td := range types {
		var inline []foreignKey
		// SQLite cannot add constraints to existing tables.
		if g.dialect == dbexpr.SQLite {
			inline = g.foreignKeys(td, lookup)
		}
		table, err := g.createTable(td, inline)
		if err != nil {
			return nil, err
		}
		statements = append(statements, table)
	}

	if g.dialect != dbexpr.SQLite {
		for _, td := range types {
			fks, err := g.GenerateForeignKeys(td, lookup)
			if err != nil {
				return nil, err
			}
			statements = append(statements, fks...)
		}
	}

	for _, td := range types {
		statements = append(statements, g.GenerateForeignKeyIndexes(td)...)
	}

	return statements, nil
}

func (g *DDLGenerator) columnList(pds []*descriptor.PrimitivePropertyDescriptor) string {
	names := make([]string, len(pds))
	for i, pd := range pds {
		names[i] = g.dialect.QuoteIdentifier(pd.Column().Name)
	}
	return strings.Join(names, ", ")
}

// sequenceRef qualifies a sequence with the table's schema
func (g *DDLGenerator) sequenceRef(td *descriptor.TypeDescriptor, sequence string) string {
	return g.dialect.QuoteTable(&dbexpr.Table{Name: sequence, Schema: td.Table().Schema})
}
