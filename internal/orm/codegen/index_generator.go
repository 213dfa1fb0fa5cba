package codegen

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
)

// GenerateForeignKeyIndexes generates indexes on the foreign key columns of
// td's navigation properties. A column that already is the whole primary key
// is not indexed again.
func (g *DDLGenerator) GenerateForeignKeyIndexes(td *descriptor.TypeDescriptor) []string {
	keys := td.PrimaryKeys()
	seen := make(map[string]bool)
	var indexes []string

	for _, nav := range td.NavigationDescriptors() {
		fk := nav.ForeignKeyProperty()
		if len(keys) == 1 && keys[0] == fk {
			continue
		}
		column := fk.Column().Name
		if seen[column] {
			continue
		}
		seen[column] = true

		indexName := fmt.Sprintf("idx_%s_%s", td.Table().Name, column)
		indexes = append(indexes, fmt.Sprintf("%s %s ON %s (%s);",
			g.createIndex(),
			g.dialect.QuoteIdentifier(indexName),
			g.dialect.QuoteTable(td.Table()),
			g.dialect.QuoteIdentifier(column)))
	}

	// Sort for deterministic output
	sort.Strings(indexes)

	return indexes
}

func (g *DDLGenerator) createIndex() string {
	// MySQL has no IF NOT EXISTS for indexes
	if g.dialect == dbexpr.MySQL {
		return "CREATE INDEX"
	}
	return "CREATE INDEX IF NOT EXISTS"
}
