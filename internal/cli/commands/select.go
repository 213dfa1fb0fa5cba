package commands

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entitymap/internal/cli/ui"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/query"
)

var (
	selectWhere   []string
	selectOrderBy string
	selectDesc    bool
	selectLimit   int
	selectOffset  int
	selectSQL     bool
	selectDSN     string
)

// NewSelectCommand creates the select command
func NewSelectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <entity>",
		Short: "Query the rows of an entity",
		Long: `Build a SELECT over an entity's mapped columns and print the rows.

Filters use the same expressions as translate; repeated --where flags are
combined with AND.`,
		Example: `  # First ten paid orders, newest first
  entitymap select Order --where 'Status == "paid"' --order Id --desc --limit 10

  # Print the statement without running it
  entitymap select Order --where 'Total > 100' --sql`,
		Args: cobra.ExactArgs(1),
		RunE: runSelect,
	}

	cmd.Flags().StringArrayVarP(&selectWhere, "where", "w", nil, "Filter expression (repeatable)")
	cmd.Flags().StringVar(&selectOrderBy, "order", "", "Property to order by")
	cmd.Flags().BoolVar(&selectDesc, "desc", false, "Order descending")
	cmd.Flags().IntVar(&selectLimit, "limit", 0, "Maximum number of rows (0 for no limit)")
	cmd.Flags().IntVar(&selectOffset, "offset", 0, "Number of rows to skip")
	cmd.Flags().BoolVar(&selectSQL, "sql", false, "Print the statement instead of running it")
	cmd.Flags().StringVar(&selectDSN, "dsn", "", "Database connection string (default: database.url)")

	return cmd
}

func runSelect(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	defer p.close()
	p.warnFailures(cmd)

	td, err := p.entity(cmd, args[0])
	if err != nil {
		return err
	}

	q := query.New(td, p.dialect)
	for _, where := range selectWhere {
		q.Where(where)
	}
	if selectOrderBy != "" {
		q.OrderBy(selectOrderBy, selectDesc)
	}
	if selectLimit > 0 {
		q.Limit(selectLimit)
	}
	if selectOffset > 0 {
		q.Offset(selectOffset)
	}

	out := cmd.OutOrStdout()
	if selectSQL {
		sqlStr, params, err := q.Build()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, sqlStr)
		writeArgs(out, params)
		return nil
	}

	dsn := selectDSN
	if dsn == "" {
		dsn = p.cfg.Database.URL
	}
	if dsn == "" {
		return report(cmd, ui.ConfigError("no database to query, set database.url or --dsn", noColor),
			errors.New("no database url"))
	}

	ctx := cmd.Context()
	db, err := query.Open(ctx, p.dialect, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := q.Fetch(ctx, db)
	if err != nil {
		return err
	}

	pds := td.PropertyDescriptors()
	headers := make([]string, len(pds))
	for i, pd := range pds {
		headers[i] = pd.Property().Name
	}
	table := ui.NewTable(out, headers, noColor)
	for _, row := range rows {
		table.AddRow(rowCells(row, pds)...)
	}
	table.Render()

	noun := "rows"
	if len(rows) == 1 {
		noun = "row"
	}
	fmt.Fprintf(out, "\n(%d %s)\n", len(rows), noun)
	return nil
}

// rowCells formats the mapped columns of one entity
func rowCells(row interface{}, pds []*descriptor.PrimitivePropertyDescriptor) []string {
	v := reflect.ValueOf(row).Elem()
	cells := make([]string, len(pds))
	for i, pd := range pds {
		field, err := v.FieldByIndexErr(pd.Property().Index)
		if err != nil {
			// Nil embedded struct
			cells[i] = "NULL"
			continue
		}
		cells[i] = formatValue(field)
	}
	return cells
}

func formatValue(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "NULL"
		}
		v = v.Elem()
	}
	switch val := v.Interface().(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return fmt.Sprintf("%x", val)
	default:
		return fmt.Sprint(val)
	}
}
