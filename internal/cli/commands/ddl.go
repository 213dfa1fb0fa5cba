package commands

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entitymap/internal/cli/ui"
	"github.com/conduit-lang/entitymap/internal/orm/codegen"
	"github.com/conduit-lang/entitymap/internal/orm/query"
)

var (
	ddlDrop  bool
	ddlApply bool
	ddlDSN   string
	ddlYes   bool
)

// NewDDLCommand creates the ddl command
func NewDDLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Generate the database schema of the mapped entities",
		Long: `Generate CREATE statements for every registered entity: sequences,
tables, foreign keys, then foreign key indexes.

With --apply the statements are executed against the configured database
instead of being printed.`,
		Example: `  # Print the PostgreSQL schema
  entitymap ddl

  # Print the SQLite schema, dropping existing tables first
  entitymap ddl --dialect sqlite --drop

  # Create the tables in a database
  entitymap ddl --apply --dsn "postgres://localhost/shop?sslmode=disable"

  # Recreate the tables without a confirmation prompt
  entitymap ddl --apply --drop --yes`,
		Args: cobra.NoArgs,
		RunE: runDDL,
	}

	cmd.Flags().BoolVar(&ddlDrop, "drop", false, "Drop existing tables first")
	cmd.Flags().BoolVar(&ddlApply, "apply", false, "Execute the statements against the database")
	cmd.Flags().StringVar(&ddlDSN, "dsn", "", "Database connection string (default: database.url)")
	cmd.Flags().BoolVarP(&ddlYes, "yes", "y", false, "Apply --drop without asking for confirmation")

	return cmd
}

func runDDL(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	defer p.close()

	// A partial schema would leave dangling foreign keys.
	if failures := p.failures(); len(failures) > 0 {
		return report(cmd, ui.MappingError(failures, noColor),
			fmt.Errorf("%d entities are invalid", len(failures)))
	}

	types := p.registered()
	gen := codegen.NewDDLGenerator(p.dialect)

	var statements []string
	if ddlDrop {
		statements = gen.GenerateDropStatements(types, p.lookup())
	}
	create, err := gen.GenerateStatements(types, p.lookup())
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	statements = append(statements, create...)

	out := cmd.OutOrStdout()
	if !ddlApply {
		fmt.Fprintln(out, strings.Join(statements, "\n\n"))
		return nil
	}

	dsn := ddlDSN
	if dsn == "" {
		dsn = p.cfg.Database.URL
	}
	if dsn == "" {
		return report(cmd, ui.ConfigError("no database to apply the schema to, set database.url or --dsn", noColor),
			errors.New("no database url"))
	}

	if ddlDrop && !ddlYes {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Drop and recreate %d tables?", len(types)),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	ctx := cmd.Context()
	db, err := query.Open(ctx, p.dialect, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	// MySQL commits each DDL statement implicitly; elsewhere the schema is
	// applied atomically.
	err = query.WithTransaction(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range statements {
			p.logger.Debug("executing statement", zap.String("sql", stmt))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), query.ConvertDBError(err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ui.WriteSuccess(out, fmt.Sprintf("applied %d statements for %d entities", len(statements), len(types)), noColor)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
