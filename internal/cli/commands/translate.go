package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entitymap/internal/cli/ui"
	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
)

var translateAlias string

// NewTranslateCommand creates the translate command
func NewTranslateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <entity> <expression>",
		Short: "Translate a filter expression over an entity into SQL",
		Long: `Parse a boolean expression over an entity's properties and render it as
a SQL condition for the dialect. Literals become bind parameters.

Supported operators: == != < <= > >= && || ! in, and nil comparisons.`,
		Example: `  entitymap translate Order 'Total > 100 && CustomerId != nil'

  # Qualify columns with an alias
  entitymap translate Order 'Id in [1, 2, 3]' --alias o`,
		Args: cobra.ExactArgs(2),
		RunE: runTranslate,
	}

	cmd.Flags().StringVar(&translateAlias, "alias", "", "Table alias to qualify columns with")

	return cmd
}

func runTranslate(cmd *cobra.Command, args []string) error {
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

	var table *dbexpr.Table
	if translateAlias != "" {
		table = dbexpr.NewTable(translateAlias)
	}
	parser, err := td.GetExpressionParser(table)
	if err != nil {
		return err
	}

	expr, err := parser.Parse(args[1])
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.FormatError(ui.ErrorOptions{
			Context: "INVALID EXPRESSION",
			Problem: err.Error(),
			HelpCommands: []string{
				fmt.Sprintf("List properties: entitymap describe %s", td.Name()),
			},
			NoColor: noColor,
		}))
		return &reportedError{err: err}
	}

	sqlStr, params, err := dbexpr.Render(expr, p.dialect)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, sqlStr)
	writeArgs(out, params)
	return nil
}

func writeArgs(w io.Writer, params []interface{}) {
	if len(params) == 0 {
		return
	}
	fmt.Fprintln(w)
	kv := ui.NewKeyValueTable(w, noColor)
	for i, param := range params {
		kv.AddRow(fmt.Sprintf("Arg %d", i+1), fmt.Sprintf("%#v", param))
	}
	kv.Render()
}
