package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entitymap/internal/cli/ui"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the mapping file and list the registered entities",
		Long: `Build and register every entity of the mapping file.

Each entity is validated independently: its properties must map to columns,
its keys must exist and its navigations must name a foreign key of a
matching type. Every failure is reported, and the command fails when any
entity could not be registered.`,
		Example: `  # Check entities.yaml in the current directory
  entitymap check

  # Check another mapping file
  entitymap check --mapping schema/shop.yaml`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	defer p.close()

	out := cmd.OutOrStdout()
	ui.Header(out, fmt.Sprintf("Entities (%s)", p.dialect), noColor)

	table := ui.NewTable(out, []string{"Entity", "Table", "Columns", "Primary Key", "Navigations"}, noColor)
	registered := p.registered()
	for _, td := range registered {
		navigations := len(td.NavigationDescriptors()) + len(td.CollectionDescriptors())
		table.AddRow(
			td.Name(),
			td.Table().String(),
			strconv.Itoa(len(td.PropertyDescriptors())),
			keyNames(td),
			strconv.Itoa(navigations),
		)
	}
	table.Render()
	fmt.Fprintln(out)

	if failures := p.failures(); len(failures) > 0 {
		return report(cmd, ui.MappingError(failures, noColor),
			fmt.Errorf("%d of %d entities are invalid", len(failures), len(p.results)))
	}

	noun := "entities"
	if len(registered) == 1 {
		noun = "entity"
	}
	ui.WriteSuccess(out, fmt.Sprintf("%d %s registered", len(registered), noun), noColor)

	stats := p.registry.GetStats()
	fmt.Fprintf(out, "  columns: %d, navigations: %d, collections: %d\n",
		stats.TotalProperties, stats.TotalNavigations, stats.TotalCollections)
	if stats.TypesWithoutKey > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Warning(
			fmt.Sprintf("entities without a primary key: %d, navigations cannot reference them", stats.TypesWithoutKey), noColor))
	}
	return nil
}
