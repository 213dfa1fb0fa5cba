package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/entitymap/internal/cli/ui"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/mapping"
)

var describeYAML bool

// NewDescribeCommand creates the describe command
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <entity>",
		Short: "Show the columns, keys and navigations of an entity",
		Example: `  # Show how Order is mapped
  entitymap describe Order

  # Print the entity back as mapping YAML
  entitymap describe Order --yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runDescribe,
	}

	cmd.Flags().BoolVar(&describeYAML, "yaml", false, "Print the registered entity as mapping YAML")

	return cmd
}

func runDescribe(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	defer p.close()

	td, err := p.entity(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if describeYAML {
		data, err := mapping.FromDescriptors([]*descriptor.TypeDescriptor{td}, p.lookup()).Marshal()
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", td.Name(), err)
		}
		_, err = out.Write(data)
		return err
	}

	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("Entity", td.Name())
	kv.AddRow("Table", td.Table().String())
	kv.AddRow("Primary key", keyNames(td))
	if ai := td.AutoIncrement(); ai != nil {
		kv.AddRow("Auto increment", ai.Property().Name)
	}
	kv.Render()
	fmt.Fprintln(out)

	table := ui.NewTable(out, []string{"Property", "Kind", "Column", "Type", "Flags"}, noColor)
	for _, pd := range td.PropertyDescriptors() {
		col := pd.Column()
		table.AddRow(pd.Property().Name, pd.Kind().String(), col.Name, col.Type.String(), columnFlags(pd))
	}
	for _, nd := range td.NavigationDescriptors() {
		fk := nd.ForeignKeyProperty()
		table.AddRow(nd.Definition().Property().Name, nd.Kind().String(), fk.Column().Name, p.targetName(nd.TargetType()), "")
	}
	for _, cd := range td.CollectionDescriptors() {
		key := "-"
		if fk, ok := cd.ForeignKey(); ok {
			key = fk.Name
		}
		table.AddRow(cd.Definition().Property().Name, cd.Kind().String(), key, "[]"+p.targetName(cd.ElementType()), "")
	}
	table.Render()
	return nil
}

func columnFlags(pd *descriptor.PrimitivePropertyDescriptor) string {
	var flags []string
	if pd.IsPrimaryKey() {
		flags = append(flags, "pk")
	}
	if pd.IsAutoIncrement() {
		flags = append(flags, "auto")
	}
	if seq := pd.PrimitiveDefinition().SequenceName(); seq != "" {
		flags = append(flags, "seq="+seq)
	}
	if pd.Column().Nullable {
		flags = append(flags, "null")
	}
	if size := pd.Column().Size; size > 0 {
		flags = append(flags, fmt.Sprintf("size=%d", size))
	}
	return strings.Join(flags, " ")
}
