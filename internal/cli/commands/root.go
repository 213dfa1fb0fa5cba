package commands

import (
	"errors"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// Global flags shared by every command
var (
	verbose     bool
	noColor     bool
	mappingPath string
	dialectName string
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entitymap",
		Short: "Entity-relational mapping metadata registry and tooling",
		Long: color.CyanString(`entitymap - entity to table mapping metadata

entitymap reads entity mappings from a YAML file, validates them into
descriptors and works with the result:
  • check the mapping and list the registered entities
  • describe an entity's columns, keys and navigations
  • generate and apply the database schema
  • translate filter expressions into SQL
  • select rows through a registered entity`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log registration details to stderr")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.StringVarP(&mappingPath, "mapping", "m", "", "Mapping file (default from config: entities.yaml)")
	flags.StringVarP(&dialectName, "dialect", "d", "", "SQL dialect: postgres, mysql or sqlite")

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewDescribeCommand())
	rootCmd.AddCommand(NewDDLCommand())
	rootCmd.AddCommand(NewTranslateCommand())
	rootCmd.AddCommand(NewSelectCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the entitymap version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			// Set GoVersion to actual runtime if not set at build time
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			if noColor {
				titleColor.DisableColor()
				valueColor.DisableColor()
			}

			out := cmd.OutOrStdout()
			titleColor.Fprint(out, "entitymap version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
