package commands

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/entitymap/internal/cli/config"
	"github.com/conduit-lang/entitymap/internal/cli/ui"
	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/descriptor"
	"github.com/conduit-lang/entitymap/internal/orm/mapping"
	"github.com/conduit-lang/entitymap/internal/orm/translate"
)

// reportedError is returned once the failure has been written to stderr
type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() error {
	return e.err
}

// report writes a formatted message to the command's stderr
func report(cmd *cobra.Command, message string, err error) error {
	fmt.Fprint(cmd.ErrOrStderr(), message)
	return &reportedError{err: err}
}

// project is a loaded mapping file with every valid entity registered
type project struct {
	cfg      *config.Config
	dialect  dbexpr.Dialect
	logger   *zap.Logger
	file     *mapping.File
	registry *descriptor.Registry
	results  []mapping.Result
}

// loadProject reads the configuration and mapping file, then registers the
// entities. Entities that fail stay in results with their error.
func loadProject(cmd *cobra.Command) (*project, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, report(cmd, ui.ConfigError(err.Error(), noColor), err)
	}
	if mappingPath != "" {
		cfg.Mapping = mappingPath
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	file, err := mapping.Load(config.AppFs, cfg.Mapping)
	if err != nil {
		logger.Sync()
		return nil, report(cmd, ui.MappingError([]string{err.Error()}, noColor), err)
	}

	dialect, err := resolveDialect(cfg, file)
	if err != nil {
		logger.Sync()
		return nil, report(cmd, ui.ConfigError(err.Error(), noColor), err)
	}

	opts := []descriptor.Option{
		descriptor.WithLogger(logger),
		descriptor.WithParserFactory(translate.Factory),
	}
	if cfg.Navigation.ResolveCollections {
		opts = append(opts, descriptor.WithCollectionResolver(descriptor.ResolveElementForeignKey))
	}
	registry := descriptor.NewRegistry(opts...)

	results := file.Definitions()
	for i := range results {
		if results[i].Err != nil {
			continue
		}
		if _, err := registry.Register(results[i].Definition); err != nil {
			results[i].Err = err
		}
	}

	logger.Debug("mapping loaded",
		zap.String("mapping", cfg.Mapping),
		zap.String("dialect", dialect.String()),
		zap.Int("registered", registry.Count()),
		zap.Int("entities", len(results)))

	return &project{
		cfg:      cfg,
		dialect:  dialect,
		logger:   logger,
		file:     file,
		registry: registry,
		results:  results,
	}, nil
}

// newLogger builds a development logger in verbose mode and a production
// logger at the configured level otherwise
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	return zc.Build()
}

// resolveDialect picks the --dialect flag, then the mapping file's dialect,
// then the configured one
func resolveDialect(cfg *config.Config, file *mapping.File) (dbexpr.Dialect, error) {
	switch {
	case dialectName != "":
		return dbexpr.ParseDialect(dialectName)
	case file.Dialect != "":
		d, err := dbexpr.ParseDialect(file.Dialect)
		if err != nil {
			return 0, fmt.Errorf("mapping %s: %w", cfg.Mapping, err)
		}
		return d, nil
	default:
		return cfg.ParsedDialect(), nil
	}
}

func (p *project) close() {
	p.logger.Sync()
}

// failures lists the error of every entity that could not be registered
func (p *project) failures() []string {
	var problems []string
	for _, r := range p.results {
		if r.Err != nil {
			problems = append(problems, r.Err.Error())
		}
	}
	return problems
}

// registered returns the registered descriptors in mapping file order
func (p *project) registered() []*descriptor.TypeDescriptor {
	tds := make([]*descriptor.TypeDescriptor, 0, len(p.results))
	for _, r := range p.results {
		if r.Err != nil {
			continue
		}
		if td, ok := p.registry.GetByName(r.Name); ok {
			tds = append(tds, td)
		}
	}
	return tds
}

func (p *project) lookup() func(reflect.Type) (*descriptor.TypeDescriptor, bool) {
	return p.file.Lookup(p.registry.Get)
}

// entity finds a registered entity by name, reporting close matches when
// there is none
func (p *project) entity(cmd *cobra.Command, name string) (*descriptor.TypeDescriptor, error) {
	if td, ok := p.registry.GetByName(name); ok {
		return td, nil
	}
	suggestions := ui.FindSimilar(name, p.registry.Names())
	return nil, report(cmd, ui.EntityNotFoundError(name, suggestions, noColor),
		fmt.Errorf("entity %s not found", name))
}

// warnFailures notes skipped entities without failing the command
func (p *project) warnFailures(cmd *cobra.Command) {
	if failures := p.failures(); len(failures) > 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Warning(
			fmt.Sprintf("%d invalid entities skipped, run entitymap check", len(failures)), noColor))
	}
}

// targetName names the entity a navigation points at
func (p *project) targetName(t reflect.Type) string {
	if td, ok := p.lookup()(t); ok {
		return td.Name()
	}
	return t.String()
}

func keyNames(td *descriptor.TypeDescriptor) string {
	keys := td.PrimaryKeys()
	if len(keys) == 0 {
		return "-"
	}
	names := make([]string, len(keys))
	for i, pd := range keys {
		names[i] = pd.Property().Name
	}
	return strings.Join(names, ", ")
}
