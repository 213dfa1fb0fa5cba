package descriptor

import (
	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
	"github.com/conduit-lang/entitymap/internal/orm/entity"
	"go.uber.org/zap"
)

// ExpressionParser translates query expressions over an entity's members into
// relational expressions. Implementations live outside this package.
type ExpressionParser interface {
	// Parse translates source into a relational expression
	Parse(source string) (dbexpr.Expression, error)

	// Table returns the table column accesses are bound to
	Table() *dbexpr.Table
}

// ParserFactory creates a parser for a type descriptor. explicitTable is nil
// for the default parser and names the override table otherwise.
type ParserFactory func(td *TypeDescriptor, explicitTable *dbexpr.Table) ExpressionParser

// CollectionResolver decides how a collection navigation is bound to the key
// on its element type. It runs once per collection property while the
// declaring type descriptor is built; an error aborts the build.
type CollectionResolver func(def *entity.CollectionPropertyDefinition, declaring *TypeDescriptor) (entity.Property, error)

type options struct {
	logger             *zap.Logger
	parserFactory      ParserFactory
	collectionResolver CollectionResolver
}

// Option configures type descriptors and registries
type Option func(*options)

// WithLogger sets the logger used while building descriptors
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParserFactory sets the factory used by GetExpressionParser
func WithParserFactory(factory ParserFactory) Option {
	return func(o *options) {
		o.parserFactory = factory
	}
}

// WithCollectionResolver enables resolution of collection navigations
func WithCollectionResolver(resolver CollectionResolver) Option {
	return func(o *options) {
		o.collectionResolver = resolver
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
