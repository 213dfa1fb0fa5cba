package descriptor

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/conduit-lang/entitymap/internal/orm/entity"
	"go.uber.org/zap"
)

// Registry holds the type descriptors of all mapped entity types. It is
// populated at startup and read for the lifetime of the process.
type Registry struct {
	descriptors map[reflect.Type]*TypeDescriptor
	opts        []Option
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewRegistry creates a registry. The options are applied to every
// descriptor it builds.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		descriptors: make(map[reflect.Type]*TypeDescriptor),
		opts:        opts,
		logger:      buildOptions(opts).logger,
	}
}

// Register builds and stores the descriptor for a type definition
func (r *Registry) Register(definition *entity.TypeDefinition) (*TypeDescriptor, error) {
	if definition == nil {
		return nil, fmt.Errorf("%w: nil type definition", ErrMappingConfiguration)
	}
	typ := definition.Type()
	name := definition.Name()

	if r.Exists(typ) {
		return nil, fmt.Errorf("entity type %s is already registered", name)
	}

	// Build outside the lock; construction is pure.
	td, err := NewTypeDescriptor(definition, r.opts...)
	if err != nil {
		r.logger.Warn("entity type rejected",
			zap.String("type", name),
			zap.Error(err))
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[typ]; exists {
		return nil, fmt.Errorf("entity type %s is already registered", name)
	}
	r.descriptors[typ] = td

	r.logger.Info("entity type registered",
		zap.String("type", name),
		zap.String("table", td.Table().String()))
	return td, nil
}

// RegisterAll registers every definition. Misconfigured types are skipped
// and reported together in the returned error; the others stay registered.
func (r *Registry) RegisterAll(definitions []*entity.TypeDefinition) ([]*TypeDescriptor, error) {
	registered := make([]*TypeDescriptor, 0, len(definitions))
	var errs []error

	for _, def := range definitions {
		td, err := r.Register(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		registered = append(registered, td)
	}

	return registered, errors.Join(errs...)
}

// Get retrieves the descriptor of an entity type (pointer types are dereferenced)
func (r *Registry) Get(typ reflect.Type) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	td, exists := r.descriptors[deref(typ)]
	return td, exists
}

// GetByName retrieves a descriptor by entity type name
func (r *Registry) GetByName(name string) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, td := range r.descriptors {
		if td.Name() == name {
			return td, true
		}
	}
	return nil, false
}

// List returns all descriptors ordered by type name
func (r *Registry) List() []*TypeDescriptor {
	r.mu.RLock()
	result := make([]*TypeDescriptor, 0, len(r.descriptors))
	for _, td := range r.descriptors {
		result = append(result, td)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Names returns the registered type names in order
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, td := range list {
		names[i] = td.Name()
	}
	return names
}

// Count returns the number of registered types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.descriptors)
}

// Exists checks whether an entity type is registered
func (r *Registry) Exists(typ reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.descriptors[deref(typ)]
	return exists
}

// RegistryStats summarizes the registry
type RegistryStats struct {
	TotalTypes             int
	TotalProperties        int
	TotalPrimaryKeys       int
	TotalNavigations       int
	TotalCollections       int
	TypesWithoutKey        int
	TypesWithAutoIncrement int
}

// GetStats returns statistics about the registry
func (r *Registry) GetStats() *RegistryStats {
	stats := &RegistryStats{}
	for _, td := range r.List() {
		stats.TotalTypes++
		stats.TotalProperties += len(td.propertyDescriptors)
		stats.TotalPrimaryKeys += len(td.primaryKeys)
		stats.TotalNavigations += len(td.navigationDescriptors)
		stats.TotalCollections += len(td.collectionDescriptors)
		if !td.HasPrimaryKey() {
			stats.TypesWithoutKey++
		}
		if td.autoIncrement != nil {
			stats.TypesWithAutoIncrement++
		}
	}
	return stats
}
