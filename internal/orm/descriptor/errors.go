package descriptor

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/conduit-lang/entitymap/internal/orm/entity"
)

var (
	// ErrMappingConfiguration is returned when a declared mapping cannot be resolved
	ErrMappingConfiguration = errors.New("mapping configuration error")

	// ErrMemberNotMapped is returned by strict lookups of members without a descriptor
	ErrMemberNotMapped = errors.New("member not mapped")

	// ErrUnsupportedOperation is returned by resolution paths that are not available
	ErrUnsupportedOperation = errors.New("operation not supported")

	// ErrNoDefaultConstructor is returned when an entity cannot be created without arguments
	ErrNoDefaultConstructor = errors.New("no default constructor")
)

// MappingError reports a mapping that failed to resolve while building a descriptor
type MappingError struct {
	Type     reflect.Type
	Property string
	Reason   string
}

// Error implements the error interface
func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s.%s: %s", typeName(e.Type), e.Property, e.Reason)
}

// Unwrap returns ErrMappingConfiguration
func (e *MappingError) Unwrap() error {
	return ErrMappingConfiguration
}

// MemberNotMappedError names a member that has no descriptor on a type
type MemberNotMappedError struct {
	Type   reflect.Type
	Member entity.Member
}

// Error implements the error interface
func (e *MemberNotMappedError) Error() string {
	return fmt.Sprintf("cannot find property named %s on %s", e.Member.Name, typeName(e.Type))
}

// Unwrap returns ErrMemberNotMapped
func (e *MemberNotMappedError) Unwrap() error {
	return ErrMemberNotMapped
}

// ConstructionError reports an entity type without zero-argument construction
type ConstructionError struct {
	Type   reflect.Type
	Reason string
}

// Error implements the error interface
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s has no default constructor: %s", typeName(e.Type), e.Reason)
}

// Unwrap returns ErrNoDefaultConstructor
func (e *ConstructionError) Unwrap() error {
	return ErrNoDefaultConstructor
}

// IsMappingError returns true if err is a mapping configuration error
func IsMappingError(err error) bool {
	return errors.Is(err, ErrMappingConfiguration)
}

// IsMemberNotMapped returns true if err reports an unmapped member
func IsMemberNotMapped(err error) bool {
	return errors.Is(err, ErrMemberNotMapped)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return entity.TypeName(t)
}
