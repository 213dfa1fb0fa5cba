// Package mapping reads entity mappings from YAML files and builds type
// definitions for them. Entity types are created at run time, so a mapping
// file can describe tables that have no Go struct.
package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/entitymap/internal/orm/entity"
)

// ErrInvalidMapping is returned for mapping files that cannot be read
var ErrInvalidMapping = errors.New("invalid mapping file")

// File is a parsed mapping file
type File struct {
	Dialect  string   `yaml:"dialect,omitempty"`
	Entities []Entity `yaml:"entities"`

	model *model
}

// Entity maps one table
type Entity struct {
	Name       string     `yaml:"name"`
	Table      string     `yaml:"table,omitempty"`
	Schema     string     `yaml:"schema,omitempty"`
	Properties []Property `yaml:"properties"`
}

// Property maps one field of an entity
type Property struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind,omitempty"`
	Type          string `yaml:"type,omitempty"`
	Column        string `yaml:"column,omitempty"`
	PrimaryKey    bool   `yaml:"primary_key,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty"`
	Sequence      string `yaml:"sequence,omitempty"`
	Nullable      bool   `yaml:"nullable,omitempty"`
	Size          int    `yaml:"size,omitempty"`
	Target        string `yaml:"target,omitempty"`
	ForeignKey    string `yaml:"foreign_key,omitempty"`
}

// kind returns the property kind; properties without one are primitive
func (p Property) kind() (entity.Kind, error) {
	if p.Kind == "" {
		return entity.KindPrimitive, nil
	}
	return entity.ParseKind(p.Kind)
}

// Load reads and parses a mapping file
func Load(fs afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses mapping YAML. Structural problems (unknown keys, duplicate
// or invalid names) fail the whole file; per-entity mapping problems are
// reported by Definitions.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}

	f.model = buildModel(f.Entities)
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Entities) == 0 {
		return fmt.Errorf("%w: no entities", ErrInvalidMapping)
	}

	var errs []string
	entities := make(map[string]bool, len(f.Entities))
	for i, e := range f.Entities {
		if !isFieldName(e.Name) {
			errs = append(errs, fmt.Sprintf("entity %d: name %q is not an exported identifier", i, e.Name))
			continue
		}
		if entities[e.Name] {
			errs = append(errs, fmt.Sprintf("entity %s: declared more than once", e.Name))
			continue
		}
		entities[e.Name] = true

		properties := make(map[string]bool, len(e.Properties))
		for _, p := range e.Properties {
			if !isFieldName(p.Name) {
				errs = append(errs, fmt.Sprintf("entity %s: property name %q is not an exported identifier", e.Name, p.Name))
				continue
			}
			if properties[p.Name] {
				errs = append(errs, fmt.Sprintf("entity %s: property %s declared more than once", e.Name, p.Name))
			}
			properties[p.Name] = true
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrInvalidMapping, strings.Join(errs, "\n  "))
	}
	return nil
}

// Marshal renders the file as YAML
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

func isFieldName(name string) bool {
	return token.IsIdentifier(name) && token.IsExported(name)
}
