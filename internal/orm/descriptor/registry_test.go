package descriptor

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/conduit-lang/entitymap/internal/orm/entity"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type Author struct {
	Id    int64  `db:"id,pk,auto"`
	Name  string `db:"name,size=120"`
	Books []Book `db:",fk=AuthorId"`
}

type Book struct {
	Id       int64   `db:"id,pk,auto"`
	AuthorId int64   `db:"author_id"`
	Author   *Author `db:",fk=AuthorId"`
	Title    string
}

type Tag struct {
	Label string `db:"label"`
}

type BrokenBook struct {
	Id     int64   `db:"id,pk"`
	Author *Author `db:",fk=WriterId"`
}

func scan(t *testing.T, v interface{}) *entity.TypeDefinition {
	t.Helper()
	def, err := entity.Scan(reflect.TypeOf(v))
	if err != nil {
		t.Fatalf("scan %T: %v", v, err)
	}
	return def
}

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		registry := NewRegistry()

		td, err := registry.Register(scan(t, Book{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		retrieved, exists := registry.Get(reflect.TypeOf(&Book{}))
		if !exists {
			t.Fatal("descriptor should exist")
		}
		if retrieved != td {
			t.Error("expected the registered descriptor")
		}

		byName, exists := registry.GetByName("Book")
		if !exists || byName != td {
			t.Error("expected lookup by name to find Book")
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		registry := NewRegistry()

		if _, err := registry.Register(scan(t, Book{})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := registry.Register(scan(t, Book{})); err == nil {
			t.Error("expected error for duplicate registration")
		}
	})

	t.Run("nil definition", func(t *testing.T) {
		registry := NewRegistry()
		if _, err := registry.Register(nil); !errors.Is(err, ErrMappingConfiguration) {
			t.Errorf("expected ErrMappingConfiguration, got %v", err)
		}
	})

	t.Run("misconfigured type is not registered", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Register(scan(t, BrokenBook{}))
		if !IsMappingError(err) {
			t.Fatalf("expected mapping error, got %v", err)
		}
		if registry.Exists(reflect.TypeOf(BrokenBook{})) {
			t.Error("BrokenBook should not be registered")
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		registry := NewRegistry()

		for _, v := range []interface{}{Tag{}, Book{}, Author{}} {
			if _, err := registry.Register(scan(t, v)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		names := registry.Names()
		expected := []string{"Author", "Book", "Tag"}
		if !reflect.DeepEqual(names, expected) {
			t.Errorf("expected %v, got %v", expected, names)
		}
		if registry.Count() != 3 {
			t.Errorf("expected 3 types, got %d", registry.Count())
		}
	})
}

func TestRegistry_RegisterAll(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	registry := NewRegistry(WithLogger(zap.New(core)))

	registered, err := registry.RegisterAll([]*entity.TypeDefinition{
		scan(t, Author{}),
		scan(t, BrokenBook{}),
		scan(t, Book{}),
	})

	if err == nil {
		t.Fatal("expected error for BrokenBook")
	}
	if !IsMappingError(err) {
		t.Errorf("expected joined error to wrap ErrMappingConfiguration, got %v", err)
	}
	if len(registered) != 2 {
		t.Errorf("expected 2 registered descriptors, got %d", len(registered))
	}
	if !registry.Exists(reflect.TypeOf(Book{})) {
		t.Error("Book should be registered after BrokenBook failed")
	}

	if n := logs.FilterMessage("entity type registered").Len(); n != 2 {
		t.Errorf("expected 2 registration logs, got %d", n)
	}
	rejected := logs.FilterMessage("entity type rejected").All()
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejection log, got %d", len(rejected))
	}
	if rejected[0].ContextMap()["type"] != "BrokenBook" {
		t.Errorf("expected rejection of BrokenBook, got %v", rejected[0].ContextMap()["type"])
	}
}

func TestRegistry_GetStats(t *testing.T) {
	registry := NewRegistry(WithCollectionResolver(ResolveElementForeignKey))
	for _, v := range []interface{}{Author{}, Book{}, Tag{}} {
		if _, err := registry.Register(scan(t, v)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats := registry.GetStats()
	expected := RegistryStats{
		TotalTypes:             3,
		TotalProperties:        6,
		TotalPrimaryKeys:       2,
		TotalNavigations:       1,
		TotalCollections:       1,
		TypesWithoutKey:        1,
		TypesWithAutoIncrement: 2,
	}
	if *stats != expected {
		t.Errorf("expected %+v, got %+v", expected, *stats)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Register(scan(t, Book{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	member := entity.MemberOf(reflect.TypeOf(Book{}), "Title")
	tag := scan(t, Tag{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			td, ok := registry.Get(reflect.TypeOf(Book{}))
			if !ok || td.TryGetColumnAccessExpression(member) == nil {
				t.Error("expected Book.Title to be mapped")
			}
		}()
		go func() {
			defer wg.Done()
			registry.Register(tag)
			registry.List()
		}()
	}
	wg.Wait()

	if registry.Count() != 2 {
		t.Errorf("expected 2 types, got %d", registry.Count())
	}
}
