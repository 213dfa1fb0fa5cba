package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
)

// chdir moves into a fresh directory for the duration of the test
func chdir(t *testing.T) {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWd) })
}

// unsetOnCleanup removes variables a .env file may have set
func unsetOnCleanup(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if _, exists := os.LookupEnv(key); exists {
			t.Skipf("%s is set in the environment", key)
		}
		key := key
		t.Cleanup(func() { os.Unsetenv(key) })
	}
}

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	chdir(t)
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Dialect != "postgres" || cfg.ParsedDialect() != dbexpr.Postgres {
		t.Errorf("expected default dialect postgres, got %s", cfg.Dialect)
	}
	if cfg.Mapping != "entities.yaml" {
		t.Errorf("expected default mapping 'entities.yaml', got %s", cfg.Mapping)
	}
	if cfg.LogLevel() != zapcore.WarnLevel {
		t.Errorf("expected default log level warn, got %s", cfg.LogLevel())
	}
	if !cfg.Navigation.ResolveCollections {
		t.Error("expected collections to be resolved by default")
	}
	if cfg.Database.URL != "" {
		t.Errorf("expected no database url, got %s", cfg.Database.URL)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	chdir(t)

	configContent := `
dialect: mysql
mapping: schema/entities.yaml
database:
  url: user:pass@tcp(localhost:3306)/shop
log:
  level: debug
navigation:
  resolve_collections: false
`
	if err := os.WriteFile("entitymap.yaml", []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.ParsedDialect() != dbexpr.MySQL {
		t.Errorf("expected dialect mysql, got %s", cfg.Dialect)
	}
	if cfg.Mapping != "schema/entities.yaml" {
		t.Errorf("expected mapping 'schema/entities.yaml', got %s", cfg.Mapping)
	}
	if cfg.Database.URL != "user:pass@tcp(localhost:3306)/shop" {
		t.Errorf("unexpected database url %s", cfg.Database.URL)
	}
	if cfg.LogLevel() != zapcore.DebugLevel {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel())
	}
	if cfg.Navigation.ResolveCollections {
		t.Error("expected collection resolution to be disabled")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t)
	os.WriteFile("entitymap.yaml", []byte("dialect: mysql\n"), 0644)

	t.Setenv("ENTITYMAP_DIALECT", "sqlite")
	t.Setenv("ENTITYMAP_LOG_LEVEL", "error")
	t.Setenv("ENTITYMAP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/fallback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ParsedDialect() != dbexpr.SQLite {
		t.Errorf("expected env to override dialect, got %s", cfg.Dialect)
	}
	if cfg.LogLevel() != zapcore.ErrorLevel {
		t.Errorf("expected env to override log level, got %s", cfg.LogLevel())
	}
	if cfg.Database.URL != "postgres://localhost/fallback" {
		t.Errorf("expected DATABASE_URL fallback, got %s", cfg.Database.URL)
	}
}

func TestLoadDotEnv(t *testing.T) {
	unsetOnCleanup(t, "ENTITYMAP_MAPPING", "ENTITYMAP_TEST_LOCAL")

	oldFs := AppFs
	AppFs = afero.NewMemMapFs()
	defer func() { AppFs = oldFs }()

	afero.WriteFile(AppFs, ".env", []byte("ENTITYMAP_MAPPING=from-env.yaml\nENTITYMAP_TEST_LOCAL=base\n"), 0644)
	afero.WriteFile(AppFs, ".env.local", []byte("ENTITYMAP_TEST_LOCAL=local\n"), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mapping != "from-env.yaml" {
		t.Errorf("expected mapping from .env, got %s", cfg.Mapping)
	}
	if got := os.Getenv("ENTITYMAP_TEST_LOCAL"); got != "local" {
		t.Errorf("expected .env.local to take priority, got %s", got)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown dialect", "dialect: oracle\n"},
		{"unknown log level", "log:\n  level: chatty\n"},
		{"empty mapping", "mapping: \"\"\n"},
		{"malformed yaml", "dialect: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			os.WriteFile("entitymap.yaml", []byte(tt.content), 0644)

			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
