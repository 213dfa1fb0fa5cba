package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/entitymap/internal/orm/dbexpr"
)

// AppFs is the filesystem configuration and mapping files are read from
var AppFs = afero.NewOsFs()

// EnvPrefix prefixes environment overrides, e.g. ENTITYMAP_DIALECT
const EnvPrefix = "ENTITYMAP"

// Config represents the entitymap configuration
type Config struct {
	Dialect    string           `mapstructure:"dialect"`
	Mapping    string           `mapstructure:"mapping"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Navigation NavigationConfig `mapstructure:"navigation"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NavigationConfig controls how navigation properties are resolved
type NavigationConfig struct {
	// ResolveCollections binds collection navigations to the foreign key
	// named on their element type
	ResolveCollections bool `mapstructure:"resolve_collections"`
}

// Load loads the configuration from entitymap.yaml in the working directory
// or the user config directory, then applies .env files and ENTITYMAP_*
// environment overrides
func Load() (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)

	v.SetDefault("dialect", "postgres")
	v.SetDefault("mapping", "entities.yaml")
	v.SetDefault("database.url", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("navigation.resolve_collections", true)

	v.SetConfigName("entitymap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "entitymap"))
	}

	loadDotEnv()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadDotEnv loads .env, then .env.local with higher priority, when present
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		if data, err := afero.ReadFile(AppFs, ".env"); err == nil {
			setEnv(data, false)
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if data, err := afero.ReadFile(AppFs, ".env.local"); err == nil {
			setEnv(data, true)
		}
	}
}

// setEnv applies dotenv content; variables already set are kept unless override
func setEnv(data []byte, override bool) {
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		// Don't fail if a .env file can't be parsed
		return
	}
	for key, value := range vars {
		if _, exists := os.LookupEnv(key); exists && !override {
			continue
		}
		os.Setenv(key, value)
	}
}

// ParsedDialect returns the configured SQL dialect
func (c *Config) ParsedDialect() dbexpr.Dialect {
	// Validated on load
	d, _ := dbexpr.ParseDialect(c.Dialect)
	return d
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return zapcore.WarnLevel
	}
	return level
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := dbexpr.ParseDialect(cfg.Dialect); err != nil {
		return fmt.Errorf("invalid dialect: %w", err)
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}

	if cfg.Mapping == "" {
		return fmt.Errorf("mapping must name a mapping file")
	}
	return nil
}
