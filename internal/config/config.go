// Package config provides configuration management for the linker.
// It loads settings from environment variables with the LINKER_ prefix and
// provides sensible defaults for all options. An optional YAML file can
// override the environment for deployments that prefer file-based config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the linker.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Search   SearchConfig   `yaml:"search"`
	Resolver ResolverConfig `yaml:"resolver"`
	Aux      AuxConfig      `yaml:"auxiliary"`
}

// StorageConfig selects and locates the knowledge-base backends.
type StorageConfig struct {
	// Engine is the static-KB backend: "sqlite" or "postgres".
	Engine string `yaml:"engine"`

	// DataPath is the directory holding the SQLite databases.
	DataPath string `yaml:"data_path"`

	// PostgresDSN is the connection string for the postgres engine.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SearchConfig tunes the resilience layer around the search service.
type SearchConfig struct {
	// BreakerMaxFailures trips the circuit after this many consecutive
	// search failures.
	BreakerMaxFailures uint32 `yaml:"breaker_max_failures"`

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`

	// QueriesPerSecond caps the sustained query rate. Zero disables
	// rate limiting.
	QueriesPerSecond float64 `yaml:"queries_per_second"`

	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst"`
}

// ResolverConfig tunes the filter cascade and batch processing.
type ResolverConfig struct {
	// ExactNamePolicy, ExactTypePolicy, and CountryPolicy select the
	// zero-match behavior of the corresponding cascade stage:
	// "keep_prior" or "reject".
	ExactNamePolicy string `yaml:"exact_name_policy"`
	ExactTypePolicy string `yaml:"exact_type_policy"`
	CountryPolicy   string `yaml:"country_policy"`

	// PreferredCountries are the locale markers the country stage and the
	// KB import rules prefer.
	PreferredCountries []string `yaml:"preferred_countries"`

	// Workers is the batch worker-pool size.
	Workers int `yaml:"workers"`

	// RegistrationThreshold is the minimum unresolved-occurrence count
	// that triggers auxiliary registration.
	RegistrationThreshold int `yaml:"registration_threshold"`
}

// AuxConfig configures the auxiliary knowledge base.
type AuxConfig struct {
	// Seeds are the bootstrap entries registered on first start.
	Seeds []SeedConfig `yaml:"seeds"`
}

// SeedConfig is one bootstrap entry.
type SeedConfig struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// LoadConfig loads configuration from environment variables with defaults.
// All environment variables use the LINKER_ prefix.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	cfg.Storage.Engine = getEnv("LINKER_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("LINKER_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("LINKER_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	var err error
	if cfg.Search.QueriesPerSecond, err = getEnvFloat("LINKER_SEARCH_QPS", cfg.Search.QueriesPerSecond); err != nil {
		return nil, err
	}
	if cfg.Resolver.Workers, err = getEnvInt("LINKER_WORKERS", cfg.Resolver.Workers); err != nil {
		return nil, err
	}
	if cfg.Resolver.RegistrationThreshold, err = getEnvInt("LINKER_REGISTRATION_THRESHOLD", cfg.Resolver.RegistrationThreshold); err != nil {
		return nil, err
	}
	if countries := os.Getenv("LINKER_PREFERRED_COUNTRIES"); countries != "" {
		cfg.Resolver.PreferredCountries = splitList(countries)
	}
	cfg.Resolver.ExactNamePolicy = getEnv("LINKER_EXACT_NAME_POLICY", cfg.Resolver.ExactNamePolicy)
	cfg.Resolver.ExactTypePolicy = getEnv("LINKER_EXACT_TYPE_POLICY", cfg.Resolver.ExactTypePolicy)
	cfg.Resolver.CountryPolicy = getEnv("LINKER_COUNTRY_POLICY", cfg.Resolver.CountryPolicy)

	return cfg, nil
}

// LoadConfigFile loads configuration from the environment and then applies
// the YAML file at path on top. File values win over environment values.
func LoadConfigFile(path string) (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		Search: SearchConfig{
			BreakerMaxFailures: 3,
			BreakerTimeout:     30 * time.Second,
		},
		Resolver: ResolverConfig{
			ExactNamePolicy:       "keep_prior",
			ExactTypePolicy:       "keep_prior",
			CountryPolicy:         "keep_prior",
			PreferredCountries:    []string{"RU", "UA"},
			Workers:               4,
			RegistrationThreshold: 5,
		},
		Aux: AuxConfig{
			Seeds: []SeedConfig{
				{Name: "MH17", Category: "VEH"},
				{Name: "Novorossiya", Category: "LOC"},
			},
		},
	}
}

// getEnv retrieves an environment variable or returns the default.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, value)
	}
	return n, nil
}

// getEnvFloat retrieves a float environment variable or returns the default.
func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number, got %q", key, value)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
