package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("default engine = %q, want sqlite", cfg.Storage.Engine)
	}
	if cfg.Resolver.RegistrationThreshold != 5 {
		t.Errorf("default registration threshold = %d, want 5", cfg.Resolver.RegistrationThreshold)
	}
	if len(cfg.Resolver.PreferredCountries) != 2 {
		t.Errorf("default preferred countries = %v, want [RU UA]", cfg.Resolver.PreferredCountries)
	}
	if len(cfg.Aux.Seeds) != 2 {
		t.Errorf("default seeds = %v, want two entries", cfg.Aux.Seeds)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LINKER_STORAGE_ENGINE", "postgres")
	t.Setenv("LINKER_WORKERS", "8")
	t.Setenv("LINKER_PREFERRED_COUNTRIES", "RU, UA, BY")
	t.Setenv("LINKER_COUNTRY_POLICY", "reject")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Engine != "postgres" {
		t.Errorf("engine = %q, want postgres", cfg.Storage.Engine)
	}
	if cfg.Resolver.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Resolver.Workers)
	}
	if len(cfg.Resolver.PreferredCountries) != 3 || cfg.Resolver.PreferredCountries[2] != "BY" {
		t.Errorf("preferred countries = %v, want [RU UA BY]", cfg.Resolver.PreferredCountries)
	}
	if cfg.Resolver.CountryPolicy != "reject" {
		t.Errorf("country policy = %q, want reject", cfg.Resolver.CountryPolicy)
	}
}

func TestLoadConfig_InvalidIntRejected(t *testing.T) {
	t.Setenv("LINKER_WORKERS", "many")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for non-integer LINKER_WORKERS")
	}
}

func TestLoadConfigFile_OverridesEnv(t *testing.T) {
	t.Setenv("LINKER_STORAGE_ENGINE", "postgres")

	path := filepath.Join(t.TempDir(), "linker.yaml")
	content := `
storage:
  engine: sqlite
  data_path: /var/lib/linker
resolver:
  registration_threshold: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file failed: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if cfg.Storage.Engine != "sqlite" {
		t.Errorf("engine = %q, want the file value sqlite", cfg.Storage.Engine)
	}
	if cfg.Storage.DataPath != "/var/lib/linker" {
		t.Errorf("data path = %q, want /var/lib/linker", cfg.Storage.DataPath)
	}
	if cfg.Resolver.RegistrationThreshold != 3 {
		t.Errorf("registration threshold = %d, want 3", cfg.Resolver.RegistrationThreshold)
	}
	// Values absent from the file keep their defaults.
	if cfg.Resolver.Workers != 4 {
		t.Errorf("workers = %d, want default 4", cfg.Resolver.Workers)
	}
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
