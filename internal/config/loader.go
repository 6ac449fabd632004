package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load.
const (
	DefaultNIter      = 2
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "console"
	DefaultDriver     = "sqlite"
	DefaultDSN        = "skyflag.db"
	DefaultResultsDir = ".skyflag/results"

	// DSNEnv overrides store.dsn when set.
	DSNEnv = "SKYFLAG_STORE_DSN"
)

// Load reads and parses a flagging configuration from the given YAML file path.
// After parsing, it applies defaults to stages that don't specify their own values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./skyflag.yaml, ~/.skyflag/config.yaml
func LoadDefault() (*Config, error) {
	candidates := []string{"skyflag.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".skyflag", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no flagging config found (searched: %v)", candidates)
}

// applyDefaults fills service settings and merges the stage defaults into
// stages that don't set their own values.
func applyDefaults(cfg *Config) {
	f := &cfg.Flagging

	if f.Log.Level == "" {
		f.Log.Level = DefaultLogLevel
	}
	if f.Log.Format == "" {
		f.Log.Format = DefaultLogFormat
	}
	if f.Store.Driver == "" {
		f.Store.Driver = DefaultDriver
	}
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		f.Store.DSN = dsn
	}
	if f.Store.DSN == "" && f.Store.Driver == DefaultDriver {
		f.Store.DSN = DefaultDSN
	}
	if f.ResultsDir == "" {
		f.ResultsDir = DefaultResultsDir
	}
	if f.Defaults.NIter == 0 {
		f.Defaults.NIter = DefaultNIter
	}

	for i := range f.Stages {
		s := &f.Stages[i]

		if s.NIter == 0 {
			s.NIter = f.Defaults.NIter
		}
		if s.IterateDataTask == nil && f.Defaults.IterateDataTask != nil {
			v := *f.Defaults.IterateDataTask
			s.IterateDataTask = &v
		}
		if s.Intent == "" {
			s.Intent = f.Defaults.Intent
		}
		if s.Field == "" {
			s.Field = f.Defaults.Field
		}
		if s.ExtendFields == nil {
			s.ExtendFields = f.Defaults.ExtendFields
		}
	}
}

// Stage returns the stage with the given ID. An empty ID selects the only
// stage of a single-stage config.
func (c *Config) Stage(id string) (*Stage, error) {
	stages := c.Flagging.Stages
	if id == "" {
		if len(stages) == 1 {
			return &stages[0], nil
		}
		return nil, fmt.Errorf("config has %d stages, a stage ID is required", len(stages))
	}
	for i := range stages {
		if stages[i].ID == id {
			return &stages[i], nil
		}
	}
	return nil, fmt.Errorf("stage %q not found in config", id)
}
