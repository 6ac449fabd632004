package config

import "github.com/lucasnoah/skyflag/internal/rules"

// Config is the top-level configuration structure parsed from flagging YAML.
type Config struct {
	Flagging Flagging `yaml:"flagging"`
}

// Flagging defines the flagging stages and the services they use.
type Flagging struct {
	Name       string        `yaml:"name"`
	ResultsDir string        `yaml:"results_dir"`
	Log        Log           `yaml:"log"`
	Store      Store         `yaml:"store"`
	Defaults   StageDefaults `yaml:"defaults"`
	Stages     []Stage       `yaml:"stages"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Store configures the run history database.
type Store struct {
	Driver string `yaml:"driver"` // sqlite or pgx
	DSN    string `yaml:"dsn"`
}

// StageDefaults holds values applied to stages that don't specify their own.
type StageDefaults struct {
	NIter           int      `yaml:"niter"`
	IterateDataTask *bool    `yaml:"iterate_data_task"`
	Intent          string   `yaml:"intent"`
	Field           string   `yaml:"field"`
	ExtendFields    []string `yaml:"extend_fields"`
}

// Stage defines one flagging run: the artifact it reads, the view shape and
// the ordered rules evaluated against each view.
type Stage struct {
	ID              string       `yaml:"id"`
	Artifact        string       `yaml:"artifact"`
	Shape           rules.Shape  `yaml:"shape"`
	NIter           int          `yaml:"niter"`
	IterateDataTask *bool        `yaml:"iterate_data_task"`
	Intent          string       `yaml:"intent"`
	Field           string       `yaml:"field"`
	ExtendFields    []string     `yaml:"extend_fields"`
	Rules           []rules.Spec `yaml:"rules"`
}

// Iterate reports whether the data task is re-run between iterations.
func (s Stage) Iterate() bool {
	return s.IterateDataTask != nil && *s.IterateDataTask
}
