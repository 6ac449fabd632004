package cli

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lucasnoah/skyflag/internal/config"
	"github.com/lucasnoah/skyflag/internal/db"
	"github.com/lucasnoah/skyflag/internal/results"
)

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault()
}

// loadValidConfig loads the config and fails on the first validation error.
func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// newLogger builds the zap logger described by the log section and
// installs it as the global logger.
func newLogger(l config.Log) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = l.Format
	if l.Format == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.Sampling = nil

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// openDB opens and migrates the run history DB, returning it with a
// cleanup func.
func openDB(ctx context.Context, cfg *config.Config) (*db.DB, func(), error) {
	d, err := db.Open(cfg.Flagging.Store.Driver, cfg.Flagging.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

func openStore(cfg *config.Config) *results.Store {
	return results.NewStore(cfg.Flagging.ResultsDir)
}
