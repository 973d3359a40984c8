package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/config"
	"github.com/GoCodeAlone/unitrouter/internal/demo"
	"github.com/GoCodeAlone/unitrouter/internal/logging"
)

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(ctx context.Context, flags *globalFlags) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	return loader, cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) unitrouter.Logger {
	zl := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: out})
	return unitrouter.NewValueInjectionLoggerDecorator(zl, "instance", cfg.Name)
}

// demoLoader resolves manifest units to demo bundles.
func demoLoader(logger unitrouter.Logger) func(config.UnitSpec) (unitrouter.LoadFunc, error) {
	return func(spec config.UnitSpec) (unitrouter.LoadFunc, error) {
		load, err := demo.Loader(spec.Kind, logger)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", spec.Name, err)
		}
		return load, nil
	}
}
