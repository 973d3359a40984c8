package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/unitrouter/feeders"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Loader builds a Config from defaults, an optional file and the
// environment, in that order.
type Loader struct {
	path    string
	feeders []feeders.Feeder
}

// NewLoader creates a loader. An empty path skips the file.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	if path != "" {
		f, err := feeders.ForFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		l.feeders = append(l.feeders, f)
	}
	l.feeders = append(l.feeders, feeders.NewEnvFeeder(EnvPrefix))
	return l, nil
}

// NewLoaderWithFeeders creates a loader running exactly fs.
func NewLoaderWithFeeders(fs ...feeders.Feeder) *Loader {
	return &Loader{feeders: fs}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string { return l.path }

// Load runs every feeder over the defaults and validates the result.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := Default()
	for _, f := range l.feeders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.Feed(&cfg); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
