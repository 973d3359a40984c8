// Package config loads the unitctl configuration: router settings plus the
// manifest of units to register.
package config

import (
	"fmt"
	"time"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/go-playground/validator/v10"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "UNITROUTER"

// Config is the complete unitctl configuration.
type Config struct {
	Name       string `yaml:"name" toml:"name" json:"name" env:"NAME" validate:"required"`
	InitialURL string `yaml:"initialUrl" toml:"initialUrl" json:"initialUrl" env:"INITIAL_URL" validate:"required,url"`
	Listen     string `yaml:"listen" toml:"listen" json:"listen" env:"LISTEN" validate:"required,hostname_port"`

	LogLevel  string `yaml:"logLevel" toml:"logLevel" json:"logLevel" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"logFormat" toml:"logFormat" json:"logFormat" env:"LOG_FORMAT" validate:"oneof=json console"`

	RetryBackoff    time.Duration `yaml:"retryBackoff" toml:"retryBackoff" json:"retryBackoff" env:"RETRY_BACKOFF" validate:"gte=0"`
	RerouteSchedule string        `yaml:"rerouteSchedule" toml:"rerouteSchedule" json:"rerouteSchedule" env:"REROUTE_SCHEDULE"`
	Tracing         bool          `yaml:"tracing" toml:"tracing" json:"tracing" env:"TRACING"`
	URLRerouteOnly  bool          `yaml:"urlRerouteOnly" toml:"urlRerouteOnly" json:"urlRerouteOnly" env:"URL_REROUTE_ONLY"`

	Timeouts unitrouter.Timeouts `yaml:"timeouts" toml:"timeouts" json:"timeouts" env:"TIMEOUTS"`

	Units []UnitSpec `yaml:"units" toml:"units" json:"units" validate:"dive"`
}

// UnitSpec declares one unit in the manifest.
type UnitSpec struct {
	Name string `yaml:"name" toml:"name" json:"name" validate:"required"`

	// Paths are activity patterns; the unit is active when any matches.
	Paths []string `yaml:"paths" toml:"paths" json:"paths" validate:"required,min=1,dive,required"`
	Exact bool     `yaml:"exact" toml:"exact" json:"exact"`

	// Kind selects the demo bundle backing the unit.
	Kind string `yaml:"kind" toml:"kind" json:"kind" validate:"required,oneof=static slow flaky broken panic"`

	Props map[string]any `yaml:"props" toml:"props" json:"props"`
}

// ActivityFunc builds the unit's activity function from its paths.
func (s UnitSpec) ActivityFunc() unitrouter.ActivityFunc {
	fns := make([]unitrouter.ActivityFunc, 0, len(s.Paths))
	for _, p := range s.Paths {
		fns = append(fns, unitrouter.PathToActiveWhen(p, s.Exact))
	}
	return unitrouter.AnyOf(fns...)
}

// Default returns the configuration used before any feeder runs.
func Default() Config {
	return Config{
		Name:         "unitrouter",
		InitialURL:   "http://localhost/",
		Listen:       "127.0.0.1:8080",
		LogLevel:     "info",
		LogFormat:    "json",
		RetryBackoff: unitrouter.DefaultRetryBackoff,
		Timeouts:     unitrouter.DefaultTimeouts(),
	}
}

// Validate checks the configuration, including unique unit names.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	seen := make(map[string]bool, len(c.Units))
	for _, u := range c.Units {
		if seen[u.Name] {
			return fmt.Errorf("%w: duplicate unit %q", ErrInvalidConfig, u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}
