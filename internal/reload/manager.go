// Package reload reconciles the router's registered units with a freshly
// loaded manifest.
package reload

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/config"
)

// Registrar is the part of the router the manager drives.
type Registrar interface {
	Register(cfg unitrouter.UnitConfig) error
	Unregister(ctx context.Context, name string) error
}

// LoaderFunc resolves the LoadFunc backing a unit spec.
type LoaderFunc func(spec config.UnitSpec) (unitrouter.LoadFunc, error)

// Diff is what a manifest change does to the unit set.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string

	// Static lists top-level settings that changed but only take effect on
	// restart.
	Static []string
}

// IsEmpty reports whether the diff changes nothing.
func (d Diff) IsEmpty() bool {
	return len(d.Added)+len(d.Removed)+len(d.Changed) == 0
}

// Manager applies manifests one at a time.
type Manager struct {
	router Registrar
	loader LoaderFunc
	logger unitrouter.Logger

	mu      sync.Mutex
	current *config.Config
	applied []Diff
}

// NewManager creates a manager. initial is the configuration whose units
// are already registered; it may be nil.
func NewManager(router Registrar, loader LoaderFunc, logger unitrouter.Logger, initial *config.Config) *Manager {
	return &Manager{router: router, loader: loader, logger: logger, current: initial}
}

// Compute diffs two configurations by unit name.
func Compute(old, next *config.Config) Diff {
	var d Diff
	oldUnits := map[string]config.UnitSpec{}
	if old != nil {
		for _, u := range old.Units {
			oldUnits[u.Name] = u
		}
	}
	newUnits := map[string]config.UnitSpec{}
	for _, u := range next.Units {
		newUnits[u.Name] = u
		prev, ok := oldUnits[u.Name]
		switch {
		case !ok:
			d.Added = append(d.Added, u.Name)
		case !reflect.DeepEqual(prev, u):
			d.Changed = append(d.Changed, u.Name)
		}
	}
	for name := range oldUnits {
		if _, ok := newUnits[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Removed)

	if old != nil {
		if old.Listen != next.Listen {
			d.Static = append(d.Static, "listen")
		}
		if old.InitialURL != next.InitialURL {
			d.Static = append(d.Static, "initialUrl")
		}
		if old.Timeouts != next.Timeouts {
			d.Static = append(d.Static, "timeouts")
		}
		if old.RetryBackoff != next.RetryBackoff {
			d.Static = append(d.Static, "retryBackoff")
		}
	}
	return d
}

// Apply reconciles the router with next: removed and changed units are
// unregistered, then added and changed units are registered. Errors for
// single units are collected; the rest of the manifest is still applied.
func (m *Manager) Apply(ctx context.Context, next *config.Config) (Diff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Compute(m.current, next)
	for _, field := range d.Static {
		m.logger.Warn("Config change requires restart", "field", field)
	}
	if d.IsEmpty() {
		m.current = next
		return d, nil
	}

	specs := make(map[string]config.UnitSpec, len(next.Units))
	for _, u := range next.Units {
		specs[u.Name] = u
	}

	var errs []error
	for _, name := range append(append([]string(nil), d.Removed...), d.Changed...) {
		if err := m.router.Unregister(ctx, name); err != nil && !errors.Is(err, unitrouter.ErrUnitNotFound) {
			errs = append(errs, fmt.Errorf("unregister %s: %w", name, err))
		}
	}
	for _, name := range append(append([]string(nil), d.Added...), d.Changed...) {
		if err := m.register(specs[name]); err != nil {
			errs = append(errs, err)
		}
	}

	m.current = next
	m.applied = append(m.applied, d)
	m.logger.Info("Manifest applied", "added", d.Added, "removed", d.Removed, "changed", d.Changed)
	return d, errors.Join(errs...)
}

// RegisterAll registers every unit of cfg and makes it the current manifest.
func (m *Manager) RegisterAll(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, spec := range cfg.Units {
		if err := m.register(spec); err != nil {
			errs = append(errs, err)
		}
	}
	m.current = cfg
	return errors.Join(errs...)
}

func (m *Manager) register(spec config.UnitSpec) error {
	load, err := m.loader(spec)
	if err != nil {
		return fmt.Errorf("unit %s: %w", spec.Name, err)
	}
	return m.router.Register(unitrouter.UnitConfig{
		Name:        spec.Name,
		Load:        load,
		ActiveWhen:  spec.ActivityFunc(),
		CustomProps: spec.Props,
	})
}

// History returns the diffs applied so far.
func (m *Manager) History() []Diff {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Diff(nil), m.applied...)
}
