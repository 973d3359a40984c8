package unitrouter

import (
	"context"
	"fmt"
	"net/url"
)

// Phase names a lifecycle step. It selects the hook list to run and the
// timeout policy applied to it.
type Phase string

const (
	PhaseLoad      Phase = "load"
	PhaseBootstrap Phase = "bootstrap"
	PhaseMount     Phase = "mount"
	PhaseUnmount   Phase = "unmount"
	PhaseUnload    Phase = "unload"
	PhaseUpdate    Phase = "update"

	// PhaseActivity is used when an activation predicate fails.
	PhaseActivity Phase = "activity"
)

// HookFunc is one lifecycle hook. Hooks of the same phase run one after
// another; the first error stops the remaining hooks of that phase.
// The context is cancelled when the phase times out with DieOnTimeout set.
type HookFunc func(ctx context.Context, p Props) error

// LoadFunc resolves a unit's hooks. It is called with the unit's props and
// may block (fetching, compiling, dialing). An error marks the unit
// LOAD_ERROR and makes it eligible for retry; a panic is treated as misuse
// of the contract and quarantines the unit.
type LoadFunc func(ctx context.Context, p Props) (*Lifecycle, error)

// ActivityFunc reports whether a unit should be mounted for a location.
type ActivityFunc func(loc *url.URL) bool

// Lifecycle is the hook bundle a LoadFunc resolves to. Mount and Unmount are
// required; every other list is optional.
type Lifecycle struct {
	Bootstrap []HookFunc
	Mount     []HookFunc
	Unmount   []HookFunc
	Unload    []HookFunc

	// Update is only used by parcels.
	Update []HookFunc

	// Timeouts overrides the router's default policy per phase.
	Timeouts TimeoutOverrides
}

// Hooks is a small helper for building hook lists inline.
func Hooks(fns ...HookFunc) []HookFunc {
	return fns
}

// Static returns a LoadFunc that always resolves to the given bundle.
func Static(l *Lifecycle) LoadFunc {
	return func(context.Context, Props) (*Lifecycle, error) {
		return l, nil
	}
}

func (l *Lifecycle) hooks(phase Phase) []HookFunc {
	if l == nil {
		return nil
	}
	switch phase {
	case PhaseBootstrap:
		return l.Bootstrap
	case PhaseMount:
		return l.Mount
	case PhaseUnmount:
		return l.Unmount
	case PhaseUnload:
		return l.Unload
	case PhaseUpdate:
		return l.Update
	default:
		return nil
	}
}

// validate checks the bundle shape once, at load time. A missing bootstrap is
// fine; a bootstrap list containing nil is not.
func (l *Lifecycle) validate() error {
	if l == nil {
		return fmt.Errorf("%w: does not export anything", ErrInvalidBundle)
	}
	if len(l.Mount) == 0 {
		return fmt.Errorf("%w: does not export a mount function or list of functions", ErrInvalidBundle)
	}
	if len(l.Unmount) == 0 {
		return fmt.Errorf("%w: does not export an unmount function or list of functions", ErrInvalidBundle)
	}
	for _, phase := range []Phase{PhaseBootstrap, PhaseMount, PhaseUnmount, PhaseUnload, PhaseUpdate} {
		for i, fn := range l.hooks(phase) {
			if fn == nil {
				return fmt.Errorf("%w: %s hook %d is nil", ErrInvalidBundle, phase, i)
			}
		}
	}
	return nil
}

// clone copies the hook lists so later changes by the loader do not leak in.
func (l *Lifecycle) clone() *Lifecycle {
	return &Lifecycle{
		Bootstrap: append([]HookFunc(nil), l.Bootstrap...),
		Mount:     append([]HookFunc(nil), l.Mount...),
		Unmount:   append([]HookFunc(nil), l.Unmount...),
		Unload:    append([]HookFunc(nil), l.Unload...),
		Update:    append([]HookFunc(nil), l.Update...),
		Timeouts:  l.Timeouts,
	}
}

// Props is what every hook and loader receives.
type Props struct {
	// Name is the unit's (or parcel's) name.
	Name string

	// Custom is the caller-owned data given at registration. The router
	// never modifies it.
	Custom map[string]any

	router *Router
	owner  *Unit
}
