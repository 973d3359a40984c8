package unitrouter

import (
	"context"
	"net/url"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// changes is the classifier's output. Each unit lands in at most one list.
type changes struct {
	toUnload  []*Unit
	toUnmount []*Unit
	toLoad    []*Unit
	toMount   []*Unit
}

// all lists every changed unit: unloads, unmounts, loads, then mounts.
func (c changes) all() []*Unit {
	out := make([]*Unit, 0, len(c.toUnload)+len(c.toUnmount)+len(c.toLoad)+len(c.toMount))
	out = append(out, c.toUnload...)
	out = append(out, c.toUnmount...)
	out = append(out, c.toLoad...)
	return append(out, c.toMount...)
}

func (c changes) empty() bool {
	return len(c.toUnload)+len(c.toUnmount)+len(c.toLoad)+len(c.toMount) == 0
}

// classify sorts the registered units into change lists for loc.
// Every unit except quarantined ones has its activity function evaluated,
// whatever its status.
func (r *Router) classify(ctx context.Context, loc *url.URL) changes {
	var c changes
	now := r.now()

	for _, u := range r.registry.snapshot() {
		if u.Status() == lifecycle.SkipBecauseBroken {
			continue
		}
		active := r.shouldBeActive(ctx, u, loc)

		switch u.Status() {
		case lifecycle.NotLoaded, lifecycle.LoadingSourceCode:
			if active {
				c.toLoad = append(c.toLoad, u)
			}
		case lifecycle.LoadError:
			if active && u.shouldRetryLoad(now, r.retryBackoff) {
				c.toLoad = append(c.toLoad, u)
			}
		case lifecycle.NotBootstrapped, lifecycle.NotMounted:
			switch {
			case !active && r.registry.pendingUnload(u.name) != nil:
				c.toUnload = append(c.toUnload, u)
			case active:
				c.toMount = append(c.toMount, u)
			}
		case lifecycle.Mounted:
			if !active {
				c.toUnmount = append(c.toUnmount, u)
			}
		}
	}
	return c
}

// shouldBeActive evaluates a unit's activity function. A panic quarantines
// the unit and counts as inactive.
func (r *Router) shouldBeActive(ctx context.Context, u *Unit, loc *url.URL) bool {
	active, err := u.isActive(loc)
	if err != nil {
		r.handleUnitError(ctx, err, u, PhaseActivity, KindActivation, lifecycle.SkipBecauseBroken)
		return false
	}
	return active
}
