package unitrouter

import (
	"context"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// unload returns a unit to NOT_LOADED so its next activation loads it again.
// It only acts when an unload was requested for the unit. The request is
// settled here; concurrent callers all observe the same outcome.
func (r *Router) unload(ctx context.Context, u *Unit) *Unit {
	req := r.registry.pendingUnload(u.name)
	if req == nil || u.IsParcel() {
		return u
	}

	from, ok := u.enter(lifecycle.Unloading, lifecycle.NotMounted, lifecycle.LoadError)
	if !ok {
		switch from {
		case lifecycle.NotLoaded:
			r.registry.finishUnload(u.name, nil)
		case lifecycle.Unloading:
			_ = req.wait(ctx)
		}
		return u
	}

	ctx, span := r.startSpan(ctx, "unload", u)
	defer span.End()

	var err error
	if from != lifecycle.LoadError {
		err = r.supervise(ctx, u, PhaseUnload)
	}
	u.stripHooks()

	if err != nil {
		span.RecordError(err)
		ue := r.handleUnitError(ctx, err, u, PhaseUnload, KindHook, lifecycle.SkipBecauseBroken)
		r.registry.finishUnload(u.name, ue)
		return u
	}

	u.advance(lifecycle.Unloading, lifecycle.NotLoaded)
	r.registry.finishUnload(u.name, nil)
	return u
}
