package unitrouter

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// update runs the update hooks of a mounted parcel. Failures always
// propagate to the caller.
func (r *Router) update(ctx context.Context, u *Unit) error {
	if _, ok := u.enter(lifecycle.Updating, lifecycle.Mounted); !ok {
		return fmt.Errorf("%w: cannot update %s '%s'", ErrParcelNotMounted, u.kind(), u.name)
	}

	ctx, span := r.startSpan(ctx, "update", u)
	defer span.End()

	if err := r.supervise(ctx, u, PhaseUpdate); err != nil {
		span.RecordError(err)
		return r.transformErr(err, u, PhaseUpdate, KindHook, lifecycle.SkipBecauseBroken)
	}
	u.advance(lifecycle.Updating, lifecycle.Mounted)
	return nil
}
