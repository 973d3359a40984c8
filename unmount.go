package unitrouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"github.com/sourcegraph/conc/iter"
)

// unmount tears down a MOUNTED unit. Child parcels are unmounted first, in
// parallel. The unit's own hooks run even when a child fails; the child
// failure is raised afterwards as the unit's error.
func (r *Router) unmount(ctx context.Context, u *Unit, hardFail bool) (*Unit, error) {
	if _, ok := u.enter(lifecycle.Unmounting, lifecycle.Mounted); !ok {
		return u, nil
	}

	ctx, span := r.startSpan(ctx, "unmount", u)
	defer span.End()

	var childErr error
	if children := u.liveChildren(); len(children) > 0 {
		errs := iter.Map(children, func(p **Parcel) error {
			return (*p).Unmount(ctx)
		})
		if joined := errors.Join(errs...); joined != nil {
			childErr = fmt.Errorf("%w: %w", ErrChildUnmountFailed, joined)
		}
	}

	var failed bool
	if err := r.supervise(ctx, u, PhaseUnmount); err != nil {
		span.RecordError(err)
		if hardFail {
			return u, r.transformErr(err, u, PhaseUnmount, KindHook, lifecycle.SkipBecauseBroken)
		}
		r.handleUnitError(ctx, err, u, PhaseUnmount, KindHook, lifecycle.SkipBecauseBroken)
		failed = true
	}

	if childErr != nil {
		span.RecordError(childErr)
		if hardFail {
			return u, r.transformErr(childErr, u, PhaseUnmount, KindHook, lifecycle.SkipBecauseBroken)
		}
		r.handleUnitError(ctx, childErr, u, PhaseUnmount, KindHook, lifecycle.SkipBecauseBroken)
		failed = true
	}

	if !failed {
		u.advance(lifecycle.Unmounting, lifecycle.NotMounted)
	}
	return u, nil
}
