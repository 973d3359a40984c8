package unitrouter

import (
	"context"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// mount runs the mount hooks of a NOT_MOUNTED unit. A failed mount leaves
// partial state behind, so the unit is marked MOUNTED, torn down with a
// hard-fail unmount and then quarantined.
func (r *Router) mount(ctx context.Context, u *Unit, hardFail bool) (*Unit, error) {
	if _, ok := u.enter(lifecycle.Mounting, lifecycle.NotMounted); !ok {
		return u, nil
	}
	r.beforeFirstMount.Do(func() {
		r.emit(withSyncNotification(ctx), EventTypeBeforeFirstMount, newUnitData(u))
	})

	ctx, span := r.startSpan(ctx, "mount", u)
	defer span.End()

	if err := r.supervise(ctx, u, PhaseMount); err != nil {
		span.RecordError(err)
		u.advance(lifecycle.Mounting, lifecycle.Mounted)
		if _, uerr := r.unmount(ctx, u, true); uerr != nil {
			r.logger.Debug("Cleanup unmount after failed mount also failed", "unit", u.name, "error", uerr)
		}
		if hardFail {
			return u, r.transformErr(err, u, PhaseMount, KindHook, lifecycle.SkipBecauseBroken)
		}
		r.handleUnitError(ctx, err, u, PhaseMount, KindHook, lifecycle.SkipBecauseBroken)
		return u, nil
	}

	if u.advance(lifecycle.Mounting, lifecycle.Mounted) {
		r.firstMount.Do(func() {
			r.emit(withSyncNotification(ctx), EventTypeFirstMount, newUnitData(u))
		})
	}
	return u, nil
}
