package unitrouter

import (
	"context"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// bootstrap runs the one-time setup hooks. It only acts on NOT_BOOTSTRAPPED
// units. With hardFail the classified error is returned instead of being
// reported.
func (r *Router) bootstrap(ctx context.Context, u *Unit, hardFail bool) (*Unit, error) {
	if _, ok := u.enter(lifecycle.Bootstrapping, lifecycle.NotBootstrapped); !ok {
		return u, nil
	}
	if !u.hasHooks(PhaseBootstrap) {
		u.advance(lifecycle.Bootstrapping, lifecycle.NotMounted)
		return u, nil
	}

	ctx, span := r.startSpan(ctx, "bootstrap", u)
	defer span.End()

	if err := r.supervise(ctx, u, PhaseBootstrap); err != nil {
		span.RecordError(err)
		if hardFail {
			return u, r.transformErr(err, u, PhaseBootstrap, KindHook, lifecycle.SkipBecauseBroken)
		}
		r.handleUnitError(ctx, err, u, PhaseBootstrap, KindHook, lifecycle.SkipBecauseBroken)
		return u, nil
	}
	u.advance(lifecycle.Bootstrapping, lifecycle.NotMounted)
	return u, nil
}
