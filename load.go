package unitrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"go.opentelemetry.io/otel/codes"
)

// load resolves the unit's hooks. Concurrent calls for the same unit share
// one attempt. Failures are handled here and never returned; callers read
// the resulting status.
func (r *Router) load(ctx context.Context, u *Unit) *Unit {
	_, _, _ = r.loads.Do(u.key(), func() (any, error) {
		r.doLoad(ctx, u)
		return nil, nil
	})
	return u
}

func (r *Router) doLoad(ctx context.Context, u *Unit) {
	if _, ok := u.enter(lifecycle.LoadingSourceCode, lifecycle.NotLoaded, lifecycle.LoadError); !ok {
		return
	}

	ctx, span := r.startSpan(ctx, "load", u)
	defer span.End()

	bundle, err := r.callLoader(ctx, u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isPanic(err) {
			r.handleUnitError(ctx, err, u, PhaseLoad, KindUser, lifecycle.SkipBecauseBroken)
			return
		}
		u.mu.Lock()
		u.loadErrorTime = r.now()
		u.mu.Unlock()
		r.handleUnitError(ctx, err, u, PhaseLoad, KindLoad, lifecycle.LoadError)
		return
	}

	if err := bundle.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.handleUnitError(ctx, err, u, PhaseLoad, KindUser, lifecycle.SkipBecauseBroken)
		return
	}
	timeouts, err := r.timeouts.Apply(bundle.Timeouts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		r.handleUnitError(ctx, err, u, PhaseLoad, KindUser, lifecycle.SkipBecauseBroken)
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != lifecycle.LoadingSourceCode {
		return
	}
	u.bundle = bundle.clone()
	u.timeouts = timeouts
	u.loadErrorTime = time.Time{}
	u.setStatusLocked(lifecycle.NotBootstrapped)
}

func (r *Router) callLoader(ctx context.Context, u *Unit) (bundle *Lifecycle, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			bundle = nil
			err = fmt.Errorf("%w: %v", ErrLoaderPanicked, rec)
		}
	}()
	return u.load(ctx, u.props())
}

func isPanic(err error) bool {
	return errors.Is(err, ErrLoaderPanicked)
}
