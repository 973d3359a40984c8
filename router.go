package unitrouter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/GoCodeAlone/unitrouter"

// Router owns the unit registry and serializes routing passes.
type Router struct {
	source       ConditionSource
	logger       Logger
	registry     *registry
	journal      *lifecycle.Journal
	timeouts     Timeouts
	retryBackoff time.Duration
	now          func() time.Time
	tracer       trace.Tracer
	loads        singleflight.Group

	parentCtx context.Context
	baseCtx   context.Context
	cancel    context.CancelFunc

	observerMu sync.RWMutex
	observers  []*observerRegistration

	errMu         sync.RWMutex
	errorHandlers []errorHandlerEntry
	nextHandlerID int

	navMu        sync.RWMutex
	navListeners []navListenerEntry
	nextNavID    int

	// mu guards the pass queue and router state below.
	mu          sync.Mutex
	started     bool
	closed      bool
	underway    bool
	waiting     []*waiter
	currentURL  string
	unsubscribe func()
	drains      sync.WaitGroup

	beforeFirstMount sync.Once
	firstMount       sync.Once
	parcelSeq        atomic.Int64
}

// New creates a router reading locations from source.
func New(source ConditionSource, opts ...Option) (*Router, error) {
	if source == nil {
		return nil, ErrNilConditionSource
	}
	r := &Router{
		source:       source,
		logger:       slog.Default(),
		registry:     newRegistry(),
		journal:      lifecycle.NewJournal(lifecycle.DefaultJournalCapacity),
		timeouts:     DefaultTimeouts(),
		retryBackoff: DefaultRetryBackoff,
		now:          time.Now,
		tracer:       otel.Tracer(tracerName),
		parentCtx:    context.Background(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("apply router option: %w", err)
		}
	}
	r.baseCtx, r.cancel = context.WithCancel(r.parentCtx)
	if loc := source.Location(); loc != nil {
		r.currentURL = loc.String()
	}
	return r, nil
}

// Register adds a unit and schedules a routing pass. The pass is not
// awaited; use Reroute to wait for one.
func (r *Router) Register(cfg UnitConfig) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("register unit: %w", err)
	}
	if r.isClosed() {
		return ErrRouterClosed
	}
	u := newUnit(r, cfg)
	if err := r.registry.add(u); err != nil {
		return err
	}
	r.logger.Info("Unit registered", "unit", cfg.Name)
	r.emit(r.baseCtx, EventTypeUnitRegistered, newUnitData(u))
	r.Trigger(nil)
	return nil
}

// Start switches the router from load-only passes to full passes and runs
// the first one.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info("Router started", "location", r.source.Location().String())
	r.emit(r.baseCtx, EventTypeRouterStarted, nil)
	_, err := r.Reroute(ctx, nil)
	return err
}

// Started reports whether Start was called.
func (r *Router) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Listen subscribes to the condition source so every location change
// triggers a pass. Calling it again is a no-op.
func (r *Router) Listen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil || r.closed {
		return
	}
	r.unsubscribe = r.source.Subscribe(func(ev NavigationEvent) {
		r.Trigger(&ev)
	})
}

// UnloadOptions controls Unload.
type UnloadOptions struct {
	// WaitForUnmount leaves a mounted unit alone and unloads it the next
	// time a pass finds it inactive.
	WaitForUnmount bool
}

// Unload returns a unit to NOT_LOADED. It blocks until the unload settles or
// ctx is done. Concurrent calls for the same unit share one outcome.
func (r *Router) Unload(ctx context.Context, name string, opts UnloadOptions) error {
	u, ok := r.registry.get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, name)
	}
	if u.Status() == lifecycle.SkipBecauseBroken {
		return fmt.Errorf("%w: %s", ErrUnitBroken, name)
	}

	if opts.WaitForUnmount {
		req, _ := r.registry.requestUnload(name)
		return req.wait(ctx)
	}
	if req, err := r.unloadNow(ctx, u); err != nil {
		r.rerouteAfter(ctx, req)
		return err
	}
	r.Trigger(nil)
	return nil
}

// unloadNow unmounts and unloads u without waiting for a pass. The
// transitions run on a detached context; ctx only bounds the wait, and the
// unload carries on when the caller gives up.
func (r *Router) unloadNow(ctx context.Context, u *Unit) (*unloadRequest, error) {
	req, _ := r.registry.requestUnload(u.name)
	tctx, stop := r.detach(ctx)
	go func() {
		defer stop()
		if _, err := r.unmount(tctx, u, true); err != nil {
			r.registry.settle(u.name, req, err)
			return
		}
		r.unload(tctx, u)
		// A unit that was never loaded far enough to unload is already done.
		r.registry.settle(u.name, req, nil)
	}()
	return req, req.wait(ctx)
}

// rerouteAfter triggers a pass once an unload the caller stopped waiting for
// has settled.
func (r *Router) rerouteAfter(ctx context.Context, req *unloadRequest) {
	if ctx.Err() == nil {
		return
	}
	go func() {
		if err := req.wait(r.baseCtx); err == nil {
			r.Trigger(nil)
		}
	}()
}

// detach keeps the values of ctx but ties cancellation to the router's
// lifetime instead of the caller's.
func (r *Router) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(r.baseCtx, cancel)
	return dctx, func() {
		stop()
		cancel()
	}
}

// Unregister unloads a unit and removes it. A quarantined unit is removed
// without unloading.
func (r *Router) Unregister(ctx context.Context, name string) error {
	u, ok := r.registry.get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, name)
	}
	if u.Status() != lifecycle.SkipBecauseBroken {
		if req, err := r.unloadNow(ctx, u); err != nil {
			r.rerouteAfter(ctx, req)
			return fmt.Errorf("unregister %s: %w", name, err)
		}
	}
	if r.registry.remove(name) {
		if r.journal != nil {
			r.journal.Forget(name)
		}
		r.logger.Info("Unit unregistered", "unit", name)
		r.emit(r.baseCtx, EventTypeUnitUnregistered, UnitEventData{Unit: name, Status: u.Status()})
	}
	r.Trigger(nil)
	return nil
}

// Status returns a unit's status.
func (r *Router) Status(name string) (lifecycle.Status, bool) {
	u, ok := r.registry.get(name)
	if !ok {
		return "", false
	}
	return u.Status(), true
}

// Unit returns a registered unit.
func (r *Router) Unit(name string) (*Unit, bool) {
	return r.registry.get(name)
}

// Names lists registered units in registration order.
func (r *Router) Names() []string {
	units := r.registry.snapshot()
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.name)
	}
	return names
}

// MountedNames lists mounted units in registration order.
func (r *Router) MountedNames() []string {
	names := []string{}
	for _, u := range r.registry.snapshot() {
		if u.Status() == lifecycle.Mounted {
			names = append(names, u.name)
		}
	}
	return names
}

// Units returns a snapshot of every registered unit.
func (r *Router) Units() []UnitInfo {
	units := r.registry.snapshot()
	out := make([]UnitInfo, 0, len(units))
	for _, u := range units {
		out = append(out, u.info())
	}
	return out
}

// CheckActivity lists the units whose activity function matches loc,
// without changing anything. Panicking functions count as inactive.
func (r *Router) CheckActivity(loc *url.URL) []string {
	names := []string{}
	for _, u := range r.registry.snapshot() {
		if active, err := u.isActive(loc); err == nil && active {
			names = append(names, u.name)
		}
	}
	return names
}

// Location returns the condition source's current location.
func (r *Router) Location() *url.URL {
	return r.source.Location()
}

// Navigate asks the condition source to move to target.
func (r *Router) Navigate(target string) error {
	return r.source.Navigate(target)
}

// Journal returns the transition journal, or nil when disabled.
func (r *Router) Journal() *lifecycle.Journal {
	return r.journal
}

// Close stops listening, rejects queued passes and waits for the running
// pass to finish.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.drains.Wait()
	r.cancel()
	r.logger.Info("Router closed")
	r.emit(WithSynchronousNotification(context.Background()), EventTypeRouterClosed, nil)
	return nil
}

func (r *Router) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Router) startSpan(ctx context.Context, op string, u *Unit) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "unitrouter."+op, trace.WithAttributes(
		attribute.String("unit.name", u.name),
		attribute.String("unit.kind", u.kind()),
	))
}
