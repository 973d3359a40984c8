package unitrouter

import (
	"context"
	"net/url"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is the outcome of the routing pass a trigger was folded into.
type Result struct {
	// Mounted lists the units mounted when the pass finished, in
	// registration order. It is empty for passes before Start.
	Mounted []string
	Err     error
}

type waiter struct {
	event *NavigationEvent
	done  chan Result
}

// Trigger requests a routing pass and returns immediately. When a pass is
// already running the request is queued; every request queued during one
// pass is served by a single follow-up pass and they all receive its result.
// ev may be nil.
func (r *Router) Trigger(ev *NavigationEvent) <-chan Result {
	w := &waiter{event: ev, done: make(chan Result, 1)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		w.done <- Result{Err: ErrRouterClosed}
		return w.done
	}
	if r.underway {
		r.waiting = append(r.waiting, w)
		r.mu.Unlock()
		return w.done
	}
	r.underway = true
	r.drains.Add(1)
	r.mu.Unlock()

	go r.drain([]*waiter{w})
	return w.done
}

// Reroute requests a routing pass and waits for its result. ctx only bounds
// the wait; the pass itself keeps running.
func (r *Router) Reroute(ctx context.Context, ev *NavigationEvent) ([]string, error) {
	select {
	case res := <-r.Trigger(ev):
		return res.Mounted, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drain runs passes until the queue is empty. Only one drain runs at a time.
func (r *Router) drain(batch []*waiter) {
	defer r.drains.Done()
	for {
		res := r.perform(batch)
		for _, w := range batch {
			w.done <- Result{Mounted: append([]string(nil), res.Mounted...), Err: res.Err}
		}

		r.mu.Lock()
		batch = r.waiting
		r.waiting = nil
		if len(batch) == 0 {
			r.underway = false
			r.mu.Unlock()
			return
		}
		closed := r.closed
		r.mu.Unlock()

		if closed {
			for _, w := range batch {
				w.done <- Result{Err: ErrRouterClosed}
			}
			r.mu.Lock()
			r.underway = false
			r.mu.Unlock()
			return
		}
	}
}

// pass is one routing pass.
type pass struct {
	router   *Router
	id       string
	batch    []*waiter
	changes  changes
	oldURL   string
	newURL   string
	canceled bool
	started  time.Time
	span     trace.Span
}

func (r *Router) perform(batch []*waiter) Result {
	loc := r.source.Location()
	if loc == nil {
		loc = &url.URL{}
	}

	r.mu.Lock()
	oldURL := r.currentURL
	r.currentURL = loc.String()
	started := r.started
	r.mu.Unlock()

	ctx, span := r.tracer.Start(r.baseCtx, "unitrouter.pass", trace.WithAttributes(
		attribute.String("location", loc.String()),
		attribute.Bool("started", started),
		attribute.Int("triggers", len(batch)),
	))
	defer span.End()

	p := &pass{
		router:  r,
		id:      uuid.NewString(),
		batch:   batch,
		oldURL:  oldURL,
		newURL:  loc.String(),
		started: r.now(),
		span:    span,
	}
	p.changes = r.classify(ctx, loc)

	span.SetAttributes(
		attribute.Int("units.unload", len(p.changes.toUnload)),
		attribute.Int("units.unmount", len(p.changes.toUnmount)),
		attribute.Int("units.load", len(p.changes.toLoad)),
		attribute.Int("units.mount", len(p.changes.toMount)),
	)

	if !started {
		return p.loadOnly(ctx)
	}
	return p.run(ctx)
}

// loadOnly is the pass used before Start: it loads what should be active
// and nothing else. No routing events are emitted.
func (p *pass) loadOnly(ctx context.Context) Result {
	var wg conc.WaitGroup
	for _, u := range p.changes.toLoad {
		wg.Go(func() { p.router.load(ctx, u) })
	}
	if rec := wg.WaitAndRecover(); rec != nil {
		p.router.logger.Error("Load panicked during pre-start pass", "panic", rec.Value)
	}
	p.callNavigationListeners()
	return Result{Mounted: []string{}}
}

func (p *pass) run(ctx context.Context) Result {
	r := p.router
	syncCtx := withSyncNotification(ctx)

	if p.changes.empty() {
		r.emit(syncCtx, EventTypeBeforeNoChange, p.detail(true))
	} else {
		r.emit(syncCtx, EventTypeBeforeChange, p.detail(true))
	}

	canceller := &navigationCanceller{}
	r.emit(withNavigationCanceller(syncCtx, canceller), EventTypeBeforeRouting, p.detail(true))
	if canceller.canceled.Load() {
		p.canceled = true
		p.span.AddEvent("navigation canceled")
		r.emit(syncCtx, EventTypeBeforeMountRouting, p.detail(true))
		res := p.finish(syncCtx)
		r.logger.Debug("Navigation canceled", "pass", p.id, "from", p.oldURL, "to", p.newURL)
		if err := r.source.Navigate(p.oldURL); err != nil {
			r.logger.Error("Failed to navigate back after cancellation", "url", p.oldURL, "error", err)
		}
		return res
	}

	// Teardown: unloads and unmount+unload run concurrently. Mounting waits
	// for all of them and for the before-mount-routing event.
	teardownDone := make(chan struct{})
	var teardown conc.WaitGroup
	for _, u := range p.changes.toUnload {
		teardown.Go(func() { r.unload(ctx, u) })
	}
	for _, u := range p.changes.toUnmount {
		teardown.Go(func() {
			r.unmount(ctx, u, false)
			r.unload(ctx, u)
		})
	}
	go func() {
		defer close(teardownDone)
		if rec := teardown.WaitAndRecover(); rec != nil {
			r.logger.Error("Teardown panicked", "pass", p.id, "panic", rec.Value)
		}
		r.emit(syncCtx, EventTypeBeforeMountRouting, p.detail(true))
	}()

	standup := pool.New().WithErrors().WithContext(ctx)
	for _, u := range p.changes.toLoad {
		standup.Go(func(ctx context.Context) error {
			r.load(ctx, u)
			return r.tryBootstrapAndMount(ctx, u, teardownDone)
		})
	}
	for _, u := range p.changes.toMount {
		standup.Go(func(ctx context.Context) error {
			return r.tryBootstrapAndMount(ctx, u, teardownDone)
		})
	}

	<-teardownDone
	p.callNavigationListeners()

	err := standup.Wait()
	if err != nil {
		p.span.RecordError(err)
		p.span.SetStatus(codes.Error, err.Error())
	}
	res := p.finish(syncCtx)
	res.Err = err
	return res
}

// tryBootstrapAndMount bootstraps an active unit, waits for teardown and
// mounts it if it is still active.
func (r *Router) tryBootstrapAndMount(ctx context.Context, u *Unit, teardownDone <-chan struct{}) error {
	if !r.shouldBeActive(ctx, u, r.source.Location()) {
		<-teardownDone
		return nil
	}
	if _, err := r.bootstrap(ctx, u, false); err != nil {
		return err
	}
	select {
	case <-teardownDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !r.shouldBeActive(ctx, u, r.source.Location()) {
		return nil
	}
	_, err := r.mount(ctx, u, false)
	return err
}

// finish emits the closing events and snapshots the mounted set.
func (p *pass) finish(ctx context.Context) Result {
	r := p.router
	mounted := r.MountedNames()
	detail := p.detail(false)
	if p.changes.empty() {
		r.emit(ctx, EventTypeNoChange, detail)
	} else {
		r.emit(ctx, EventTypeChange, detail)
	}
	r.emit(ctx, EventTypeRouting, detail)
	r.logger.Debug("Routing pass finished", "pass", p.id, "changes", detail.TotalChanges, "mounted", mounted, "canceled", p.canceled)
	return Result{Mounted: mounted}
}

// detail builds the event payload. Before changes are applied it reports
// the intended statuses; afterwards the actual ones.
func (p *pass) detail(before bool) RoutingDetail {
	d := RoutingDetail{
		PassID:               p.id,
		NewStatuses:          make(map[string]lifecycle.Status),
		UnitsByNewStatus:     emptyByStatus(),
		OldURL:               p.oldURL,
		NewURL:               p.newURL,
		NavigationIsCanceled: p.canceled,
		StartedAt:            p.started,
		OriginalEvent:        p.originalEvent(),
	}

	add := func(name string, status lifecycle.Status) {
		d.NewStatuses[name] = status
		d.UnitsByNewStatus[status] = append(d.UnitsByNewStatus[status], name)
	}

	if before {
		for _, u := range p.changes.toLoad {
			add(u.name, lifecycle.Mounted)
		}
		for _, u := range p.changes.toMount {
			add(u.name, lifecycle.Mounted)
		}
		for _, u := range p.changes.toUnload {
			add(u.name, lifecycle.NotLoaded)
		}
		for _, u := range p.changes.toUnmount {
			add(u.name, lifecycle.NotMounted)
		}
	} else {
		for _, u := range p.changes.all() {
			add(u.name, u.Status())
		}
	}
	d.TotalChanges = len(p.changes.all())
	return d
}

func (p *pass) originalEvent() *NavigationEvent {
	for _, w := range p.batch {
		if w.event != nil {
			return w.event
		}
	}
	return nil
}

// NavigationListener is called with navigation events that triggered a
// pass, after the pass has torn down inactive units.
type NavigationListener func(NavigationEvent)

type navListenerEntry struct {
	id int
	fn NavigationListener
}

// AddNavigationListener registers fn. The returned function removes it.
func (r *Router) AddNavigationListener(fn NavigationListener) (remove func()) {
	r.navMu.Lock()
	defer r.navMu.Unlock()
	id := r.nextNavID
	r.nextNavID++
	r.navListeners = append(r.navListeners, navListenerEntry{id: id, fn: fn})
	return func() {
		r.navMu.Lock()
		defer r.navMu.Unlock()
		for i, e := range r.navListeners {
			if e.id == id {
				r.navListeners = append(r.navListeners[:i:i], r.navListeners[i+1:]...)
				return
			}
		}
	}
}

// callNavigationListeners delivers the batch's navigation events, held back
// until now so listeners run after teardown.
func (p *pass) callNavigationListeners() {
	r := p.router
	r.navMu.RLock()
	listeners := make([]NavigationListener, 0, len(r.navListeners))
	for _, e := range r.navListeners {
		listeners = append(listeners, e.fn)
	}
	r.navMu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	for _, w := range p.batch {
		if w.event == nil {
			continue
		}
		for _, fn := range listeners {
			r.callNavigationListener(fn, *w.event)
		}
	}
}

func (r *Router) callNavigationListener(fn NavigationListener, ev NavigationEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Navigation listener panicked", "event", ev.Type, "panic", rec)
		}
	}()
	fn(ev)
}
