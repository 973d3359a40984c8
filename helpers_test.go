package unitrouter

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoCodeAlone/unitrouter/internal/testutil"
	"github.com/GoCodeAlone/unitrouter/lifecycle"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://app.test"

// callLog records hook invocations as "unit:phase".
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) count(s string) int {
	n := 0
	for _, call := range c.list() {
		if call == s {
			n++
		}
	}
	return n
}

func (c *callLog) index(s string) int {
	for i, call := range c.list() {
		if call == s {
			return i
		}
	}
	return -1
}

func (c *callLog) hook(name string, phase Phase) HookFunc {
	return func(context.Context, Props) error {
		c.add(name + ":" + string(phase))
		return nil
	}
}

// bundle returns a full lifecycle that records every hook call.
func (c *callLog) bundle(name string) *Lifecycle {
	return &Lifecycle{
		Bootstrap: Hooks(c.hook(name, PhaseBootstrap)),
		Mount:     Hooks(c.hook(name, PhaseMount)),
		Unmount:   Hooks(c.hook(name, PhaseUnmount)),
		Unload:    Hooks(c.hook(name, PhaseUnload)),
		Update:    Hooks(c.hook(name, PhaseUpdate)),
	}
}

// eventRecorder keeps every event it receives.
type eventRecorder struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (e *eventRecorder) ObserverID() string { return "recorder" }

func (e *eventRecorder) OnEvent(_ context.Context, ev cloudevents.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventRecorder) all() []cloudevents.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]cloudevents.Event(nil), e.events...)
}

// routing returns the types of routing pass events in delivery order.
func (e *eventRecorder) routing() []string {
	var out []string
	for _, ev := range e.all() {
		if strings.HasPrefix(ev.Type(), "com.unitrouter.routing.") {
			out = append(out, ev.Type())
		}
	}
	return out
}

func (e *eventRecorder) ofType(eventType string) []cloudevents.Event {
	var out []cloudevents.Event
	for _, ev := range e.all() {
		if ev.Type() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (e *eventRecorder) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// fakeClock is a settable clock for load retry decisions.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t       *testing.T
	history *MemoryHistory
	router  *Router
	logger  *testutil.RecordingLogger
	events  *eventRecorder
	calls   *callLog
	loads   map[string]*atomic.Int32
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	h, err := NewMemoryHistory(testOrigin + "/")
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		history: h,
		logger:  testutil.NewRecordingLogger(),
		events:  &eventRecorder{},
		calls:   &callLog{},
		loads:   map[string]*atomic.Int32{},
	}
	all := append([]Option{WithLogger(f.logger), WithObserver(f.events)}, opts...)
	f.router, err = New(h, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.router.Close() })
	return f
}

// register adds a unit active under path whose hooks record into f.calls.
func (f *fixture) register(name, path string) {
	f.t.Helper()
	f.registerBundle(name, path, f.calls.bundle(name))
}

func (f *fixture) registerBundle(name, path string, l *Lifecycle) {
	f.t.Helper()
	f.registerLoader(name, path, Static(l))
}

func (f *fixture) registerLoader(name, path string, load LoadFunc) {
	f.t.Helper()
	counter := &atomic.Int32{}
	f.loads[name] = counter
	require.NoError(f.t, f.router.Register(UnitConfig{
		Name:       name,
		ActiveWhen: PathToActiveWhen(path, false),
		Load: func(ctx context.Context, p Props) (*Lifecycle, error) {
			counter.Add(1)
			return load(ctx, p)
		},
	}))
}

func (f *fixture) loadCount(name string) int {
	return int(f.loads[name].Load())
}

// start lets pre-start passes finish, then starts the router, so the
// start pass is the only full pass.
func (f *fixture) start() {
	f.t.Helper()
	f.settle()
	require.NoError(f.t, f.router.Start(f.ctx()))
}

// settle waits until every pass triggered so far has finished.
func (f *fixture) settle() []string {
	f.t.Helper()
	mounted, err := f.router.Reroute(f.ctx(), nil)
	require.NoError(f.t, err)
	return mounted
}

func (f *fixture) navigate(target string) []string {
	f.t.Helper()
	require.NoError(f.t, f.history.Navigate(target))
	mounted, err := f.router.Reroute(f.ctx(), nil)
	require.NoError(f.t, err)
	return mounted
}

func (f *fixture) status(name string) lifecycle.Status {
	f.t.Helper()
	s, ok := f.router.Status(name)
	require.True(f.t, ok, "unit %s is not registered", name)
	return s
}

func (f *fixture) unit(name string) *Unit {
	f.t.Helper()
	u, ok := f.router.Unit(name)
	require.True(f.t, ok, "unit %s is not registered", name)
	return u
}

func (f *fixture) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	f.t.Cleanup(cancel)
	return ctx
}

// errorSink collects reported unit errors.
type errorSink struct {
	mu   sync.Mutex
	errs []*UnitError
}

func (s *errorSink) handle(ue *UnitError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, ue)
}

func (s *errorSink) list() []*UnitError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*UnitError(nil), s.errs...)
}

func (f *fixture) collectErrors() *errorSink {
	s := &errorSink{}
	f.router.AddErrorHandler(s.handle)
	return s
}
