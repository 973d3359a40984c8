package unitrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Router.
type Option func(*Router) error

// DefaultRetryBackoff is how long a LOAD_ERROR unit waits before it is
// eligible to load again.
const DefaultRetryBackoff = 200 * time.Millisecond

// WithLogger sets the router logger. The default is slog.Default().
func WithLogger(logger Logger) Option {
	return func(r *Router) error {
		if logger == nil {
			return errors.New("logger is nil")
		}
		r.logger = logger
		return nil
	}
}

// WithTimeouts replaces the default timeout policies.
func WithTimeouts(t Timeouts) Option {
	return func(r *Router) error {
		if err := t.Validate(); err != nil {
			return err
		}
		r.timeouts = t
		return nil
	}
}

// WithTimeoutOverrides adjusts individual fields of the default policies.
func WithTimeoutOverrides(o TimeoutOverrides) Option {
	return func(r *Router) error {
		t, err := r.timeouts.Apply(o)
		if err != nil {
			return err
		}
		r.timeouts = t
		return nil
	}
}

// WithRetryBackoff changes how long failed loads wait before retrying.
func WithRetryBackoff(d time.Duration) Option {
	return func(r *Router) error {
		if d < 0 {
			return fmt.Errorf("retry backoff must not be negative: %s", d)
		}
		r.retryBackoff = d
		return nil
	}
}

// WithJournal records status transitions into j. Pass nil to disable.
func WithJournal(j *lifecycle.Journal) Option {
	return func(r *Router) error {
		r.journal = j
		return nil
	}
}

// WithClock replaces time.Now for load retry decisions.
func WithClock(now func() time.Time) Option {
	return func(r *Router) error {
		if now == nil {
			return errors.New("clock is nil")
		}
		r.now = now
		return nil
	}
}

// WithObserver registers an observer before the router starts.
func WithObserver(o Observer, eventTypes ...string) Option {
	return func(r *Router) error {
		return r.RegisterObserver(o, eventTypes...)
	}
}

// WithTracerProvider traces lifecycle phases and passes with tp. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Router) error {
		if tp == nil {
			return errors.New("tracer provider is nil")
		}
		r.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// WithBaseContext sets the context routing passes run under. Cancelling it
// aborts in-flight hooks.
func WithBaseContext(ctx context.Context) Option {
	return func(r *Router) error {
		if ctx == nil {
			return errors.New("base context is nil")
		}
		r.parentCtx = ctx
		return nil
	}
}
