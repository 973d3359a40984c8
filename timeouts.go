package unitrouter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// TimeoutPolicy controls how long a phase may run.
//
// Millis is the deadline. When it passes and DieOnTimeout is set the phase
// fails with a *TimeoutError; otherwise an error is logged and the phase keeps
// waiting. Zero disables the deadline. WarningMillis is the interval between
// "still waiting" warnings emitted before the deadline.
type TimeoutPolicy struct {
	Millis        int  `json:"millis" yaml:"millis" toml:"millis" env:"MILLIS" validate:"gte=0"`
	DieOnTimeout  bool `json:"dieOnTimeout" yaml:"dieOnTimeout" toml:"dieOnTimeout" env:"DIE_ON_TIMEOUT"`
	WarningMillis int  `json:"warningMillis" yaml:"warningMillis" toml:"warningMillis" env:"WARNING_MILLIS" validate:"gte=0"`
}

// Deadline returns Millis as a duration.
func (p TimeoutPolicy) Deadline() time.Duration {
	return time.Duration(p.Millis) * time.Millisecond
}

// Warning returns WarningMillis as a duration.
func (p TimeoutPolicy) Warning() time.Duration {
	return time.Duration(p.WarningMillis) * time.Millisecond
}

// Timeouts is a full policy set, one per supervised phase.
type Timeouts struct {
	Bootstrap TimeoutPolicy `json:"bootstrap" yaml:"bootstrap" toml:"bootstrap" env:"BOOTSTRAP"`
	Mount     TimeoutPolicy `json:"mount" yaml:"mount" toml:"mount" env:"MOUNT"`
	Unmount   TimeoutPolicy `json:"unmount" yaml:"unmount" toml:"unmount" env:"UNMOUNT"`
	Unload    TimeoutPolicy `json:"unload" yaml:"unload" toml:"unload" env:"UNLOAD"`
	Update    TimeoutPolicy `json:"update" yaml:"update" toml:"update" env:"UPDATE"`
}

// DefaultTimeouts returns the policy used when nothing is configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Bootstrap: TimeoutPolicy{Millis: 4000, WarningMillis: 1000},
		Mount:     TimeoutPolicy{Millis: 3000, WarningMillis: 1000},
		Unmount:   TimeoutPolicy{Millis: 3000, WarningMillis: 1000},
		Unload:    TimeoutPolicy{Millis: 3000, WarningMillis: 1000},
		Update:    TimeoutPolicy{Millis: 3000, WarningMillis: 1000},
	}
}

// For returns the policy for a phase. Unsupervised phases get a zero policy.
func (t Timeouts) For(phase Phase) TimeoutPolicy {
	switch phase {
	case PhaseBootstrap:
		return t.Bootstrap
	case PhaseMount:
		return t.Mount
	case PhaseUnmount:
		return t.Unmount
	case PhaseUnload:
		return t.Unload
	case PhaseUpdate:
		return t.Update
	default:
		return TimeoutPolicy{}
	}
}

func (t *Timeouts) set(phase Phase, p TimeoutPolicy) {
	switch phase {
	case PhaseBootstrap:
		t.Bootstrap = p
	case PhaseMount:
		t.Mount = p
	case PhaseUnmount:
		t.Unmount = p
	case PhaseUnload:
		t.Unload = p
	case PhaseUpdate:
		t.Update = p
	}
}

// Validate checks every policy for negative values.
func (t Timeouts) Validate() error {
	if err := validate().Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimeouts, err)
	}
	return nil
}

// TimeoutOverride changes part of a phase policy. Nil fields keep the
// router default.
type TimeoutOverride struct {
	Millis        *int  `json:"millis,omitempty" yaml:"millis,omitempty" toml:"millis,omitempty" validate:"omitempty,gte=0"`
	DieOnTimeout  *bool `json:"dieOnTimeout,omitempty" yaml:"dieOnTimeout,omitempty" toml:"dieOnTimeout,omitempty"`
	WarningMillis *int  `json:"warningMillis,omitempty" yaml:"warningMillis,omitempty" toml:"warningMillis,omitempty" validate:"omitempty,gte=0"`
}

// TimeoutOverrides maps phase names to partial policies.
type TimeoutOverrides map[Phase]TimeoutOverride

// Apply merges overrides onto t and returns the result. Unknown phases and
// negative values are rejected.
func (t Timeouts) Apply(overrides TimeoutOverrides) (Timeouts, error) {
	out := t
	for phase, o := range overrides {
		switch phase {
		case PhaseBootstrap, PhaseMount, PhaseUnmount, PhaseUnload, PhaseUpdate:
		default:
			return t, fmt.Errorf("%w: unknown phase %q", ErrInvalidTimeouts, phase)
		}
		if err := validate().Struct(o); err != nil {
			return t, fmt.Errorf("%w: %s: %w", ErrInvalidTimeouts, phase, err)
		}
		p := out.For(phase)
		if o.Millis != nil {
			p.Millis = *o.Millis
		}
		if o.DieOnTimeout != nil {
			p.DieOnTimeout = *o.DieOnTimeout
		}
		if o.WarningMillis != nil {
			p.WarningMillis = *o.WarningMillis
		}
		out.set(phase, p)
	}
	return out, nil
}

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

func validate() *validator.Validate {
	validateOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validateInst
}

// supervise runs the unit's hooks for phase under its timeout policy.
func (r *Router) supervise(ctx context.Context, u *Unit, phase Phase) error {
	hooks, policy, props := u.phaseInput(phase)
	if len(hooks) == 0 {
		return nil
	}

	hookCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runHooks(hookCtx, hooks, props)
	}()

	var deadline <-chan time.Time
	if policy.Millis > 0 {
		t := time.NewTimer(policy.Deadline())
		defer t.Stop()
		deadline = t.C
	}

	var warn <-chan time.Time
	var ticker *time.Ticker
	if policy.WarningMillis > 0 && (policy.Millis == 0 || policy.WarningMillis < policy.Millis) {
		ticker = time.NewTicker(policy.Warning())
		defer ticker.Stop()
		warn = ticker.C
	}

	start := time.Now()
	for {
		select {
		case err := <-done:
			return err
		case <-warn:
			elapsed := time.Since(start)
			r.logger.Warn("Lifecycle phase has not finished",
				"unit", u.name, "kind", u.kind(), "phase", phase,
				"elapsed", elapsed.Round(time.Millisecond), "deadline", policy.Deadline())
			if policy.Millis > 0 && elapsed+policy.Warning() >= policy.Deadline() {
				ticker.Stop()
				warn = nil
			}
		case <-deadline:
			deadline = nil
			warn = nil
			terr := &TimeoutError{Unit: u.name, Kind: u.kind(), Phase: phase, Policy: policy}
			if policy.DieOnTimeout {
				return terr
			}
			r.logger.Error("Lifecycle phase exceeded its deadline, still waiting",
				"unit", u.name, "kind", u.kind(), "phase", phase, "error", terr)
		case <-ctx.Done():
			return fmt.Errorf("%s %s of %q: %w", u.kind(), phase, u.name, ctx.Err())
		}
	}
}

// runHooks calls each hook in order and converts panics to errors.
func runHooks(ctx context.Context, hooks []HookFunc, props Props) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, rec)
		}
	}()
	for _, h := range hooks {
		if err := h(ctx, props); err != nil {
			return err
		}
	}
	return nil
}
