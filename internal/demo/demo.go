// Package demo provides built-in bundles for units declared in a manifest.
// They do no real work; they log their hooks so the router's behavior can
// be watched from the outside.
package demo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/GoCodeAlone/unitrouter"
)

// Kinds supported by Loader.
const (
	KindStatic = "static"
	KindSlow   = "slow"
	KindFlaky  = "flaky"
	KindBroken = "broken"
	KindPanic  = "panic"
)

var (
	ErrUnknownKind = errors.New("unknown demo bundle kind")
	ErrFlakyLoad   = errors.New("flaky bundle failed to load")
	ErrBrokenMount = errors.New("broken bundle refused to mount")
)

const (
	defaultDelay     = 500 * time.Millisecond
	defaultFailCount = 2
)

// Loader returns the LoadFunc for a demo kind.
//
// Props read: "delay" (duration string, slow) and "failures" (int, flaky).
func Loader(kind string, logger unitrouter.Logger) (unitrouter.LoadFunc, error) {
	switch kind {
	case KindStatic:
		return unitrouter.Static(bundle(logger, 0, false)), nil
	case KindSlow:
		return func(_ context.Context, p unitrouter.Props) (*unitrouter.Lifecycle, error) {
			return bundle(logger, durationProp(p, "delay", defaultDelay), false), nil
		}, nil
	case KindFlaky:
		var attempts atomic.Int64
		return func(_ context.Context, p unitrouter.Props) (*unitrouter.Lifecycle, error) {
			n := attempts.Add(1)
			if n <= int64(intProp(p, "failures", defaultFailCount)) {
				logger.Warn("Demo bundle failing to load", "unit", p.Name, "attempt", n)
				return nil, fmt.Errorf("%w: attempt %d", ErrFlakyLoad, n)
			}
			return bundle(logger, 0, false), nil
		}, nil
	case KindBroken:
		return unitrouter.Static(bundle(logger, 0, true)), nil
	case KindPanic:
		return func(context.Context, unitrouter.Props) (*unitrouter.Lifecycle, error) {
			panic("demo bundle panicked while loading")
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func bundle(logger unitrouter.Logger, delay time.Duration, failMount bool) *unitrouter.Lifecycle {
	step := func(phase string) unitrouter.HookFunc {
		return func(ctx context.Context, p unitrouter.Props) error {
			if delay > 0 && phase == "mount" {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if failMount && phase == "mount" {
				return ErrBrokenMount
			}
			logger.Info("Demo hook ran", "unit", p.Name, "phase", phase)
			return nil
		}
	}
	return &unitrouter.Lifecycle{
		Bootstrap: unitrouter.Hooks(step("bootstrap")),
		Mount:     unitrouter.Hooks(step("mount")),
		Unmount:   unitrouter.Hooks(step("unmount")),
		Unload:    unitrouter.Hooks(step("unload")),
	}
}

func durationProp(p unitrouter.Props, key string, def time.Duration) time.Duration {
	switch v := p.Custom[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	}
	return def
}

func intProp(p unitrouter.Props, key string, def int) int {
	switch v := p.Custom[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
