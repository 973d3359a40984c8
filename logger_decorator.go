package unitrouter

import "strings"

// LoggerDecorator wraps a Logger to add behavior without changing it.
type LoggerDecorator interface {
	Logger

	// GetInnerLogger returns the wrapped logger
	GetInnerLogger() Logger
}

// BaseLoggerDecorator forwards every call to the wrapped logger.
type BaseLoggerDecorator struct {
	inner Logger
}

// NewBaseLoggerDecorator creates a new base decorator wrapping the given logger.
func NewBaseLoggerDecorator(inner Logger) *BaseLoggerDecorator {
	return &BaseLoggerDecorator{inner: inner}
}

// GetInnerLogger returns the wrapped logger
func (d *BaseLoggerDecorator) GetInnerLogger() Logger {
	return d.inner
}

func (d *BaseLoggerDecorator) Info(msg string, args ...any)  { d.inner.Info(msg, args...) }
func (d *BaseLoggerDecorator) Error(msg string, args ...any) { d.inner.Error(msg, args...) }
func (d *BaseLoggerDecorator) Warn(msg string, args ...any)  { d.inner.Warn(msg, args...) }
func (d *BaseLoggerDecorator) Debug(msg string, args ...any) { d.inner.Debug(msg, args...) }

// ValueInjectionLoggerDecorator appends fixed key-value pairs to every call,
// e.g. the router instance name.
type ValueInjectionLoggerDecorator struct {
	*BaseLoggerDecorator
	injectedArgs []any
}

// NewValueInjectionLoggerDecorator creates a decorator that injects args.
func NewValueInjectionLoggerDecorator(inner Logger, injectedArgs ...any) *ValueInjectionLoggerDecorator {
	return &ValueInjectionLoggerDecorator{
		BaseLoggerDecorator: NewBaseLoggerDecorator(inner),
		injectedArgs:        injectedArgs,
	}
}

func (d *ValueInjectionLoggerDecorator) combineArgs(originalArgs []any) []any {
	if len(d.injectedArgs) == 0 {
		return originalArgs
	}
	combined := make([]any, 0, len(d.injectedArgs)+len(originalArgs))
	combined = append(combined, d.injectedArgs...)
	return append(combined, originalArgs...)
}

func (d *ValueInjectionLoggerDecorator) Info(msg string, args ...any) {
	d.inner.Info(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLoggerDecorator) Error(msg string, args ...any) {
	d.inner.Error(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLoggerDecorator) Warn(msg string, args ...any) {
	d.inner.Warn(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLoggerDecorator) Debug(msg string, args ...any) {
	d.inner.Debug(msg, d.combineArgs(args)...)
}

// LevelFilterLoggerDecorator drops calls below a minimum level.
type LevelFilterLoggerDecorator struct {
	*BaseLoggerDecorator
	min int
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// NewLevelFilterLoggerDecorator keeps calls at or above level (debug, info,
// warn or error). Unknown levels keep everything.
func NewLevelFilterLoggerDecorator(inner Logger, level string) *LevelFilterLoggerDecorator {
	return &LevelFilterLoggerDecorator{
		BaseLoggerDecorator: NewBaseLoggerDecorator(inner),
		min:                 levelRank[strings.ToLower(level)],
	}
}

func (d *LevelFilterLoggerDecorator) Info(msg string, args ...any) {
	if d.min <= levelRank["info"] {
		d.inner.Info(msg, args...)
	}
}

func (d *LevelFilterLoggerDecorator) Error(msg string, args ...any) {
	d.inner.Error(msg, args...)
}

func (d *LevelFilterLoggerDecorator) Warn(msg string, args ...any) {
	if d.min <= levelRank["warn"] {
		d.inner.Warn(msg, args...)
	}
}

func (d *LevelFilterLoggerDecorator) Debug(msg string, args ...any) {
	if d.min <= levelRank["debug"] {
		d.inner.Debug(msg, args...)
	}
}
