package unitrouter

// Logger defines the interface for router logging.
// The router uses structured logging with key-value pairs so that
// transitions, passes and quarantine decisions produce parseable output.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("Unit mounted", "unit", "navbar", "pass", passID)
//
// *slog.Logger satisfies this interface directly and is used when no
// logger is configured. Adapters for other libraries (zerolog, zap, logrus)
// only need these four methods.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal events like unit registration and pass completion.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for quarantine decisions and hook failures.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	// Used for slow hooks and ignored timeouts.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for per-transition detail, typically disabled in production.
	Debug(msg string, args ...any)
}
