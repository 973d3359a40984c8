// Package logging adapts zerolog to the router's Logger interface.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the log output.
type Config struct {
	Level  string
	Format string // json or console
	Output io.Writer
}

// ZerologLogger implements unitrouter.Logger on top of zerolog. Arguments
// are alternating key-value pairs, as with log/slog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// New creates a logger from cfg. A nil Output writes to stderr.
func New(cfg Config) *ZerologLogger {
	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
	return &ZerologLogger{zl: zl}
}

// Wrap adapts an existing zerolog logger.
func Wrap(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// Zerolog returns the underlying logger.
func (l *ZerologLogger) Zerolog() zerolog.Logger { return l.zl }

func (l *ZerologLogger) Info(msg string, args ...any)  { l.write(l.zl.Info(), msg, args) }
func (l *ZerologLogger) Warn(msg string, args ...any)  { l.write(l.zl.Warn(), msg, args) }
func (l *ZerologLogger) Error(msg string, args ...any) { l.write(l.zl.Error(), msg, args) }
func (l *ZerologLogger) Debug(msg string, args ...any) { l.write(l.zl.Debug(), msg, args) }

func (l *ZerologLogger) write(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	if len(args)%2 == 1 {
		args = append(args, "(MISSING)")
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case []string:
			ev = ev.Strs(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

// ParseLevel maps debug, info, warn and error to zerolog levels. Anything
// else is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
