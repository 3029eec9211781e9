// logging.go - structured logging for the loop core.
//
// Design decision: package-level global logger, following the teacher's own
// rationale (logging is cross-cutting infrastructure; every Loop instance
// shares logging semantics; per-instance configuration would just bloat the
// surface area for no benefit). Override per-instance via WithLogger.
package uvloop

import (
	"log/slog"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured-logging handle used throughout the loop core.
// It is a type alias for a logiface.Logger bound to the logiface-slog event
// type, so callers can also construct one directly via logiface.New with any
// logiface-compatible backend (zerolog, logrus, ...), not just slog.
type Logger = logiface.Logger[*logifaceslog.Event]

var globalLogger struct {
	sync.RWMutex
	logger *Logger
}

// SetLogger sets the package-level default structured logger, used by any
// Loop created without an explicit WithLogger option.
func SetLogger(l *Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = l
}

func getGlobalLogger() *Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}

// NewDefaultLogger builds a Logger writing structured text to stderr via
// log/slog, at the given minimum level.
func NewDefaultLogger(level logiface.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})
	return logiface.New[*logifaceslog.Event](logifaceslog.NewLogger(handler, logifaceslog.WithLevel(level)))
}

// loggerFor resolves the effective logger for a Loop: the per-instance
// override set at New time, else the package-level global, else a
// quiet (errors-only) default so log calls stay cheap in the common case.
func loggerFor(opts *loopOptions) *Logger {
	if opts != nil && opts.logger != nil {
		return opts.logger
	}
	if l := getGlobalLogger(); l != nil {
		return l
	}
	return logiface.New[*logifaceslog.Event](logifaceslog.NewLogger(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}),
		logifaceslog.WithLevel(logiface.LevelError),
	))
}
