// Package logging provides global logging functions for tgstatctl.
// Use dot import to access L_info, L_error, etc. directly.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Log levels
const (
	LevelFatal = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// HookFunc receives every emitted line after level filtering.
// level is one of "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL".
type HookFunc func(level, msg string)

var (
	mu        sync.RWMutex
	logger    *log.Logger
	level     = LevelInfo
	logFile   *os.File
	hook      HookFunc
	exclusive bool
)

// Config holds logging configuration
type Config struct {
	Level      int
	TimeFormat string
	ShowCaller bool
	File       string // append to this file instead of stderr
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		TimeFormat: "15:04:05",
		ShowCaller: false,
	}
}

// ParseLevel maps a level name to a level constant.
func ParseLevel(name string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Init (re)initializes the global logger. Safe to call more than once; a
// previously opened log file is closed.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var f *os.File
	if cfg.File != "" {
		var err error
		f, err = os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
	}
	logFile = f

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		ReportCaller:    cfg.ShowCaller,
		CallerOffset:    2, // Skip two frames (logMsg -> L_* -> caller)
	})
	applyLevel(cfg.Level)
	applyOutput()
	return nil
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
		applyOutput()
	}
}

// SetLevel changes the log level at runtime
func SetLevel(lvl int) {
	ensureInit()
	mu.Lock()
	defer mu.Unlock()
	applyLevel(lvl)
}

// SetHookExclusive installs a hook and silences stderr while it is set.
// A configured log file keeps receiving output. Pass nil to restore stderr.
func SetHookExclusive(fn HookFunc) {
	ensureInit()
	mu.Lock()
	defer mu.Unlock()
	hook = fn
	exclusive = fn != nil
	applyOutput()
}

// caller holds mu
func applyLevel(lvl int) {
	level = lvl
	switch lvl {
	case LevelTrace, LevelDebug:
		logger.SetLevel(log.DebugLevel)
	case LevelInfo:
		logger.SetLevel(log.InfoLevel)
	case LevelWarn:
		logger.SetLevel(log.WarnLevel)
	case LevelError, LevelFatal:
		logger.SetLevel(log.ErrorLevel)
	}
}

// caller holds mu
func applyOutput() {
	var w io.Writer = os.Stderr
	switch {
	case logFile != nil:
		w = logFile
	case exclusive:
		w = io.Discard
	}
	logger.SetOutput(w)
}

// ensureInit ensures logger is initialized with defaults if not already
func ensureInit() {
	mu.RLock()
	ready := logger != nil
	mu.RUnlock()
	if !ready {
		Init(nil) //nolint:errcheck // no file configured, cannot fail
	}
}

// hasFmtVerb checks if a string contains printf-style format verbs
func hasFmtVerb(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '%' {
			next := s[i+1]
			if next != '%' && strings.ContainsRune("vsdtfgeopqxXbcUT+#", rune(next)) {
				return true
			}
		}
	}
	return false
}

// formatLine renders a message and its key/value pairs the way hooks see them.
func formatLine(msg string, keyvals []interface{}) string {
	if len(keyvals) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keyvals); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, "%v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, "%v", keyvals[i])
		}
	}
	return b.String()
}

// logMsg handles the flexible logging format:
// - logMsg(lvl, "message") -> simple
// - logMsg(lvl, "value is %d", 42) -> printf
// - logMsg(lvl, "loaded", "key", val, ...) -> structured
func logMsg(lvl int, msg string, args ...interface{}) {
	ensureInit()

	mu.RLock()
	l, current, h := logger, level, hook
	mu.RUnlock()

	if lvl > current {
		return
	}

	var finalMsg string
	var keyvals []interface{}

	if len(args) == 0 {
		finalMsg = msg
	} else if hasFmtVerb(msg) {
		finalMsg = fmt.Sprintf(msg, args...)
	} else {
		finalMsg = msg
		keyvals = args
	}

	if h != nil {
		h(levelName(lvl), formatLine(finalMsg, keyvals))
	}

	switch lvl {
	case LevelTrace, LevelDebug:
		l.Debug(finalMsg, keyvals...)
	case LevelInfo:
		l.Info(finalMsg, keyvals...)
	case LevelWarn:
		l.Warn(finalMsg, keyvals...)
	case LevelError:
		l.Error(finalMsg, keyvals...)
	case LevelFatal:
		l.Fatal(finalMsg, keyvals...)
	}
}

func levelName(lvl int) string {
	switch lvl {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "FATAL"
}

// L_trace logs at trace level (emitted as debug)
func L_trace(msg string, args ...interface{}) {
	logMsg(LevelTrace, msg, args...)
}

// L_debug logs at debug level
func L_debug(msg string, args ...interface{}) {
	logMsg(LevelDebug, msg, args...)
}

// L_info logs at info level
func L_info(msg string, args ...interface{}) {
	logMsg(LevelInfo, msg, args...)
}

// L_warn logs at warn level
func L_warn(msg string, args ...interface{}) {
	logMsg(LevelWarn, msg, args...)
}

// L_error logs at error level
func L_error(msg string, args ...interface{}) {
	logMsg(LevelError, msg, args...)
}

// L_fatal logs at fatal level and exits
func L_fatal(msg string, args ...interface{}) {
	logMsg(LevelFatal, msg, args...)
}
