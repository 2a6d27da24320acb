package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatConsole renders human-readable lines on stderr.
	FormatConsole = "console"
	// FormatJSON renders one JSON object per line on stderr.
	FormatJSON = "json"

	// logFileMode is used when creating a log file.
	logFileMode os.FileMode = 0o600
)

var (
	// errUnknownLevel is returned for log level names ParseLogLevel does not know.
	errUnknownLevel = errors.New("unknown log level")
	// errUnknownFormat is returned for output formats other than console and json.
	errUnknownFormat = errors.New("unknown log format")
)

var (
	// global is the shared logger instance used throughout the application.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global *zap.SugaredLogger
	// defaultLevel is the minimum log level for messages to be processed.
	//nolint:gochecknoglobals //  If the logging level is not set, the application will have no logs.
	defaultLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	// sink receives every entry of the global logger; Configure swaps it.
	//nolint:gochecknoglobals // Shared by every logger derived from global.
	sink atomic.Pointer[zapcore.Core]
)

func init() { //nolint:gochecknoinits // If the logging level is not set, the application will have no logs.
	core := newConsoleCore(os.Stderr)
	sink.Store(&core)

	global = zap.New(&switchCore{}).Sugar()
}

// Output selects the level, format and destinations of log messages.
type Output struct {
	// Level is a level name; empty keeps the current level.
	Level string
	// Format is FormatConsole or FormatJSON; empty means console.
	Format string
	// File, if set, additionally receives every message as JSON.
	File string
}

// Configure applies out to the global logger and every logger derived from it,
// including loggers already stored in contexts.
// The returned function flushes and closes the log file; call it before exiting.
func Configure(out Output) (func(), error) {
	if err := SetLevelName(out.Level); err != nil {
		return nil, err
	}

	var primary zapcore.Core

	switch strings.ToLower(strings.TrimSpace(out.Format)) {
	case "", FormatConsole:
		primary = newConsoleCore(os.Stderr)
	case FormatJSON:
		primary = newJSONCore(os.Stderr)
	default:
		return nil, fmt.Errorf("%q: %w", out.Format, errUnknownFormat)
	}

	if out.File == "" {
		sink.Store(&primary)

		return func() { _ = global.Sync() }, nil
	}

	if err := os.MkdirAll(filepath.Dir(out.File), 0o755); err != nil { //nolint:mnd // Conventional directory mode.
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Clean(out.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	tee := zapcore.NewTee(primary, newJSONCore(file))
	sink.Store(&tee)

	return func() {
		_ = global.Sync()

		// Later messages go to stderr only.
		fallback := newConsoleCore(os.Stderr)
		sink.CompareAndSwap(&tee, &fallback)

		_ = file.Close()
	}, nil
}

// newConsoleCore builds the colored console core writing to w.
func newConsoleCore(w io.Writer) zapcore.Core {
	//nolint:exhaustruct // I'm okay with default encoder configuration values.
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: ", ",
	})

	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), defaultLevel)
}

// newJSONCore builds a core writing one JSON object per message to w.
func newJSONCore(w io.Writer) zapcore.Core {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "time"
	config.MessageKey = "message"
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeDuration = zapcore.StringDurationEncoder

	return zapcore.NewCore(zapcore.NewJSONEncoder(config), zapcore.Lock(zapcore.AddSync(w)), defaultLevel)
}

// switchCore forwards entries to the current sink, so derived loggers follow Configure.
type switchCore struct {
	// fields were added through With and are replayed on every write.
	fields []zapcore.Field
}

// Enabled reports whether the global level lets l through.
func (c *switchCore) Enabled(l zapcore.Level) bool {
	return defaultLevel.Enabled(l)
}

// With returns a core carrying fields in addition to the existing ones.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *switchCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)

	return &switchCore{fields: combined}
}

// Check adds the core to the checked entry if the level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *switchCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write hands the entry with the accumulated fields to the current sink.
//
//nolint:gocritic // Signature is defined by zapcore.Core.
func (c *switchCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := fields
	if len(c.fields) > 0 {
		all = make([]zapcore.Field, 0, len(c.fields)+len(fields))
		all = append(all, c.fields...)
		all = append(all, fields...)
	}

	return (*sink.Load()).Write(ent, all)
}

// Sync flushes the current sink.
func (c *switchCore) Sync() error {
	return (*sink.Load()).Sync()
}

// ParseLogLevel converts string input to zap log level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// SetLevelName parses name and applies it to the global logger.
// An empty name keeps the current level.
func SetLevelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	level, ok := ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, errUnknownLevel)
	}

	SetLevel(level)

	return nil
}

// Level returns the current logging level of the global logger.
func Level() zapcore.Level {
	return defaultLevel.Level()
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLevel sets the log level for the global logger.
func SetLevel(level zapcore.Level) {
	//nolint: errcheck // No need to check the error here.
	defer global.Sync()

	defaultLevel.SetLevel(level)
}

// Debug writes a debug level message using the logger from the context.
func Debug(ctx context.Context, args ...any) {
	FromContext(ctx).Debug(args...)
}

// DebugKV writes a message and key-value pairs
// at the debug level using the logger from the context.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// Info writes an information level message using the logger from the context.
func Info(ctx context.Context, args ...any) {
	FromContext(ctx).Info(args...)
}

// InfoKV writes a message and key-value pairs
// at the information level using the logger from the context.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// Warn writes a warning level message using the logger from the context.
func Warn(ctx context.Context, args ...any) {
	FromContext(ctx).Warn(args...)
}

// WarnKV writes a message and key-value pairs
// at the warning level using the logger from the context.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// Error writes an error level message using the logger from the context.
func Error(ctx context.Context, args ...any) {
	FromContext(ctx).Error(args...)
}

// ErrorKV writes a message and key-value pairs
// at the error level using the logger from the context.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
