package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseOnce sync.Once
	base     *zap.Logger
)

// Base returns the process-wide zap logger, built on first use.
func Base() *zap.Logger {
	baseOnce.Do(func() {
		config := zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.LevelKey = "level"

		if os.Getenv("DEBUG") != "" {
			config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}

		l, err := config.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// Logger provides structured logging for one component
type Logger struct {
	prefix string
	sugar  *zap.SugaredLogger
}

// NewLogger creates a new logger tagged with a component name
func NewLogger(prefix string) *Logger {
	return FromZap(Base(), prefix)
}

// FromZap wraps an existing zap logger under a component name
func FromZap(l *zap.Logger, prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		sugar:  l.With(zap.String("component", prefix)).Sugar(),
	}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// With returns a child logger that always carries the given pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		prefix: l.prefix,
		sugar:  l.sugar.With(keysAndValues...),
	}
}

// Sugared exposes the underlying logger for libraries that take
// Debug/Info/Warn/Error/Fatal(args ...interface{}), such as asynq.
func (l *Logger) Sugared() *zap.SugaredLogger {
	return l.sugar
}

// Sync flushes buffered entries
func Sync() error {
	return Base().Sync()
}
