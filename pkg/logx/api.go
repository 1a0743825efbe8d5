package logx

import (
	"context"
	"io"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(LoadFromEnv()))
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger *Logger) {
	defaultLogger.Store(logger)
}

// GetDefaultLogger returns the package-level logger.
func GetDefaultLogger() *Logger {
	return defaultLogger.Load()
}

func SetLevel(level Level) {
	GetDefaultLogger().SetLevel(level)
}

func SetOutput(w io.Writer) {
	GetDefaultLogger().SetOutput(w)
}

func Debug(msg string) { GetDefaultLogger().Debug(msg) }
func Info(msg string)  { GetDefaultLogger().Info(msg) }
func Warn(msg string)  { GetDefaultLogger().Warn(msg) }
func Error(msg string) { GetDefaultLogger().Error(msg) }
func Fatal(msg string) { GetDefaultLogger().Fatal(msg) }

func Debugf(format string, args ...any) { GetDefaultLogger().Debugf(format, args...) }
func Infof(format string, args ...any)  { GetDefaultLogger().Infof(format, args...) }
func Warnf(format string, args ...any)  { GetDefaultLogger().Warnf(format, args...) }
func Errorf(format string, args ...any) { GetDefaultLogger().Errorf(format, args...) }
func Fatalf(format string, args ...any) { GetDefaultLogger().Fatalf(format, args...) }

// WithFields starts an entry with fields on the default logger.
func WithFields(fields Fields) *Entry {
	return GetDefaultLogger().WithFields(fields)
}

// WithField starts an entry with a single field on the default logger.
func WithField(key string, value any) *Entry {
	return GetDefaultLogger().WithField(key, value)
}

// WithError starts an entry carrying err on the default logger.
func WithError(err error) *Entry {
	return GetDefaultLogger().WithError(err)
}

// WithContext starts an entry bound to ctx on the default logger.
func WithContext(ctx context.Context) *Entry {
	return GetDefaultLogger().WithContext(ctx)
}
