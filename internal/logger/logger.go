// Package logger provides the process-wide structured logger for the
// apartment catalog server. It is a thin facade over zap so that call
// sites stay short and the backend can be swapped without touching them.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = zap.NewNop().Sugar()

// Initialize configures the process-wide logger. When debug is true,
// output is human-readable and includes debug-level messages; otherwise
// JSON at info level. Safe to call more than once; the last call wins.
func Initialize(debug bool) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	// Keep stdout clean for commands that print data (e.g. version --format json)
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Building from a static config only fails on programmer error
		panic(err)
	}
	log = l.Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = log.Sync()
}

// Debug logs a message at debug level.
func Debug(args ...any) { log.Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { log.Debugf(format, args...) }

// Info logs a message at info level.
func Info(args ...any) { log.Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { log.Infof(format, args...) }

// Warn logs a message at warning level.
func Warn(args ...any) { log.Warn(args...) }

// Warnf logs a formatted message at warning level.
func Warnf(format string, args ...any) { log.Warnf(format, args...) }

// Error logs a message at error level.
func Error(args ...any) { log.Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { log.Errorf(format, args...) }

// Fatalf logs a formatted message and exits the process.
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }
