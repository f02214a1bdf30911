// Package logger exposes leveled printf-style logging for the whole pipeline
// backed by a single zap logger. Init may be called once at startup to set the
// level; before that a production logger at info level is used.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = newSugar(zapcore.InfoLevel)
)

func newSugar(level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// Init configures the global logger level. Unknown levels fall back to info.
func Init(level string) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	mu.Lock()
	sugar = newSugar(lvl)
	mu.Unlock()
}

// UseNop silences all logging; intended for tests.
func UseNop() {
	mu.Lock()
	sugar = zap.NewNop().Sugar()
	mu.Unlock()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }

// Infof logs an info message.
func Infof(format string, args ...interface{}) { get().Infof(format, args...) }

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) { get().Warnf(format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }

// Sync flushes buffered log entries.
func Sync() { _ = get().Sync() }
