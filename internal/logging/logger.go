// Package logging builds the zap loggers used across maxis. There is one
// base logger per process; each subsystem takes a named child for its
// category, and a category switched off in config gets a no-op logger.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"maxis/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBinder  Category = "binder"  // Panel load/commit/append
	CategoryHost    Category = "host"    // Terminal session traffic
	CategorySession Category = "session" // Executor scheduling
	CategoryJournal Category = "journal" // Write audit trail
	CategoryCLI     Category = "cli"     // Command line front end
)

// New builds the base logger from config. Format "json" gives the
// production encoder, anything else the console encoder. DebugMode forces
// the debug level.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if cfg.DebugMode {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// For returns the logger for category: base named after it, or a no-op
// logger when the category is disabled.
func For(base *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if base == nil || !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return base.Named(string(category))
}

// Timer tracks operation timing
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer begins timing an operation
func StartTimer(logger *zap.Logger, operation string) *Timer {
	return &Timer{logger: logger, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if the operation took longer than
// threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.logger.Warn("slow operation", zap.String("op", t.op), zap.Duration("elapsed", elapsed), zap.Duration("threshold", threshold))
	} else {
		t.logger.Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
