// Package logging provides category-scoped structured logging for the
// verification engine, backed by zap. Categories mirror the engine's major
// subsystems so campaign output can be filtered per concern without
// threading a *zap.Logger through every call site.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"
	CategoryCampaign     Category = "campaign"
	CategoryProtocol     Category = "protocol"
	CategorySolver       Category = "solver"
	CategoryFracture     Category = "fracture"
	CategoryTraversal    Category = "traversal"
	CategoryAdapt        Category = "adapt"
	CategoryReachability Category = "reachability"
	CategoryMemory       Category = "memory"
	CategoryExecutor     Category = "executor"
	CategoryDerive       Category = "derive"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Initialize installs the backing zap logger. verbose selects debug level;
// jsonFormat selects structured JSON encoding over console encoding.
// Safe to call once at process startup (cmd/verityctl's PersistentPreRunE).
func Initialize(verbose bool, jsonFormat bool) error {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if !jsonFormat {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	base = l
	loggers = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()
	return nil
}

// Sync flushes buffered log entries. Call at shutdown.
func Sync() {
	mu.RLock()
	b := base
	mu.RUnlock()
	if b != nil {
		_ = b.Sync()
	}
}

// Get returns the sugared logger for a category, creating one lazily from a
// no-op base if Initialize was never called (useful in tests).
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	b := base
	if b == nil {
		b = zap.NewNop()
	}
	l := b.Sugar().With("category", string(category))
	loggers[category] = l
	return l
}

// Timer measures and logs the duration of an operation.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing op under category.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop logs the elapsed duration at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level if elapsed exceeds threshold, debug
// otherwise.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnw(t.op+" exceeded threshold", "elapsed", elapsed, "threshold", threshold)
	} else {
		Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	}
	return elapsed
}
