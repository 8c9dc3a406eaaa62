// Package dlog provides the structured logging used throughout the
// analysis core: a level-gated logger carried via context.Context, plus
// a ProgressTracker for long-running fixpoint loops.
//
// This is deliberately built on the standard library rather than a
// third-party logging package: io.Writer + fmt is exactly how the
// reference tooling this module is adapted from does it, and a
// third-party logger would be a style regression, not an upgrade.
package dlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Level selects how much detail a Logger emits.
type Level int

const (
	Silent Level = iota
	Info
	Debug
	Trace
)

// Logger provides structured logging for the graph/analysis packages.
type Logger struct {
	level  Level
	writer io.Writer
	prefix string
}

type loggerKey struct{}

// New creates a Logger at the given level, writing to w (os.Stderr if nil).
func New(level Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{level: level, writer: w}
}

// WithPrefix returns a derived Logger that prefixes every line.
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := prefix
	if l.prefix != "" {
		newPrefix = l.prefix + " " + prefix
	}
	return &Logger{level: l.level, writer: l.writer, prefix: newPrefix}
}

func (l *Logger) Info(format string, args ...any) {
	if l.level >= Info {
		l.log("•", format, args...)
	}
}

func (l *Logger) Debug(format string, args ...any) {
	if l.level >= Debug {
		l.log("→", format, args...)
	}
}

func (l *Logger) Trace(format string, args ...any) {
	if l.level >= Trace {
		l.log("·", format, args...)
	}
}

func (l *Logger) Warning(format string, args ...any) {
	if l.level >= Info {
		l.log("⚠", format, args...)
	}
}

func (l *Logger) Error(format string, args ...any) {
	if l.level >= Info {
		l.log("✗", format, args...)
	}
}

// Step logs a single completed processing step with optional details.
func (l *Logger) Step(step string, details ...string) {
	if l.level >= Info {
		msg := step
		if len(details) > 0 {
			msg += ": " + strings.Join(details, ", ")
		}
		l.log("✓", "%s", msg)
	}
}

func (l *Logger) log(symbol, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	prefix := ""
	if l.prefix != "" {
		prefix = "[" + l.prefix + "] "
	}
	fmt.Fprintf(l.writer, "%s %s%s\n", symbol, prefix, message)
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves the Logger from ctx, or a silent no-op logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return New(Silent, io.Discard)
}

// ProgressTracker reports progress of a long-running operation, such as
// one outer fixpoint iteration over every constraint-graph node.
type ProgressTracker struct {
	name      string
	total     int
	current   int
	startTime time.Time
	logger    *Logger
	lastLog   time.Time
	interval  time.Duration
	batchSize int
	lastBatch int
}

// NewProgressTracker creates a tracker that logs through ctx's Logger.
func NewProgressTracker(ctx context.Context, name string, total int) *ProgressTracker {
	logger := FromContext(ctx)

	batchSize := 1
	interval := time.Second
	switch {
	case total > 1000:
		batchSize = total / 10
		interval = 3 * time.Second
	case total > 100:
		batchSize = total / 20
		interval = 2 * time.Second
	}

	pt := &ProgressTracker{
		name:      name,
		total:     total,
		startTime: time.Now(),
		logger:    logger,
		lastLog:   time.Now(),
		interval:  interval,
		batchSize: batchSize,
	}
	if total > 10 {
		logger.Info("starting %s (%d items)", name, total)
	}
	return pt
}

// Update advances progress by one and logs on batch/time/milestone boundaries.
func (pt *ProgressTracker) Update() {
	pt.current++

	now := time.Now()
	shouldLog := pt.current == pt.total
	if !shouldLog {
		timePassed := now.Sub(pt.lastLog) >= pt.interval
		batchComplete := pt.current-pt.lastBatch >= pt.batchSize
		shouldLog = timePassed || batchComplete
	}

	if shouldLog {
		elapsed := now.Sub(pt.startTime)
		if pt.current == pt.total {
			pt.logger.Info("%s complete (%d items) in %v", pt.name, pt.current, elapsed.Truncate(time.Millisecond))
		} else if pt.total > 10 {
			percentage := float64(pt.current) / float64(pt.total) * 100
			pt.logger.Info("%s: %d/%d (%.0f%%)", pt.name, pt.current, pt.total, percentage)
		}
		pt.lastLog = now
		pt.lastBatch = pt.current
	}
}

// Complete marks the tracker as finished even if total was not reached.
func (pt *ProgressTracker) Complete() {
	if pt.current < pt.total {
		pt.current = pt.total
		pt.logger.Info("%s complete (%d items) in %v", pt.name, pt.current, time.Since(pt.startTime).Truncate(time.Millisecond))
	}
}
