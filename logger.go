package rastergo

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/rastergo/chunk"
)

// Logger wraps slog.Logger with rastergo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithGrid adds a grid identifier field to the logger.
func (l *Logger) WithGrid(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("grid", id),
	}
}

// LogSwapOut logs the eviction of one chunk to the blob store.
func (l *Logger) LogSwapOut(ctx context.Context, gridID uint64, id chunk.ID, freed int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "swap-out failed",
			"grid", gridID,
			"chunk", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "swap-out completed",
			"grid", gridID,
			"chunk", id.String(),
			"freed_bytes", freed,
		)
	}
}

// LogSwapIn logs the reload of an evicted chunk from the blob store.
func (l *Logger) LogSwapIn(ctx context.Context, gridID uint64, id chunk.ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "swap-in failed",
			"grid", gridID,
			"chunk", id.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "swap-in completed",
			"grid", gridID,
			"chunk", id.String(),
		)
	}
}

// LogHeadroom logs the outcome of an eviction pass.
func (l *Logger) LogHeadroom(ctx context.Context, need int64, evicted int, err error) {
	if err != nil {
		l.WarnContext(ctx, "headroom pass failed",
			"need_bytes", need,
			"evicted", evicted,
			"error", err,
		)
	} else if evicted > 0 {
		l.DebugContext(ctx, "headroom pass completed",
			"need_bytes", need,
			"evicted", evicted,
		)
	}
}

// LogImport logs a bulk raster import.
func (l *Logger) LogImport(ctx context.Context, gridID uint64, nRows, nCols int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "import failed",
			"grid", gridID,
			"rows", nRows,
			"cols", nCols,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "import completed",
			"grid", gridID,
			"rows", nRows,
			"cols", nCols,
		)
	}
}
