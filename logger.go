package glmix

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with glmix-specific context.
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

// WithCoordinate adds the coordinate's entity-type and feature-shard
// fields to the logger.
func (l *Logger) WithCoordinate(entityType, featureShardID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("entity_type", entityType, "feature_shard", featureShardID),
	}
}

// LogTrain logs a training round.
func (l *Logger) LogTrain(ctx context.Context, entities int, warmStart bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"entities", entities,
			"warm_start", warmStart,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "training completed",
			"entities", entities,
			"warm_start", warmStart,
		)
	}
}

// LogScore logs a scoring pass. points is the number of scored data
// points across both paths.
func (l *Logger) LogScore(ctx context.Context, points, passiveEntities int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scoring failed",
			"points", points,
			"passive_entities", passiveEntities,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scoring completed",
			"points", points,
			"passive_entities", passiveEntities,
		)
	}
}

// LogCheckpoint logs a checkpoint save.
func (l *Logger) LogCheckpoint(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint saved",
			"name", name,
		)
	}
}
