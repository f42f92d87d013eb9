package glmix

import (
	"log/slog"

	"github.com/hupe1980/glmix/checkpoint"
	"github.com/hupe1980/glmix/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	checkpointer     *checkpoint.Checkpointer
	checkpointTier   checkpoint.Tier
	controller       *resource.Controller
}

// Option configures Coordinate constructor behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &glmix.BasicMetricsCollector{}
//	coord := glmix.NewCoordinate(ds, problem, glmix.WithMetricsCollector(metrics))
//	// ... train ...
//	stats := metrics.GetStats()
//	fmt.Printf("Rounds: %d, Avg latency: %dns\n", stats.TrainCount, stats.TrainAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := glmix.NewJSONLogger(slog.LevelInfo)
//	coord := glmix.NewCoordinate(ds, problem, glmix.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithCheckpointer configures named checkpoints of trained per-entity
// state after each training round. Without a checkpointer, training
// still tags and pins its result block in memory; the checkpointer
// additionally records a codec-encoded snapshot that can be spilled to
// a blob store.
func WithCheckpointer(cp *checkpoint.Checkpointer, tier checkpoint.Tier) Option {
	return func(o *options) {
		o.checkpointer = cp
		o.checkpointTier = tier
	}
}

// WithResourceController configures memory accounting for materialized
// training state.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
