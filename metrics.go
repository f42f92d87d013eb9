package glmix

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    trainCounter   prometheus.Counter
//	    scoreHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordTrain(entities int, duration time.Duration, err error) {
//	    p.trainCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordTrain is called after each training round.
	// entities is the number of entities solved, duration is the total
	// time taken, err is nil if successful.
	RecordTrain(entities int, duration time.Duration, err error)

	// RecordScore is called after each scoring pass.
	// points is the number of data scored, duration is the time taken,
	// err is nil if successful.
	RecordScore(points int, duration time.Duration, err error)

	// RecordCheckpoint is called after each checkpoint save.
	RecordCheckpoint(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTrain(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordScore(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCheckpoint(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	TrainCount       atomic.Int64
	TrainErrors      atomic.Int64
	TrainEntities    atomic.Int64
	TrainTotalNanos  atomic.Int64
	ScoreCount       atomic.Int64
	ScoreErrors      atomic.Int64
	ScorePoints      atomic.Int64
	ScoreTotalNanos  atomic.Int64
	CheckpointCount  atomic.Int64
	CheckpointErrors atomic.Int64
}

// RecordTrain implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrain(entities int, duration time.Duration, err error) {
	b.TrainCount.Add(1)
	b.TrainEntities.Add(int64(entities))
	b.TrainTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TrainErrors.Add(1)
	}
}

// RecordScore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScore(points int, duration time.Duration, err error) {
	b.ScoreCount.Add(1)
	b.ScorePoints.Add(int64(points))
	b.ScoreTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScoreErrors.Add(1)
	}
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(duration time.Duration, err error) {
	b.CheckpointCount.Add(1)
	if err != nil {
		b.CheckpointErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TrainCount:       b.TrainCount.Load(),
		TrainErrors:      b.TrainErrors.Load(),
		TrainEntities:    b.TrainEntities.Load(),
		TrainAvgNanos:    b.getAvgTrainNanos(),
		ScoreCount:       b.ScoreCount.Load(),
		ScoreErrors:      b.ScoreErrors.Load(),
		ScorePoints:      b.ScorePoints.Load(),
		ScoreAvgNanos:    b.getAvgScoreNanos(),
		CheckpointCount:  b.CheckpointCount.Load(),
		CheckpointErrors: b.CheckpointErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgTrainNanos() int64 {
	count := b.TrainCount.Load()
	if count == 0 {
		return 0
	}
	return b.TrainTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgScoreNanos() int64 {
	count := b.ScoreCount.Load()
	if count == 0 {
		return 0
	}
	return b.ScoreTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TrainCount       int64
	TrainErrors      int64
	TrainEntities    int64
	TrainAvgNanos    int64
	ScoreCount       int64
	ScoreErrors      int64
	ScorePoints      int64
	ScoreAvgNanos    int64
	CheckpointCount  int64
	CheckpointErrors int64
}
