package storagemarket

import (
	"context"
	"math"
	"time"

	"github.com/filecoin-project/dealbot/metrics"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// latencyMs returns the milliseconds between start and end, never negative
func latencyMs(start time.Time, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// throughputBps returns size divided by the latency in seconds, rounded to
// the nearest integer. Latencies under a millisecond count as one.
func throughputBps(size int64, latencyMs int64) int64 {
	if latencyMs < 1 {
		latencyMs = 1
	}
	return int64(math.Round(float64(size) / (float64(latencyMs) / 1000)))
}

func recordWithProvider(ctx context.Context, provider string, extra tag.Mutator, ms ...stats.Measurement) {
	tags := []tag.Mutator{tag.Upsert(metrics.Provider, provider)}
	if extra != nil {
		tags = append(tags, extra)
	}
	metrics.RecordWithTags(ctx, tags, ms...)
}
