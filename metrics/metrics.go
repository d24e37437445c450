package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Distribution
var defaultMillisecondsDistribution = view.Distribution(10, 50, 100, 250, 500, 1000, 2000, 5000, 10_000, 20_000, 30_000, 60_000, 2*60_000, 5*60_000, 10*60_000, 20*60_000, 30*60_000, 60*60_000)
var throughputDistribution = view.Distribution(1<<10, 1<<13, 1<<16, 1<<18, 1<<20, 1<<22, 1<<24, 1<<26, 1<<28, 1<<30)

// Global Tags
var (
	Version, _  = tag.NewKey("version")
	Commit, _   = tag.NewKey("commit")
	Provider, _ = tag.NewKey("provider")
	Addons, _   = tag.NewKey("addons")
	// Deal error code or ipni verification status
	Outcome, _ = tag.NewKey("outcome")
)

// Measures
var (
	DealbotInfo = stats.Int64("info", "Arbitrary counter to tag dealbot info to", stats.UnitDimensionless)

	// deal making
	DealsCreated        = stats.Int64("deals/created", "Counter of deals that reached DEAL_CREATED", stats.UnitDimensionless)
	DealsFailed         = stats.Int64("deals/failed", "Counter of deals that failed", stats.UnitDimensionless)
	IngestLatency       = stats.Int64("deals/ingest_latency_ms", "Time taken to upload a piece to the provider", stats.UnitMilliseconds)
	IngestThroughput    = stats.Int64("deals/ingest_throughput_bps", "Upload throughput to the provider", stats.UnitBytes)
	ChainLatency        = stats.Int64("deals/chain_latency_ms", "Time between end of upload and piece added on chain", stats.UnitMilliseconds)
	DealLatency         = stats.Int64("deals/deal_latency_ms", "Time between start of upload and deal confirmation", stats.UnitMilliseconds)
	BatchDuration       = stats.Float64("batch/duration_ms", "Duration of a batch of deals", stats.UnitMilliseconds)
	PreprocessDuration  = stats.Float64("pipeline/duration_ms", "Duration of the preprocessing pipeline", stats.UnitMilliseconds)
	PreprocessFailed    = stats.Int64("pipeline/failed", "Counter of preprocessing pipeline failures", stats.UnitDimensionless)
	UploadHookFailed    = stats.Int64("hooks/upload_complete_failed", "Counter of failed upload complete hooks", stats.UnitDimensionless)
	PersistedHookFailed = stats.Int64("hooks/deal_persisted_failed", "Counter of failed deal persisted hooks", stats.UnitDimensionless)

	// ipni verification
	IpniVerificationActive   = stats.Int64("ipni/verification_active", "Number of running ipni verification tasks", stats.UnitDimensionless)
	IpniVerificationFinished = stats.Int64("ipni/verification_finished", "Counter of finished ipni verification tasks", stats.UnitDimensionless)
	IpniTimeToVerify         = stats.Int64("ipni/time_to_verify_ms", "Time between end of upload and the root cid being found in ipni", stats.UnitMilliseconds)
	IpniLookups              = stats.Int64("ipni/lookups", "Counter of ipni lookups", stats.UnitDimensionless)
)

var (
	InfoView = &view.View{
		Name:        "info",
		Description: "Dealbot information",
		Measure:     DealbotInfo,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Version, Commit},
	}
	DealsCreatedView = &view.View{
		Measure:     DealsCreated,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Provider, Addons},
	}
	DealsFailedView = &view.View{
		Measure:     DealsFailed,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Provider, Outcome},
	}
	IngestLatencyView = &view.View{
		Measure:     IngestLatency,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Provider},
	}
	IngestThroughputView = &view.View{
		Measure:     IngestThroughput,
		Aggregation: throughputDistribution,
		TagKeys:     []tag.Key{Provider},
	}
	ChainLatencyView = &view.View{
		Measure:     ChainLatency,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Provider},
	}
	DealLatencyView = &view.View{
		Measure:     DealLatency,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Provider},
	}
	BatchDurationView = &view.View{
		Measure:     BatchDuration,
		Aggregation: defaultMillisecondsDistribution,
	}
	PreprocessDurationView = &view.View{
		Measure:     PreprocessDuration,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Addons},
	}
	PreprocessFailedView = &view.View{
		Measure:     PreprocessFailed,
		Aggregation: view.Count(),
	}
	UploadHookFailedView = &view.View{
		Measure:     UploadHookFailed,
		Aggregation: view.Count(),
	}
	PersistedHookFailedView = &view.View{
		Measure:     PersistedHookFailed,
		Aggregation: view.Count(),
	}
	IpniVerificationActiveView = &view.View{
		Measure:     IpniVerificationActive,
		Aggregation: view.LastValue(),
	}
	IpniVerificationFinishedView = &view.View{
		Measure:     IpniVerificationFinished,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Provider, Outcome},
	}
	IpniTimeToVerifyView = &view.View{
		Measure:     IpniTimeToVerify,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{Provider},
	}
	IpniLookupsView = &view.View{
		Measure:     IpniLookups,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{Outcome},
	}
)

// DefaultViews is an array of OpenCensus views for metric gathering purposes
var DefaultViews = []*view.View{
	InfoView,
	DealsCreatedView,
	DealsFailedView,
	IngestLatencyView,
	IngestThroughputView,
	ChainLatencyView,
	DealLatencyView,
	BatchDurationView,
	PreprocessDurationView,
	PreprocessFailedView,
	UploadHookFailedView,
	PersistedHookFailedView,
	IpniVerificationActiveView,
	IpniVerificationFinishedView,
	IpniTimeToVerifyView,
	IpniLookupsView,
}

// RecordWithTags records m under the given tags. Tagging errors are ignored,
// the measurement is recorded without the tags.
func RecordWithTags(ctx context.Context, tags []tag.Mutator, ms ...stats.Measurement) {
	if err := stats.RecordWithTags(ctx, tags, ms...); err != nil {
		stats.Record(ctx, ms...)
	}
}

// SinceInMilliseconds returns the duration of time since the provide time as a float64.
func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}

// Timer is a function stopwatch, calling it starts the timer,
// calling the returned function will record the duration.
func Timer(ctx context.Context, m *stats.Float64Measure) func() {
	start := time.Now()
	return func() {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
	}
}
