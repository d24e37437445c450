package storagemarket

import (
	"context"
	"fmt"
	"time"

	"github.com/filecoin-project/dealbot/addons"
	"github.com/filecoin-project/dealbot/metrics"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/tracing"
	"go.opencensus.io/stats"
	"golang.org/x/sync/errgroup"
)

// DealFailure records a provider that a deal could not be made with
type DealFailure struct {
	Provider string
	Error    string
}

// BatchReport is the outcome of making deals with a set of providers
type BatchReport struct {
	// Deals that reached DEAL_CREATED
	Deals    []*types.Deal
	Failures []DealFailure
	// Number of provider groups that were processed
	Groups int
}

// CreateDealsForAllProviders preprocesses the payload once and makes a deal
// with every provider in the directory. Only successful deals are returned;
// per-provider failures are logged. An error is returned only if the
// preprocessing or the provider listing fails.
func (d *DealMaker) CreateDealsForAllProviders(ctx context.Context, cfg types.DealConfig) ([]*types.Deal, error) {
	report, err := d.RunBatch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return report.Deals, nil
}

// RunBatch preprocesses the payload once and makes a deal with every provider
// in the directory
func (d *DealMaker) RunBatch(ctx context.Context, cfg types.DealConfig) (*BatchReport, error) {
	ctx, span := tracing.Tracer.Start(ctx, "dealmaker.run_batch")
	defer span.End()

	count, err := d.providers.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting providers: %w", err)
	}
	providers, err := d.providers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	if count != len(providers) {
		log.Warnw("provider count mismatch", "count", count, "listed", len(providers))
	}

	stop := metrics.Timer(ctx, metrics.PreprocessDuration)
	pre, err := d.Preprocess(ctx, cfg)
	stop()
	if err != nil {
		stats.Record(ctx, metrics.PreprocessFailed.M(1))
		return nil, fmt.Errorf("preprocessing %s: %w", cfg.Payload.Name, err)
	}

	return d.CreateDeals(ctx, providers, pre), nil
}

// CreateDeals makes a deal with each provider. Providers are processed in
// groups of GroupSize: deals within a group are made concurrently, and the
// next group starts once every deal in the group has finished. A failed
// deal never affects the other deals.
func (d *DealMaker) CreateDeals(ctx context.Context, providers []types.ProviderInfo, pre *addons.Result) *BatchReport {
	start := time.Now()
	defer func() {
		stats.Record(ctx, metrics.BatchDuration.M(metrics.SinceInMilliseconds(start)))
	}()

	report := &BatchReport{}
	size := d.cfg.GroupSize
	for i := 0; i < len(providers); i += size {
		end := i + size
		if end > len(providers) {
			end = len(providers)
		}
		group := providers[i:end]
		report.Groups++

		log.Infow("creating deals for provider group", "group", report.Groups, "providers", len(group))
		deals, failures := d.createGroup(ctx, group, pre)
		report.Deals = append(report.Deals, deals...)
		report.Failures = append(report.Failures, failures...)
	}

	for _, f := range report.Failures {
		log.Warnw("failed to create deal", "provider", f.Provider, "err", f.Error)
	}
	log.Infow("batch complete", "providers", len(providers), "created", len(report.Deals), "failed", len(report.Failures),
		"groups", report.Groups, "elapsed", time.Since(start).String())
	return report
}

func (d *DealMaker) createGroup(ctx context.Context, group []types.ProviderInfo, pre *addons.Result) ([]*types.Deal, []DealFailure) {
	deals := make([]*types.Deal, len(group))
	errs := make([]error, len(group))

	// Deal failures are collected rather than returned, so that the group
	// is never cancelled by a sibling's failure
	var eg errgroup.Group
	for i, prov := range group {
		i, prov := i, prov
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("creating deal panicked: %v", r)
				}
			}()
			deals[i], errs[i] = d.CreateDeal(ctx, prov, pre)
			return nil
		})
	}
	_ = eg.Wait()

	var created []*types.Deal
	var failures []DealFailure
	for i, prov := range group {
		if errs[i] != nil {
			failures = append(failures, DealFailure{Provider: prov.Address, Error: errs[i].Error()})
			continue
		}
		created = append(created, deals[i])
	}
	return created, failures
}
