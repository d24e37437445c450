package storagemarket

import (
	"context"
	"fmt"
	"sync"

	"github.com/filecoin-project/dealbot/addons"
	"github.com/filecoin-project/dealbot/metrics"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/filecoin-project/dealbot/tracing"
	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-cid"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// CreateDeal makes a deal with the provider for the preprocessed payload.
// The deal is saved exactly once, after it reaches DEAL_CREATED or FAILED.
// On failure the returned deal records the failure and the error is
// returned alongside it.
func (d *DealMaker) CreateDeal(ctx context.Context, provider types.ProviderInfo, pre *addons.Result) (deal *types.Deal, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "dealmaker.create_deal", trace.WithAttributes(
		attribute.String("provider", provider.Address),
	))
	defer span.End()

	deal = types.NewDeal(provider, d.cfg.WalletAddress, pre.Name, pre.Size, pre.Names(), pre.Metadata, d.clock.Now())
	span.SetAttributes(attribute.String("deal", deal.ID.String()))
	log.Infow("creating deal", "id", deal.ID, "provider", provider.Address, "addons", deal.ServiceTypes, "size", deal.FileSize)

	if cerr := d.store.Create(ctx, deal); cerr != nil {
		log.Warnw("failed to create deal record", "id", deal.ID, "provider", provider.Address, "err", cerr)
	}

	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			deal.Fail(err)
			log.Errorw("deal failed", "id", deal.ID, "provider", deal.ProviderAddress, "code", deal.ErrorCode, "err", err)
			recordWithProvider(ctx, deal.ProviderAddress, tag.Upsert(metrics.Outcome, deal.ErrorCode), metrics.DealsFailed.M(1))
		}

		d.save(ctx, deal)

		if err == nil {
			d.runDealPersistedHooks(ctx, deal, pre.Applied)
		}
	}()

	d.attachProvider(ctx, deal)

	sc, err := d.backend.CreateStorageContext(ctx, *deal.Provider, pre.ProviderConfig.DataSet)
	if err != nil {
		return deal, &types.BackendError{Op: "create storage context", Provider: deal.ProviderAddress, Err: err}
	}

	dataSetID := sc.DataSetID()
	deal.DataSetID = &dataSetID
	uploadStart := d.clock.Now()
	deal.UploadStartedAt = &uploadStart
	log.Debugw("created storage context", "id", deal.ID, "provider", deal.ProviderAddress, "dataset", dataSetID)

	res, err := sc.Upload(ctx, pre.Data, d.uploadCallbacks(ctx, deal, pre.Applied), pre.ProviderConfig.Piece)
	if err != nil {
		return deal, &types.BackendError{Op: "upload piece", Provider: deal.ProviderAddress, Err: err}
	}
	if res == nil {
		return deal, &types.BackendError{Op: "upload piece", Provider: deal.ProviderAddress, Err: fmt.Errorf("no upload result")}
	}

	if err := d.applyUploadResult(deal, res); err != nil {
		return deal, err
	}

	log.Infow("deal created", "id", deal.ID, "provider", deal.ProviderAddress, "piece", deal.PieceCID,
		"ingest-ms", deal.IngestLatencyMs, "chain-ms", deal.ChainLatencyMs, "deal-ms", deal.DealLatencyMs)
	return deal, nil
}

// attachProvider replaces the deal's provider with the directory record, if
// there is one
func (d *DealMaker) attachProvider(ctx context.Context, deal *types.Deal) {
	prov, err := d.store.FindProvider(ctx, deal.ProviderAddress)
	if err != nil {
		log.Warnw("failed to look up provider", "id", deal.ID, "provider", deal.ProviderAddress, "err", err)
		return
	}
	if prov == nil {
		log.Debugw("provider not in directory", "id", deal.ID, "provider", deal.ProviderAddress)
		return
	}
	deal.Provider = prov
}

// uploadCallbacks returns the callbacks handed to the storage backend. Each
// acts on the first invocation only.
func (d *DealMaker) uploadCallbacks(ctx context.Context, deal *types.Deal, applied []addons.Addon) types.UploadCallbacks {
	var completeOnce, addedOnce sync.Once
	return types.UploadCallbacks{
		OnUploadComplete: func(pieceCid cid.Cid) {
			completeOnce.Do(func() {
				d.onUploadComplete(ctx, deal, pieceCid, applied)
			})
		},
		OnPieceAdded: func(txHash string) {
			addedOnce.Do(func() {
				d.onPieceAdded(ctx, deal, txHash)
			})
		},
	}
}

func (d *DealMaker) onUploadComplete(ctx context.Context, deal *types.Deal, pieceCid cid.Cid, applied []addons.Addon) {
	if err := deal.Transition(dealstatus.Uploaded); err != nil {
		log.Warnw("ignoring upload complete", "id", deal.ID, "err", err)
		return
	}

	now := d.clock.Now()
	deal.UploadEndedAt = &now
	deal.PieceCID = &pieceCid
	if deal.UploadStartedAt != nil {
		deal.IngestLatencyMs = latencyMs(*deal.UploadStartedAt, now)
		deal.IngestThroughputBps = throughputBps(deal.FileSize, deal.IngestLatencyMs)
	}
	log.Infow("upload complete", "id", deal.ID, "provider", deal.ProviderAddress, "piece", pieceCid,
		"ingest-ms", deal.IngestLatencyMs, "bps", deal.IngestThroughputBps)
	recordWithProvider(ctx, deal.ProviderAddress, nil,
		metrics.IngestLatency.M(deal.IngestLatencyMs), metrics.IngestThroughput.M(deal.IngestThroughputBps))

	d.runUploadCompleteHooks(ctx, deal, applied)
}

func (d *DealMaker) onPieceAdded(ctx context.Context, deal *types.Deal, txHash string) {
	if err := deal.Transition(dealstatus.PieceAdded); err != nil {
		log.Warnw("ignoring piece added", "id", deal.ID, "err", err)
		return
	}

	now := d.clock.Now()
	deal.PieceAddedAt = &now
	deal.TransactionHash = txHash
	if deal.UploadEndedAt != nil {
		deal.ChainLatencyMs = latencyMs(*deal.UploadEndedAt, now)
	}
	log.Infow("piece added", "id", deal.ID, "provider", deal.ProviderAddress, "tx", txHash, "chain-ms", deal.ChainLatencyMs)
	recordWithProvider(ctx, deal.ProviderAddress, nil, metrics.ChainLatency.M(deal.ChainLatencyMs))
}

func (d *DealMaker) applyUploadResult(deal *types.Deal, res *types.UploadResult) error {
	pieceCid := res.PieceCid
	pieceID := res.PieceID
	deal.PieceCID = &pieceCid
	deal.PieceSize = res.Size
	deal.PieceID = &pieceID

	if err := deal.Transition(dealstatus.DealCreated); err != nil {
		return err
	}

	now := d.clock.Now()
	deal.DealConfirmedAt = &now
	if deal.UploadStartedAt != nil {
		deal.DealLatencyMs = latencyMs(*deal.UploadStartedAt, now)
	}

	ctx := context.Background()
	recordWithProvider(ctx, deal.ProviderAddress, nil, metrics.DealLatency.M(deal.DealLatencyMs))
	recordWithProvider(ctx, deal.ProviderAddress, tag.Upsert(metrics.Addons, fmt.Sprint(deal.ServiceTypes)), metrics.DealsCreated.M(1))
	return nil
}

// runUploadCompleteHooks runs the upload complete hook of each applied addon
// concurrently. Hook failures are logged and not returned.
func (d *DealMaker) runUploadCompleteHooks(ctx context.Context, deal *types.Deal, applied []addons.Addon) {
	snapshot := deal.Snapshot()
	err := runHooks(applied, func(a addons.Addon) error {
		h, ok := a.(addons.UploadCompleteHook)
		if !ok {
			return nil
		}
		return h.OnUploadComplete(ctx, snapshot)
	})
	if err != nil {
		stats.Record(ctx, metrics.UploadHookFailed.M(1))
		log.Warnw("upload complete hooks failed", "id", deal.ID, "provider", deal.ProviderAddress, "err", err)
	}
}

// runDealPersistedHooks runs the deal persisted hook of each applied addon
// concurrently. Hook failures are logged and not returned.
func (d *DealMaker) runDealPersistedHooks(ctx context.Context, deal *types.Deal, applied []addons.Addon) {
	snapshot := deal.Snapshot()
	err := runHooks(applied, func(a addons.Addon) error {
		h, ok := a.(addons.DealPersistedHook)
		if !ok {
			return nil
		}
		return h.OnDealPersisted(ctx, snapshot)
	})
	if err != nil {
		stats.Record(ctx, metrics.PersistedHookFailed.M(1))
		log.Warnw("deal persisted hooks failed", "id", deal.ID, "provider", deal.ProviderAddress, "err", err)
	}
}

// runHooks calls hook for each addon concurrently and waits for all of them
func runHooks(applied []addons.Addon, hook func(a addons.Addon) error) error {
	var lk sync.Mutex
	var merr *multierror.Error
	var eg errgroup.Group
	for _, a := range applied {
		a := a
		eg.Go(func() error {
			var hookErr error
			defer func() {
				if r := recover(); r != nil {
					hookErr = fmt.Errorf("hook panicked: %v", r)
				}
				if hookErr != nil {
					lk.Lock()
					merr = multierror.Append(merr, fmt.Errorf("addon %s: %w", a.Name(), hookErr))
					lk.Unlock()
				}
			}()
			hookErr = hook(a)
			return nil
		})
	}
	_ = eg.Wait()
	return merr.ErrorOrNil()
}
