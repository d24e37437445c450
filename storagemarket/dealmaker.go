package storagemarket

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/filecoin-project/dealbot/addons"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dealmaker")

const DefaultGroupSize = 10

type Config struct {
	// The wallet that pays for the deals
	WalletAddress string
	// The number of providers that deals are made with concurrently
	GroupSize int
}

// DealMaker makes deals with storage providers. It runs the preprocessing
// pipeline once per batch and then drives one deal per provider through
// upload and confirmation.
type DealMaker struct {
	cfg       Config
	pipeline  *addons.Pipeline
	backend   types.StorageBackend
	store     types.DealStore
	providers types.ProviderDirectory
	clock     clock.Clock
}

func NewDealMaker(cfg Config, pipeline *addons.Pipeline, backend types.StorageBackend, store types.DealStore, providers types.ProviderDirectory) *DealMaker {
	return newDealMaker(cfg, pipeline, backend, store, providers, clock.New())
}

func newDealMaker(cfg Config, pipeline *addons.Pipeline, backend types.StorageBackend, store types.DealStore, providers types.ProviderDirectory, clock clock.Clock) *DealMaker {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = DefaultGroupSize
	}
	return &DealMaker{
		cfg:       cfg,
		pipeline:  pipeline,
		backend:   backend,
		store:     store,
		providers: providers,
		clock:     clock,
	}
}

// Preprocess runs the preprocessing pipeline for the deal config
func (d *DealMaker) Preprocess(ctx context.Context, cfg types.DealConfig) (*addons.Result, error) {
	return d.pipeline.Run(ctx, cfg)
}

// save persists the deal. Failures are logged and otherwise ignored so that
// they never mask the outcome of the deal.
func (d *DealMaker) save(ctx context.Context, deal *types.Deal) {
	if err := d.store.Save(ctx, deal); err != nil {
		log.Warnw("failed to save deal", "id", deal.ID, "provider", deal.ProviderAddress, "status", deal.Status, "err", err)
	}
}
