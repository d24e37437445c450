package modules

import (
	"context"
	"time"

	"github.com/filecoin-project/dealbot/addons"
	"github.com/filecoin-project/dealbot/build"
	"github.com/filecoin-project/dealbot/db"
	"github.com/filecoin-project/dealbot/ipnimonitor"
	"github.com/filecoin-project/dealbot/lib/ipnifind"
	"github.com/filecoin-project/dealbot/metrics"
	"github.com/filecoin-project/dealbot/node/config"
	"github.com/filecoin-project/dealbot/pdp"
	"github.com/filecoin-project/dealbot/storagemarket"
	"github.com/filecoin-project/dealbot/tracing"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/fx"
)

func NewPDPClient(cfg *config.Dealbot) *pdp.Client {
	return pdp.NewClient(pdp.Config{
		RecordKeeper: cfg.PDP.RecordKeeper,
		PollMin:      time.Duration(cfg.PDP.PollMin),
		PollMax:      time.Duration(cfg.PDP.PollMax),
		PollTimeout:  time.Duration(cfg.PDP.PollTimeout),
		HTTPTimeout:  time.Duration(cfg.PDP.HTTPTimeout),
	}, pdp.NoSigner{})
}

func NewIpniFinder(cfg *config.Dealbot) (*ipnifind.Client, error) {
	return ipnifind.New(cfg.IpniVerification.IndexerURL, time.Duration(cfg.IpniVerification.LookupTimeout))
}

// NewMonitor creates the verification monitor. Running verification tasks
// are cancelled when the node stops.
func NewMonitor(lc fx.Lifecycle, cfg *config.Dealbot, client *pdp.Client, finder *ipnifind.Client, store *db.Store) *ipnimonitor.Monitor {
	c := cfg.IpniVerification
	m := ipnimonitor.NewMonitor(ipnimonitor.Config{
		PollInterval:  time.Duration(c.PollInterval),
		PollTimeout:   time.Duration(c.PollTimeout),
		SettleDelay:   time.Duration(c.SettleDelay),
		RetryInterval: time.Duration(c.RetryInterval),
		MaxAttempts:   c.MaxAttempts,
		PhaseTimeout:  time.Duration(c.PhaseTimeout),
	}, client, finder, store)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m
}

// NewAddonRegistry registers every addon with direct upload as the default.
// Which of them run for a batch is decided by the deal config.
func NewAddonRegistry(cfg *config.Dealbot, monitor *ipnimonitor.Monitor) (*addons.Registry, error) {
	ipni := addons.NewIpni(addons.IpniOptions{
		ChunkSize: cfg.Dealmaking.ChunkSize,
		MaxLinks:  cfg.Dealmaking.MaxLinks,
	}, monitor)
	return addons.NewRegistry(addons.NewDirect(), addons.NewCDN(), ipni)
}

func NewDealMaker(cfg *config.Dealbot, pipeline *addons.Pipeline, client *pdp.Client, store *db.Store) *storagemarket.DealMaker {
	return storagemarket.NewDealMaker(storagemarket.Config{
		WalletAddress: cfg.Wallet.Address,
		GroupSize:     cfg.Dealmaking.GroupSize,
	}, pipeline, client, store, store)
}

// RecordInfo records the version of the running dealbot
func RecordInfo() error {
	ctx, err := tag.New(context.Background(),
		tag.Insert(metrics.Version, build.BuildVersion),
		tag.Insert(metrics.Commit, build.CurrentCommit),
	)
	if err != nil {
		return err
	}
	stats.Record(ctx, metrics.DealbotInfo.M(1))
	return nil
}

// NewTracing exports traces while the node runs
func NewTracing(lc fx.Lifecycle, cfg *config.Dealbot) error {
	shutdown, err := tracing.Start(context.Background(), cfg.Tracing.ServiceName, build.UserVersion(), cfg.Tracing.SampleRatio)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: shutdown,
	})
	return nil
}
