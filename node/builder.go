package node

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/filecoin-project/dealbot/addons"
	"github.com/filecoin-project/dealbot/db"
	"github.com/filecoin-project/dealbot/ipnimonitor"
	"github.com/filecoin-project/dealbot/lib/ipnifind"
	"github.com/filecoin-project/dealbot/node/config"
	"github.com/filecoin-project/dealbot/node/modules"
	"github.com/filecoin-project/dealbot/node/repo"
	"github.com/filecoin-project/dealbot/pdp"
	"github.com/filecoin-project/dealbot/storagemarket"
	"go.uber.org/fx"
)

type StopFunc func(context.Context) error

// New builds and starts the dealbot node
func New(ctx context.Context, opts ...Option) (StopFunc, error) {
	settings := Settings{
		modules: map[reflect.Type]fx.Option{},
		invokes: make([]fx.Option, _nInvokes),
	}

	if err := Options(opts...)(&settings); err != nil {
		return nil, fmt.Errorf("applying node options failed: %w", err)
	}

	// gather constructors for fx.Options
	ctors := make([]fx.Option, 0, len(settings.modules))
	for _, opt := range settings.modules {
		ctors = append(ctors, opt)
	}

	// fill holes in invokes for use in fx.Options
	for i, opt := range settings.invokes {
		if opt == nil {
			settings.invokes[i] = fx.Options()
		}
	}

	app := fx.New(
		fx.Options(ctors...),
		fx.Options(settings.invokes...),
		fx.Options(settings.outputs...),

		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		// comment fx.NopLogger few lines above for easier debugging
		return nil, fmt.Errorf("starting node: %w", err)
	}

	return app.Stop, nil
}

// Repo supplies the repo and loads its config
func Repo(r *repo.Repo) Option {
	return func(s *Settings) error {
		cfg, err := r.Config()
		if err != nil {
			return err
		}
		return Options(
			Override(new(*repo.Repo), r),
			ConfigDealbot(cfg),
		)(s)
	}
}

// ConfigDealbot wires every dealbot component from the config
func ConfigDealbot(cfg *config.Dealbot) Option {
	return Options(
		Override(new(*config.Dealbot), cfg),

		// persistence
		Override(new(*sql.DB), modules.NewSqlDB),
		Override(new(*db.Store), db.NewStore),
		Override(SeedProvidersKey, modules.SeedProviders),

		// storage backend and verification
		Override(new(*pdp.Client), modules.NewPDPClient),
		Override(new(*ipnifind.Client), modules.NewIpniFinder),
		Override(new(*ipnimonitor.Monitor), modules.NewMonitor),

		// deal making
		Override(new(*addons.Registry), modules.NewAddonRegistry),
		Override(new(*addons.Pipeline), addons.NewPipeline),
		Override(new(*storagemarket.DealMaker), modules.NewDealMaker),

		Override(RecordInfoKey, modules.RecordInfo),
		If(cfg.Tracing.Enabled,
			Override(TracingKey, modules.NewTracing),
		),
		If(cfg.Metrics.ListenAddress != "",
			Override(ServeHTTPKey, ServeHTTP),
		),
	)
}
