package modules

import (
	"context"
	"database/sql"

	"github.com/filecoin-project/dealbot/db"
	"github.com/filecoin-project/dealbot/node/config"
	"github.com/filecoin-project/dealbot/node/repo"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"
)

var log = logging.Logger("modules")

// NewSqlDB opens and migrates the deals database
func NewSqlDB(lc fx.Lifecycle, r *repo.Repo, cfg *config.Dealbot) (*sql.DB, error) {
	dbPath := r.DBPath(cfg)
	sqldb, err := db.Open(context.Background(), dbPath)
	if err != nil {
		return nil, err
	}
	log.Infow("opened deals database", "path", dbPath)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sqldb.Close()
		},
	})
	return sqldb, nil
}

// SeedProviders adds the providers listed in the config to the provider
// directory. Providers that are already known are updated and reactivated.
func SeedProviders(lc fx.Lifecycle, cfg *config.Dealbot, store *db.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, p := range cfg.Providers {
				prov := &types.ProviderInfo{
					Address:     p.Address,
					Name:        p.Name,
					Description: p.Description,
					ServiceURL:  p.ServiceURL,
					IsActive:    true,
				}
				if err := store.Providers.Upsert(ctx, prov); err != nil {
					return err
				}
			}
			if len(cfg.Providers) > 0 {
				log.Infow("seeded provider directory", "providers", len(cfg.Providers))
			}
			return nil
		},
	})
}
