package db

import (
	"context"
	"database/sql"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/google/uuid"
)

// Store is the sqlite backed deal store and provider directory
type Store struct {
	Deals     *DealsDB
	Providers *ProvidersDB

	db *sql.DB
}

var _ types.DealStore = (*Store)(nil)
var _ types.ProviderDirectory = (*Store)(nil)

func NewStore(sqldb *sql.DB) *Store {
	return &Store{
		Deals:     NewDealsDB(sqldb),
		Providers: NewProvidersDB(sqldb),
		db:        sqldb,
	}
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context, deal *types.Deal) error {
	if err := s.Deals.Insert(ctx, deal); err != nil {
		return &types.PersistenceError{Op: "create deal", Err: err}
	}
	return nil
}

func (s *Store) Save(ctx context.Context, deal *types.Deal) error {
	if err := s.Deals.Upsert(ctx, deal); err != nil {
		return &types.PersistenceError{Op: "save deal", Err: err}
	}
	return nil
}

func (s *Store) SaveVerification(ctx context.Context, dealID uuid.UUID, v *types.Verification) error {
	if err := s.Deals.UpdateVerification(ctx, dealID, v); err != nil {
		return &types.PersistenceError{Op: "save verification", Err: err}
	}
	return nil
}

func (s *Store) FindProvider(ctx context.Context, address string) (*types.ProviderInfo, error) {
	return s.Providers.ByAddress(ctx, address)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.Providers.Count(ctx)
}

func (s *Store) List(ctx context.Context) ([]types.ProviderInfo, error) {
	return s.Providers.List(ctx)
}
