package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/filecoin-project/dealbot/testutil"
)

// LoadFixtures fills the database with a set of providers and deals
func LoadFixtures(ctx context.Context, sqldb *sql.DB) ([]*types.Deal, error) {
	provsDB := NewProvidersDB(sqldb)
	provs := GenerateProviders(3)
	for i := range provs {
		if err := provsDB.Upsert(ctx, &provs[i]); err != nil {
			return nil, err
		}
	}

	dealsDB := NewDealsDB(sqldb)
	deals, err := GenerateNDeals(len(provs))
	if err != nil {
		return nil, err
	}
	for i, deal := range deals {
		deal.ProviderAddress = provs[i].Address
		if err := dealsDB.Insert(ctx, deal); err != nil {
			return nil, err
		}
	}

	return deals, nil
}

func GenerateProviders(n int) []types.ProviderInfo {
	provs := make([]types.ProviderInfo, 0, n)
	for i := 0; i < n; i++ {
		provs = append(provs, types.ProviderInfo{
			Address:     testutil.ProviderAddress(i + 1),
			Name:        fmt.Sprintf("provider-%d", i+1),
			Description: "test provider",
			ServiceURL:  fmt.Sprintf("https://sp%d.example.com", i+1),
			IsActive:    true,
		})
	}
	return provs
}

func GenerateNDeals(n int) ([]*types.Deal, error) {
	provs := GenerateProviders(n)
	deals := make([]*types.Deal, 0, n)
	start := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		data := testutil.RandomBytes(1024)
		deal := types.NewDeal(provs[i], testutil.WalletAddress, fmt.Sprintf("file-%d.bin", i), int64(len(data)), []string{"direct"}, types.AddonMetadata{}, start.Add(time.Duration(i)*time.Minute))
		if deal.Status != dealstatus.Pending {
			return nil, fmt.Errorf("unexpected initial status %s", deal.Status)
		}
		deals = append(deals, deal)
	}
	return deals, nil
}
