package db

import (
	"context"
	"testing"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/stretchr/testify/require"
)

func TestProvidersDB(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	sqldb := CreateTestTmpDB(t)
	db := NewProvidersDB(sqldb)

	provs := GenerateProviders(3)
	// Store in reverse order to check that List orders by address
	for i := len(provs) - 1; i >= 0; i-- {
		req.NoError(db.Upsert(ctx, &provs[i]))
	}

	count, err := db.Count(ctx)
	req.NoError(err)
	req.Equal(3, count)

	list, err := db.List(ctx)
	req.NoError(err)
	req.Len(list, 3)
	for i := range list {
		req.Equal(provs[i].Address, list[i].Address)
		req.Equal(provs[i].ServiceURL, list[i].ServiceURL)
		req.True(list[i].IsActive)
	}

	// Deactivated providers are not listed
	req.NoError(db.SetActive(ctx, provs[1].Address, false))
	count, err = db.Count(ctx)
	req.NoError(err)
	req.Equal(2, count)
	list, err = db.List(ctx)
	req.NoError(err)
	req.Len(list, 2)
	all, err := db.ListAll(ctx)
	req.NoError(err)
	req.Len(all, 3)

	req.ErrorIs(db.SetActive(ctx, "0xnope", false), ErrNotFound)
}

func TestProvidersDBByAddress(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	sqldb := CreateTestTmpDB(t)
	db := NewProvidersDB(sqldb)

	prov := types.ProviderInfo{
		Address:    "0xABCDEF",
		Name:       "sp",
		ServiceURL: "https://sp.example.com",
		IsActive:   true,
	}
	req.NoError(db.Upsert(ctx, &prov))
	req.Equal("0xabcdef", prov.Address)

	// Lookups are case-insensitive
	found, err := db.ByAddress(ctx, "0xAbCdEf")
	req.NoError(err)
	req.NotNil(found)
	req.Equal("sp", found.Name)

	// Missing providers are not an error
	found, err = db.ByAddress(ctx, "0x123")
	req.NoError(err)
	req.Nil(found)

	// Upsert updates the existing record
	prov.Name = "renamed"
	req.NoError(db.Upsert(ctx, &prov))
	found, err = db.ByAddress(ctx, prov.Address)
	req.NoError(err)
	req.Equal("renamed", found.Name)

	count, err := db.Count(ctx)
	req.NoError(err)
	req.Equal(1, count)
}
