package db

import (
	"context"
	"testing"
	"time"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/filecoin-project/dealbot/testutil"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func TestDealsDB(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	sqldb := CreateTestTmpDB(t)
	db := NewDealsDB(sqldb)

	deals, err := GenerateNDeals(3)
	req.NoError(err)

	for _, deal := range deals {
		err = db.Insert(ctx, deal)
		req.NoError(err)
	}

	deal := deals[0]
	storedDeal, err := db.ByID(ctx, deal.ID)
	req.NoError(err)
	req.Equal(deal.ProviderAddress, storedDeal.ProviderAddress)
	req.Equal(deal.FileName, storedDeal.FileName)
	req.Equal(deal.FileSize, storedDeal.FileSize)
	req.Equal(dealstatus.Pending, storedDeal.Status)
	req.Equal(deal.ServiceTypes, storedDeal.ServiceTypes)
	req.Nil(storedDeal.PieceCID)
	req.Nil(storedDeal.DataSetID)
	req.Nil(storedDeal.UploadStartedAt)
	req.Equal(dealstatus.IpniPending, storedDeal.Ipni.Status)

	dbDeals, err := db.List(ctx, 0, 0)
	req.NoError(err)
	req.Len(dbDeals, len(deals))

	dbDeals, err = db.List(ctx, 1, 1)
	req.NoError(err)
	req.Len(dbDeals, 1)

	// An offset without a limit skips rows and returns the rest
	dbDeals, err = db.List(ctx, 1, 0)
	req.NoError(err)
	req.Len(dbDeals, len(deals)-1)

	dbDeals, err = db.List(ctx, len(deals), 0)
	req.NoError(err)
	req.Empty(dbDeals)

	count, err := db.Count(ctx, nil)
	req.NoError(err)
	req.Equal(3, count)

	_, err = db.ByID(ctx, types.NewDeal(types.ProviderInfo{}, "", "", 0, nil, nil, time.Now()).ID)
	req.ErrorIs(err, ErrNotFound)
}

func TestDealsDBUpsert(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	sqldb := CreateTestTmpDB(t)
	db := NewDealsDB(sqldb)

	deals, err := GenerateNDeals(1)
	req.NoError(err)
	deal := deals[0]

	// Upsert creates the row if it doesn't exist
	req.NoError(db.Upsert(ctx, deal))

	pieceCid := testutil.GenerateCid()
	dataSetID := uint64(42)
	now := time.Now().Truncate(time.Millisecond)
	deal.PieceCID = &pieceCid
	deal.DataSetID = &dataSetID
	deal.UploadEndedAt = &now
	deal.IngestLatencyMs = 1200
	deal.TransactionHash = "0xabc"
	deal.AddonMetadata = types.AddonMetadata{"cdn": map[string]interface{}{"enabled": true}}
	req.NoError(deal.Transition(dealstatus.Uploaded))
	req.NoError(db.Upsert(ctx, deal))

	storedDeal, err := db.ByID(ctx, deal.ID)
	req.NoError(err)
	req.Equal(dealstatus.Uploaded, storedDeal.Status)
	req.NotNil(storedDeal.PieceCID)
	req.Equal(pieceCid, *storedDeal.PieceCID)
	req.NotNil(storedDeal.DataSetID)
	req.EqualValues(42, *storedDeal.DataSetID)
	req.NotNil(storedDeal.UploadEndedAt)
	req.True(now.Equal(*storedDeal.UploadEndedAt))
	req.EqualValues(1200, storedDeal.IngestLatencyMs)
	req.Equal("0xabc", storedDeal.TransactionHash)
	req.Contains(storedDeal.AddonMetadata, "cdn")

	count, err := db.Count(ctx, nil)
	req.NoError(err)
	req.Equal(1, count)

	uploaded := dealstatus.Uploaded
	count, err = db.Count(ctx, &uploaded)
	req.NoError(err)
	req.Equal(1, count)

	byStatus, err := db.ByStatus(ctx, dealstatus.Uploaded)
	req.NoError(err)
	req.Len(byStatus, 1)
}

func TestDealsDBVerificationColumns(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	sqldb := CreateTestTmpDB(t)
	db := NewDealsDB(sqldb)

	deals, err := GenerateNDeals(1)
	req.NoError(err)
	deal := deals[0]
	req.NoError(db.Insert(ctx, deal))

	root, err := cid.Parse("bafkqaaa")
	req.NoError(err)
	now := time.Now().Truncate(time.Millisecond)
	ttv := int64(3500)
	v := &types.Verification{
		Status:              dealstatus.IpniVerified,
		RootCID:             &root,
		VerifiedAt:          &now,
		TimeToVerifyMs:      &ttv,
		VerifiedCidsCount:   4,
		UnverifiedCidsCount: 1,
	}
	req.NoError(db.UpdateVerification(ctx, deal.ID, v))

	// A lifecycle save with a stale verification state must not clobber the
	// verification columns
	req.NoError(deal.Transition(dealstatus.DealCreated))
	req.NoError(db.Upsert(ctx, deal))

	storedDeal, err := db.ByID(ctx, deal.ID)
	req.NoError(err)
	req.Equal(dealstatus.DealCreated, storedDeal.Status)
	req.Equal(dealstatus.IpniVerified, storedDeal.Ipni.Status)
	req.NotNil(storedDeal.Ipni.RootCID)
	req.Equal(root, *storedDeal.Ipni.RootCID)
	req.NotNil(storedDeal.Ipni.TimeToVerifyMs)
	req.EqualValues(3500, *storedDeal.Ipni.TimeToVerifyMs)
	req.Equal(4, storedDeal.Ipni.VerifiedCidsCount)
	req.Equal(1, storedDeal.Ipni.UnverifiedCidsCount)

	err = db.UpdateVerification(ctx, types.NewDeal(types.ProviderInfo{}, "", "", 0, nil, nil, now).ID, v)
	req.ErrorIs(err, ErrNotFound)
}
