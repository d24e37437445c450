package storagemarket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/filecoin-project/dealbot/db"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/filecoin-project/dealbot/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// fakeBackend uploads instantly, after an optional delay, and fails for the
// providers in failFor
type fakeBackend struct {
	delay   time.Duration
	failFor map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	lk     sync.Mutex
	starts []string
}

func (b *fakeBackend) CreateStorageContext(ctx context.Context, provider types.ProviderInfo, _ map[string]string) (types.StorageContext, error) {
	b.lk.Lock()
	b.starts = append(b.starts, provider.Address)
	b.lk.Unlock()

	n := b.inFlight.Inc()
	defer b.inFlight.Dec()
	for {
		max := b.maxInFlight.Load()
		if n <= max || b.maxInFlight.CAS(max, n) {
			break
		}
	}
	time.Sleep(b.delay)

	if b.failFor[provider.Address] {
		return nil, fmt.Errorf("provider %s is offline", provider.Address)
	}
	return &fakeStorageContext{}, nil
}

type fakeStorageContext struct{}

func (sc *fakeStorageContext) DataSetID() uint64 {
	return 1
}

func (sc *fakeStorageContext) Upload(_ context.Context, data []byte, cb types.UploadCallbacks, _ map[string]string) (*types.UploadResult, error) {
	pieceCid := testutil.GenerateCid()
	cb.OnUploadComplete(pieceCid)
	cb.OnPieceAdded("0xtx")
	return &types.UploadResult{PieceCid: pieceCid, Size: uint64(len(data)), PieceID: 1}, nil
}

type staticDirectory struct {
	provs []types.ProviderInfo
	err   error
}

func (d *staticDirectory) Count(context.Context) (int, error) {
	return len(d.provs), d.err
}

func (d *staticDirectory) List(context.Context) ([]types.ProviderInfo, error) {
	return d.provs, d.err
}

func TestCreateDealsForAllProvidersPartialFailure(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	sqldb := db.CreateTestTmpDB(t)
	store := db.NewStore(sqldb)

	provs := db.GenerateProviders(2)
	for i := range provs {
		req.NoError(store.Providers.Upsert(ctx, &provs[i]))
	}
	provA, provB := provs[0], provs[1]

	backend := &fakeBackend{failFor: map[string]bool{provB.Address: true}}
	dm := newDealMaker(Config{}, newTestPipeline(t), backend, store, store, clock.New())

	deals, err := dm.CreateDealsForAllProviders(ctx, types.DealConfig{Payload: testPayload(256)})
	req.NoError(err)
	req.Len(deals, 1)
	req.Equal(provA.Address, deals[0].ProviderAddress)
	req.Equal(dealstatus.DealCreated, deals[0].Status)

	// Both deals are persisted
	stored, err := store.Deals.List(ctx, 0, 0)
	req.NoError(err)
	req.Len(stored, 2)

	failedDeals, err := store.Deals.ByProvider(ctx, provB.Address)
	req.NoError(err)
	req.Len(failedDeals, 1)
	req.Equal(dealstatus.Failed, failedDeals[0].Status)
	req.Contains(failedDeals[0].ErrorMessage, "offline")
	req.Equal("BACKEND", failedDeals[0].ErrorCode)

	okDeals, err := store.Deals.ByProvider(ctx, provA.Address)
	req.NoError(err)
	req.Len(okDeals, 1)
	req.Equal(dealstatus.DealCreated, okDeals[0].Status)
	req.NotNil(okDeals[0].PieceCID)
	req.NotNil(okDeals[0].DataSetID)
}

func TestCreateDealsGroups(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	provs := db.GenerateProviders(25)
	failFor := map[string]bool{provs[3].Address: true, provs[17].Address: true}
	backend := &fakeBackend{delay: 20 * time.Millisecond, failFor: failFor}

	dm := newDealMaker(Config{GroupSize: 10}, newTestPipeline(t), backend, &memStore{}, nil, clock.New())
	pre, err := dm.Preprocess(ctx, types.DealConfig{Payload: testPayload(64)})
	req.NoError(err)

	report := dm.CreateDeals(ctx, provs, pre)
	req.Equal(3, report.Groups)
	req.Len(report.Deals, 23)
	req.Len(report.Failures, 2)
	req.LessOrEqual(backend.maxInFlight.Load(), int32(10))
	req.Greater(backend.maxInFlight.Load(), int32(1))

	failed := map[string]bool{}
	for _, f := range report.Failures {
		failed[f.Provider] = true
		req.Contains(f.Error, "offline")
	}
	req.Equal(failFor, failed)

	// Groups run one after the other: every provider in a group starts
	// before any provider of the next group
	backend.lk.Lock()
	defer backend.lk.Unlock()
	groupOf := map[string]int{}
	for i, p := range provs {
		groupOf[p.Address] = i / 10
	}
	last := 0
	for _, addr := range backend.starts {
		req.GreaterOrEqual(groupOf[addr], last)
		last = groupOf[addr]
	}
}

func TestRunBatchDirectoryError(t *testing.T) {
	dm := newDealMaker(Config{}, newTestPipeline(t), &fakeBackend{}, &memStore{}, &staticDirectory{err: errors.New("db closed")}, clock.New())
	_, err := dm.CreateDealsForAllProviders(context.Background(), types.DealConfig{Payload: testPayload(64)})
	require.Error(t, err)
}

// memStore is a DealStore that keeps the last saved copy of each deal
type memStore struct {
	lk    sync.Mutex
	deals map[string]types.Deal
}

func (s *memStore) Create(ctx context.Context, deal *types.Deal) error {
	return s.Save(ctx, deal)
}

func (s *memStore) Save(_ context.Context, deal *types.Deal) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.deals == nil {
		s.deals = make(map[string]types.Deal)
	}
	s.deals[deal.ID.String()] = deal.Snapshot()
	return nil
}

func (s *memStore) SaveVerification(context.Context, uuid.UUID, *types.Verification) error {
	return nil
}

func (s *memStore) FindProvider(context.Context, string) (*types.ProviderInfo, error) {
	return nil, nil
}
