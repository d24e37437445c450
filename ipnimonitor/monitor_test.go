package ipnimonitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/filecoin-project/dealbot/storagemarket/types/mock_types"
	"github.com/filecoin-project/dealbot/testutil"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

const serviceURL = "https://sp.example.com"

type findFunc func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error)

type mockFinder struct {
	lk    sync.Mutex
	calls map[cid.Cid]int
	find  findFunc
}

func newMockFinder(find findFunc) *mockFinder {
	return &mockFinder{calls: make(map[cid.Cid]int), find: find}
}

func (f *mockFinder) FindProviders(_ context.Context, c cid.Cid) ([]multiaddr.Multiaddr, error) {
	f.lk.Lock()
	f.calls[c]++
	call := f.calls[c]
	f.lk.Unlock()
	return f.find(c, call)
}

func (f *mockFinder) callCount(c cid.Cid) int {
	f.lk.Lock()
	defer f.lk.Unlock()
	return f.calls[c]
}

type mockStore struct {
	lk    sync.Mutex
	saves []types.Verification
}

func (s *mockStore) SaveVerification(_ context.Context, _ uuid.UUID, v *types.Verification) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.saves = append(s.saves, *v)
	return nil
}

func (s *mockStore) last() types.Verification {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.saves[len(s.saves)-1]
}

func testConfig() Config {
	return Config{
		PollInterval:  time.Millisecond,
		PollTimeout:   time.Second,
		SettleDelay:   time.Millisecond,
		RetryInterval: time.Millisecond,
		MaxAttempts:   5,
		PhaseTimeout:  5 * time.Second,
	}
}

func testDeal() types.Deal {
	prov := types.ProviderInfo{Address: "0xsp", ServiceURL: serviceURL, IsActive: true}
	deal := types.NewDeal(prov, testutil.WalletAddress, "file.bin", 2048, []string{"ipni"}, nil, time.Now())
	pieceCid := testutil.GenerateCid()
	deal.PieceCID = &pieceCid
	uploadEnd := time.Now()
	deal.UploadEndedAt = &uploadEnd
	return deal.Snapshot()
}

func expectedAddr(t *testing.T) multiaddr.Multiaddr {
	ma, err := providerMultiaddr(serviceURL)
	require.NoError(t, err)
	return ma
}

func waitTask(t *testing.T, task *Task) {
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		require.Fail(t, "timed out waiting for verification task")
	}
}

func TestMonitorVerifiedOnThirdAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&types.PieceStatus{Indexed: true, Advertised: true, Retrieved: true}, nil).AnyTimes()

	deal := testDeal()
	root := testutil.GenerateCid()
	blocks := testutil.GenerateCids(3)
	expected := expectedAddr(t)

	finder := newMockFinder(func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error) {
		if c == root && call < 3 {
			if call == 1 {
				return nil, errors.New("lookup failed")
			}
			return nil, nil
		}
		return []multiaddr.Multiaddr{expected}, nil
	})
	store := &mockStore{}

	m := NewMonitor(testConfig(), checker, finder, store)
	defer m.Close()

	task := m.Track(deal, root, blocks)
	waitTask(t, task)
	require.NoError(t, task.Err())

	v := task.Verification()
	require.Equal(t, dealstatus.IpniVerified, v.Status)
	require.Equal(t, 3, finder.callCount(root))
	require.GreaterOrEqual(t, v.VerifiedCidsCount, 1)
	require.Equal(t, 4, v.VerifiedCidsCount)
	require.Equal(t, 0, v.UnverifiedCidsCount)
	require.NotNil(t, v.VerifiedAt)
	require.NotNil(t, v.TimeToVerifyMs)
	require.NotNil(t, v.RootCID)
	require.Equal(t, root, *v.RootCID)

	// Each stage is timestamped
	require.NotNil(t, v.IndexedAt)
	require.NotNil(t, v.AdvertisedAt)
	require.NotNil(t, v.RetrievedAt)

	// The final state is persisted
	require.Equal(t, dealstatus.IpniVerified, store.last().Status)

	require.NoError(t, m.Wait(context.Background()))
	require.EqualValues(t, 0, m.Active())
}

func TestMonitorProviderUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused")).AnyTimes()

	finder := newMockFinder(func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error) {
		return nil, nil
	})
	store := &mockStore{}

	cfg := testConfig()
	cfg.PollTimeout = 50 * time.Millisecond
	m := NewMonitor(cfg, checker, finder, store)
	defer m.Close()

	root := testutil.GenerateCid()
	task := m.Track(testDeal(), root, nil)
	waitTask(t, task)

	var verr *types.VerificationError
	require.ErrorAs(t, task.Err(), &verr)
	require.Equal(t, "poll", verr.Stage)
	require.Equal(t, dealstatus.IpniFailed, task.Verification().Status)
	require.Contains(t, task.Verification().Error, "connection refused")
	require.Equal(t, dealstatus.IpniFailed, store.last().Status)

	// IPNI is never queried if the provider never answered
	require.Equal(t, 0, finder.callCount(root))
}

func TestMonitorRootNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&types.PieceStatus{Indexed: true, Advertised: true, Retrieved: true}, nil).AnyTimes()

	other, err := providerMultiaddr("https://other.example.com")
	require.NoError(t, err)
	finder := newMockFinder(func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error) {
		// Another provider announced the CID
		return []multiaddr.Multiaddr{other}, nil
	})
	store := &mockStore{}

	m := NewMonitor(testConfig(), checker, finder, store)
	defer m.Close()

	root := testutil.GenerateCid()
	blocks := testutil.GenerateCids(2)
	task := m.Track(testDeal(), root, blocks)
	waitTask(t, task)

	// The highest stage reached is the provider receiving a retrieval
	require.NoError(t, task.Err())
	v := task.Verification()
	require.Equal(t, dealstatus.IpniSPReceivedRetrieveRequest, v.Status)
	require.Equal(t, 0, v.VerifiedCidsCount)
	require.Equal(t, 3, v.UnverifiedCidsCount)
	require.NotEmpty(t, v.Error)
	require.Nil(t, v.VerifiedAt)

	// Retries are bounded by the max number of attempts, and blocks are not
	// looked up if the root wasn't found
	require.Equal(t, 5, finder.callCount(root))
	for _, b := range blocks {
		require.Equal(t, 0, finder.callCount(b))
	}
}

func TestMonitorFirstSeenTimestamps(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	gomock.InOrder(
		checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&types.PieceStatus{}, nil),
		checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&types.PieceStatus{Indexed: true}, nil).Times(2),
		checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&types.PieceStatus{Indexed: true, Advertised: true}, nil).Times(2),
		checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&types.PieceStatus{Indexed: true, Advertised: true, Retrieved: true}, nil),
	)

	expected := expectedAddr(t)
	finder := newMockFinder(func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error) {
		return []multiaddr.Multiaddr{expected}, nil
	})
	store := &mockStore{}

	m := NewMonitor(testConfig(), checker, finder, store)
	defer m.Close()

	task := m.Track(testDeal(), testutil.GenerateCid(), nil)
	waitTask(t, task)
	require.NoError(t, task.Err())

	store.lk.Lock()
	saves := append([]types.Verification(nil), store.saves...)
	store.lk.Unlock()

	// initial save, one save per new stage and the final save
	require.Len(t, saves, 5)
	require.Equal(t, dealstatus.IpniPending, saves[0].Status)
	require.Equal(t, dealstatus.IpniSPIndexed, saves[1].Status)
	require.Equal(t, dealstatus.IpniSPAdvertised, saves[2].Status)
	require.Equal(t, dealstatus.IpniSPReceivedRetrieveRequest, saves[3].Status)
	require.Equal(t, dealstatus.IpniVerified, saves[4].Status)

	// Timestamps are recorded the first time a stage is seen only
	indexedAt := *saves[1].IndexedAt
	for _, s := range saves[2:] {
		require.True(t, indexedAt.Equal(*s.IndexedAt))
	}
	require.NotNil(t, saves[4].TimeToIndexMs)
	require.NotNil(t, saves[4].TimeToAdvertiseMs)
	require.NotNil(t, saves[4].TimeToRetrieveMs)
	require.False(t, saves[4].AdvertisedAt.Before(*saves[4].IndexedAt))
}

func TestMonitorRecoversPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, types.ProviderInfo, cid.Cid) (*types.PieceStatus, error) {
			panic("boom")
		})

	store := &mockStore{}
	m := NewMonitor(testConfig(), checker, newMockFinder(nil), store)
	defer m.Close()

	task := m.Track(testDeal(), testutil.GenerateCid(), nil)
	waitTask(t, task)
	require.Error(t, task.Err())
	require.Contains(t, task.Err().Error(), "panicked")

	// The crash is recorded as a failure, both on the task and in the store
	require.Equal(t, dealstatus.IpniFailed, task.Verification().Status)
	require.Contains(t, task.Verification().Error, "boom")
	require.Equal(t, dealstatus.IpniFailed, store.last().Status)
	require.NoError(t, m.Wait(context.Background()))
	require.EqualValues(t, 0, m.Active())

	got, ok := m.Task(task.DealID)
	require.True(t, ok)
	require.Equal(t, task, got)
}

func TestMonitorNeverRetrieved(t *testing.T) {
	run := func(t *testing.T, rootFound bool) (types.Verification, *mockFinder, error) {
		ctrl := gomock.NewController(t)
		checker := mock_types.NewMockPieceStatusChecker(ctrl)
		checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&types.PieceStatus{Indexed: true}, nil).AnyTimes()

		expected := expectedAddr(t)
		finder := newMockFinder(func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error) {
			if rootFound {
				return []multiaddr.Multiaddr{expected}, nil
			}
			return nil, nil
		})

		cfg := testConfig()
		cfg.PollTimeout = 50 * time.Millisecond
		// The settle delay only applies once the piece has been retrieved
		cfg.SettleDelay = time.Hour
		m := NewMonitor(cfg, checker, finder, &mockStore{})
		defer m.Close()

		task := m.Track(testDeal(), testutil.GenerateCid(), nil)
		waitTask(t, task)
		return task.Verification(), finder, task.Err()
	}

	t.Run("root found", func(t *testing.T) {
		v, _, err := run(t, true)
		require.NoError(t, err)
		require.Equal(t, dealstatus.IpniVerified, v.Status)
		require.Equal(t, 1, v.VerifiedCidsCount)
		require.NotNil(t, v.IndexedAt)
		require.Nil(t, v.RetrievedAt)
	})

	t.Run("root missing", func(t *testing.T) {
		v, finder, err := run(t, false)
		require.NoError(t, err)
		require.Equal(t, dealstatus.IpniSPIndexed, v.Status)
		require.Equal(t, 1, v.UnverifiedCidsCount)
		require.NotEmpty(t, v.Error)
		require.Equal(t, 5, finder.callCount(*v.RootCID))
	})
}

func TestMonitorPhaseTimeoutDuringBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&types.PieceStatus{Indexed: true, Advertised: true, Retrieved: true}, nil).AnyTimes()

	root := testutil.GenerateCid()
	blocks := testutil.GenerateCids(4)
	expected := expectedAddr(t)
	finder := newMockFinder(func(c cid.Cid, call int) ([]multiaddr.Multiaddr, error) {
		if c == blocks[1] {
			// Outlast the phase timeout
			time.Sleep(400 * time.Millisecond)
		}
		return []multiaddr.Multiaddr{expected}, nil
	})
	store := &mockStore{}

	cfg := testConfig()
	cfg.PhaseTimeout = 100 * time.Millisecond
	m := NewMonitor(cfg, checker, finder, store)
	defer m.Close()

	task := m.Track(testDeal(), root, blocks)
	waitTask(t, task)
	require.NoError(t, task.Err())

	// The root and the first two blocks were verified, the blocks after the
	// timeout are counted as unverified without being looked up
	v := task.Verification()
	require.Equal(t, dealstatus.IpniVerified, v.Status)
	require.Equal(t, 3, v.VerifiedCidsCount)
	require.Equal(t, 2, v.UnverifiedCidsCount)
	require.Equal(t, 0, finder.callCount(blocks[2]))
	require.Equal(t, 0, finder.callCount(blocks[3]))
	require.Equal(t, dealstatus.IpniVerified, store.last().Status)
}

func TestMonitorPollTimeoutFollowsClock(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)
	checker.EXPECT().PieceStatus(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused")).MinTimes(1)

	cfg := testConfig()
	cfg.PollInterval = time.Second
	cfg.PollTimeout = time.Minute
	mockClock := clock.NewMock()
	m := newMonitor(cfg, checker, newMockFinder(nil), &mockStore{}, mockClock)
	defer m.Close()

	task := m.Track(testDeal(), testutil.GenerateCid(), nil)

	// Only the mock clock moves, so the task can only finish if the poll
	// timeout is measured on it
	for i := 0; i < 1000; i++ {
		select {
		case <-task.Done():
		default:
			mockClock.Add(time.Second)
			continue
		}
		break
	}
	waitTask(t, task)

	var verr *types.VerificationError
	require.ErrorAs(t, task.Err(), &verr)
	require.Equal(t, "poll", verr.Stage)
	require.Equal(t, dealstatus.IpniFailed, task.Verification().Status)
}

func TestMonitorTrackAfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)

	m := NewMonitor(testConfig(), checker, newMockFinder(nil), &mockStore{})
	m.Close()

	task := m.Track(testDeal(), testutil.GenerateCid(), nil)
	select {
	case <-task.Done():
	default:
		require.Fail(t, "task should be finished")
	}
	require.ErrorIs(t, task.Err(), ErrMonitorClosed)
	require.EqualValues(t, 0, m.Active())

	_, ok := m.Task(task.DealID)
	require.False(t, ok)
	require.NoError(t, m.Wait(context.Background()))
}

func TestMonitorMissingProviderRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mock_types.NewMockPieceStatusChecker(ctrl)

	m := NewMonitor(testConfig(), checker, newMockFinder(nil), &mockStore{})
	defer m.Close()

	deal := testDeal()
	deal.Provider = nil
	task := m.Track(deal, testutil.GenerateCid(), nil)
	waitTask(t, task)

	var verr *types.VerificationError
	require.ErrorAs(t, task.Err(), &verr)
	require.Equal(t, "setup", verr.Stage)
	require.Equal(t, dealstatus.IpniFailed, task.Verification().Status)
}

func TestDeriveStatus(t *testing.T) {
	now := time.Now()
	require.Equal(t, dealstatus.IpniFailed, deriveStatus(&types.Verification{}, false))
	require.Equal(t, dealstatus.IpniSPIndexed, deriveStatus(&types.Verification{IndexedAt: &now}, false))
	require.Equal(t, dealstatus.IpniSPAdvertised, deriveStatus(&types.Verification{IndexedAt: &now, AdvertisedAt: &now}, false))
	require.Equal(t, dealstatus.IpniSPReceivedRetrieveRequest, deriveStatus(&types.Verification{RetrievedAt: &now}, false))
	require.Equal(t, dealstatus.IpniVerified, deriveStatus(&types.Verification{}, true))
}
