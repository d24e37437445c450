package ipnimonitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/filecoin-project/dealbot/metrics"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/multiformats/go-multiaddr"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/atomic"
)

var log = logging.Logger("ipnimonitor")

var ErrMonitorClosed = errors.New("ipni monitor closed")

type Config struct {
	// How often the provider is asked for the piece status
	PollInterval time.Duration
	// How long to wait for the provider to report the piece as retrieved
	PollTimeout time.Duration
	// How long to wait after the provider reports the piece as retrieved,
	// before looking it up in IPNI
	SettleDelay time.Duration
	// Delay between lookups of the root CID
	RetryInterval time.Duration
	// Total number of lookups of the root CID
	MaxAttempts int
	// Bound on the whole IPNI lookup phase
	PhaseTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  2500 * time.Millisecond,
		PollTimeout:   10 * time.Minute,
		SettleDelay:   30 * time.Second,
		RetryInterval: 10 * time.Second,
		MaxAttempts:   5,
		PhaseTimeout:  60 * time.Minute,
	}
}

// Finder looks up the addresses of the providers of a CID in IPNI
type Finder interface {
	FindProviders(ctx context.Context, c cid.Cid) ([]multiaddr.Multiaddr, error)
}

// VerificationStore persists the verification state of a deal
type VerificationStore interface {
	SaveVerification(ctx context.Context, dealID uuid.UUID, v *types.Verification) error
}

// Monitor runs a background verification task for each tracked deal. Tasks
// are not tied to the context of the call that started them; they run until
// they reach a terminal state or the monitor is closed.
type Monitor struct {
	cfg    Config
	status types.PieceStatusChecker
	finder Finder
	store  VerificationStore
	clock  clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64

	lk     sync.Mutex
	tasks  map[uuid.UUID]*Task
	closed bool
}

func NewMonitor(cfg Config, status types.PieceStatusChecker, finder Finder, store VerificationStore) *Monitor {
	return newMonitor(cfg, status, finder, store, clock.New())
}

func newMonitor(cfg Config, status types.PieceStatusChecker, finder Finder, store VerificationStore, clock clock.Clock) *Monitor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		cfg:    cfg,
		status: status,
		finder: finder,
		store:  store,
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[uuid.UUID]*Task),
	}
}

// Track starts verifying that the deal's root CID and blocks are announced
// to IPNI by the deal's provider. It returns immediately. Once the monitor
// is closed the returned task is already finished with ErrMonitorClosed.
func (m *Monitor) Track(deal types.Deal, root cid.Cid, blocks []cid.Cid) *Task {
	t := newTask(deal.ID)

	m.lk.Lock()
	if m.closed {
		m.lk.Unlock()
		log.Warnw("not tracking ipni verification: monitor closed", "id", deal.ID)
		t.finish(deal.Ipni, ErrMonitorClosed)
		return t
	}
	m.tasks[deal.ID] = t
	// Add under the lock so that it cannot race with the Wait in Close
	m.wg.Add(1)
	m.lk.Unlock()

	stats.Record(m.ctx, metrics.IpniVerificationActive.M(m.active.Inc()))
	go m.run(t, deal, root, blocks)
	return t
}

// Task returns the verification task for the deal, if there is one
func (m *Monitor) Task(dealID uuid.UUID) (*Task, bool) {
	m.lk.Lock()
	defer m.lk.Unlock()
	t, ok := m.tasks[dealID]
	return t, ok
}

// Active returns the number of running tasks
func (m *Monitor) Active() int64 {
	return m.active.Load()
}

// Wait blocks until every task has finished or ctx is done
func (m *Monitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops all running tasks and waits for them to record their final
// state.
func (m *Monitor) Close() {
	m.lk.Lock()
	m.closed = true
	m.lk.Unlock()

	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) run(t *Task, deal types.Deal, root cid.Cid, blocks []cid.Cid) {
	defer m.wg.Done()
	defer func() {
		stats.Record(context.Background(), metrics.IpniVerificationActive.M(m.active.Dec()))
	}()

	v := deal.Ipni
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("verification of deal %s panicked: %v", deal.ID, r)
			log.Errorw("ipni verification panic", "id", deal.ID, "panic", r, "stack", string(debug.Stack()))
			_ = m.fail(deal.ID, &v, &types.VerificationError{Stage: "panic", Err: err})
			t.finish(v, err)
		}
	}()

	err := m.verify(m.ctx, deal, root, blocks, &v)
	if err != nil {
		log.Warnw("ipni verification failed", "id", deal.ID, "provider", deal.ProviderAddress, "status", v.Status, "err", err)
	} else {
		log.Infow("ipni verification finished", "id", deal.ID, "provider", deal.ProviderAddress, "status", v.Status,
			"verified", v.VerifiedCidsCount, "unverified", v.UnverifiedCidsCount)
	}

	ctx, _ := tag.New(context.Background(), tag.Upsert(metrics.Provider, deal.ProviderAddress), tag.Upsert(metrics.Outcome, v.Status.String()))
	stats.Record(ctx, metrics.IpniVerificationFinished.M(1))
	if v.TimeToVerifyMs != nil {
		stats.Record(ctx, metrics.IpniTimeToVerify.M(*v.TimeToVerifyMs))
	}

	t.finish(v, err)
}

// save persists the verification state. Failures are logged and otherwise
// ignored.
func (m *Monitor) save(dealID uuid.UUID, v *types.Verification) {
	// Saves must succeed even if the monitor is shutting down
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cp := *v
	if err := m.store.SaveVerification(ctx, dealID, &cp); err != nil {
		log.Warnw("failed to save ipni verification state", "id", dealID, "status", v.Status, "err", err)
	}
}

// fail moves the verification to FAILED, records the error and persists it
func (m *Monitor) fail(dealID uuid.UUID, v *types.Verification, err error) error {
	v.Status = dealstatus.IpniFailed
	v.Error = err.Error()
	m.save(dealID, v)
	return err
}
