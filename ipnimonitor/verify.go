package ipnimonitor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/filecoin-project/dealbot/lib/ipnifind"
	"github.com/filecoin-project/dealbot/metrics"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/filecoin-project/dealbot/tracing"
	"github.com/ipfs/go-cid"
	"github.com/ipni/go-libipni/maurl"
	"github.com/multiformats/go-multiaddr"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (m *Monitor) verify(ctx context.Context, deal types.Deal, root cid.Cid, blocks []cid.Cid, v *types.Verification) error {
	ctx, span := tracing.Tracer.Start(ctx, "ipni.verify", trace.WithAttributes(
		attribute.String("deal", deal.ID.String()),
		attribute.String("provider", deal.ProviderAddress),
	))
	defer span.End()

	v.RootCID = &root

	if deal.Provider == nil {
		return m.fail(deal.ID, v, &types.VerificationError{Stage: "setup", Err: errors.New("deal has no provider record")})
	}
	if deal.PieceCID == nil {
		return m.fail(deal.ID, v, &types.VerificationError{Stage: "setup", Err: errors.New("deal has no piece cid")})
	}
	expected, err := providerMultiaddr(deal.Provider.ServiceURL)
	if err != nil {
		return m.fail(deal.ID, v, &types.VerificationError{Stage: "setup", Err: err})
	}

	// Time to each stage is measured from the end of the upload
	since := m.clock.Now()
	if deal.UploadEndedAt != nil {
		since = *deal.UploadEndedAt
	}
	m.save(deal.ID, v)

	// Phase 1: wait for the provider to index, advertise and receive a
	// retrieval request for the piece
	last, err := m.pollPieceStatus(ctx, deal, since, v)
	if last == nil {
		if err == nil {
			err = errors.New("no piece status received")
		}
		return m.fail(deal.ID, v, &types.VerificationError{Stage: "poll", Err: err})
	}

	// Phase 2: give the announcement time to propagate through IPNI
	if last.Retrieved && m.cfg.SettleDelay > 0 {
		log.Debugw("waiting for ipni propagation", "id", deal.ID, "delay", m.cfg.SettleDelay)
		if err := m.sleep(ctx, m.cfg.SettleDelay); err != nil {
			return m.fail(deal.ID, v, &types.VerificationError{Stage: "settle", Err: err})
		}
	}

	// Phase 3: look the root CID and then each block up in IPNI
	phaseCtx, cancel := m.clock.WithTimeout(ctx, m.cfg.PhaseTimeout)
	defer cancel()

	rootVerified := m.lookup(phaseCtx, root, expected, m.cfg.MaxAttempts)
	if rootVerified {
		now := m.clock.Now()
		v.VerifiedAt = &now
		v.TimeToVerifyMs = msSince(since, now)
		v.VerifiedCidsCount = 1

		for i, b := range blocks {
			if phaseCtx.Err() != nil {
				log.Infow("ipni phase timeout, skipping remaining blocks", "id", deal.ID, "remaining", len(blocks)-i)
				v.UnverifiedCidsCount += len(blocks) - i
				break
			}
			if m.lookup(phaseCtx, b, expected, 1) {
				v.VerifiedCidsCount++
			} else {
				v.UnverifiedCidsCount++
			}
		}
	} else {
		v.UnverifiedCidsCount = 1 + len(blocks)
	}

	status := deriveStatus(v, rootVerified)
	if err := v.Advance(status); err != nil {
		return m.fail(deal.ID, v, &types.VerificationError{Stage: "status", Err: err})
	}

	if status == dealstatus.IpniFailed {
		err := &types.VerificationError{
			Stage: "lookup",
			Err:   fmt.Errorf("root cid %s not found for provider %s after %d attempts", root, expected, m.cfg.MaxAttempts),
		}
		return m.fail(deal.ID, v, err)
	}
	if !rootVerified {
		v.Error = fmt.Sprintf("root cid %s not found for provider %s after %d attempts", root, expected, m.cfg.MaxAttempts)
	}

	m.save(deal.ID, v)
	return nil
}

// lookup returns true if IPNI lists the expected provider address for c. It
// tries up to attempts times, waiting RetryInterval between attempts.
func (m *Monitor) lookup(ctx context.Context, c cid.Cid, expected multiaddr.Multiaddr, attempts int) bool {
	for attempt := 1; attempt <= attempts; attempt++ {
		addrs, err := m.finder.FindProviders(ctx, c)
		outcome := "found"
		switch {
		case err != nil:
			outcome = "error"
			log.Debugw("ipni lookup failed", "cid", c, "attempt", attempt, "err", err)
		case !ipnifind.ContainsAddr(addrs, expected):
			outcome = "missing"
			log.Debugw("provider not in ipni lookup result", "cid", c, "attempt", attempt, "addrs", len(addrs))
		}
		tctx, _ := tag.New(ctx, tag.Upsert(metrics.Outcome, outcome))
		stats.Record(tctx, metrics.IpniLookups.M(1))

		if outcome == "found" {
			return true
		}
		if attempt == attempts {
			return false
		}
		if err := m.sleep(ctx, m.cfg.RetryInterval); err != nil {
			return false
		}
	}
	return false
}

// sleep waits for d or until ctx is done
func (m *Monitor) sleep(ctx context.Context, d time.Duration) error {
	t := m.clock.Timer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func providerMultiaddr(serviceURL string) (multiaddr.Multiaddr, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing provider service url %q: %w", serviceURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("provider service url %q has no host", serviceURL)
	}
	ma, err := maurl.FromURL(u)
	if err != nil {
		return nil, fmt.Errorf("converting provider service url %q to multiaddr: %w", serviceURL, err)
	}
	return ma, nil
}

func msSince(since time.Time, t time.Time) *int64 {
	ms := t.Sub(since).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return &ms
}
