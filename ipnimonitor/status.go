package ipnimonitor

import (
	"context"
	"time"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
)

// pollPieceStatus asks the provider for the piece status every PollInterval
// until the piece has been retrieved or PollTimeout elapses. It returns the
// last status received, or nil and the last error if the provider never
// answered.
func (m *Monitor) pollPieceStatus(ctx context.Context, deal types.Deal, since time.Time, v *types.Verification) (*types.PieceStatus, error) {
	pollCtx, cancel := m.clock.WithTimeout(ctx, m.cfg.PollTimeout)
	defer cancel()

	var last *types.PieceStatus
	var lastErr error
	for {
		st, err := m.status.PieceStatus(pollCtx, *deal.Provider, *deal.PieceCID)
		if err != nil {
			lastErr = err
			log.Debugw("piece status check failed", "id", deal.ID, "provider", deal.ProviderAddress, "err", err)
		} else if st != nil {
			last = st
			if m.observe(st, since, v) {
				log.Infow("piece status changed", "id", deal.ID, "provider", deal.ProviderAddress, "status", v.Status)
				m.save(deal.ID, v)
			}
			if st.Retrieved {
				return last, nil
			}
		}

		if err := m.sleep(pollCtx, m.cfg.PollInterval); err != nil {
			if last != nil {
				log.Infow("piece status poll timed out", "id", deal.ID, "provider", deal.ProviderAddress, "status", v.Status)
			}
			return last, lastErr
		}
	}
}

// observe records the first time each stage is seen and advances the
// verification status. It returns true if anything changed.
func (m *Monitor) observe(st *types.PieceStatus, since time.Time, v *types.Verification) bool {
	now := m.clock.Now()
	changed := false

	if st.Indexed && v.IndexedAt == nil {
		v.IndexedAt = &now
		v.TimeToIndexMs = msSince(since, now)
		changed = true
	}
	if st.Advertised && v.AdvertisedAt == nil {
		v.AdvertisedAt = &now
		v.TimeToAdvertiseMs = msSince(since, now)
		changed = true
	}
	if st.Retrieved && v.RetrievedAt == nil {
		at := now
		if st.RetrievedAt != nil {
			at = *st.RetrievedAt
		}
		v.RetrievedAt = &at
		v.TimeToRetrieveMs = msSince(since, at)
		changed = true
	}

	if next := deriveStatus(v, false); next != dealstatus.IpniFailed && v.Status.CanTransition(next) {
		_ = v.Advance(next)
	}
	return changed
}

// deriveStatus returns the highest stage reached. A deal that reached no
// stage at all has FAILED.
func deriveStatus(v *types.Verification, rootVerified bool) dealstatus.IpniStatus {
	switch {
	case rootVerified:
		return dealstatus.IpniVerified
	case v.RetrievedAt != nil:
		return dealstatus.IpniSPReceivedRetrieveRequest
	case v.AdvertisedAt != nil:
		return dealstatus.IpniSPAdvertised
	case v.IndexedAt != nil:
		return dealstatus.IpniSPIndexed
	default:
		return dealstatus.IpniFailed
	}
}
