package claimcache

import (
	"context"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/metrics"
)

func (c *Cache) ingest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-c.updates:
			c.apply(u)
			metrics.UpdateQueueDepth.Set(float64(len(c.updates)))
		}
	}
}

// apply stores u unless the cached entry was observed at a later slot. It
// reports whether u was accepted. Statuses of untracked distributors are
// dropped.
func (c *Cache) apply(u update) bool {
	key := claimKey{distributor: u.entry.Data.Distributor, claimant: u.entry.Data.Claimant}
	if _, ok := c.tracked[key.distributor]; !ok {
		c.log.Debug("claimcache: discarding claim status of untracked distributor", "claimant", key.claimant.String(), "distributor", key.distributor.String(), "source", string(u.source))
		metrics.ClaimUpdatesTotal.WithLabelValues(string(u.source), "untracked").Inc()
		return false
	}

	accepted := true
	c.claims.Compute(key, func(old Entry[account.ClaimStatus], loaded bool) (Entry[account.ClaimStatus], bool) {
		if loaded && old.Slot > u.entry.Slot {
			accepted = false
			return old, false
		}
		return u.entry, false
	})

	if !accepted {
		c.log.Debug("claimcache: discarding stale claim status", "claimant", u.entry.Data.Claimant.String(), "slot", u.entry.Slot, "source", string(u.source))
		metrics.ClaimUpdatesTotal.WithLabelValues(string(u.source), "stale").Inc()
		return false
	}
	metrics.ClaimUpdatesTotal.WithLabelValues(string(u.source), "applied").Inc()
	metrics.CacheClaimStatuses.Set(float64(c.claims.Size()))
	return true
}

// send enqueues u, blocking while the channel is full.
func (c *Cache) send(ctx context.Context, u update) error {
	select {
	case c.updates <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
