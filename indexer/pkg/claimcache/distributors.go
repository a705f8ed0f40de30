package claimcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/metrics"
)

// maxAccountsPerRequest is the getMultipleAccounts limit.
const maxAccountsPerRequest = 100

func (c *Cache) refreshLoop(ctx context.Context) {
	c.log.Info("claimcache: starting distributor refresh loop", "interval", c.cfg.RefreshInterval)

	c.safeRefresh(ctx)

	ticker := c.cfg.Clock.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.safeRefresh(ctx)
		}
	}
}

func (c *Cache) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("claimcache: distributor refresh panicked", "panic", r)
			metrics.ViewRefreshTotal.WithLabelValues("distributors", "panic").Inc()
		}
	}()

	if err := c.RefreshDistributors(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("claimcache: distributor refresh failed", "error", err)
	}
}

// RefreshDistributors fetches every distributor account and overwrites the
// cached copies. Missing or undecodable accounts are logged and skipped.
func (c *Cache) RefreshDistributors(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	refreshStart := time.Now()
	defer func() {
		metrics.ViewRefreshDuration.WithLabelValues("distributors").Observe(time.Since(refreshStart).Seconds())
	}()

	opts := &solanarpc.GetMultipleAccountsOpts{
		Commitment: c.cfg.Commitment,
		Encoding:   solana.EncodingBase64,
	}

	updated := 0
	addrs := c.cfg.Distributors
	for len(addrs) > 0 {
		batch := addrs[:min(len(addrs), maxAccountsPerRequest)]
		addrs = addrs[len(batch):]

		res, err := c.cfg.RPC.GetMultipleAccountsWithOpts(ctx, batch, opts)
		if err != nil {
			metrics.ViewRefreshTotal.WithLabelValues("distributors", "error").Inc()
			return fmt.Errorf("failed to get distributor accounts: %w", err)
		}
		if res == nil || len(res.Value) != len(batch) {
			metrics.ViewRefreshTotal.WithLabelValues("distributors", "error").Inc()
			return fmt.Errorf("unexpected getMultipleAccounts response for %d accounts", len(batch))
		}

		for i, acc := range res.Value {
			addr := batch[i]
			if acc == nil || acc.Data == nil {
				c.log.Warn("claimcache: distributor account not found", "distributor", addr.String())
				continue
			}
			d, err := account.DecodeDistributor(acc.Data.GetBinary())
			if err != nil {
				c.log.Warn("claimcache: skipping undecodable distributor", "distributor", addr.String(), "error", err)
				metrics.DecodeErrorsTotal.WithLabelValues("distributor").Inc()
				continue
			}
			c.distributors.Store(addr, d)
			updated++
		}
	}

	metrics.CacheDistributors.Set(float64(c.distributors.Size()))
	metrics.ViewRefreshTotal.WithLabelValues("distributors", "success").Inc()
	c.log.Debug("claimcache: distributors refreshed", "updated", updated, "duration", time.Since(refreshStart).String())

	c.refreshOnce.Do(func() { close(c.refreshedCh) })
	return nil
}
