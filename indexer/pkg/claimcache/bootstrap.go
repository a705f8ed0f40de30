package claimcache

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/metrics"
	"github.com/malbeclabs/airdrop/utils/pkg/retry"
)

// bootstrap loads every existing claim status of a distributor with one
// program account scan. Entries are sent with slot 0.
func (c *Cache) bootstrap(ctx context.Context, distributor solana.PublicKey) error {
	start := time.Now()
	opts := &solanarpc.GetProgramAccountsOpts{
		Commitment: c.cfg.Commitment,
		Encoding:   solana.EncodingBase64,
		Filters:    account.ClaimStatusFilters(distributor),
	}

	accounts, err := retry.DoWithResult(ctx, c.cfg.BootstrapRetry, func() (solanarpc.GetProgramAccountsResult, error) {
		return c.cfg.RPC.GetProgramAccountsWithOpts(ctx, c.cfg.ProgramID, opts)
	})
	if err != nil {
		metrics.BootstrapAccountsTotal.WithLabelValues("scan_error").Inc()
		return fmt.Errorf("failed to get program accounts: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, acc := range accounts {
		g.Go(func() error {
			if acc == nil || acc.Account == nil || acc.Account.Data == nil {
				return nil
			}
			cs, err := account.DecodeClaimStatus(acc.Account.Data.GetBinary())
			if err != nil {
				c.log.Warn("claimcache: skipping undecodable claim status", "account", acc.Pubkey.String(), "error", err)
				metrics.DecodeErrorsTotal.WithLabelValues("claim_status").Inc()
				metrics.BootstrapAccountsTotal.WithLabelValues("decode_error").Inc()
				return nil
			}
			metrics.BootstrapAccountsTotal.WithLabelValues("ok").Inc()
			return c.send(gctx, update{entry: Entry[account.ClaimStatus]{Data: cs, Slot: 0}, source: sourceBootstrap})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.log.Info("claimcache: bulk scan completed", "distributor", distributor.String(), "accounts", len(accounts), "duration", time.Since(start).String())
	return nil
}
