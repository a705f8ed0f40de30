package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/utils/pkg/retry"
)

// maxVersionScan bounds the search for a free airdrop version.
const maxVersionScan = 1_000_000

type AccountInfoRPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
}

var _ AccountInfoRPC = (*solanarpc.Client)(nil)

// FindAirdropVersion returns the first airdrop version at or after start
// whose distributor account does not exist.
func FindAirdropVersion(ctx context.Context, log *slog.Logger, rpc AccountInfoRPC, retryCfg retry.Config, programID, mint solana.PublicKey, start uint64) (uint64, error) {
	for version := start; version < start+maxVersionScan; version++ {
		addr, err := account.DistributorAddress(programID, mint, version)
		if err != nil {
			return 0, err
		}
		err = retry.Do(ctx, retryCfg, func() error {
			_, err := rpc.GetAccountInfo(ctx, addr)
			return err
		})
		switch {
		case errors.Is(err, solanarpc.ErrNotFound):
			log.Info("found next airdrop version", "version", version, "distributor", addr.String())
			return version, nil
		case err != nil:
			return 0, fmt.Errorf("failed to get distributor for version %d: %w", version, err)
		}
		log.Info("airdrop version exists", "version", version, "distributor", addr.String())
	}
	return 0, fmt.Errorf("no free airdrop version in [%d, %d)", start, start+maxVersionScan)
}
