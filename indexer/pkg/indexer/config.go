package indexer

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/airdrop/indexer/pkg/claimcache"
	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
	"github.com/malbeclabs/airdrop/indexer/pkg/vesting"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// Index holds the loaded trees. Its distributors are the ones mirrored.
	Index *merkle.Index

	ProgramID  solana.PublicKey
	RPC        claimcache.RPC
	Subscriber claimcache.Subscriber
	Commitment solanarpc.CommitmentType

	RefreshInterval      time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectDelay    time.Duration
	MaxReconnectAttempts int
	UpdateBufferSize     int

	// HeadStart is the share of unlocked tokens claimable at start, in
	// parts per million. Zero vests the unlocked amount linearly from start.
	HeadStart vesting.HeadStart

	OnFeedEvent func(claimcache.FeedEvent)
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Index == nil {
		return errors.New("merkle index is required")
	}
	if cfg.Index.Len() == 0 {
		return errors.New("merkle index has no claimants")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Subscriber == nil {
		return errors.New("subscriber is required")
	}
	if cfg.HeadStart > vesting.PctPrecision {
		return errors.New("head start must not exceed 100%")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}
