package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/claimcache"
	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
	"github.com/malbeclabs/airdrop/indexer/pkg/vesting"
)

var (
	// ErrNotFound is returned when a claimant is in no tree or has no claim
	// status.
	ErrNotFound = errors.New("not found")

	// ErrDistributorUnavailable is returned when a claimant's distributor has
	// not been fetched from chain yet.
	ErrDistributorUnavailable = errors.New("distributor not available")
)

type Indexer struct {
	log *slog.Logger
	cfg Config

	cache *claimcache.Cache

	startedAt time.Time
}

func New(cfg Config) (*Indexer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache, err := claimcache.New(claimcache.Config{
		Logger:               cfg.Logger,
		Clock:                cfg.Clock,
		RPC:                  cfg.RPC,
		Subscriber:           cfg.Subscriber,
		ProgramID:            cfg.ProgramID,
		Distributors:         cfg.Index.DistributorAddresses(),
		Commitment:           cfg.Commitment,
		RefreshInterval:      cfg.RefreshInterval,
		ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
		MaxReconnectDelay:    cfg.MaxReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		UpdateBufferSize:     cfg.UpdateBufferSize,
		OnFeedEvent:          cfg.OnFeedEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create claim cache: %w", err)
	}

	return &Indexer{
		log:   cfg.Logger,
		cfg:   cfg,
		cache: cache,
	}, nil
}

func (i *Indexer) Ready() bool {
	return i.cache.Ready()
}

func (i *Indexer) WaitReady(ctx context.Context) error {
	return i.cache.WaitReady(ctx)
}

func (i *Indexer) Start(ctx context.Context) {
	i.startedAt = i.cfg.Clock.Now()
	i.log.Info("indexer: starting",
		"claimants", i.cfg.Index.Len(),
		"distributors", len(i.cfg.Index.Distributors()),
		"max_total_claim", i.cfg.Index.MaxTotalClaim(),
	)
	i.cache.Start(ctx)
}

// Unsubscribe stops the claim cache. Call Wait afterwards.
func (i *Indexer) Unsubscribe() {
	i.cache.Unsubscribe()
}

func (i *Indexer) Wait() error {
	return i.cache.Wait()
}

// Failures delivers the claim-status feeds that gave up reconnecting.
func (i *Indexer) Failures() <-chan claimcache.FeedError {
	return i.cache.Failures()
}

func (i *Indexer) StartedAt() time.Time {
	return i.startedAt
}

// GetLeaf returns claimant's tree leaf and proof.
func (i *Indexer) GetLeaf(claimant solana.PublicKey) (merkle.Leaf, error) {
	leaf, ok := i.cfg.Index.GetLeaf(claimant)
	if !ok {
		return merkle.Leaf{}, fmt.Errorf("claimant %s: %w", claimant, ErrNotFound)
	}
	return leaf, nil
}

// GetClaimStatus returns claimant's most recently observed on-chain claim
// status across all distributors.
func (i *Indexer) GetClaimStatus(claimant solana.PublicKey) (claimcache.Entry[account.ClaimStatus], error) {
	entry, ok := i.cache.GetClaimStatus(claimant)
	if !ok {
		return claimcache.Entry[account.ClaimStatus]{}, fmt.Errorf("claim status for %s: %w", claimant, ErrNotFound)
	}
	return entry, nil
}

// DistributorSummary is a loaded tree joined with the distributor's on-chain
// state, when it has been fetched.
type DistributorSummary struct {
	merkle.DistributorInfo
	OnChain *account.Distributor
}

// Distributors returns every loaded tree ordered by airdrop version.
func (i *Indexer) Distributors() []DistributorSummary {
	infos := i.cfg.Index.Distributors()
	out := make([]DistributorSummary, 0, len(infos))
	for _, info := range infos {
		s := DistributorSummary{DistributorInfo: info}
		if d, ok := i.cache.GetDistributor(info.Address); ok {
			s.OnChain = &d
		}
		out = append(out, s)
	}
	return out
}

func (i *Indexer) MaxNumNodes() uint64   { return i.cfg.Index.MaxNumNodes() }
func (i *Indexer) MaxTotalClaim() uint64 { return i.cfg.Index.MaxTotalClaim() }

// Eligibility is a claimant's leaf, its distributor's schedule and what the
// claimant can claim at Now.
type Eligibility struct {
	Claimant    solana.PublicKey
	Leaf        merkle.Leaf
	Distributor account.Distributor
	ClaimStatus *claimcache.Entry[account.ClaimStatus]
	Now         int64

	vesting.Eligibility
}

// Eligibility combines claimant's leaf with its claim status, or a projection
// from the leaf amounts when there is none, at the current time.
func (i *Indexer) Eligibility(claimant solana.PublicKey) (Eligibility, error) {
	leaf, err := i.GetLeaf(claimant)
	if err != nil {
		return Eligibility{}, err
	}
	d, ok := i.cache.GetDistributor(leaf.Distributor)
	if !ok {
		return Eligibility{}, fmt.Errorf("distributor %s: %w", leaf.Distributor, ErrDistributorUnavailable)
	}

	out := Eligibility{
		Claimant:    claimant,
		Leaf:        leaf,
		Distributor: d,
		Now:         i.cfg.Clock.Now().Unix(),
	}

	var claim vesting.Claim = vesting.Projected{
		Unlocked: leaf.Node.UnlockedAmount,
		Locked:   leaf.Node.LockedAmount,
	}
	if entry, ok := i.cache.GetDistributorClaimStatus(leaf.Distributor, claimant); ok {
		out.ClaimStatus = &entry
		claim = vesting.Recorded{Status: entry.Data}
	}

	e, err := vesting.Compute(claim, vesting.ScheduleFor(d, i.cfg.HeadStart), out.Now)
	if err != nil {
		return Eligibility{}, fmt.Errorf("failed to compute eligibility for %s: %w", claimant, err)
	}
	out.Eligibility = e
	return out, nil
}
