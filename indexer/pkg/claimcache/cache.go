// Package claimcache mirrors on-chain claim statuses and distributors in
// memory.
//
// For each distributor the cache runs a bulk scan and a live program
// subscription that feed one update channel. A single ingestion goroutine
// applies updates so that a claim status is only replaced by one observed at
// the same or a later slot. Distributor accounts are re-fetched on an
// interval. Reads never block on I/O.
package claimcache

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/metrics"
	"github.com/malbeclabs/airdrop/utils/pkg/retry"
)

const (
	DefaultRefreshInterval      = 30 * time.Second
	DefaultReconnectBaseDelay   = 5 * time.Second
	DefaultMaxReconnectAttempts = 20
	DefaultUpdateBufferSize     = 1000
)

type Config struct {
	Logger     *slog.Logger
	Clock      clockwork.Clock
	RPC        RPC
	Subscriber Subscriber
	ProgramID  solana.PublicKey

	// Distributors are the distributor accounts to mirror, along with their
	// claim statuses.
	Distributors []solana.PublicKey
	Commitment   solanarpc.CommitmentType

	RefreshInterval      time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectDelay    time.Duration // 0 means uncapped
	MaxReconnectAttempts int
	UpdateBufferSize     int

	// BootstrapRetry controls retries of the bulk scan.
	BootstrapRetry retry.Config

	// OnFeedEvent, if set, observes every feed state transition.
	OnFeedEvent func(FeedEvent)
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Subscriber == nil {
		return errors.New("subscriber is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if len(cfg.Distributors) == 0 {
		return errors.New("at least one distributor is required")
	}
	if cfg.RefreshInterval < 0 || cfg.ReconnectBaseDelay < 0 || cfg.MaxReconnectDelay < 0 {
		return errors.New("intervals must not be negative")
	}
	if cfg.MaxReconnectAttempts < 0 || cfg.UpdateBufferSize < 0 {
		return errors.New("max reconnect attempts and update buffer size must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solanarpc.CommitmentConfirmed
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.UpdateBufferSize == 0 {
		cfg.UpdateBufferSize = DefaultUpdateBufferSize
	}
	if cfg.BootstrapRetry.MaxAttempts == 0 {
		cfg.BootstrapRetry = retry.DefaultConfig()
	}
	if cfg.BootstrapRetry.Clock == nil {
		cfg.BootstrapRetry.Clock = cfg.Clock
	}
	return nil
}

// Entry is a cached value and the slot it was observed at. Bulk-scanned
// entries carry slot 0 so that any streamed update supersedes them.
type Entry[T any] struct {
	Data T      `json:"data"`
	Slot uint64 `json:"slot"`
}

// DistributorEntry is a cached distributor and its address.
type DistributorEntry struct {
	Address     solana.PublicKey    `json:"address"`
	Distributor account.Distributor `json:"distributor"`
}

type updateSource string

const (
	sourceBootstrap updateSource = "bootstrap"
	sourceStream    updateSource = "stream"
)

type update struct {
	entry  Entry[account.ClaimStatus]
	source updateSource
}

// claimKey identifies a claim status; a claimant holds one per distributor.
type claimKey struct {
	distributor solana.PublicKey
	claimant    solana.PublicKey
}

type Cache struct {
	log *slog.Logger
	cfg Config

	tracked      map[solana.PublicKey]struct{}
	claims       *xsync.MapOf[claimKey, Entry[account.ClaimStatus]]
	distributors *xsync.MapOf[solana.PublicKey, account.Distributor]
	feedStates   *xsync.MapOf[solana.PublicKey, FeedState]

	updates  chan update
	failures chan FeedError

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	errMu   sync.Mutex
	feedErr []error

	refreshMu   sync.Mutex
	refreshOnce sync.Once
	refreshedCh chan struct{}
	readyOnce   sync.Once
	readyCh     chan struct{}
}

func New(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tracked := make(map[solana.PublicKey]struct{}, len(cfg.Distributors))
	for _, d := range cfg.Distributors {
		tracked[d] = struct{}{}
	}
	return &Cache{
		log:          cfg.Logger,
		cfg:          cfg,
		tracked:      tracked,
		claims:       xsync.NewMapOf[claimKey, Entry[account.ClaimStatus]](),
		distributors: xsync.NewMapOf[solana.PublicKey, account.Distributor](),
		feedStates:   xsync.NewMapOf[solana.PublicKey, FeedState](),
		updates:      make(chan update, cfg.UpdateBufferSize),
		failures:     make(chan FeedError, len(cfg.Distributors)),
		refreshedCh:  make(chan struct{}),
		readyCh:      make(chan struct{}),
	}, nil
}

// Start launches the ingestion loop, the distributor refresher, and a bulk
// scan plus live feed per distributor. It returns immediately; call
// Unsubscribe or cancel ctx to stop, then Wait.
func (c *Cache) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel

		c.log.Info("claimcache: starting", "distributors", len(c.cfg.Distributors), "program_id", c.cfg.ProgramID.String())

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.ingest(ctx)
		}()

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.refreshLoop(ctx)
		}()

		var bootstraps sync.WaitGroup
		for _, d := range c.cfg.Distributors {
			c.feedStates.Store(d, FeedConnecting)

			bootstraps.Add(1)
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				defer bootstraps.Done()
				if err := c.bootstrap(ctx, d); err != nil && ctx.Err() == nil {
					c.log.Error("claimcache: bulk scan failed", "distributor", d.String(), "error", err)
				}
			}()

			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.superviseFeed(ctx, d)
			}()
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			bootstrapsDone := make(chan struct{})
			go func() {
				bootstraps.Wait()
				close(bootstrapsDone)
			}()
			for _, ch := range []<-chan struct{}{bootstrapsDone, c.refreshedCh} {
				select {
				case <-ch:
				case <-ctx.Done():
					return
				}
			}
			c.readyOnce.Do(func() {
				close(c.readyCh)
				c.log.Info("claimcache: cache is now ready", "claim_statuses", c.claims.Size(), "distributors", c.distributors.Size())
			})
		}()
	})
}

func (c *Cache) superviseFeed(ctx context.Context, distributor solana.PublicKey) {
	f := &feed{
		log:         c.log,
		cfg:         &c.cfg,
		distributor: distributor,
		updates:     c.updates,
		observe:     c.observeFeed,
	}
	err := f.run(ctx)
	if err == nil {
		return
	}

	c.log.Error("claimcache: feed failed, distributor will go stale", "distributor", distributor.String(), "error", err)
	metrics.FeedFailuresTotal.Inc()

	c.errMu.Lock()
	c.feedErr = append(c.feedErr, err)
	c.errMu.Unlock()

	select {
	case c.failures <- FeedError{Distributor: distributor, Err: err}:
	default:
		c.log.Warn("claimcache: dropping feed failure notification", "distributor", distributor.String())
	}
}

func (c *Cache) observeFeed(ev FeedEvent) {
	c.feedStates.Store(ev.Distributor, ev.State)
	if c.cfg.OnFeedEvent != nil {
		c.cfg.OnFeedEvent(ev)
	}
}

// Unsubscribe stops every feed and background loop. Safe to call more than
// once and before Start.
func (c *Cache) Unsubscribe() {
	c.stopOnce.Do(func() {
		c.startOnce.Do(func() {})
		if c.cancel != nil {
			c.cancel()
		}
		c.log.Info("claimcache: unsubscribed")
	})
}

// Wait blocks until every goroutine started by Start has returned. It
// returns the joined errors of feeds that gave up.
func (c *Cache) Wait() error {
	c.wg.Wait()
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return errors.Join(c.feedErr...)
}

// Failures delivers one FeedError per feed that gave up.
func (c *Cache) Failures() <-chan FeedError {
	return c.failures
}

func (c *Cache) Ready() bool {
	select {
	case <-c.readyCh:
		return true
	default:
		return false
	}
}

func (c *Cache) WaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for claim cache: %w", ctx.Err())
	}
}

// GetClaimStatus returns the claim status of claimant observed at the highest
// slot across all distributors.
func (c *Cache) GetClaimStatus(claimant solana.PublicKey) (Entry[account.ClaimStatus], bool) {
	var (
		latest Entry[account.ClaimStatus]
		found  bool
	)
	for _, d := range c.cfg.Distributors {
		e, ok := c.claims.Load(claimKey{distributor: d, claimant: claimant})
		if ok && (!found || e.Slot > latest.Slot) {
			latest, found = e, true
		}
	}
	return latest, found
}

// GetDistributorClaimStatus returns the claim status of claimant under one
// distributor.
func (c *Cache) GetDistributorClaimStatus(distributor, claimant solana.PublicKey) (Entry[account.ClaimStatus], bool) {
	return c.claims.Load(claimKey{distributor: distributor, claimant: claimant})
}

// GetDistributor returns the last fetched state of a distributor.
func (c *Cache) GetDistributor(address solana.PublicKey) (account.Distributor, bool) {
	return c.distributors.Load(address)
}

// GetAllDistributors returns every cached distributor ordered by version,
// then address.
func (c *Cache) GetAllDistributors() []DistributorEntry {
	out := make([]DistributorEntry, 0, c.distributors.Size())
	c.distributors.Range(func(addr solana.PublicKey, d account.Distributor) bool {
		out = append(out, DistributorEntry{Address: addr, Distributor: d})
		return true
	})
	slices.SortFunc(out, func(a, b DistributorEntry) int {
		if n := cmp.Compare(a.Distributor.Version, b.Distributor.Version); n != 0 {
			return n
		}
		return bytes.Compare(a.Address[:], b.Address[:])
	})
	return out
}

// Len returns the number of cached claim statuses, counting one per
// distributor and claimant.
func (c *Cache) Len() int {
	return c.claims.Size()
}

// FeedState returns the current state of a distributor's feed.
func (c *Cache) FeedState(distributor solana.PublicKey) (FeedState, bool) {
	return c.feedStates.Load(distributor)
}
