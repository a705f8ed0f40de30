package claimcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/metrics"
	"github.com/malbeclabs/airdrop/utils/pkg/retry"
)

var ErrMaxReconnectionAttemptsReached = errors.New("max reconnection attempts reached")

type FeedState int

const (
	FeedConnecting FeedState = iota
	FeedStreaming
	FeedReconnecting
	FeedUnsubscribed
	FeedFailed
)

func (s FeedState) String() string {
	switch s {
	case FeedConnecting:
		return "connecting"
	case FeedStreaming:
		return "streaming"
	case FeedReconnecting:
		return "reconnecting"
	case FeedUnsubscribed:
		return "unsubscribed"
	case FeedFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// FeedEvent is emitted on every feed state transition. Attempt is the number
// of consecutive failures so far, and Delay the wait before the next connect
// when State is FeedReconnecting.
type FeedEvent struct {
	Distributor solana.PublicKey
	State       FeedState
	Attempt     int
	Delay       time.Duration
	Err         error
}

// FeedError reports a feed that gave up. Its distributor's claim statuses
// stop updating until restart.
type FeedError struct {
	Distributor solana.PublicKey
	Err         error
}

func (e FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Distributor, e.Err)
}

func (e FeedError) Unwrap() error { return e.Err }

// feed streams one distributor's claim statuses into the update channel and
// reconnects with exponential backoff when the stream fails.
type feed struct {
	log         *slog.Logger
	cfg         *Config
	distributor solana.PublicKey
	updates     chan<- update
	observe     func(FeedEvent)
}

func (f *feed) emit(ev FeedEvent) {
	ev.Distributor = f.distributor
	metrics.FeedStateTransitionsTotal.WithLabelValues(ev.State.String()).Inc()
	if f.observe != nil {
		f.observe(ev)
	}
}

func (f *feed) run(ctx context.Context) error {
	filters := account.ClaimStatusFilters(f.distributor)
	failures := 0

	for {
		if ctx.Err() != nil {
			f.emit(FeedEvent{State: FeedUnsubscribed})
			return nil
		}

		f.emit(FeedEvent{State: FeedConnecting, Attempt: failures})
		sub, err := f.cfg.Subscriber.Subscribe(ctx, f.cfg.ProgramID, filters)
		if err != nil {
			if ctx.Err() != nil {
				f.emit(FeedEvent{State: FeedUnsubscribed})
				return nil
			}
			f.log.Warn("claimcache: subscribe failed", "distributor", f.distributor.String(), "attempt", failures+1, "error", err)
		} else {
			f.emit(FeedEvent{State: FeedStreaming, Attempt: failures})
			received, streamErr := f.stream(ctx, sub)
			sub.Unsubscribe()
			if ctx.Err() != nil {
				f.emit(FeedEvent{State: FeedUnsubscribed})
				return nil
			}
			if received {
				failures = 0
			}
			err = streamErr
			f.log.Warn("claimcache: stream ended", "distributor", f.distributor.String(), "error", err)
		}

		failures++
		if failures >= f.cfg.MaxReconnectAttempts {
			failErr := fmt.Errorf("%w: distributor %s after %d attempts: %v", ErrMaxReconnectionAttemptsReached, f.distributor, failures, err)
			f.emit(FeedEvent{State: FeedFailed, Attempt: failures, Err: failErr})
			return failErr
		}

		delay := retry.Exponential(f.cfg.ReconnectBaseDelay, f.cfg.MaxReconnectDelay, failures-1)
		f.emit(FeedEvent{State: FeedReconnecting, Attempt: failures, Delay: delay, Err: err})
		f.log.Info("claimcache: reconnecting", "distributor", f.distributor.String(), "attempt", failures, "delay", delay)

		select {
		case <-ctx.Done():
			f.emit(FeedEvent{State: FeedUnsubscribed})
			return nil
		case <-f.cfg.Clock.After(delay):
		}
	}
}

// stream forwards decoded notifications until the subscription fails. It
// reports whether at least one notification arrived.
func (f *feed) stream(ctx context.Context, sub Subscription) (bool, error) {
	received := false
	for {
		n, err := sub.Recv(ctx)
		if err != nil {
			return received, err
		}
		received = true

		cs, err := account.DecodeClaimStatus(n.Data)
		if err != nil {
			f.log.Warn("claimcache: skipping undecodable claim status", "account", n.Pubkey.String(), "slot", n.Slot, "error", err)
			metrics.DecodeErrorsTotal.WithLabelValues("claim_status").Inc()
			continue
		}

		u := update{entry: Entry[account.ClaimStatus]{Data: cs, Slot: n.Slot}, source: sourceStream}
		select {
		case f.updates <- u:
		case <-ctx.Done():
			return received, ctx.Err()
		}
	}
}
