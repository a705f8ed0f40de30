package claimcache

import (
	"context"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// RPC is the subset of the Solana JSON-RPC client the cache reads through.
// *solanarpc.Client satisfies it.
type RPC interface {
	GetProgramAccountsWithOpts(ctx context.Context, publicKey solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error)
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *solanarpc.GetMultipleAccountsOpts) (*solanarpc.GetMultipleAccountsResult, error)
}

// Notification is one account update pushed by a program subscription.
type Notification struct {
	Slot   uint64
	Pubkey solana.PublicKey
	Data   []byte
}

// Subscription is a live stream of account updates. Recv blocks until the
// next update, the stream ends, or ctx is done.
type Subscription interface {
	Recv(ctx context.Context) (Notification, error)
	Unsubscribe()
}

// Subscriber opens program subscriptions filtered to matching accounts.
type Subscriber interface {
	Subscribe(ctx context.Context, programID solana.PublicKey, filters []solanarpc.RPCFilter) (Subscription, error)
}

var _ RPC = (*solanarpc.Client)(nil)
