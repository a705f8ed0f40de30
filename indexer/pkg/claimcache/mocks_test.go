package claimcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
)

var errStreamClosed = errors.New("stream closed")

type mockRPC struct {
	getProgramAccountsFunc  func(context.Context, solana.PublicKey, *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error)
	getMultipleAccountsFunc func(context.Context, []solana.PublicKey, *solanarpc.GetMultipleAccountsOpts) (*solanarpc.GetMultipleAccountsResult, error)
}

func (m *mockRPC) GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
	if m.getProgramAccountsFunc != nil {
		return m.getProgramAccountsFunc(ctx, programID, opts)
	}
	return solanarpc.GetProgramAccountsResult{}, nil
}

func (m *mockRPC) GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *solanarpc.GetMultipleAccountsOpts) (*solanarpc.GetMultipleAccountsResult, error) {
	if m.getMultipleAccountsFunc != nil {
		return m.getMultipleAccountsFunc(ctx, accounts, opts)
	}
	return &solanarpc.GetMultipleAccountsResult{Value: make([]*solanarpc.Account, len(accounts))}, nil
}

type mockSubscriber struct {
	subscribeFunc func(context.Context, solana.PublicKey, []solanarpc.RPCFilter) (Subscription, error)
}

func (m *mockSubscriber) Subscribe(ctx context.Context, programID solana.PublicKey, filters []solanarpc.RPCFilter) (Subscription, error) {
	if m.subscribeFunc != nil {
		return m.subscribeFunc(ctx, programID, filters)
	}
	return newFakeSubscription(), nil
}

// fakeSubscription yields queued notifications and ends when its channel is
// closed or it is unsubscribed.
type fakeSubscription struct {
	ch   chan Notification
	once sync.Once
	done chan struct{}
}

func newFakeSubscription(ns ...Notification) *fakeSubscription {
	s := &fakeSubscription{ch: make(chan Notification, len(ns)+16), done: make(chan struct{})}
	for _, n := range ns {
		s.ch <- n
	}
	return s
}

// closedSubscription yields ns and then ends.
func closedSubscription(ns ...Notification) *fakeSubscription {
	s := newFakeSubscription(ns...)
	close(s.ch)
	return s
}

func (s *fakeSubscription) Recv(ctx context.Context) (Notification, error) {
	select {
	case n, ok := <-s.ch:
		if !ok {
			return Notification{}, errStreamClosed
		}
		return n, nil
	case <-s.done:
		return Notification{}, errStreamClosed
	case <-ctx.Done():
		return Notification{}, ctx.Err()
	}
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.done) })
}

func claimStatusData(t *testing.T, cs account.ClaimStatus) []byte {
	t.Helper()
	data, err := cs.MarshalBinary()
	require.NoError(t, err)
	return data
}

func distributorAccount(t *testing.T, d account.Distributor) *solanarpc.Account {
	t.Helper()
	data, err := d.MarshalBinary()
	require.NoError(t, err)
	return &solanarpc.Account{Data: solanarpc.DataBytesOrJSONFromBytes(data)}
}

func keyedClaimStatus(t *testing.T, address solana.PublicKey, cs account.ClaimStatus) *solanarpc.KeyedAccount {
	t.Helper()
	return &solanarpc.KeyedAccount{
		Pubkey:  address,
		Account: &solanarpc.Account{Data: solanarpc.DataBytesOrJSONFromBytes(claimStatusData(t, cs))},
	}
}
