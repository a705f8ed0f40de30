package claimcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// WSSubscriber subscribes over the Solana websocket API. Each subscription
// owns its own websocket connection.
type WSSubscriber struct {
	URL        string
	Commitment solanarpc.CommitmentType
}

func (s *WSSubscriber) Subscribe(ctx context.Context, programID solana.PublicKey, filters []solanarpc.RPCFilter) (Subscription, error) {
	client, err := ws.Connect(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.URL, err)
	}

	commitment := s.Commitment
	if commitment == "" {
		commitment = solanarpc.CommitmentConfirmed
	}
	sub, err := client.ProgramSubscribeWithOpts(programID, commitment, solana.EncodingBase64, filters)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to program %s: %w", programID, err)
	}
	return &wsSubscription{client: client, sub: sub}, nil
}

type wsSubscription struct {
	client *ws.Client
	sub    *ws.ProgramSubscription
}

func (s *wsSubscription) Recv(ctx context.Context) (Notification, error) {
	res, err := s.sub.Recv(ctx)
	if err != nil {
		return Notification{}, err
	}
	if res == nil {
		return Notification{}, errors.New("empty program notification")
	}
	n := Notification{Slot: res.Context.Slot, Pubkey: res.Value.Pubkey}
	// Closed accounts arrive without data and fail to decode downstream.
	if res.Value.Account != nil && res.Value.Account.Data != nil {
		n.Data = res.Value.Account.Data.GetBinary()
	}
	return n, nil
}

func (s *wsSubscription) Unsubscribe() {
	s.sub.Unsubscribe()
	s.client.Close()
}
