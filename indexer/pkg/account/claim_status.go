package account

import (
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// ClaimStatusDistributorOffset is the byte offset of the distributor field in
// a ClaimStatus account: 8 (discriminator) + 32 + 4*8 + 1.
const ClaimStatusDistributorOffset = 73

// ClaimStatus is created the first time a claimant claims from a distributor
// and is only ever mutated by the program.
type ClaimStatus struct {
	Claimant              solana.PublicKey `json:"claimant"`
	LockedAmount          uint64           `json:"locked_amount"`
	LockedAmountWithdrawn uint64           `json:"locked_amount_withdrawn"`
	UnlockedAmount        uint64           `json:"unlocked_amount"`
	UnlockedAmountClaimed uint64           `json:"unlocked_amount_claimed"`
	Closable              bool             `json:"closable"`
	Distributor           solana.PublicKey `json:"distributor"`
}

// DecodeClaimStatus decodes a raw ClaimStatus account.
func DecodeClaimStatus(data []byte) (ClaimStatus, error) {
	r := newFieldReader(data, ClaimStatusDiscriminator, "ClaimStatus")
	cs := ClaimStatus{
		Claimant:              r.pubkey("claimant"),
		LockedAmount:          r.u64("locked_amount"),
		LockedAmountWithdrawn: r.u64("locked_amount_withdrawn"),
		UnlockedAmount:        r.u64("unlocked_amount"),
		UnlockedAmountClaimed: r.u64("unlocked_amount_claimed"),
		Closable:              r.boolean("closable"),
		Distributor:           r.pubkey("distributor"),
	}
	if r.err != nil {
		return ClaimStatus{}, r.err
	}
	return cs, nil
}

// ClaimStatusFilters selects the ClaimStatus accounts belonging to one
// distributor in getProgramAccounts and programSubscribe.
func ClaimStatusFilters(distributor solana.PublicKey) []solanarpc.RPCFilter {
	return []solanarpc.RPCFilter{
		{
			Memcmp: &solanarpc.RPCFilterMemcmp{
				Offset: 0,
				Bytes:  solana.Base58(ClaimStatusDiscriminator[:]),
			},
		},
		{
			Memcmp: &solanarpc.RPCFilterMemcmp{
				Offset: ClaimStatusDistributorOffset,
				Bytes:  solana.Base58(distributor.Bytes()),
			},
		},
	}
}
