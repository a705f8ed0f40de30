package account

import "github.com/gagliardetto/solana-go"

// Distributor is the on-chain MerkleDistributor account for one airdrop
// version.
type Distributor struct {
	Bump               uint8            `json:"bump"`
	Version            uint64           `json:"version"`
	Root               solana.Hash      `json:"root"`
	Mint               solana.PublicKey `json:"mint"`
	TokenVault         solana.PublicKey `json:"token_vault"`
	MaxTotalClaim      uint64           `json:"max_total_claim"`
	MaxNumNodes        uint64           `json:"max_num_nodes"`
	TotalAmountClaimed uint64           `json:"total_amount_claimed"`
	TotalAmountForgone uint64           `json:"total_amount_forgone"`
	NumNodesClaimed    uint64           `json:"num_nodes_claimed"`
	StartTs            int64            `json:"start_ts"`
	EndTs              int64            `json:"end_ts"`
	ClawbackStartTs    int64            `json:"clawback_start_ts"`
	ClawbackReceiver   solana.PublicKey `json:"clawback_receiver"`
	Admin              solana.PublicKey `json:"admin"`
	ClawedBack         bool             `json:"clawed_back"`
	EnableSlot         uint64           `json:"enable_slot"`
	Closable           bool             `json:"closable"`
}

// DecodeDistributor decodes a raw MerkleDistributor account.
func DecodeDistributor(data []byte) (Distributor, error) {
	r := newFieldReader(data, DistributorDiscriminator, "MerkleDistributor")
	d := Distributor{
		Bump:               r.u8("bump"),
		Version:            r.u64("version"),
		Root:               r.hash("root"),
		Mint:               r.pubkey("mint"),
		TokenVault:         r.pubkey("token_vault"),
		MaxTotalClaim:      r.u64("max_total_claim"),
		MaxNumNodes:        r.u64("max_num_nodes"),
		TotalAmountClaimed: r.u64("total_amount_claimed"),
		TotalAmountForgone: r.u64("total_amount_forgone"),
		NumNodesClaimed:    r.u64("num_nodes_claimed"),
		StartTs:            r.i64("start_ts"),
		EndTs:              r.i64("end_ts"),
		ClawbackStartTs:    r.i64("clawback_start_ts"),
		ClawbackReceiver:   r.pubkey("clawback_receiver"),
		Admin:              r.pubkey("admin"),
		ClawedBack:         r.boolean("clawed_back"),
		EnableSlot:         r.u64("enable_slot"),
		Closable:           r.boolean("closable"),
	}
	if r.err != nil {
		return Distributor{}, r.err
	}
	return d, nil
}

// ClawbackStarted reports whether the clawback window has opened at ts.
func (d Distributor) ClawbackStarted(ts int64) bool {
	return ts >= d.ClawbackStartTs
}
