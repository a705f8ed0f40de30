package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
)

// ProofOutput is a claimant's leaf, proof and the accounts a claim touches.
type ProofOutput struct {
	Claimant       string   `json:"claimant"`
	Distributor    string   `json:"distributor"`
	ClaimStatus    string   `json:"claim_status"`
	AirdropVersion uint64   `json:"airdrop_version"`
	Amount         uint64   `json:"amount"`
	LockedAmount   uint64   `json:"locked_amount"`
	Proof          []string `json:"proof"`
	Verified       bool     `json:"verified"`
}

// PrintProof writes claimant's proof from the trees in dir as JSON. Proof
// hashes are base58 encoded.
func PrintProof(log *slog.Logger, w io.Writer, dir string, programID, mint, claimant solana.PublicKey) error {
	idx, err := merkle.LoadIndex(log, dir, programID, mint)
	if err != nil {
		return err
	}
	leaf, ok := idx.GetLeaf(claimant)
	if !ok {
		return fmt.Errorf("claimant %s is not in any tree", claimant)
	}

	var root solana.Hash
	for _, d := range idx.Distributors() {
		if d.Address.Equals(leaf.Distributor) {
			root = d.Root
			break
		}
	}

	claimStatus, err := account.ClaimStatusAddress(programID, claimant, leaf.Distributor)
	if err != nil {
		return err
	}

	out := ProofOutput{
		Claimant:       claimant.String(),
		Distributor:    leaf.Distributor.String(),
		ClaimStatus:    claimStatus.String(),
		AirdropVersion: leaf.Version,
		Amount:         leaf.Node.UnlockedAmount,
		LockedAmount:   leaf.Node.LockedAmount,
		Proof:          make([]string, 0, len(leaf.Node.Proof)),
		Verified:       merkle.Verify(leaf.Node.Proof, [32]byte(root), merkle.LeafHash(leaf.Node)),
	}
	for _, h := range leaf.Node.Proof {
		out.Proof = append(out.Proof, base58.Encode(h[:]))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
