package account

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	distributorSeed = []byte("MerkleDistributor")
	claimStatusSeed = []byte("ClaimStatus")
)

// DistributorAddress derives the distributor PDA for a mint and airdrop version.
func DistributorAddress(programID, mint solana.PublicKey, version uint64) (solana.PublicKey, error) {
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], version)
	addr, _, err := solana.FindProgramAddress([][]byte{distributorSeed, mint.Bytes(), v[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive distributor address for version %d: %w", version, err)
	}
	return addr, nil
}

// ClaimStatusAddress derives the ClaimStatus PDA of a claimant in a distributor.
func ClaimStatusAddress(programID, claimant, distributor solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{claimStatusSeed, claimant.Bytes(), distributor.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive claim status address: %w", err)
	}
	return addr, nil
}
