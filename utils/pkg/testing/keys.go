package airdroptesting

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PublicKey returns a deterministic public key derived from seed. Tests use
// it to get stable, distinct claimants without generating keypairs.
func PublicKey(seed int) solana.PublicKey {
	return solana.PublicKeyFromBytes(hashSeed(seed))
}

// PublicKeys returns n distinct deterministic public keys.
func PublicKeys(n int) []solana.PublicKey {
	keys := make([]solana.PublicKey, n)
	for i := range n {
		keys[i] = PublicKey(i)
	}
	return keys
}

func hashSeed(seed int) []byte {
	sum := sha256.Sum256([]byte(fmt.Sprintf("airdrop-test-key-%d", seed)))
	return sum[:]
}
