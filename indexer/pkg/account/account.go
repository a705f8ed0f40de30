// Package account decodes the merkle distributor program's on-chain accounts.
//
// Accounts use the Anchor layout: an 8-byte discriminator, sha256("account:<Name>")[:8],
// followed by the fields in declaration order, borsh-encoded little-endian with no
// padding. Trailing bytes (reserved space) are ignored.
package account

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrDecode is wrapped by every decoding failure.
var ErrDecode = errors.New("account decode error")

var (
	ClaimStatusDiscriminator = discriminator("ClaimStatus")
	DistributorDiscriminator = discriminator("MerkleDistributor")
)

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// fieldReader reads fixed-layout fields in order and remembers the first
// error, so decoders can read every field and check once at the end.
type fieldReader struct {
	dec *bin.Decoder
	err error
}

func newFieldReader(data []byte, want [8]byte, name string) *fieldReader {
	r := &fieldReader{dec: bin.NewBorshDecoder(data)}
	typeID, err := r.dec.ReadTypeID()
	if err != nil {
		r.err = fmt.Errorf("%w: %s: reading discriminator: %v", ErrDecode, name, err)
		return r
	}
	if !typeID.Equal(want[:]) {
		r.err = fmt.Errorf("%w: %s: discriminator mismatch: got %x", ErrDecode, name, typeID[:])
	}
	return r
}

func (r *fieldReader) fail(field string, err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: field %s: %v", ErrDecode, field, err)
	}
}

func (r *fieldReader) pubkey(field string) solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.fail(field, err)
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (r *fieldReader) hash(field string) solana.Hash {
	if r.err != nil {
		return solana.Hash{}
	}
	b, err := r.dec.ReadNBytes(32)
	if err != nil {
		r.fail(field, err)
		return solana.Hash{}
	}
	return solana.HashFromBytes(b)
}

func (r *fieldReader) u8(field string) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.fail(field, err)
	return v
}

func (r *fieldReader) u64(field string) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	r.fail(field, err)
	return v
}

func (r *fieldReader) i64(field string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(binary.LittleEndian)
	r.fail(field, err)
	return v
}

func (r *fieldReader) boolean(field string) bool {
	if r.err != nil {
		return false
	}
	v, err := r.dec.ReadUint8()
	r.fail(field, err)
	if r.err == nil && v > 1 {
		r.fail(field, fmt.Errorf("invalid bool byte %d", v))
	}
	return v == 1
}
