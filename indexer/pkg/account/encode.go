package account

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type fieldWriter struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newFieldWriter(disc [8]byte) *fieldWriter {
	w := &fieldWriter{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	w.raw(disc[:])
	return w
}

func (w *fieldWriter) raw(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *fieldWriter) pubkey(k solana.PublicKey) { w.raw(k[:]) }

func (w *fieldWriter) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *fieldWriter) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, binary.LittleEndian)
	}
}

func (w *fieldWriter) i64(v int64) {
	if w.err == nil {
		w.err = w.enc.WriteInt64(v, binary.LittleEndian)
	}
}

func (w *fieldWriter) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *fieldWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// MarshalBinary encodes cs in the on-chain account layout.
func (cs ClaimStatus) MarshalBinary() ([]byte, error) {
	w := newFieldWriter(ClaimStatusDiscriminator)
	w.pubkey(cs.Claimant)
	w.u64(cs.LockedAmount)
	w.u64(cs.LockedAmountWithdrawn)
	w.u64(cs.UnlockedAmount)
	w.u64(cs.UnlockedAmountClaimed)
	w.boolean(cs.Closable)
	w.pubkey(cs.Distributor)
	return w.bytes()
}

// MarshalBinary encodes d in the on-chain account layout, without the
// reserved trailing space.
func (d Distributor) MarshalBinary() ([]byte, error) {
	w := newFieldWriter(DistributorDiscriminator)
	w.u8(d.Bump)
	w.u64(d.Version)
	w.raw(d.Root[:])
	w.pubkey(d.Mint)
	w.pubkey(d.TokenVault)
	w.u64(d.MaxTotalClaim)
	w.u64(d.MaxNumNodes)
	w.u64(d.TotalAmountClaimed)
	w.u64(d.TotalAmountForgone)
	w.u64(d.NumNodesClaimed)
	w.i64(d.StartTs)
	w.i64(d.EndTs)
	w.i64(d.ClawbackStartTs)
	w.pubkey(d.ClawbackReceiver)
	w.pubkey(d.Admin)
	w.boolean(d.ClawedBack)
	w.u64(d.EnableSlot)
	w.boolean(d.Closable)
	return w.bytes()
}
