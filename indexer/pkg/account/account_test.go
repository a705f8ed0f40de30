package account

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	airdroptesting "github.com/malbeclabs/airdrop/utils/pkg/testing"
)

type layoutBuilder struct {
	buf bytes.Buffer
}

func (b *layoutBuilder) raw(p []byte) *layoutBuilder { b.buf.Write(p); return b }
func (b *layoutBuilder) key(k solana.PublicKey) *layoutBuilder {
	b.buf.Write(k.Bytes())
	return b
}
func (b *layoutBuilder) u8(v uint8) *layoutBuilder { b.buf.WriteByte(v); return b }
func (b *layoutBuilder) u64(v uint64) *layoutBuilder {
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}
func (b *layoutBuilder) i64(v int64) *layoutBuilder {
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}
func (b *layoutBuilder) flag(v bool) *layoutBuilder {
	if v {
		return b.u8(1)
	}
	return b.u8(0)
}
func (b *layoutBuilder) bytes() []byte { return b.buf.Bytes() }

func encodeClaimStatus(cs ClaimStatus) []byte {
	b := &layoutBuilder{}
	return b.raw(ClaimStatusDiscriminator[:]).
		key(cs.Claimant).
		u64(cs.LockedAmount).
		u64(cs.LockedAmountWithdrawn).
		u64(cs.UnlockedAmount).
		u64(cs.UnlockedAmountClaimed).
		flag(cs.Closable).
		key(cs.Distributor).
		bytes()
}

func encodeDistributor(d Distributor) []byte {
	b := &layoutBuilder{}
	return b.raw(DistributorDiscriminator[:]).
		u8(d.Bump).
		u64(d.Version).
		raw(d.Root[:]).
		key(d.Mint).
		key(d.TokenVault).
		u64(d.MaxTotalClaim).
		u64(d.MaxNumNodes).
		u64(d.TotalAmountClaimed).
		u64(d.TotalAmountForgone).
		u64(d.NumNodesClaimed).
		i64(d.StartTs).
		i64(d.EndTs).
		i64(d.ClawbackStartTs).
		key(d.ClawbackReceiver).
		key(d.Admin).
		flag(d.ClawedBack).
		u64(d.EnableSlot).
		flag(d.Closable).
		raw(make([]byte, 64)).
		bytes()
}

func TestAirdrop_Account_Discriminators(t *testing.T) {
	t.Parallel()

	sum := sha256.Sum256([]byte("account:ClaimStatus"))
	require.Equal(t, sum[:8], ClaimStatusDiscriminator[:])
	sum = sha256.Sum256([]byte("account:MerkleDistributor"))
	require.Equal(t, sum[:8], DistributorDiscriminator[:])
	require.NotEqual(t, ClaimStatusDiscriminator, DistributorDiscriminator)
}

func TestAirdrop_Account_DecodeClaimStatus(t *testing.T) {
	t.Parallel()

	keys := airdroptesting.PublicKeys(2)
	want := ClaimStatus{
		Claimant:              keys[0],
		LockedAmount:          1_000,
		LockedAmountWithdrawn: 250,
		UnlockedAmount:        500,
		UnlockedAmountClaimed: 400,
		Closable:              true,
		Distributor:           keys[1],
	}

	t.Run("decodes all fields", func(t *testing.T) {
		t.Parallel()
		got, err := DecodeClaimStatus(encodeClaimStatus(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("distributor sits at the filter offset", func(t *testing.T) {
		t.Parallel()
		data := encodeClaimStatus(want)
		require.Equal(t, keys[1].Bytes(), data[ClaimStatusDistributorOffset:ClaimStatusDistributorOffset+32])
	})

	t.Run("ignores trailing bytes", func(t *testing.T) {
		t.Parallel()
		data := append(encodeClaimStatus(want), 0xff, 0xff, 0xff)
		got, err := DecodeClaimStatus(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("rejects wrong discriminator", func(t *testing.T) {
		t.Parallel()
		data := encodeClaimStatus(want)
		data[0] ^= 0xff
		_, err := DecodeClaimStatus(data)
		require.ErrorIs(t, err, ErrDecode)
	})

	t.Run("rejects truncated data", func(t *testing.T) {
		t.Parallel()
		data := encodeClaimStatus(want)
		for _, n := range []int{0, 4, 8, 8 + 10, 40, 8 + 32 + 32 + 1 + 10, len(data) - 1} {
			_, err := DecodeClaimStatus(data[:n])
			require.ErrorIs(t, err, ErrDecode, "length %d", n)
		}
	})

	t.Run("rejects invalid bool", func(t *testing.T) {
		t.Parallel()
		data := encodeClaimStatus(want)
		data[ClaimStatusDistributorOffset-1] = 7
		_, err := DecodeClaimStatus(data)
		require.ErrorIs(t, err, ErrDecode)
	})

	t.Run("rejects distributor account", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeClaimStatus(encodeDistributor(Distributor{}))
		require.True(t, errors.Is(err, ErrDecode))
	})
}

func TestAirdrop_Account_DecodeDistributor(t *testing.T) {
	t.Parallel()

	keys := airdroptesting.PublicKeys(4)
	want := Distributor{
		Bump:               254,
		Version:            3,
		Root:               solana.HashFromBytes(bytes.Repeat([]byte{9}, 32)),
		Mint:               keys[0],
		TokenVault:         keys[1],
		MaxTotalClaim:      1_000_000,
		MaxNumNodes:        12,
		TotalAmountClaimed: 7_000,
		TotalAmountForgone: 3_000,
		NumNodesClaimed:    2,
		StartTs:            1_700_000_000,
		EndTs:              1_800_000_000,
		ClawbackStartTs:    1_900_000_000,
		ClawbackReceiver:   keys[2],
		Admin:              keys[3],
		ClawedBack:         false,
		EnableSlot:         123_456,
		Closable:           true,
	}

	t.Run("decodes all fields", func(t *testing.T) {
		t.Parallel()
		got, err := DecodeDistributor(encodeDistributor(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("negative timestamps", func(t *testing.T) {
		t.Parallel()
		d := want
		d.StartTs = -5
		got, err := DecodeDistributor(encodeDistributor(d))
		require.NoError(t, err)
		require.Equal(t, int64(-5), got.StartTs)
	})

	t.Run("rejects truncated data", func(t *testing.T) {
		t.Parallel()
		data := encodeDistributor(want)
		for _, n := range []int{0, 8, 8 + 1 + 8 + 10, 8 + 1 + 8 + 32 + 10, 100, len(data) - 1} {
			_, err := DecodeDistributor(data[:n])
			require.ErrorIs(t, err, ErrDecode, "length %d", n)
		}
	})

	t.Run("rejects claim status account", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeDistributor(encodeClaimStatus(ClaimStatus{}))
		require.ErrorIs(t, err, ErrDecode)
	})

	t.Run("clawback window", func(t *testing.T) {
		t.Parallel()
		require.False(t, want.ClawbackStarted(want.ClawbackStartTs-1))
		require.True(t, want.ClawbackStarted(want.ClawbackStartTs))
	})
}

func TestAirdrop_Account_ClaimStatusFilters(t *testing.T) {
	t.Parallel()

	distributor := airdroptesting.PublicKey(7)
	filters := ClaimStatusFilters(distributor)
	require.Len(t, filters, 2)
	require.Equal(t, uint64(0), filters[0].Memcmp.Offset)
	require.Equal(t, ClaimStatusDiscriminator[:], []byte(filters[0].Memcmp.Bytes))
	require.Equal(t, uint64(ClaimStatusDistributorOffset), filters[1].Memcmp.Offset)
	require.Equal(t, distributor.Bytes(), []byte(filters[1].Memcmp.Bytes))
}

func TestAirdrop_Account_PDA(t *testing.T) {
	t.Parallel()

	programID := airdroptesting.PublicKey(1)
	mint := airdroptesting.PublicKey(2)

	t.Run("distributor address is deterministic per version", func(t *testing.T) {
		t.Parallel()
		a, err := DistributorAddress(programID, mint, 0)
		require.NoError(t, err)
		again, err := DistributorAddress(programID, mint, 0)
		require.NoError(t, err)
		b, err := DistributorAddress(programID, mint, 1)
		require.NoError(t, err)
		require.Equal(t, a, again)
		require.NotEqual(t, a, b)
	})

	t.Run("claim status address depends on claimant and distributor", func(t *testing.T) {
		t.Parallel()
		distributor, err := DistributorAddress(programID, mint, 0)
		require.NoError(t, err)
		a, err := ClaimStatusAddress(programID, airdroptesting.PublicKey(10), distributor)
		require.NoError(t, err)
		b, err := ClaimStatusAddress(programID, airdroptesting.PublicKey(11), distributor)
		require.NoError(t, err)
		require.NotEqual(t, a, b)

		manual, _, err := solana.FindProgramAddress([][]byte{[]byte("ClaimStatus"), airdroptesting.PublicKey(10).Bytes(), distributor.Bytes()}, programID)
		require.NoError(t, err)
		require.Equal(t, manual, a)
	})
}

func TestAirdrop_Account_MarshalBinary(t *testing.T) {
	t.Parallel()

	keys := airdroptesting.PublicKeys(3)

	t.Run("claim status matches layout", func(t *testing.T) {
		t.Parallel()
		cs := ClaimStatus{Claimant: keys[0], LockedAmount: 1, LockedAmountWithdrawn: 2, UnlockedAmount: 3, UnlockedAmountClaimed: 4, Closable: true, Distributor: keys[1]}
		data, err := cs.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, encodeClaimStatus(cs), data)

		got, err := DecodeClaimStatus(data)
		require.NoError(t, err)
		require.Equal(t, cs, got)
	})

	t.Run("distributor matches layout without reserved space", func(t *testing.T) {
		t.Parallel()
		d := Distributor{Bump: 1, Version: 2, Mint: keys[0], Admin: keys[2], StartTs: 10, EndTs: 20, ClawedBack: true, EnableSlot: 9}
		data, err := d.MarshalBinary()
		require.NoError(t, err)
		full := encodeDistributor(d)
		require.Equal(t, full[:len(full)-64], data)

		got, err := DecodeDistributor(data)
		require.NoError(t, err)
		require.Equal(t, d, got)
	})
}
