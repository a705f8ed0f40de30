package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	airdroptesting "github.com/malbeclabs/airdrop/utils/pkg/testing"
)

func testNodes(n int) []Node {
	nodes := make([]Node, n)
	for i, k := range airdroptesting.PublicKeys(n) {
		nodes[i] = Node{Claimant: k, UnlockedAmount: uint64(100 * (i + 1)), LockedAmount: uint64(7 * i)}
	}
	return nodes
}

func TestAirdrop_Merkle_Hashing(t *testing.T) {
	t.Parallel()

	t.Run("content hash layout", func(t *testing.T) {
		t.Parallel()
		n := Node{Claimant: airdroptesting.PublicKey(1), UnlockedAmount: 5, LockedAmount: 9}
		var buf []byte
		buf = append(buf, n.Claimant[:]...)
		buf = binary.LittleEndian.AppendUint64(buf, 5)
		buf = binary.LittleEndian.AppendUint64(buf, 9)
		require.Equal(t, sha256.Sum256(buf), n.ContentHash())

		content := n.ContentHash()
		require.Equal(t, sha256.Sum256(append([]byte{0}, content[:]...)), LeafHash(n))
	})

	t.Run("pair hash is order independent", func(t *testing.T) {
		t.Parallel()
		a := sha256.Sum256([]byte("a"))
		b := sha256.Sum256([]byte("b"))
		require.Equal(t, hashPair(a, b), hashPair(b, a))

		lo, hi := a, b
		if bytes.Compare(lo[:], hi[:]) > 0 {
			lo, hi = hi, lo
		}
		want := sha256.Sum256(slices.Concat([]byte{1}, lo[:], hi[:]))
		require.Equal(t, want, hashPair(a, b))
	})
}

func TestAirdrop_Merkle_Build(t *testing.T) {
	t.Parallel()

	t.Run("single leaf", func(t *testing.T) {
		t.Parallel()
		n := Node{Claimant: solana.PublicKey{}, UnlockedAmount: 2}
		tree, err := Build([]Node{n}, 0, WithLogger(airdroptesting.NewLogger()))
		require.NoError(t, err)
		require.Equal(t, solana.Hash(LeafHash(n)), tree.Root)
		require.Empty(t, tree.Nodes[0].Proof)
		require.Equal(t, uint64(1), tree.MaxNumNodes)
		require.Equal(t, uint64(2), tree.MaxTotalClaim)
		require.True(t, Verify(tree.Nodes[0].Proof, [32]byte(tree.Root), LeafHash(n)))
	})

	t.Run("two leaves", func(t *testing.T) {
		t.Parallel()
		tree, err := Build(testNodes(2), 1)
		require.NoError(t, err)
		l0, l1 := LeafHash(tree.Nodes[0]), LeafHash(tree.Nodes[1])
		require.Equal(t, solana.Hash(hashPair(l0, l1)), tree.Root)
		require.Equal(t, [][32]byte{l1}, tree.Nodes[0].Proof)
		require.Equal(t, [][32]byte{l0}, tree.Nodes[1].Proof)
	})

	t.Run("odd sizes verify", func(t *testing.T) {
		t.Parallel()
		for _, size := range []int{3, 5, 7, 9, 33} {
			tree, err := Build(testNodes(size), 0)
			require.NoError(t, err, "size %d", size)
			require.Equal(t, uint64(size), tree.MaxNumNodes)
			for _, n := range tree.Nodes {
				require.True(t, Verify(n.Proof, [32]byte(tree.Root), LeafHash(n)), "size %d", size)
			}
		}
	})

	t.Run("odd node pairs with itself", func(t *testing.T) {
		t.Parallel()
		tree, err := Build(testNodes(3), 0)
		require.NoError(t, err)
		last := tree.Nodes[2]
		require.Len(t, last.Proof, 2)
		require.Equal(t, LeafHash(last), last.Proof[0])
	})

	t.Run("deterministic regardless of input order", func(t *testing.T) {
		t.Parallel()
		nodes := testNodes(6)
		a, err := Build(nodes, 0)
		require.NoError(t, err)

		reversed := slices.Clone(nodes)
		slices.Reverse(reversed)
		b, err := Build(reversed, 0)
		require.NoError(t, err)

		require.Equal(t, a.Root, b.Root)
		require.Equal(t, a.Nodes, b.Nodes)
	})

	t.Run("max total claim excludes locked", func(t *testing.T) {
		t.Parallel()
		tree, err := Build(testNodes(4), 0)
		require.NoError(t, err)
		require.Equal(t, uint64(100+200+300+400), tree.MaxTotalClaim)
	})

	t.Run("duplicates merge", func(t *testing.T) {
		t.Parallel()
		dup := airdroptesting.PublicKey(1)
		other := airdroptesting.PublicKey(2)
		tree, err := Build([]Node{
			{Claimant: dup, UnlockedAmount: 10, LockedAmount: 10},
			{Claimant: dup, UnlockedAmount: 1, LockedAmount: 99},
			{Claimant: other, UnlockedAmount: 0, LockedAmount: 10},
		}, 0)
		require.NoError(t, err)
		require.Len(t, tree.Nodes, 2)

		n, ok := tree.Node(dup)
		require.True(t, ok)
		require.Equal(t, uint64(11), n.UnlockedAmount)
		require.Equal(t, uint64(10), n.LockedAmount)
		require.Equal(t, uint64(11), tree.MaxTotalClaim)
	})

	t.Run("duplicate overflow is rejected", func(t *testing.T) {
		t.Parallel()
		k := airdroptesting.PublicKey(1)
		_, err := Build([]Node{
			{Claimant: k, UnlockedAmount: math.MaxUint64},
			{Claimant: k, UnlockedAmount: 1},
		}, 0)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("total overflow is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := Build([]Node{
			{Claimant: airdroptesting.PublicKey(1), UnlockedAmount: math.MaxUint64},
			{Claimant: airdroptesting.PublicKey(2), UnlockedAmount: 1},
		}, 0)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("empty is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := Build(nil, 0)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestAirdrop_Merkle_Verify(t *testing.T) {
	t.Parallel()

	tree, err := Build(testNodes(5), 0)
	require.NoError(t, err)
	root := [32]byte(tree.Root)
	n := tree.Nodes[1]

	require.True(t, Verify(n.Proof, root, LeafHash(n)))

	t.Run("content hash without prefix fails", func(t *testing.T) {
		t.Parallel()
		require.False(t, Verify(n.Proof, root, n.ContentHash()))
	})

	t.Run("altered amount fails", func(t *testing.T) {
		t.Parallel()
		m := n
		m.UnlockedAmount++
		require.False(t, Verify(n.Proof, root, LeafHash(m)))
	})

	t.Run("tampered proof fails", func(t *testing.T) {
		t.Parallel()
		proof := slices.Clone(n.Proof)
		proof[0][0] ^= 0xff
		require.False(t, Verify(proof, root, LeafHash(n)))
	})

	t.Run("other leaf proof fails", func(t *testing.T) {
		t.Parallel()
		require.False(t, Verify(tree.Nodes[0].Proof, root, LeafHash(tree.Nodes[4])))
	})
}

func TestAirdrop_Merkle_Validate(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) *Tree {
		tree, err := Build(testNodes(4), 2)
		require.NoError(t, err)
		return tree
	}

	tests := []struct {
		name   string
		mutate func(*Tree)
	}{
		{"total mismatch", func(tr *Tree) { tr.MaxTotalClaim++ }},
		{"count mismatch", func(tr *Tree) { tr.MaxNumNodes++ }},
		{"too many nodes", func(tr *Tree) { tr.MaxNumNodes = MaxNodes + 1 }},
		{"duplicate claimant", func(tr *Tree) {
			tr.Nodes[1].Claimant = tr.Nodes[0].Claimant
		}},
		{"wrong root", func(tr *Tree) { tr.Root[0] ^= 0xff }},
		{"altered amount", func(tr *Tree) {
			tr.Nodes[0].UnlockedAmount++
			tr.MaxTotalClaim++
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tree := build(t)
			require.NoError(t, tree.Validate())
			tt.mutate(tree)
			require.ErrorIs(t, tree.Validate(), ErrValidation)
		})
	}
}
