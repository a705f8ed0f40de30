// Package merkle builds and verifies the airdrop merkle trees.
//
// A leaf commits to (claimant, unlocked amount, locked amount). Leaf and
// intermediate hashes are domain separated with a one byte prefix, and
// intermediate nodes hash their children in sorted order so proofs carry no
// left/right flags.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/gagliardetto/solana-go"
)

const (
	leafPrefix         = 0x00
	intermediatePrefix = 0x01

	// MaxNodes bounds a tree to height 32.
	MaxNodes = math.MaxUint32
)

// Node is one claimant's entitlement in a tree.
type Node struct {
	Claimant       solana.PublicKey
	UnlockedAmount uint64
	LockedAmount   uint64
	Proof          [][32]byte
}

// ContentHash is sha256(claimant || unlocked_le64 || locked_le64).
func (n Node) ContentHash() [32]byte {
	var buf [solana.PublicKeyLength + 16]byte
	copy(buf[:], n.Claimant[:])
	binary.LittleEndian.PutUint64(buf[32:], n.UnlockedAmount)
	binary.LittleEndian.PutUint64(buf[40:], n.LockedAmount)
	return sha256.Sum256(buf[:])
}

// TotalAmount returns unlocked + locked, or false on overflow.
func (n Node) TotalAmount() (uint64, bool) {
	sum := n.UnlockedAmount + n.LockedAmount
	return sum, sum >= n.UnlockedAmount
}

// LeafHash returns the prefixed leaf hash of n, the value Verify expects.
func LeafHash(n Node) [32]byte {
	content := n.ContentHash()
	return hashLeaf(content)
}

func hashLeaf(content [32]byte) [32]byte {
	var buf [33]byte
	buf[0] = leafPrefix
	copy(buf[1:], content[:])
	return sha256.Sum256(buf[:])
}

func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var buf [65]byte
	buf[0] = intermediatePrefix
	copy(buf[1:], a[:])
	copy(buf[33:], b[:])
	return sha256.Sum256(buf[:])
}

// Verify reports whether leaf, a prefixed leaf hash, is included under root.
func Verify(proof [][32]byte, root [32]byte, leaf [32]byte) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

// Tree is a built airdrop tree for one distributor version. It is read-only
// once built or loaded.
type Tree struct {
	Root          solana.Hash
	Version       uint64
	MaxNumNodes   uint64
	MaxTotalClaim uint64
	Nodes         []Node
}

type buildOptions struct {
	log *slog.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithLogger sets the logger used to report merged duplicate claimants.
func WithLogger(log *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.log = log }
}

// Build merges duplicate claimants, orders the leaves by claimant, computes
// the root and every proof, and validates the result.
//
// Duplicates sum their unlocked amounts and keep the locked amount of the
// first occurrence.
func Build(entries []Node, version uint64, opts ...BuildOption) (*Tree, error) {
	o := buildOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if len(entries) == 0 {
		return nil, validationErrorf("tree version %d has no nodes", version)
	}

	nodes, err := mergeDuplicates(o.log, entries)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(nodes, func(a, b Node) int {
		return bytes.Compare(a.Claimant[:], b.Claimant[:])
	})

	leaves := make([][32]byte, len(nodes))
	for i := range nodes {
		leaves[i] = LeafHash(nodes[i])
	}
	root, proofs := computeProofs(leaves)

	var total uint64
	for i := range nodes {
		nodes[i].Proof = proofs[i]
		next := total + nodes[i].UnlockedAmount
		if next < total {
			return nil, validationErrorf("max total claim overflows u64")
		}
		total = next
	}

	t := &Tree{
		Root:          solana.Hash(root),
		Version:       version,
		MaxNumNodes:   uint64(len(nodes)),
		MaxTotalClaim: total,
		Nodes:         nodes,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	o.log.Debug("merkle: built tree", "version", version, "nodes", t.MaxNumNodes, "max_total_claim", t.MaxTotalClaim, "root", t.Root.String())
	return t, nil
}

func mergeDuplicates(log *slog.Logger, entries []Node) ([]Node, error) {
	seen := make(map[solana.PublicKey]int, len(entries))
	nodes := make([]Node, 0, len(entries))
	for _, e := range entries {
		i, ok := seen[e.Claimant]
		if !ok {
			seen[e.Claimant] = len(nodes)
			nodes = append(nodes, Node{
				Claimant:       e.Claimant,
				UnlockedAmount: e.UnlockedAmount,
				LockedAmount:   e.LockedAmount,
			})
			continue
		}
		sum := nodes[i].UnlockedAmount + e.UnlockedAmount
		if sum < nodes[i].UnlockedAmount {
			return nil, validationErrorf("unlocked amount overflows u64 for duplicate claimant %s", e.Claimant)
		}
		log.Warn("merkle: duplicate claimant found, combining", "claimant", e.Claimant.String())
		nodes[i].UnlockedAmount = sum
	}
	return nodes, nil
}

// computeProofs returns the root over leaves and the proof of each leaf. An
// odd node at any level is paired with itself.
func computeProofs(leaves [][32]byte) ([32]byte, [][][32]byte) {
	proofs := make([][][32]byte, len(leaves))
	positions := make([]int, len(leaves))
	for i := range positions {
		positions[i] = i
	}

	level := leaves
	for len(level) > 1 {
		for i, pos := range positions {
			sibling := pos ^ 1
			if sibling >= len(level) {
				sibling = pos
			}
			proofs[i] = append(proofs[i], level[sibling])
			positions[i] = pos / 2
		}

		next := make([][32]byte, 0, (len(level)+1)/2)
		for j := 0; j < len(level); j += 2 {
			right := level[j]
			if j+1 < len(level) {
				right = level[j+1]
			}
			next = append(next, hashPair(level[j], right))
		}
		level = next
	}

	for i := range proofs {
		if proofs[i] == nil {
			proofs[i] = [][32]byte{}
		}
	}
	return level[0], proofs
}

// Validate checks the tree's structural invariants and that every proof
// verifies against the root.
func (t *Tree) Validate() error {
	if t.MaxNumNodes > MaxNodes {
		return validationErrorf("max num nodes %d is greater than 2^32 - 1", t.MaxNumNodes)
	}
	if uint64(len(t.Nodes)) != t.MaxNumNodes {
		return validationErrorf("tree nodes length %d does not match max_num_nodes %d", len(t.Nodes), t.MaxNumNodes)
	}

	seen := make(map[solana.PublicKey]struct{}, len(t.Nodes))
	var sum uint64
	for _, n := range t.Nodes {
		if _, ok := seen[n.Claimant]; ok {
			return validationErrorf("duplicate claimant %s", n.Claimant)
		}
		seen[n.Claimant] = struct{}{}

		next := sum + n.UnlockedAmount
		if next < sum {
			return validationErrorf("tree nodes sum overflows u64")
		}
		sum = next
	}
	if sum != t.MaxTotalClaim {
		return validationErrorf("tree nodes sum %d does not match max_total_claim %d", sum, t.MaxTotalClaim)
	}

	root := [32]byte(t.Root)
	for _, n := range t.Nodes {
		if !Verify(n.Proof, root, LeafHash(n)) {
			return validationErrorf("invalid merkle proof for claimant %s", n.Claimant)
		}
	}
	return nil
}

// Node returns the node of claimant, if present.
func (t *Tree) Node(claimant solana.PublicKey) (Node, bool) {
	i, ok := slices.BinarySearchFunc(t.Nodes, claimant, func(n Node, k solana.PublicKey) int {
		return bytes.Compare(n.Claimant[:], k[:])
	})
	if ok {
		return t.Nodes[i], true
	}
	// Trees loaded from files written by other tools need not be sorted.
	for _, n := range t.Nodes {
		if n.Claimant == claimant {
			return n, true
		}
	}
	return Node{}, false
}

func (t *Tree) String() string {
	return fmt.Sprintf("tree(version=%d, nodes=%d, root=%s)", t.Version, t.MaxNumNodes, t.Root)
}
