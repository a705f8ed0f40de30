package merkle

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/malbeclabs/airdrop/indexer/pkg/account"
)

// Leaf is a claimant's node together with the distributor it belongs to.
type Leaf struct {
	Distributor solana.PublicKey
	Version     uint64
	Node        Node
}

// DistributorInfo summarizes one loaded tree and its distributor address.
type DistributorInfo struct {
	Address       solana.PublicKey
	Version       uint64
	Root          solana.Hash
	MaxNumNodes   uint64
	MaxTotalClaim uint64
}

// Index maps every claimant across a set of trees to its leaf. It is built
// once and shared read-only.
type Index struct {
	leaves        map[solana.PublicKey]Leaf
	distributors  []DistributorInfo
	maxNumNodes   uint64
	maxTotalClaim uint64
}

// LoadIndex reads every *.json tree in dir, in lexical order, and indexes it
// under the distributor derived from programID, mint and the tree version.
func LoadIndex(log *slog.Logger, dir string, programID, mint solana.PublicKey) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read merkle tree directory %s: %w", dir, err)
	}

	var trees []*Tree
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		t, err := ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		log.Info("merkle: loaded tree", "file", e.Name(), "version", t.Version, "nodes", t.MaxNumNodes)
		trees = append(trees, t)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("no merkle trees found in %s", dir)
	}
	slices.SortFunc(trees, func(a, b *Tree) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return NewIndex(log, trees, programID, mint)
}

// NewIndex indexes trees in the given order. A claimant present in several
// trees resolves to the last one.
func NewIndex(log *slog.Logger, trees []*Tree, programID, mint solana.PublicKey) (*Index, error) {
	idx := &Index{leaves: make(map[solana.PublicKey]Leaf)}
	versions := make(map[uint64]struct{}, len(trees))

	for _, t := range trees {
		if _, ok := versions[t.Version]; ok {
			return nil, fmt.Errorf("duplicate merkle tree version %d", t.Version)
		}
		versions[t.Version] = struct{}{}

		addr, err := account.DistributorAddress(programID, mint, t.Version)
		if err != nil {
			return nil, err
		}

		nodes := idx.maxNumNodes + t.MaxNumNodes
		total := idx.maxTotalClaim + t.MaxTotalClaim
		if nodes < idx.maxNumNodes || total < idx.maxTotalClaim {
			return nil, fmt.Errorf("merkle tree totals overflow at version %d", t.Version)
		}
		idx.maxNumNodes, idx.maxTotalClaim = nodes, total

		idx.distributors = append(idx.distributors, DistributorInfo{
			Address:       addr,
			Version:       t.Version,
			Root:          t.Root,
			MaxNumNodes:   t.MaxNumNodes,
			MaxTotalClaim: t.MaxTotalClaim,
		})

		for _, n := range t.Nodes {
			if prev, ok := idx.leaves[n.Claimant]; ok {
				log.Warn("merkle: claimant present in multiple trees, using latest",
					"claimant", n.Claimant.String(), "previous_version", prev.Version, "version", t.Version)
			}
			idx.leaves[n.Claimant] = Leaf{Distributor: addr, Version: t.Version, Node: n}
		}
	}

	slices.SortFunc(idx.distributors, func(a, b DistributorInfo) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return idx, nil
}

// GetLeaf returns the leaf of claimant, if any tree contains it.
func (i *Index) GetLeaf(claimant solana.PublicKey) (Leaf, bool) {
	l, ok := i.leaves[claimant]
	return l, ok
}

// Distributors returns the indexed distributors ordered by version.
func (i *Index) Distributors() []DistributorInfo {
	return slices.Clone(i.distributors)
}

// DistributorAddresses returns the distributor addresses ordered by version.
func (i *Index) DistributorAddresses() []solana.PublicKey {
	out := make([]solana.PublicKey, len(i.distributors))
	for j, d := range i.distributors {
		out[j] = d.Address
	}
	return out
}

func (i *Index) MaxNumNodes() uint64   { return i.maxNumNodes }
func (i *Index) MaxTotalClaim() uint64 { return i.maxTotalClaim }

// Len returns the number of distinct claimants.
func (i *Index) Len() int { return len(i.leaves) }
