package merkle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// claimantJSON accepts a claimant as either a 32 element byte array or a
// base58 string, and always writes the array form.
type claimantJSON solana.PublicKey

func (c claimantJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal([32]byte(c))
}

func (c *claimantJSON) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return fmt.Errorf("invalid claimant %q: %w", s, err)
		}
		*c = claimantJSON(pk)
		return nil
	}
	var raw [32]byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid claimant: %w", err)
	}
	*c = claimantJSON(raw)
	return nil
}

type nodeJSON struct {
	Claimant     claimantJSON `json:"claimant"`
	Amount       uint64       `json:"amount"`
	LockedAmount *uint64      `json:"locked_amount"`
	Proof        [][32]byte   `json:"proof"`
}

type treeJSON struct {
	MerkleRoot     [32]byte   `json:"merkle_root"`
	AirdropVersion uint64     `json:"airdrop_version"`
	MaxNumNodes    uint64     `json:"max_num_nodes"`
	MaxTotalClaim  uint64     `json:"max_total_claim"`
	TreeNodes      []nodeJSON `json:"tree_nodes"`
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	doc := treeJSON{
		MerkleRoot:     [32]byte(t.Root),
		AirdropVersion: t.Version,
		MaxNumNodes:    t.MaxNumNodes,
		MaxTotalClaim:  t.MaxTotalClaim,
		TreeNodes:      make([]nodeJSON, len(t.Nodes)),
	}
	for i, n := range t.Nodes {
		locked := n.LockedAmount
		doc.TreeNodes[i] = nodeJSON{
			Claimant:     claimantJSON(n.Claimant),
			Amount:       n.UnlockedAmount,
			LockedAmount: &locked,
			Proof:        n.Proof,
		}
	}
	return json.Marshal(doc)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	var doc treeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	t.Root = solana.Hash(doc.MerkleRoot)
	t.Version = doc.AirdropVersion
	t.MaxNumNodes = doc.MaxNumNodes
	t.MaxTotalClaim = doc.MaxTotalClaim
	t.Nodes = make([]Node, len(doc.TreeNodes))
	for i, n := range doc.TreeNodes {
		node := Node{
			Claimant:       solana.PublicKey(n.Claimant),
			UnlockedAmount: n.Amount,
			Proof:          n.Proof,
		}
		if n.LockedAmount != nil {
			node.LockedAmount = *n.LockedAmount
		}
		t.Nodes[i] = node
	}
	return nil
}

// ReadFile loads a tree document and validates it. An invalid tree is
// rejected with a *ValidationError.
func ReadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read merkle tree %s: %w", path, err)
	}
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse merkle tree %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("merkle tree %s: %w", path, err)
	}
	return &t, nil
}

// WriteFile writes t as an indented JSON document.
func WriteFile(path string, t *Tree) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode merkle tree: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("failed to indent merkle tree: %w", err)
	}
	out.WriteByte('\n')
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write merkle tree %s: %w", path, err)
	}
	return nil
}
