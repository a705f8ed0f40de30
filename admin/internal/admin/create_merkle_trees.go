package admin

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
)

type CreateMerkleTreesConfig struct {
	CSVPath         string
	OutputDir       string
	Decimals        int32
	MaxNodesPerTree int
	StartVersion    uint64
	DryRun          bool
	SkipConfirm     bool
}

func (cfg *CreateMerkleTreesConfig) Validate() error {
	if cfg.CSVPath == "" {
		return errors.New("csv path is required")
	}
	if cfg.OutputDir == "" {
		return errors.New("output dir is required")
	}
	if cfg.MaxNodesPerTree <= 0 {
		return errors.New("max nodes per tree must be positive")
	}
	if uint64(cfg.MaxNodesPerTree) > merkle.MaxNodes {
		return fmt.Errorf("max nodes per tree must not exceed %d", uint64(merkle.MaxNodes))
	}
	return nil
}

// TreeFileName is the file a tree of the given airdrop version is written to.
func TreeFileName(version uint64) string {
	return fmt.Sprintf("tree_%d.json", version)
}

// CreateMerkleTrees splits an airdrop list into chunks of at most
// MaxNodesPerTree rows and writes one tree per chunk, with consecutive
// airdrop versions from StartVersion.
func CreateMerkleTrees(log *slog.Logger, cfg CreateMerkleTreesConfig) ([]*merkle.Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	nodes, err := ReadCSV(f, cfg.Decimals)
	if err != nil {
		return nil, err
	}
	log.Info("read airdrop list", "path", cfg.CSVPath, "rows", len(nodes), "decimals", cfg.Decimals)

	var trees []*merkle.Tree
	version := cfg.StartVersion
	for len(nodes) > 0 {
		chunk := nodes[:min(len(nodes), cfg.MaxNodesPerTree)]
		nodes = nodes[len(chunk):]

		tree, err := merkle.Build(chunk, version, merkle.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to build tree version %d: %w", version, err)
		}
		trees = append(trees, tree)
		version++
	}

	if cfg.DryRun {
		for _, t := range trees {
			log.Info("[DRY RUN] would write tree", "path", filepath.Join(cfg.OutputDir, TreeFileName(t.Version)), "nodes", t.MaxNumNodes, "max_total_claim", t.MaxTotalClaim, "root", t.Root.String())
		}
		return trees, nil
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var existing []string
	for _, t := range trees {
		path := filepath.Join(cfg.OutputDir, TreeFileName(t.Version))
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) > 0 && !cfg.SkipConfirm {
		fmt.Printf("\nThe following files will be overwritten:\n  %s\n", strings.Join(existing, "\n  "))
		fmt.Print("\nType 'yes' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(response) != "yes" {
			return nil, errors.New("aborted")
		}
	}

	for _, t := range trees {
		path := filepath.Join(cfg.OutputDir, TreeFileName(t.Version))
		if err := merkle.WriteFile(path, t); err != nil {
			return nil, err
		}
		log.Info("wrote tree", "path", path, "version", t.Version, "nodes", t.MaxNumNodes, "max_total_claim", t.MaxTotalClaim, "root", t.Root.String())
	}
	log.Info("created merkle trees", "count", len(trees), "last_version", version-1)
	return trees, nil
}
