package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/airdrop/admin/internal/admin"
	"github.com/malbeclabs/airdrop/utils/pkg/logger"
	"github.com/malbeclabs/airdrop/utils/pkg/retry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// Airdrop configuration
	rpcURLFlag := flag.String("rpc-url", solanarpc.MainNetBeta_RPC, "Solana RPC URL (or set SOLANA_RPC_URL env var)")
	programIDFlag := flag.String("program-id", "", "Merkle distributor program id (or set AIRDROP_PROGRAM_ID env var)")
	mintFlag := flag.String("mint", "", "Airdropped token mint (or set AIRDROP_MINT env var)")
	merkleTreePathFlag := flag.String("merkle-tree-path", "", "Directory of merkle tree JSON files (or set MERKLE_TREE_PATH env var)")

	// Commands
	createMerkleTreesFlag := flag.Bool("create-merkle-trees", false, "Build merkle trees from a CSV airdrop list and write them to --merkle-tree-path")
	findAirdropVersionFlag := flag.Bool("find-airdrop-version", false, "Print the first airdrop version whose distributor does not exist on chain")
	verifyMerkleTreesFlag := flag.Bool("verify-merkle-trees", false, "Validate every tree in --merkle-tree-path and print a summary")
	proofFlag := flag.String("proof", "", "Print the leaf and proof of the given claimant from --merkle-tree-path")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	// Tree building options
	csvPathFlag := flag.String("csv-path", "", "CSV airdrop list with columns pubkey, amount, locked_amount (UI units)")
	decimalsFlag := flag.Int32("decimals", 6, "Token decimals used to convert CSV amounts to base units")
	maxNodesPerTreeFlag := flag.Int("max-nodes-per-tree", 10_000, "Maximum claimants per merkle tree")
	startVersionFlag := flag.Int64("start-airdrop-version", -1, "First airdrop version (-1 = find the next free version on chain, or 0 without --mint)")

	flag.Parse()

	log := logger.New(*verboseFlag)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	// Override flags with environment variables if set
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		*rpcURLFlag = v
	}
	if v := os.Getenv("AIRDROP_PROGRAM_ID"); v != "" {
		*programIDFlag = v
	}
	if v := os.Getenv("AIRDROP_MINT"); v != "" {
		*mintFlag = v
	}
	if v := os.Getenv("MERKLE_TREE_PATH"); v != "" {
		*merkleTreePathFlag = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	parseKeys := func(cmd string) (solana.PublicKey, solana.PublicKey, error) {
		programID, err := solana.PublicKeyFromBase58(*programIDFlag)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("--program-id is required for %s: %w", cmd, err)
		}
		mint, err := solana.PublicKeyFromBase58(*mintFlag)
		if err != nil {
			return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("--mint is required for %s: %w", cmd, err)
		}
		return programID, mint, nil
	}

	// Execute commands
	if *createMerkleTreesFlag {
		if *csvPathFlag == "" || *merkleTreePathFlag == "" {
			return fmt.Errorf("--csv-path and --merkle-tree-path are required for --create-merkle-trees")
		}
		var start uint64
		switch {
		case *startVersionFlag >= 0:
			start = uint64(*startVersionFlag)
		case *mintFlag == "":
			log.Info("mint is not set, creating merkle trees from version 0")
		default:
			programID, mint, err := parseKeys("--create-merkle-trees")
			if err != nil {
				return err
			}
			start, err = admin.FindAirdropVersion(ctx, log, solanarpc.New(*rpcURLFlag), retry.DefaultConfig(), programID, mint, 0)
			if err != nil {
				return err
			}
		}
		_, err := admin.CreateMerkleTrees(log, admin.CreateMerkleTreesConfig{
			CSVPath:         *csvPathFlag,
			OutputDir:       *merkleTreePathFlag,
			Decimals:        *decimalsFlag,
			MaxNodesPerTree: *maxNodesPerTreeFlag,
			StartVersion:    start,
			DryRun:          *dryRunFlag,
			SkipConfirm:     *yesFlag,
		})
		return err
	}

	if *findAirdropVersionFlag {
		programID, mint, err := parseKeys("--find-airdrop-version")
		if err != nil {
			return err
		}
		start := uint64(0)
		if *startVersionFlag > 0 {
			start = uint64(*startVersionFlag)
		}
		version, err := admin.FindAirdropVersion(ctx, log, solanarpc.New(*rpcURLFlag), retry.DefaultConfig(), programID, mint, start)
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	}

	if *verifyMerkleTreesFlag {
		if *merkleTreePathFlag == "" {
			return fmt.Errorf("--merkle-tree-path is required for --verify-merkle-trees")
		}
		programID, mint, err := parseKeys("--verify-merkle-trees")
		if err != nil {
			return err
		}
		return admin.VerifyMerkleTrees(log, os.Stdout, *merkleTreePathFlag, programID, mint)
	}

	if *proofFlag != "" {
		if *merkleTreePathFlag == "" {
			return fmt.Errorf("--merkle-tree-path is required for --proof")
		}
		programID, mint, err := parseKeys("--proof")
		if err != nil {
			return err
		}
		claimant, err := solana.PublicKeyFromBase58(*proofFlag)
		if err != nil {
			return fmt.Errorf("invalid --proof claimant: %w", err)
		}
		return admin.PrintProof(log, os.Stdout, *merkleTreePathFlag, programID, mint, claimant)
	}

	flag.Usage()
	return nil
}
