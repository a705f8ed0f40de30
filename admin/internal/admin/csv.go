package admin

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
)

// CSVEntry is one row of an airdrop list. Amounts are in UI units.
type CSVEntry struct {
	Pubkey       string `csv:"pubkey"`
	Amount       string `csv:"amount"`
	LockedAmount string `csv:"locked_amount"`
}

// ReadCSV parses an airdrop list and converts its amounts to base units
// with the given number of decimals.
func ReadCSV(r io.Reader, decimals int32) ([]merkle.Node, error) {
	if decimals < 0 || decimals > 19 {
		return nil, fmt.Errorf("decimals must be between 0 and 19, got %d", decimals)
	}

	var entries []*CSVEntry
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, errors.New("csv has no rows")
		}
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}

	nodes := make([]merkle.Node, 0, len(entries))
	for i, e := range entries {
		// Row 1 is the header.
		row := i + 2
		claimant, err := solana.PublicKeyFromBase58(strings.TrimSpace(e.Pubkey))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid pubkey %q: %w", row, e.Pubkey, err)
		}
		unlocked, err := toBaseUnits(e.Amount, decimals)
		if err != nil {
			return nil, fmt.Errorf("row %d: amount: %w", row, err)
		}
		locked, err := toBaseUnits(e.LockedAmount, decimals)
		if err != nil {
			return nil, fmt.Errorf("row %d: locked_amount: %w", row, err)
		}
		nodes = append(nodes, merkle.Node{
			Claimant:       claimant,
			UnlockedAmount: unlocked,
			LockedAmount:   locked,
		})
	}
	if len(nodes) == 0 {
		return nil, errors.New("csv has no rows")
	}
	return nodes, nil
}

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// toBaseUnits converts a UI amount to base units. An empty amount is zero.
func toBaseUnits(s string, decimals int32) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	base := d.Shift(decimals)
	if !base.Equal(base.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	if base.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("amount %q overflows u64", s)
	}
	return base.BigInt().Uint64(), nil
}
