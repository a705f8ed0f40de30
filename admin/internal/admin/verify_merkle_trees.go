package admin

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
)

// VerifyMerkleTrees loads and validates every tree in dir and prints one
// line per tree.
func VerifyMerkleTrees(log *slog.Logger, w io.Writer, dir string, programID, mint solana.PublicKey) error {
	idx, err := merkle.LoadIndex(log, dir, programID, mint)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDISTRIBUTOR\tROOT\tNODES\tMAX TOTAL CLAIM")
	for _, d := range idx.Distributors() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", d.Version, d.Address, base58.Encode(d.Root[:]), d.MaxNumNodes, d.MaxTotalClaim)
	}
	fmt.Fprintf(tw, "total\t\t\t%d\t%d\n", idx.MaxNumNodes(), idx.MaxTotalClaim())
	return tw.Flush()
}
