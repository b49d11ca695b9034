package cmd

import (
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

var blockCmd = &cobra.Command{
	Use:   "block [hash]",
	Short: "print a block, or the active tip if hash is omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var hashHex string
		if len(args) == 1 {
			hashHex = args[0]
		}
		b, err := node.Block(hashHex)
		if err != nil {
			return err
		}
		fmt.Printf("hash:       %s\n", chain.BlockHash(b))
		fmt.Printf("height:     %d\n", b.Height)
		fmt.Printf("prev:       %s\n", b.PrevHash)
		fmt.Printf("difficulty: %d\n", b.Difficulty)
		fmt.Printf("timestamp:  %d\n", b.Timestamp)
		fmt.Printf("txs:        %d\n", len(b.Txs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)
}
