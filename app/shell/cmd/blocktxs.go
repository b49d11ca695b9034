package cmd

import (
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

var blocktxsCmd = &cobra.Command{
	Use:   "blocktxs <hash>",
	Short: "list a block's transaction ids",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		txs, err := node.BlockTxs(args[0])
		if err != nil {
			return err
		}
		for _, tx := range txs {
			fmt.Println(chain.TxID(tx))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blocktxsCmd)
}
