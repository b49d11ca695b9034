package cmd

import (
	"fmt"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

var txCmd = &cobra.Command{
	Use:   "tx <txid>",
	Short: "print a transaction, from the chain or the mempool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := node.Tx(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("txid:    %s\n", chain.TxID(tx))
		fmt.Printf("inputs:  %d\n", len(tx.Inputs))
		fmt.Printf("outputs: %d\n", len(tx.Outputs))
		for i, out := range tx.Outputs {
			fmt.Printf("  [%d] %d -> %s\n", i, out.Amount, out.PublicKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(txCmd)
}
