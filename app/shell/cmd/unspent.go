package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unspentCmd = &cobra.Command{
	Use:   "unspent [pubkey_hex]",
	Short: "list an account's unspent outputs, or the active account's if omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pubKeyHex string
		if len(args) == 1 {
			pubKeyHex = args[0]
		}
		entries, err := node.Unspent(pubKeyHex)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s:%d\t%d\n", e.TxID, e.Index, e.Output.Amount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unspentCmd)
}
