package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [pubkey_hex]",
	Short: "print an account's balance, or the active account's if omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pubKeyHex string
		if len(args) == 1 {
			pubKeyHex = args[0]
		}
		bal, err := node.Balance(pubKeyHex)
		if err != nil {
			return err
		}
		fmt.Println(bal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
