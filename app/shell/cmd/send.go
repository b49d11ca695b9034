package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <pubkey_hex> <amount>",
	Short: "send amount from the active account to pubkey_hex",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad amount %q: %w", args[1], err)
		}
		txid, err := node.Send(args[0], amount)
		if err != nil {
			return err
		}
		fmt.Println(txid.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
