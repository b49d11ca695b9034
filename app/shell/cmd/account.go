package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "print the active account's public key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, err := node.Account()
		if err != nil {
			return err
		}
		fmt.Println(pub.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
}
