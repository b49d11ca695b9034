package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importPrivateKeyCmd = &cobra.Command{
	Use:   "importprivatekey <hex>",
	Short: "import a private key and make it the active account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, err := node.ImportPrivateKey(args[0])
		if err != nil {
			return err
		}
		fmt.Println(pub.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importPrivateKeyCmd)
}
