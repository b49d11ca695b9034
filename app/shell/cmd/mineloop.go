package cmd

import (
	"fmt"
	"strings"

	"github.com/naivecoin-go/naivecoin/foundation/blockchain/chain"
	"github.com/spf13/cobra"
)

var mineloopCmd = &cobra.Command{
	Use:   "mineloop <data>",
	Short: "mine continuously in the background paying the active account",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		return node.MineLoop(message, func(b chain.Block) {
			fmt.Printf("mined block %d\n", b.Height)
		})
	},
}

func init() {
	rootCmd.AddCommand(mineloopCmd)
}
