package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var mineCmd = &cobra.Command{
	Use:   "mine <data>",
	Short: "mine a single block paying the active account",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := node.Mine(context.Background(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("mined block %d\n", b.Height)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
}
