package cmd

import "github.com/spf13/cobra"

var stoploopCmd = &cobra.Command{
	Use:   "stoploop",
	Short: "stop a running mineloop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		node.StopLoop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stoploopCmd)
}
