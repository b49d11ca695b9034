package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrQuit is returned by the "q" command to tell the shell loop to
// stop reading input and exit cleanly.
var ErrQuit = errors.New("quit")

var quitCmd = &cobra.Command{
	Use:   "q",
	Short: "exit the shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ErrQuit
	},
}

func init() {
	rootCmd.AddCommand(quitCmd)
}
