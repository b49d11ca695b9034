// Package cmd implements the operator shell's commands: one cobra
// command per line of input, each dispatched straight into the
// process's own fullnode.Node, the way the teacher's wallet CLI dials
// out to a remote node except there is no network hop here.
package cmd

import (
	"github.com/naivecoin-go/naivecoin/foundation/blockchain/fullnode"
	"github.com/spf13/cobra"
)

var node *fullnode.Node

// SetNode wires every command to the node it operates on. Must be
// called once before Execute.
func SetNode(n *fullnode.Node) {
	node = n
}

var rootCmd = &cobra.Command{
	Use:           "shell",
	Short:         "operate the running node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs a single line's worth of shell input. Cobra's own usage
// and error printing are silenced so the caller controls the prompt's
// output on failure.
func Execute(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}
