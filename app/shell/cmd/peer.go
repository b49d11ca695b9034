package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var peerCmd = &cobra.Command{
	Use:   "peer add <host:port> | peer list",
	Short: "manage this node's peer connections",
}

var peerAddCmd = &cobra.Command{
	Use:   "add <host:port>",
	Short: "dial and add a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return node.PeerAdd(args[0])
	},
}

var peerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list connected peers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, addr := range node.PeerList() {
			fmt.Println(addr)
		}
		return nil
	},
}

func init() {
	peerCmd.AddCommand(peerAddCmd, peerListCmd)
	rootCmd.AddCommand(peerCmd)
}
