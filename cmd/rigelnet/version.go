package main

import (
	"fmt"
	"rigelnet/protocol"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z"
var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show rigelnet and protocol versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "rigelnet version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "protocol version %s (max %d args per call)\n", cfg.Discovery.Version, protocol.MaxArgs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
