package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bitchat version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bitchat version %s\n", Version)
		},
	}
}
