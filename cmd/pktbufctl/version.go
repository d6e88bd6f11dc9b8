package main

import (
	"fmt"

	"github.com/spf13/cobra"

	defaultbuf "github.com/joshuapare/pktbuf/pkg/pktbuf"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pktbufctl %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
		fmt.Printf("  default backend: %s (arena %d bytes)\n", defaultbuf.BackendName, defaultbuf.ArenaSize)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
