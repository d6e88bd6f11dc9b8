package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.toml>...",
		Short: "Execute scripted buffer scenarios",
		Long: `The run command executes the steps of one or more TOML scenario files
against a fresh buffer each, checking the expected outcome of every step.

Example:
  pktbufctl run testdata/mark.toml
  pktbufctl run --backend dynamic scenarios/*.toml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
}

func runRun(args []string) error {
	name, size := backendName, backendSize
	for _, path := range args {
		backendName, backendSize = name, size
		if err := runScenarioFile(path); err != nil {
			return err
		}
	}
	return nil
}
