// Package cli implements the loopprof command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/loopprof/loopprof/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "loopprof",
	Short: "Sampling-window event profiler for training loops",
	Long: `loopprof profiles long-running iterative loops with a cyclical
sampling window (skip_first / wait / warmup / active / repeat), records
duration, instant, and counter events through named markers, and merges the
per-process trace fragments into a single Chrome-tracing-compatible file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.String())
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
