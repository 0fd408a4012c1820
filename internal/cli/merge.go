package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loopprof/loopprof/internal/config"
	"github.com/loopprof/loopprof/internal/logging"
	"github.com/loopprof/loopprof/internal/tracemerge"
)

func newMergeCmd() *cobra.Command {
	var (
		runDir string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Re-merge trace fragments from a run directory",
		Long: `Scans the run directory's fragment folder and merges every trace
fragment into a single file, ordered by event timestamp. Useful when a run
was interrupted before its own merge completed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			logger := logging.New(cfg.Logging)

			fragDir := filepath.Join(runDir, cfg.Trace.JSONDir)
			outPath := out
			if outPath == "" {
				outPath = filepath.Join(runDir, cfg.Profiler.MergedTraceFile)
			}

			files := tracemerge.Discover(logger, []string{fragDir})
			return tracemerge.Merge(logger, outPath, files...)
		},
	}
	cmd.Flags().StringVar(&runDir, "run-dir", ".", "Run directory containing trace fragments")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Merged trace output path (default: <run-dir>/merged_profiler_trace.json)")
	return cmd
}
