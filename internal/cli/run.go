package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loopprof/loopprof/internal/config"
	"github.com/loopprof/loopprof/internal/dist"
	"github.com/loopprof/loopprof/internal/errs"
	"github.com/loopprof/loopprof/internal/jsontrace"
	"github.com/loopprof/loopprof/internal/logging"
	"github.com/loopprof/loopprof/internal/profiler"
	"github.com/loopprof/loopprof/internal/rundir"
	"github.com/loopprof/loopprof/internal/sysmon"
	"github.com/loopprof/loopprof/internal/tracedb"
	"github.com/loopprof/loopprof/internal/trainer"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the synthetic instrumented training loop",
		Long: `Runs the built-in synthetic training loop with profiling enabled,
writes trace fragments and the optional trace database into the run
directory, and merges fragments into a single trace at the end.

In a multi-process launch (LOOPPROF_WORLD_SIZE > 1), every rank must run this
command with a shared run directory and barrier directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraining(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to run config yaml")
	return cmd
}

func runTraining(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	runDir, err := rundir.Resolve(cfg.RunDirectory)
	if err != nil {
		return err
	}
	runtime, err := dist.FromEnv()
	if err != nil {
		return err
	}
	logger.Info().
		Str("run_dir", runDir).
		Int("global_rank", runtime.GlobalRank()).
		Int("world_size", runtime.WorldSize()).
		Msg("Starting run")

	// A disabled profiler is a zero-length cycle: markers stay wired in but
	// every batch resolves to skip.
	cycle := cfg.Profiler.Cycle
	if !cfg.Profiler.Enabled {
		cycle = profiler.CycleConfig{}
	}

	clock := trainer.NewClock(cfg.Trainer.BatchSize)

	jsonHandler, err := jsontrace.New(
		filepath.Join(runDir, cfg.Trace.JSONDir), runtime.GlobalRank(), logger)
	if err != nil {
		return err
	}
	handlers := []profiler.EventHandler{jsonHandler}

	if cfg.Trace.DBEnabled {
		dbPath := filepath.Join(runDir, cfg.Trace.DBPath)
		if runtime.WorldSize() > 1 {
			// One database file per rank; DuckDB is single-writer.
			dbPath = fmt.Sprintf("%s.rank%d", dbPath, runtime.GlobalRank())
		}
		store, err := tracedb.Open(dbPath, logger)
		if err != nil {
			return err
		}
		defer errs.DeferClose(logger, store, "failed to close trace database")
		handlers = append(handlers, store)
	}

	prof, err := profiler.New(profiler.Config{
		Cycle:           cycle,
		MergedTracePath: filepath.Join(runDir, cfg.Profiler.MergedTraceFile),
	}, clock, runtime, handlers, logger)
	if err != nil {
		return err
	}

	probe := sysmon.New(prof, cfg.SystemProbe, logger)
	loop := trainer.New(cfg.Trainer, clock, prof, probe, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("training loop failed: %w", err)
	}

	// Flush this rank's fragment before the merge barrier; every rank must
	// reach MergeTraces or the others deadlock.
	if err := jsonHandler.Close(); err != nil {
		return err
	}
	return prof.MergeTraces(ctx)
}
