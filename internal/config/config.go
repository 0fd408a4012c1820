// Package config loads the run configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loopprof/loopprof/internal/logging"
	"github.com/loopprof/loopprof/internal/profiler"
	"github.com/loopprof/loopprof/internal/sysmon"
	"github.com/loopprof/loopprof/internal/trainer"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "LOOPPROF_LOG_LEVEL"

// ProfilerConfig is the profiler section of the run configuration.
type ProfilerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Cycle fields are inlined so the yaml reads skip_first/wait/warmup/
	// active/repeat directly under profiler.
	Cycle profiler.CycleConfig `yaml:",inline"`
	// MergedTraceFile is the merged trace path, relative to the run
	// directory.
	MergedTraceFile string `yaml:"merged_trace_file"`
}

// TraceConfig configures the concrete event handlers.
type TraceConfig struct {
	// JSONDir is the trace fragment directory, relative to the run
	// directory.
	JSONDir string `yaml:"json_dir"`
	// DBEnabled turns on the DuckDB event store.
	DBEnabled bool `yaml:"db_enabled"`
	// DBPath is the DuckDB file, relative to the run directory.
	DBPath string `yaml:"db_path"`
}

// Config is the full run configuration.
type Config struct {
	// RunDirectory receives all run artifacts. Empty means generate one.
	RunDirectory string         `yaml:"run_directory"`
	Logging      logging.Config `yaml:"logging"`
	Profiler     ProfilerConfig `yaml:"profiler"`
	Trace        TraceConfig    `yaml:"trace"`
	SystemProbe  sysmon.Config  `yaml:"system_probe"`
	Trainer      trainer.Config `yaml:"trainer"`
}

// Default returns the default run configuration.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Profiler: ProfilerConfig{
			Enabled:         true,
			Cycle:           profiler.DefaultCycleConfig(),
			MergedTraceFile: "merged_profiler_trace.json",
		},
		Trace: TraceConfig{
			JSONDir:   "traces",
			DBEnabled: false,
			DBPath:    "trace.duckdb",
		},
		SystemProbe: sysmon.DefaultConfig(),
		Trainer:     trainer.DefaultConfig(),
	}
}

// Load reads the configuration from path. A missing file returns defaults;
// env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				mergeFromEnv(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	mergeFromEnv(cfg)
	if err := cfg.Profiler.Cycle.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFromEnv(cfg *Config) {
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}
}
