// Package sysmon samples host utilization and records it as profiler counter
// events, so CPU and memory pressure line up with the trace timeline.
package sysmon

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/loopprof/loopprof/internal/profiler"
)

// Config configures which utilization values are sampled.
type Config struct {
	Enabled       bool `yaml:"enabled"`
	CPUEnabled    bool `yaml:"cpu"`
	MemoryEnabled bool `yaml:"memory"`
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		CPUEnabled:    true,
		MemoryEnabled: true,
	}
}

// Probe records system utilization counters through a dedicated marker. The
// marker gates recording, so sampling follows the profiler's cycle: batches
// outside the active window cost one action lookup and nothing else.
type Probe struct {
	logger zerolog.Logger
	marker *profiler.Marker
	config Config
}

// New creates a probe bound to the profiler. Counters record only on active
// batches; warmup utilization is as noisy as warmup timings.
func New(p *profiler.Profiler, config Config, logger zerolog.Logger) *Probe {
	marker := p.Marker("sysmon/utilization",
		profiler.WithActions(profiler.ActionActive),
		profiler.WithCategories("sysmon"),
	)
	return &Probe{
		logger: logger.With().Str("component", "sysmon").Logger(),
		marker: marker,
		config: config,
	}
}

// Sample reads the enabled utilization values and records one counter event.
// Collection failures for an individual source are logged and skipped.
func (p *Probe) Sample() error {
	if !p.config.Enabled {
		return nil
	}

	values := make(map[string]float64)

	if p.config.CPUEnabled {
		// Instantaneous reading; interval 0 compares against the last call.
		percents, err := cpu.Percent(0, false)
		if err != nil || len(percents) == 0 {
			p.logger.Warn().Err(err).Msg("Failed to sample CPU utilization")
		} else {
			values["cpu_percent"] = percents[0]
		}
	}

	if p.config.MemoryEnabled {
		vm, err := mem.VirtualMemory()
		if err != nil {
			p.logger.Warn().Err(err).Msg("Failed to sample memory utilization")
		} else {
			values["mem_percent"] = vm.UsedPercent
			values["mem_used_bytes"] = float64(vm.Used)
		}
	}

	if len(values) == 0 {
		return nil
	}
	if err := p.marker.Counter(values); err != nil {
		return fmt.Errorf("failed to record utilization counters: %w", err)
	}
	return nil
}
