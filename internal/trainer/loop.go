package trainer

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/loopprof/loopprof/internal/profiler"
	"github.com/loopprof/loopprof/internal/sysmon"
)

// Config configures the synthetic loop.
type Config struct {
	Epochs          int `yaml:"epochs"`
	BatchesPerEpoch int `yaml:"batches_per_epoch"`
	BatchSize       int `yaml:"batch_size"`
	// StepTimeMs is the simulated duration of one training step.
	StepTimeMs int `yaml:"step_time_ms"`
}

// DefaultConfig returns a small default run.
func DefaultConfig() Config {
	return Config{
		Epochs:          2,
		BatchesPerEpoch: 16,
		BatchSize:       32,
		StepTimeMs:      5,
	}
}

// Loop is a synthetic training loop instrumented with profiler markers. One
// marker brackets each epoch as a scope, the per-batch step runs through a
// wrapped (decorator-style) function, and the dataloader is bracketed
// explicitly, so all three marker usage styles are exercised.
type Loop struct {
	logger zerolog.Logger
	config Config
	clock  *Clock
	prof   *profiler.Profiler
	probe  *sysmon.Probe
}

// New creates a loop around the given clock and profiler. The clock must be
// the profiler's time source. probe may be nil.
func New(config Config, clock *Clock, prof *profiler.Profiler, probe *sysmon.Probe, logger zerolog.Logger) *Loop {
	return &Loop{
		logger: logger.With().Str("component", "trainer").Logger(),
		config: config,
		clock:  clock,
		prof:   prof,
		probe:  probe,
	}
}

// Run executes the configured epochs and batches. It stops early when the
// context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	epochMarker := l.prof.Marker("trainer/epoch",
		profiler.WithCategories("loop"),
		profiler.WithActions(profiler.ActionSkip, profiler.ActionWarmup, profiler.ActionActive),
	)
	dataMarker := l.prof.Marker("trainer/dataloader",
		profiler.WithCategories("loop", "data"),
	)
	stepMarker := l.prof.Marker("trainer/step",
		profiler.WithCategories("loop", "compute"),
		profiler.WithInstantOnFinish(),
	)
	trainStep := stepMarker.Wrap(l.step)

	l.logger.Info().
		Int("epochs", l.config.Epochs).
		Int("batches_per_epoch", l.config.BatchesPerEpoch).
		Int("batch_size", l.config.BatchSize).
		Msg("Starting training loop")

	for epoch := 0; epoch < l.config.Epochs; epoch++ {
		err := epochMarker.Scope(func() error {
			return l.runEpoch(ctx, dataMarker, trainStep)
		})
		if err != nil {
			return err
		}
		l.clock.AdvanceEpoch()
		l.logger.Debug().Int("epoch", epoch).Msg("Epoch complete")
	}

	l.logger.Info().Msg("Training loop complete")
	return nil
}

func (l *Loop) runEpoch(ctx context.Context, dataMarker *profiler.Marker, trainStep func() error) error {
	for batch := 0; batch < l.config.BatchesPerEpoch; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := dataMarker.Scope(l.loadBatch); err != nil {
			return err
		}
		if err := trainStep(); err != nil {
			return err
		}
		if l.probe != nil {
			if err := l.probe.Sample(); err != nil {
				return err
			}
		}
		l.clock.AdvanceBatch()
	}
	return nil
}

// loadBatch simulates the dataloader yielding one batch.
func (l *Loop) loadBatch() error {
	time.Sleep(time.Duration(l.config.StepTimeMs) * time.Millisecond / 5)
	return nil
}

// step simulates one forward/backward pass worth of work.
func (l *Loop) step() error {
	deadline := time.Now().Add(time.Duration(l.config.StepTimeMs) * time.Millisecond)
	x := 0.0
	for time.Now().Before(deadline) {
		for i := 0; i < 1000; i++ {
			x += math.Sqrt(float64(i))
		}
	}
	_ = x
	return nil
}
