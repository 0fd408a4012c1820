// Package dist abstracts the distributed training runtime: rank identity and
// a blocking barrier. The profiler takes a Runtime at construction so it can
// be exercised without a real multi-process environment.
package dist

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Environment variables describing the process topology. They follow the
// launcher convention of one process per rank.
const (
	EnvWorldSize  = "LOOPPROF_WORLD_SIZE"
	EnvGlobalRank = "LOOPPROF_GLOBAL_RANK"
	EnvLocalRank  = "LOOPPROF_LOCAL_RANK"
	EnvBarrierDir = "LOOPPROF_BARRIER_DIR"
)

// Runtime is the distributed runtime collaborator: rank queries and a
// blocking barrier. Every rank must call Barrier for any rank to proceed.
type Runtime interface {
	// Barrier blocks until all ranks in the world have reached it, or the
	// context is cancelled.
	Barrier(ctx context.Context) error

	// GlobalRank returns this process's rank across all nodes.
	GlobalRank() int

	// LocalRank returns this process's rank within its node.
	LocalRank() int

	// WorldSize returns the total number of ranks.
	WorldSize() int
}

// localRuntime is the single-process world: every barrier is trivially
// satisfied and all ranks are 0.
type localRuntime struct{}

// Local returns a Runtime for a single-process, single-node world.
func Local() Runtime {
	return localRuntime{}
}

func (localRuntime) Barrier(ctx context.Context) error { return ctx.Err() }
func (localRuntime) GlobalRank() int                   { return 0 }
func (localRuntime) LocalRank() int                    { return 0 }
func (localRuntime) WorldSize() int                    { return 1 }

// FromEnv builds a Runtime from the LOOPPROF_* topology variables. When no
// world size is set (or it is 1), the local runtime is returned. A world size
// above 1 requires a barrier directory on storage shared by all ranks.
func FromEnv() (Runtime, error) {
	worldSize, err := intFromEnv(EnvWorldSize, 1)
	if err != nil {
		return nil, err
	}
	if worldSize <= 1 {
		return Local(), nil
	}

	globalRank, err := intFromEnv(EnvGlobalRank, 0)
	if err != nil {
		return nil, err
	}
	localRank, err := intFromEnv(EnvLocalRank, globalRank)
	if err != nil {
		return nil, err
	}
	barrierDir := os.Getenv(EnvBarrierDir)
	if barrierDir == "" {
		return nil, fmt.Errorf("%s is required when %s > 1", EnvBarrierDir, EnvWorldSize)
	}
	if globalRank < 0 || globalRank >= worldSize {
		return nil, fmt.Errorf("global rank %d out of range for world size %d", globalRank, worldSize)
	}

	return NewFileRuntime(barrierDir, globalRank, localRank, worldSize), nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s=%q: %w", key, raw, err)
	}
	return v, nil
}
