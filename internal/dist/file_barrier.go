package dist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileRuntime coordinates ranks through sentinel files on shared storage.
// Each barrier generation gets its own subdirectory; a rank arrives by
// creating a file named after itself and proceeds once all ranks' files
// exist. Generations keep successive barriers from observing each other's
// leftovers.
type fileRuntime struct {
	dir        string
	globalRank int
	localRank  int
	worldSize  int
	poll       time.Duration
	generation int
}

// NewFileRuntime creates a Runtime whose barrier synchronizes through
// sentinel files under dir. All ranks must use the same dir and must call
// Barrier the same number of times, in the same order.
func NewFileRuntime(dir string, globalRank, localRank, worldSize int) Runtime {
	return &fileRuntime{
		dir:        dir,
		globalRank: globalRank,
		localRank:  localRank,
		worldSize:  worldSize,
		poll:       25 * time.Millisecond,
	}
}

func (r *fileRuntime) GlobalRank() int { return r.globalRank }
func (r *fileRuntime) LocalRank() int  { return r.localRank }
func (r *fileRuntime) WorldSize() int  { return r.worldSize }

func (r *fileRuntime) Barrier(ctx context.Context) error {
	gen := r.generation
	r.generation++

	genDir := filepath.Join(r.dir, fmt.Sprintf("barrier-%06d", gen))
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return fmt.Errorf("failed to create barrier directory: %w", err)
	}

	rankFile := filepath.Join(genDir, fmt.Sprintf("rank-%d", r.globalRank))
	if err := os.WriteFile(rankFile, nil, 0o644); err != nil {
		return fmt.Errorf("failed to announce rank %d at barrier %d: %w", r.globalRank, gen, err)
	}

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		arrived, err := countRankFiles(genDir)
		if err != nil {
			return err
		}
		if arrived >= r.worldSize {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("barrier %d interrupted with %d/%d ranks arrived: %w", gen, arrived, r.worldSize, ctx.Err())
		case <-ticker.C:
		}
	}
}

func countRankFiles(genDir string) (int, error) {
	entries, err := os.ReadDir(genDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read barrier directory: %w", err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			n++
		}
	}
	return n, nil
}
