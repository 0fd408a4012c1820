package dist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRuntime(t *testing.T) {
	rt := Local()

	assert.Equal(t, 0, rt.GlobalRank())
	assert.Equal(t, 0, rt.LocalRank())
	assert.Equal(t, 1, rt.WorldSize())
	require.NoError(t, rt.Barrier(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, rt.Barrier(ctx))
}

func TestFromEnvDefaultsToLocal(t *testing.T) {
	t.Setenv(EnvWorldSize, "")
	rt, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1, rt.WorldSize())
}

func TestFromEnvRequiresBarrierDir(t *testing.T) {
	t.Setenv(EnvWorldSize, "2")
	t.Setenv(EnvGlobalRank, "0")
	t.Setenv(EnvBarrierDir, "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvFileRuntime(t *testing.T) {
	t.Setenv(EnvWorldSize, "4")
	t.Setenv(EnvGlobalRank, "3")
	t.Setenv(EnvLocalRank, "1")
	t.Setenv(EnvBarrierDir, t.TempDir())

	rt, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 4, rt.WorldSize())
	assert.Equal(t, 3, rt.GlobalRank())
	assert.Equal(t, 1, rt.LocalRank())
}

func TestFromEnvRejectsOutOfRangeRank(t *testing.T) {
	t.Setenv(EnvWorldSize, "2")
	t.Setenv(EnvGlobalRank, "5")
	t.Setenv(EnvBarrierDir, t.TempDir())

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFileBarrierReleasesAllRanks(t *testing.T) {
	dir := t.TempDir()
	const world = 3

	var wg sync.WaitGroup
	errs := make([]error, world)
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			rt := NewFileRuntime(dir, rank, rank, world)
			// Two consecutive barriers must not observe each other.
			if err := rt.Barrier(context.Background()); err != nil {
				errs[rank] = err
				return
			}
			errs[rank] = rt.Barrier(context.Background())
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		require.NoError(t, err, "rank %d", rank)
	}
}

func TestFileBarrierTimesOutWithMissingRank(t *testing.T) {
	rt := NewFileRuntime(t.TempDir(), 0, 0, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := rt.Barrier(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
