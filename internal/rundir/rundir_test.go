package rundir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnvWins(t *testing.T) {
	envDir := filepath.Join(t.TempDir(), "from-env")
	t.Setenv(EnvRunDir, envDir)

	dir, err := Resolve(filepath.Join(t.TempDir(), "from-config"))
	require.NoError(t, err)
	assert.Equal(t, envDir, dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveConfigured(t *testing.T) {
	t.Setenv(EnvRunDir, "")
	want := filepath.Join(t.TempDir(), "run-a")

	dir, err := Resolve(want)
	require.NoError(t, err)
	assert.Equal(t, want, dir)
}

func TestResolveGeneratesUniqueDirs(t *testing.T) {
	t.Setenv(EnvRunDir, "")
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	first, err := Resolve("")
	require.NoError(t, err)
	second, err := Resolve("")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Contains(t, first, "runs")
}
