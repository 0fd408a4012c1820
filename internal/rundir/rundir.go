// Package rundir resolves the run directory that a training run writes its
// artifacts into: trace fragments, the merged trace, and the trace database.
package rundir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvRunDir overrides the run directory when set. Launchers use it to point
// every rank of a run at the same shared directory.
const EnvRunDir = "LOOPPROF_RUN_DIR"

// Resolve returns the run directory and creates it if needed. Resolution
// order: the LOOPPROF_RUN_DIR environment variable, then the configured
// path, then a generated runs/<stamp>-<id> directory under the working
// directory.
func Resolve(configured string) (string, error) {
	dir := os.Getenv(EnvRunDir)
	if dir == "" {
		dir = configured
	}
	if dir == "" {
		id := strings.Split(uuid.NewString(), "-")[0]
		dir = filepath.Join("runs", fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), id))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return dir, nil
}
