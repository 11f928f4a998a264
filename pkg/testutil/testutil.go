// Package testutil provides testing utilities for dflog
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TrainingLog is a small pipe-separated log with train and val rows.
const TrainingLog = `epoch|loss|lr|acc/top1|flag
1|0.9|0.1|0.50|train
1|0.8|0.1|0.55|val
2|0.5|0.05|0.70|train
2|0.6|0.05|0.65|val
3|0.3|0.01|0.85|train
3|0.4|0.01|0.75|val
`

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// FixedClock returns a time source that always reports at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// OnlyEntry returns the path of the single entry in dir and fails the test
// when there is not exactly one.
func OnlyEntry(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "entries of %s", dir)
	return filepath.Join(dir, entries[0].Name())
}
