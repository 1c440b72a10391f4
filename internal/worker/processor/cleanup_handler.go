package processor

import (
	"os"
	"path/filepath"

	"avatarpipe/internal/speech"
)

// Cleanup removes the intermediate takes a run left in the temp directory.
// The reviewed copies in the output directory are never touched.
type Cleanup struct {
	tempDir string
	enabled bool
}

func NewCleanup(tempDir string, enabled bool) *Cleanup {
	return &Cleanup{tempDir: tempDir, enabled: enabled}
}

// CleanupRun deletes both takes for stem. Missing files are ignored.
func (c *Cleanup) CleanupRun(stem string) {
	if !c.enabled || c.tempDir == "" || stem == "" {
		return
	}
	stable, expressive := speech.DualPaths(filepath.Join(c.tempDir, "audio", stem))
	for _, p := range []string{stable, expressive} {
		_ = os.Remove(p)
	}
}
