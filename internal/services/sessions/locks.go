package sessions

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
)

// staleLockArtifacts are the files the automation host leaves behind in a
// profile directory when it dies without cleanup. Any of them present at
// launch time makes the next launch fail with a profile-in-use error.
var staleLockArtifacts = []string{
	"SingletonLock",
	"SingletonSocket",
	"SingletonCookie",
	"lockfile",
	"DevToolsActivePort",
}

// CleanStaleLocks deletes known stale lock artifacts from a profile
// directory. Idempotent: a directory with no artifacts (or no directory at
// all) is a successful no-op. Returns the number of artifacts removed.
func CleanStaleLocks(profileDir string, logger arbor.ILogger) int {
	removed := 0
	for _, name := range staleLockArtifacts {
		path := filepath.Join(profileDir, name)
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			if logger != nil {
				logger.Warn().Err(err).Str("artifact", path).Msg("Failed to remove stale lock artifact")
			}
			continue
		}
		removed++
		if logger != nil {
			logger.Debug().Str("artifact", path).Msg("Removed stale lock artifact")
		}
	}
	return removed
}
