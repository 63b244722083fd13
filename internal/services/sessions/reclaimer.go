package sessions

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// processReclaimer kills automation-host processes left holding profile
// directories by a previous crashed run. Matching is by command line: only
// our browsers reference the profile paths, so the path itself is the
// pattern. The per-OS kill mechanics live in reclaimer_<os>.go.
type processReclaimer struct {
	logger arbor.ILogger
}

// NewReclaimer returns the orphan reclaimer for the current OS.
func NewReclaimer(logger arbor.ILogger) interfaces.OrphanReclaimer {
	return &processReclaimer{logger: logger}
}

// Sweep kills every process whose command line references the profile
// root. Run once at process start, before any session is launched, so
// profile-lock contention never carries over between restarts.
func (r *processReclaimer) Sweep(profileRoot string) (int, error) {
	if profileRoot == "" {
		return 0, nil
	}

	killed, err := killProcessesReferencing(profileRoot)
	if killed > 0 {
		r.logger.Warn().
			Int("killed", killed).
			Str("profile_root", profileRoot).
			Msg("Terminated orphaned browser processes from a previous run")
	}
	return killed, err
}

// Reclaim kills processes holding one specific profile directory. Run
// before each launch attempt on that directory.
func (r *processReclaimer) Reclaim(profileDir string) (int, error) {
	if profileDir == "" {
		return 0, nil
	}

	killed, err := killProcessesReferencing(profileDir)
	if killed > 0 {
		r.logger.Info().
			Int("killed", killed).
			Str("profile_dir", profileDir).
			Msg("Terminated processes holding profile directory")
	}
	return killed, err
}
