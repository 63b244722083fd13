package interfaces

import (
	"context"

	"github.com/ternarybob/scriba/internal/models"
)

// DefaultWorkerKey is the session used for manual, single-job operations.
const DefaultWorkerKey = "default"

// SessionPool manages isolated browser sessions keyed by worker.
//
// Each key owns an independent session with its own on-disk profile
// directory, so the pool holds no cross-key locks. Callers must serialize
// their own use of a single key; the scheduler does this by never binding
// two concurrent jobs to the same key.
type SessionPool interface {
	// Acquire returns the live session for the worker key, launching one
	// when none exists. Two acquires on the same key return the same
	// session until it is released or the browser dies.
	Acquire(ctx context.Context, workerKey string) (*models.Session, error)

	// Release closes the worker key's session and removes it from the
	// pool. A later Acquire relaunches.
	Release(workerKey string)

	// ReleaseAll closes every live session. Called on shutdown.
	ReleaseAll()

	// Stats returns pool statistics for the status endpoint.
	Stats() map[string]interface{}
}

// OrphanReclaimer terminates OS processes left holding profile directories
// by a previous crashed run. Implementations are per-OS; contention here is
// cross-process, so it cannot be solved with in-process locking.
type OrphanReclaimer interface {
	// Sweep kills every automation-host process whose command line
	// references the profile root. Runs once at process start, before any
	// session is launched. Returns the number of processes terminated.
	Sweep(profileRoot string) (int, error)

	// Reclaim kills processes holding one specific profile directory.
	// Runs before each launch attempt on that directory.
	Reclaim(profileDir string) (int, error)
}
