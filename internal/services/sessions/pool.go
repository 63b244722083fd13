// -----------------------------------------------------------------------
// Session Pool - Keyed registry of isolated browser sessions
// -----------------------------------------------------------------------

package sessions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// launchFunc is the pool's pluggable launch path; tests inject a stub.
type launchFunc func(ctx context.Context, workerKey, profileDir string) (*models.Session, context.CancelFunc, error)

type poolEntry struct {
	session *models.Session
	cancel  context.CancelFunc
}

// Pool is a keyed registry of browser sessions. Sessions are fully
// isolated (separate profile directories, separate pages), so there is no
// cross-key locking beyond guarding the registry map itself. Callers must
// serialize operations against the same key.
type Pool struct {
	mu          sync.Mutex
	sessions    map[string]*poolEntry
	launch      launchFunc
	profileRoot string
	reclaimer   interfaces.OrphanReclaimer
	logger      arbor.ILogger
}

// NewPool creates a session pool. When the configured profile root is
// empty it resolves to <executable dir>/profiles.
func NewPool(cfg *common.BrowserConfig, reclaimer interfaces.OrphanReclaimer, logger arbor.ILogger) *Pool {
	root := cfg.ProfileRoot
	if root == "" {
		if execPath, err := os.Executable(); err == nil {
			root = filepath.Join(filepath.Dir(execPath), "profiles")
		} else {
			root = "profiles"
		}
	}

	launcher := NewLauncher(cfg, reclaimer, logger)

	return &Pool{
		sessions:    make(map[string]*poolEntry),
		launch:      launcher.Launch,
		profileRoot: root,
		reclaimer:   reclaimer,
		logger:      logger,
	}
}

// ProfileRoot returns the directory holding per-worker profiles.
func (p *Pool) ProfileRoot() string {
	return p.profileRoot
}

// SweepOrphans force-kills automation-host processes left over from a
// prior crashed run. Must run once at process start, before the first
// Acquire.
func (p *Pool) SweepOrphans() {
	killed, err := p.reclaimer.Sweep(p.profileRoot)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Startup orphan sweep failed")
		return
	}
	p.logger.Info().
		Int("killed", killed).
		Str("profile_root", p.profileRoot).
		Msg("Startup orphan sweep complete")
}

// Acquire returns the live session for a worker key, launching one when
// none exists. Repeat acquires on the same key return the same session
// until it is released or its browser dies.
func (p *Pool) Acquire(ctx context.Context, workerKey string) (*models.Session, error) {
	if workerKey == "" {
		workerKey = interfaces.DefaultWorkerKey
	}

	p.mu.Lock()
	if entry, ok := p.sessions[workerKey]; ok {
		if entry.session.Alive() {
			p.mu.Unlock()
			return entry.session, nil
		}
		// Browser died without the observer having fired yet.
		delete(p.sessions, workerKey)
		entry.cancel()
	}
	p.mu.Unlock()

	profileDir := filepath.Join(p.profileRoot, "profile-"+workerKey)

	session, cancel, err := p.launch(ctx, workerKey, profileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session for worker %s: %w", workerKey, err)
	}

	p.mu.Lock()
	p.sessions[workerKey] = &poolEntry{session: session, cancel: cancel}
	p.mu.Unlock()

	p.watchClose(workerKey, session)

	p.logger.Info().
		Str("worker", workerKey).
		Str("profile_dir", session.ProfileDir).
		Msg("Session acquired")

	return session, nil
}

// watchClose registers the close observer: when the browser context ends
// for any reason, the session is dropped from the registry so a later
// Acquire on the same key transparently relaunches.
func (p *Pool) watchClose(workerKey string, session *models.Session) {
	if session.Ctx == nil {
		return
	}

	common.SafeGo(p.logger, "session-close-observer", func() {
		<-session.Ctx.Done()

		p.mu.Lock()
		entry, ok := p.sessions[workerKey]
		if ok && entry.session == session {
			delete(p.sessions, workerKey)
			p.mu.Unlock()
			p.logger.Warn().
				Str("worker", workerKey).
				Msg("Session closed, removed from pool")
			return
		}
		p.mu.Unlock()
	})
}

// Release closes the worker key's session and removes it from the pool.
func (p *Pool) Release(workerKey string) {
	p.mu.Lock()
	entry, ok := p.sessions[workerKey]
	if ok {
		delete(p.sessions, workerKey)
	}
	p.mu.Unlock()

	if !ok {
		return
	}

	entry.cancel()
	p.logger.Info().Str("worker", workerKey).Msg("Session released")
}

// ReleaseAll closes every live session. Called on shutdown.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	entries := p.sessions
	p.sessions = make(map[string]*poolEntry)
	p.mu.Unlock()

	for key, entry := range entries {
		entry.cancel()
		p.logger.Debug().Str("worker", key).Msg("Session released")
	}

	if len(entries) > 0 {
		p.logger.Info().Int("count", len(entries)).Msg("All sessions released")
	}
}

// Stats returns pool statistics for the status endpoint.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.sessions))
	for key := range p.sessions {
		keys = append(keys, key)
	}

	return map[string]interface{}{
		"live_sessions": len(p.sessions),
		"worker_keys":   keys,
		"profile_root":  p.profileRoot,
	}
}
