package sessions

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

// stubReclaimer records calls without touching any processes.
type stubReclaimer struct {
	sweeps   atomic.Int32
	reclaims atomic.Int32
}

func (r *stubReclaimer) Sweep(profileRoot string) (int, error) {
	r.sweeps.Add(1)
	return 0, nil
}

func (r *stubReclaimer) Reclaim(profileDir string) (int, error) {
	r.reclaims.Add(1)
	return 0, nil
}

// newStubPool builds a pool whose launch path fabricates sessions with a
// cancellable context instead of starting a real browser.
func newStubPool(t *testing.T) (*Pool, *atomic.Int32) {
	t.Helper()

	var launches atomic.Int32
	pool := NewPool(&common.BrowserConfig{ProfileRoot: t.TempDir()}, &stubReclaimer{}, arbor.NewLogger())
	pool.launch = func(ctx context.Context, workerKey, profileDir string) (*models.Session, context.CancelFunc, error) {
		launches.Add(1)
		sessionCtx, cancel := context.WithCancel(context.Background())
		return models.NewSession(workerKey, profileDir, sessionCtx), cancel, nil
	}

	t.Cleanup(pool.ReleaseAll)
	return pool, &launches
}

func TestAcquireReturnsSameSessionUntilReleased(t *testing.T) {
	pool, launches := newStubPool(t)
	ctx := context.Background()

	first, err := pool.Acquire(ctx, "w1")
	require.NoError(t, err)
	second, err := pool.Acquire(ctx, "w1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), launches.Load())

	pool.Release("w1")

	third, err := pool.Acquire(ctx, "w1")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), launches.Load())
}

func TestAcquireIsolatesWorkerKeys(t *testing.T) {
	pool, launches := newStubPool(t)
	ctx := context.Background()

	s1, err := pool.Acquire(ctx, "w1")
	require.NoError(t, err)
	s2, err := pool.Acquire(ctx, "w2")
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.NotEqual(t, s1.ProfileDir, s2.ProfileDir)
	assert.Equal(t, int32(2), launches.Load())
}

func TestCloseObserverRemovesDeadSession(t *testing.T) {
	pool, launches := newStubPool(t)
	ctx := context.Background()

	first, err := pool.Acquire(ctx, "w1")
	require.NoError(t, err)

	// Simulate the browser dying.
	pool.mu.Lock()
	entry := pool.sessions["w1"]
	pool.mu.Unlock()
	entry.cancel()

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		_, ok := pool.sessions["w1"]
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "close observer should drop the dead session")

	second, err := pool.Acquire(ctx, "w1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), launches.Load())
}

func TestEmptyWorkerKeyMapsToDefault(t *testing.T) {
	pool, _ := newStubPool(t)

	session, err := pool.Acquire(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "default", session.WorkerKey)
}

func TestReleaseAll(t *testing.T) {
	pool, _ := newStubPool(t)
	ctx := context.Background()

	s1, _ := pool.Acquire(ctx, "w1")
	s2, _ := pool.Acquire(ctx, "w2")

	pool.ReleaseAll()

	assert.False(t, s1.Alive())
	assert.False(t, s2.Alive())
	assert.Equal(t, 0, pool.Stats()["live_sessions"])
}

func TestCleanStaleLocks(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"SingletonLock", "SingletonSocket", "lockfile"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("stale"), 0644))
	}
	// A real profile file must survive.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Preferences"), []byte("{}"), 0644))

	removed := CleanStaleLocks(dir, arbor.NewLogger())
	assert.Equal(t, 3, removed)

	for _, name := range []string{"SingletonLock", "SingletonSocket", "lockfile"} {
		_, err := os.Lstat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s should be gone", name)
	}
	_, err := os.Lstat(filepath.Join(dir, "Preferences"))
	assert.NoError(t, err)

	// Idempotent on an already-clean directory.
	assert.Equal(t, 0, CleanStaleLocks(dir, arbor.NewLogger()))
	// And on a directory that does not exist at all.
	assert.Equal(t, 0, CleanStaleLocks(filepath.Join(dir, "missing"), arbor.NewLogger()))
}
