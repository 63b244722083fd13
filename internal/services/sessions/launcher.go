// -----------------------------------------------------------------------
// Session Launcher - Browser launch with lock cleanup and profile recovery
// -----------------------------------------------------------------------

package sessions

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// Launcher starts a browser against an on-disk profile directory, working
// through the recovery chain when the profile is locked or corrupted:
//
//  1. kill orphans holding the directory, clean stale locks, retry launch
//     up to the configured budget with a fixed delay
//  2. rename the corrupted profile aside and relaunch against a fresh
//     empty directory at the original path
//  3. fall back to alternately-named fresh directories until one launches
//     or the fallback budget is exhausted
type Launcher struct {
	cfg       *common.BrowserConfig
	reclaimer interfaces.OrphanReclaimer
	logger    arbor.ILogger
	// probeTimeout bounds the startup navigation test per attempt.
	probeTimeout time.Duration
}

// NewLauncher creates a launcher.
func NewLauncher(cfg *common.BrowserConfig, reclaimer interfaces.OrphanReclaimer, logger arbor.ILogger) *Launcher {
	return &Launcher{
		cfg:          cfg,
		reclaimer:    reclaimer,
		logger:       logger,
		probeTimeout: 30 * time.Second,
	}
}

// Launch runs the full recovery chain for a worker key and returns a live
// session plus the cancel that tears down its browser and allocator.
func (l *Launcher) Launch(ctx context.Context, workerKey, profileDir string) (*models.Session, context.CancelFunc, error) {
	session, cancel, err := l.launchWithRetries(ctx, workerKey, profileDir)
	if err == nil {
		return session, cancel, nil
	}

	l.logger.Warn().
		Err(err).
		Str("worker", workerKey).
		Str("profile_dir", profileDir).
		Msg("Launch attempts exhausted, trying profile recovery")

	// Rename the corrupted profile aside and start fresh at the original
	// path. The rename preserves the old directory for inspection.
	aside := fmt.Sprintf("%s-corrupt-%s", profileDir, time.Now().Format("20060102-150405"))
	if renameErr := os.Rename(profileDir, aside); renameErr != nil && !os.IsNotExist(renameErr) {
		l.logger.Warn().
			Err(renameErr).
			Str("profile_dir", profileDir).
			Msg("Could not rename corrupted profile aside")
	} else {
		session, cancel, err = l.launchWithRetries(ctx, workerKey, profileDir)
		if err == nil {
			return session, cancel, nil
		}
	}

	// Even the fresh directory failed (the lock cannot be released, or the
	// path itself is poisoned). Walk the alternate directories.
	fallbacks := l.cfg.ProfileFallbacks
	if fallbacks <= 0 {
		fallbacks = 3
	}
	for i := 1; i <= fallbacks; i++ {
		alt := fmt.Sprintf("%s-alt%d", profileDir, i)
		session, cancel, err = l.launchWithRetries(ctx, workerKey, alt)
		if err == nil {
			l.logger.Warn().
				Str("worker", workerKey).
				Str("profile_dir", alt).
				Msg("Session launched against alternate profile directory")
			return session, cancel, nil
		}
	}

	return nil, nil, fmt.Errorf("all launch fallbacks exhausted for worker %s: %w", workerKey, err)
}

// launchWithRetries attempts one profile directory up to the retry budget,
// re-cleaning stale locks before every attempt.
func (l *Launcher) launchWithRetries(ctx context.Context, workerKey, profileDir string) (*models.Session, context.CancelFunc, error) {
	retries := l.cfg.LaunchRetries
	if retries <= 0 {
		retries = 3
	}
	delay := l.cfg.LaunchRetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create profile directory %s: %w", profileDir, err)
	}

	if _, err := l.reclaimer.Reclaim(profileDir); err != nil {
		l.logger.Debug().Err(err).Str("profile_dir", profileDir).Msg("Orphan reclaim failed (continuing)")
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("launch cancelled: %w", err)
		}

		CleanStaleLocks(profileDir, l.logger)

		session, cancel, err := l.launchOnce(workerKey, profileDir)
		if err == nil {
			return session, cancel, nil
		}
		lastErr = err

		l.logger.Warn().
			Err(err).
			Str("worker", workerKey).
			Str("profile_dir", profileDir).
			Int("attempt", attempt).
			Int("max_attempts", retries).
			Msg("Browser launch failed")

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, nil, fmt.Errorf("launch cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return nil, nil, fmt.Errorf("launch failed after %d attempts on %s: %w", retries, profileDir, lastErr)
}

// launchOnce starts one allocator/browser context pair and probes it with
// an about:blank navigation before handing it out.
func (l *Launcher) launchOnce(workerKey, profileDir string) (*models.Session, context.CancelFunc, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(l.windowWidth(), l.windowHeight()),
		chromedp.UserAgent(l.cfg.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	cancel := func() {
		browserCancel()
		allocatorCancel()
	}

	// Startup probe: the browser must navigate and answer a title read
	// within the probe timeout or it is considered dead on arrival.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, l.probeTimeout)
	defer probeCancel()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("browser failed startup probe: %w", err)
	}
	var title string
	if err := chromedp.Run(probeCtx, chromedp.Title(&title)); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("browser failed responsiveness probe: %w", err)
	}

	l.logger.Debug().
		Str("worker", workerKey).
		Str("profile_dir", profileDir).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session launched")

	return models.NewSession(workerKey, profileDir, browserCtx), cancel, nil
}

func (l *Launcher) windowWidth() int {
	if l.cfg.WindowWidth > 0 {
		return l.cfg.WindowWidth
	}
	return 1920
}

func (l *Launcher) windowHeight() int {
	if l.cfg.WindowHeight > 0 {
		return l.cfg.WindowHeight
	}
	return 1080
}
