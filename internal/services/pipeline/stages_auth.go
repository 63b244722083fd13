package pipeline

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Authentication and intake navigation stages
// -----------------------------------------------------------------------

// stageAuthenticate signs into the portal. When the session already holds
// an authenticated page (landing element visible), the login is skipped;
// the persistent profile keeps portal cookies across jobs.
func (e *Executor) stageAuthenticate(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	if e.cfg.Portal.URL == "" || e.cfg.Portal.Username == "" || e.cfg.Portal.Password == "" {
		return models.OutcomeFail("portal credentials are not configured")
	}

	nctx, cancel := e.navContext(session)
	defer cancel()

	if visible, err := isVisible(nctx, e.defs.Login.Landing); err == nil && visible {
		e.logger.Debug().Str("worker", session.WorkerKey).Msg("Session already authenticated")
		return models.OutcomeOK("already authenticated")
	}

	if err := chromedp.Run(nctx, chromedp.Navigate(e.cfg.Portal.URL)); err != nil {
		return models.OutcomeFailf("failed to open portal: %v", err)
	}

	// A prior crash can leave the profile logged in; navigation may land
	// on the menu instead of the login form.
	if visible, err := isVisible(nctx, e.defs.Login.Landing); err == nil && visible {
		return models.OutcomeOK("already authenticated")
	}

	err := chromedp.Run(nctx,
		chromedp.WaitVisible(e.defs.Login.Username, chromedp.ByQuery),
		chromedp.Clear(e.defs.Login.Username, chromedp.ByQuery),
		chromedp.SendKeys(e.defs.Login.Username, e.cfg.Portal.Username, chromedp.ByQuery),
		chromedp.Clear(e.defs.Login.Password, chromedp.ByQuery),
		chromedp.SendKeys(e.defs.Login.Password, e.cfg.Portal.Password, chromedp.ByQuery),
		chromedp.Click(e.defs.Login.Submit, chromedp.ByQuery),
		chromedp.WaitVisible(e.defs.Login.Landing, chromedp.ByQuery),
	)
	if err != nil {
		return models.OutcomeFailf("login failed: %v", err)
	}

	return models.OutcomeOK("authenticated")
}

// stageOpenIntake navigates from the landing menu to a fresh capture form.
func (e *Executor) stageOpenIntake(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	nctx, cancel := e.navContext(session)
	defer cancel()

	if err := clickControl(nctx, e.defs.Intake.MenuItem); err != nil {
		return models.OutcomeFailf("capture menu unreachable: %v", err)
	}
	if err := chromedp.Run(nctx, chromedp.WaitVisible(e.defs.Intake.Container, chromedp.ByQuery)); err != nil {
		return models.OutcomeFailf("capture screen did not load: %v", err)
	}

	// Lookup dialogs sometimes auto-open on this screen.
	if _, err := dismissOpenDialogs(nctx, &e.defs.Dialogs); err != nil {
		return models.OutcomeFromError(err)
	}

	if err := clickControl(nctx, e.defs.Intake.NewButton); err != nil {
		return models.OutcomeFailf("new capture control unreachable: %v", err)
	}

	// First tab of a fresh form must render before field entry starts.
	clientTab, err := e.defs.Tab("client")
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if err := chromedp.Run(nctx, chromedp.WaitVisible(clientTab.Container, chromedp.ByQuery)); err != nil {
		return models.OutcomeFailf("capture form did not open: %v", err)
	}
	if err := sleepCtx(nctx, 500*time.Millisecond); err != nil {
		return models.OutcomeFromError(err)
	}

	return models.OutcomeOK("capture form opened")
}
