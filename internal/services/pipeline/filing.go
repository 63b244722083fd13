package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Filing protocol - shared across all three capture tabs
// -----------------------------------------------------------------------

// fileTab runs the portal's filing protocol for one tab:
//
//  1. make sure the tab is the active one
//  2. clear any interstitial dialogs left over from field entry
//  3. click the filing control
//  4. wait out the fixed server round-trip delay
//  5. poll for dialogs, classify each against the validation keywords,
//     and dismiss everything found
//
// The stage fails only when at least one dialog classified as a
// validation error; informational dialogs are swallowed.
func (e *Executor) fileTab(session *models.Session, tabName string) models.StageOutcome {
	tab, err := e.defs.Tab(tabName)
	if err != nil {
		return models.OutcomeFromError(err)
	}

	ctx, cancel := e.navContext(session)
	defer cancel()

	if err := e.activateTab(session, tab); err != nil {
		return models.OutcomeFromError(err)
	}

	if n, err := dismissOpenDialogs(ctx, &e.defs.Dialogs); err != nil {
		return models.OutcomeFromError(err)
	} else if n > 0 {
		e.logger.Debug().Int("count", n).Str("tab", tabName).Msg("Cleared dialogs before filing")
	}

	if err := clickControl(ctx, tab.FileButton); err != nil {
		return models.OutcomeFailf("filing control unreachable on %s tab: %v", tabName, err)
	}

	delay := e.cfg.Pipeline.PostFileDelay
	if delay <= 0 {
		delay = 4 * time.Second
	}
	if err := sleepCtx(ctx, delay); err != nil {
		return models.OutcomeFromError(err)
	}

	texts, err := e.collectDialogs(ctx, session.Dialogs)
	if err != nil {
		return models.OutcomeFromError(err)
	}

	var validationErrs []string
	for _, text := range texts {
		if isValidationText(text, e.cfg.Pipeline.ValidationKeywords) {
			validationErrs = append(validationErrs, text)
		} else {
			e.logger.Debug().Str("tab", tabName).Str("message", text).Msg("Informational dialog dismissed")
		}
	}

	if len(validationErrs) > 0 {
		return models.OutcomeFailf("portal rejected %s tab: %s", tabName, strings.Join(validationErrs, "; "))
	}

	return models.OutcomeOK(fmt.Sprintf("%s tab filed", tabName))
}

// activateTab clicks the tab link when its container is not the visible
// one. Idempotent on an already-active tab.
func (e *Executor) activateTab(session *models.Session, tab forms.Tab) error {
	ctx, cancel := e.actContext(session)
	defer cancel()

	visible, err := isVisible(ctx, tab.Container)
	if err != nil {
		return err
	}
	if visible {
		return nil
	}

	if tab.Link == "" {
		return fmt.Errorf("tab container %s not visible and no tab link defined", tab.Container)
	}
	if err := clickControl(ctx, tab.Link); err != nil {
		return err
	}

	// The portal swaps tab panes client-side; give the pane a moment.
	if err := sleepCtx(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	visible, err = isVisible(ctx, tab.Container)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("tab container %s did not become visible", tab.Container)
	}
	return nil
}
