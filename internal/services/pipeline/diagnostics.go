package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Diagnostics - confirmation parsing and failure capture
// -----------------------------------------------------------------------

// dumpExcerptLimit bounds the markdown page dump kept on a failed run.
const dumpExcerptLimit = 4000

// stageReport reads the portal's confirmation fragment after the final
// filing and extracts the assigned policy reference. A filing that "worked"
// but produced no reference is a failure; the reference is the only proof
// of capture.
func (e *Executor) stageReport(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	nctx, cancel := e.navContext(session)
	defer cancel()

	if err := chromedp.Run(nctx, chromedp.WaitVisible(e.defs.Confirmation.Container, chromedp.ByQuery)); err != nil {
		return models.OutcomeFailf("confirmation fragment did not appear: %v", err)
	}

	var html string
	if err := chromedp.Run(nctx, chromedp.OuterHTML(e.defs.Confirmation.Container, &html, chromedp.ByQuery)); err != nil {
		return models.OutcomeFailf("failed to read confirmation fragment: %v", err)
	}

	reference, status, err := parseConfirmation(html, &e.defs.Confirmation)
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if reference == "" {
		return models.OutcomeFail("confirmation fragment carries no policy reference")
	}

	e.logger.Info().
		Str("job", job.Name).
		Int("row", job.Row).
		Str("reference", reference).
		Str("portal_status", status).
		Msg("Capture confirmed")

	return models.OutcomeOKData(fmt.Sprintf("captured as %s", reference), map[string]interface{}{
		"reference":     reference,
		"portal_status": status,
	})
}

// parseConfirmation extracts the reference and status texts from the
// confirmation fragment's HTML.
func parseConfirmation(html string, defs *forms.Confirmation) (reference, status string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse confirmation fragment: %w", err)
	}

	// Selectors in the catalog are scoped to the container; when the
	// fragment itself was fetched, match on the trailing class part.
	reference = strings.TrimSpace(doc.Find(lastSelectorPart(defs.Reference)).First().Text())
	status = strings.TrimSpace(doc.Find(lastSelectorPart(defs.Status)).First().Text())
	return reference, status, nil
}

func lastSelectorPart(selector string) string {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return selector
	}
	return parts[len(parts)-1]
}

// CaptureFailure grabs a full-page screenshot and a markdown rendering of
// the page for a failed run. Strictly best-effort: capture problems are
// logged and swallowed, never allowed to mask the original failure.
func (e *Executor) CaptureFailure(ctx context.Context, session *models.Session, runID string) (screenshot, dump string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Str("panic", fmt.Sprintf("%v", r)).Msg("Failure capture panicked")
		}
	}()

	if session == nil || !session.Alive() {
		return "", ""
	}

	actx, cancel := e.actContext(session)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(actx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		e.logger.Warn().Err(err).Str("run_id", runID).Msg("Failure screenshot failed")
	} else if path, err := e.writeScreenshot(runID, buf); err != nil {
		e.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to write failure screenshot")
	} else {
		screenshot = path
	}

	var html string
	if err := chromedp.Run(actx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		e.logger.Warn().Err(err).Str("run_id", runID).Msg("Failure page dump failed")
		return screenshot, ""
	}

	markdown, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		e.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to render page dump")
		return screenshot, ""
	}
	return screenshot, truncateRunes(strings.TrimSpace(markdown), dumpExcerptLimit)
}

func (e *Executor) writeScreenshot(runID string, data []byte) (string, error) {
	dir := e.cfg.Pipeline.ScreenshotDir
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to resolve screenshot directory: %w", err)
		}
		dir = filepath.Join(filepath.Dir(exe), "screenshots")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	path := filepath.Join(dir, runID+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
