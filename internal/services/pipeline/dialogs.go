package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Dialog handling - native JS dialogs and DOM interstitials
// -----------------------------------------------------------------------

// ensureDialogListener wires a native-dialog listener to the session's
// target, once per session. Each alert or confirm raised by the portal is
// auto-accepted so the page never hangs on a blocked event loop, and its
// text lands in the session's dialog log for classification.
func (e *Executor) ensureDialogListener(session *models.Session) {
	if session == nil || session.Ctx == nil {
		return
	}
	if _, attached := e.listeners.LoadOrStore(session, true); attached {
		return
	}

	// Listener state dies with the session. A recycled worker key comes
	// back as a fresh session pointer and gets a fresh listener.
	go func() {
		<-session.Ctx.Done()
		e.listeners.Delete(session)
	}()

	// ListenTarget panics on a context without browser state attached.
	if chromedp.FromContext(session.Ctx) == nil {
		return
	}
	attachDialogListener(session, e.logger)
}

func attachDialogListener(session *models.Session, logger arbor.ILogger) {
	chromedp.ListenTarget(session.Ctx, func(ev interface{}) {
		evt, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		session.Dialogs.Record(string(evt.Message))
		logger.Debug().
			Str("worker", session.WorkerKey).
			Str("message", string(evt.Message)).
			Msg("Native dialog intercepted")

		// Handled off the event goroutine; HandleJavaScriptDialog blocks
		// until the browser acknowledges.
		go func() {
			if err := chromedp.Run(session.Ctx, page.HandleJavaScriptDialog(true)); err != nil {
				logger.Warn().Err(err).Msg("Failed to acknowledge native dialog")
			}
		}()
	})
}

// isValidationText reports whether dialog text matches any of the
// configured validation keywords. Matching is case-insensitive substring.
// Text matching no keyword is informational and is dismissed silently.
func isValidationText(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// readInfoDialog returns the visible info dialog's message, or "" when no
// info dialog is showing.
func readInfoDialog(ctx context.Context, defs *forms.Dialogs) (string, error) {
	script := fmt.Sprintf(`(function() {
		var box = document.querySelector(%q);
		if (!box || box.offsetParent === null) { return ""; }
		var msg = document.querySelector(%q);
		return msg ? msg.textContent.trim() : "";
	})()`, defs.InfoContainer, defs.InfoMessage)

	var text string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("failed to read info dialog: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// dismissOpenDialogs clicks the dismiss control of every visible dialog
// variant. Returns the number of dialogs dismissed. Safe to call when
// nothing is showing.
func dismissOpenDialogs(ctx context.Context, defs *forms.Dialogs) (int, error) {
	script := fmt.Sprintf(`(function() {
		var dismissed = 0;
		var targets = [[%q, %q], [%q, %q]];
		for (var i = 0; i < targets.length; i++) {
			var box = document.querySelector(targets[i][0]);
			if (!box || box.offsetParent === null) { continue; }
			var btn = document.querySelector(targets[i][1]);
			if (btn) { btn.click(); dismissed++; }
		}
		return dismissed;
	})()`, defs.InfoContainer, defs.InfoDismiss, defs.LookupContainer, defs.LookupDismiss)

	var dismissed int
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &dismissed)); err != nil {
		return 0, fmt.Errorf("failed to dismiss dialogs: %w", err)
	}
	return dismissed, nil
}

// collectDialogs polls for dialogs over a bounded window, dismissing each
// one found and accumulating their texts. Both DOM interstitials and
// recorded native dialogs are swept. The poll is bounded: a portal that
// keeps raising dialogs cannot wedge the stage.
func (e *Executor) collectDialogs(ctx context.Context, recorder *models.DialogLog) ([]string, error) {
	attempts := e.cfg.Pipeline.DialogPollAttempts
	if attempts <= 0 {
		attempts = 5
	}
	interval := e.cfg.Pipeline.DialogPollInterval
	if interval <= 0 {
		interval = 750 * time.Millisecond
	}

	var texts []string
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return texts, err
		}

		texts = append(texts, recorder.Drain()...)

		msg, err := readInfoDialog(ctx, &e.defs.Dialogs)
		if err != nil {
			return texts, err
		}
		if msg != "" {
			texts = append(texts, msg)
		}

		if _, err := dismissOpenDialogs(ctx, &e.defs.Dialogs); err != nil {
			return texts, err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return texts, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	texts = append(texts, recorder.Drain()...)
	return texts, nil
}
