package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// -----------------------------------------------------------------------
// Field entry helpers - plain entry plus the portal's awkward controls
// -----------------------------------------------------------------------

// setTextField clears and types into a plain text input.
func setTextField(ctx context.Context, selector, value string) error {
	err := chromedp.Run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to set field %s: %w", selector, err)
	}
	return nil
}

// setSelectByValue picks an option on a select control by option value,
// firing the control's normal change events.
func setSelectByValue(ctx context.Context, selector, value string) error {
	if err := chromedp.Run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to select %q on %s: %w", value, selector, err)
	}
	return nil
}

// setSelectNoHooks assigns a select control's value without firing change
// or blur handlers. The portal's account type control re-derives state
// inside its change hook and clobbers scripted assignments; its filing
// handler reads selection state directly, so skipping the hooks is safe.
func setSelectNoHooks(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el) { return "missing"; }
		var onchange = el.onchange;
		var onblur = el.onblur;
		el.onchange = null;
		el.onblur = null;
		el.value = %q;
		for (var i = 0; i < el.options.length; i++) {
			if (el.options[i].value === %q) { el.selectedIndex = i; break; }
		}
		el.onchange = onchange;
		el.onblur = onblur;
		return el.value === %q ? "ok" : "unmatched";
	})()`, selector, value, value, value)

	var result string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return fmt.Errorf("failed to set %s without hooks: %w", selector, err)
	}
	switch result {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("select element not found: %s", selector)
	default:
		return fmt.Errorf("select %s has no option with value %q", selector, value)
	}
}

// setReadOnlyField writes a value into a read-only input by lifting the
// attribute for the assignment and restoring it afterwards. Used for the
// premium mirror field, which the portal populates from a client-side
// hook that scripted entry does not trigger.
func setReadOnlyField(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el) { return "missing"; }
		var wasReadOnly = el.readOnly;
		el.readOnly = false;
		el.value = %q;
		el.readOnly = wasReadOnly;
		return "ok";
	})()`, selector, value)

	var result string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return fmt.Errorf("failed to set read-only field %s: %w", selector, err)
	}
	if result != "ok" {
		return fmt.Errorf("read-only field not found: %s", selector)
	}
	return nil
}

// setDisabledSelect enables a disabled select long enough to pick an
// option. Matching is tried against option labels first, then option
// values, since the portal renders this control with inconsistent value
// attributes across its pages.
func setDisabledSelect(ctx context.Context, selector, label, value string) error {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		if (!el) { return "missing"; }
		var wasDisabled = el.disabled;
		el.disabled = false;
		var matched = false;
		for (var i = 0; i < el.options.length; i++) {
			if (el.options[i].label === %q || el.options[i].text === %q) {
				el.selectedIndex = i; matched = true; break;
			}
		}
		if (!matched) {
			for (var i = 0; i < el.options.length; i++) {
				if (el.options[i].value === %q) {
					el.selectedIndex = i; matched = true; break;
				}
			}
		}
		el.disabled = wasDisabled;
		return matched ? "ok" : "unmatched";
	})()`, selector, label, label, value)

	var result string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return fmt.Errorf("failed to set disabled select %s: %w", selector, err)
	}
	switch result {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("select element not found: %s", selector)
	default:
		return fmt.Errorf("select %s has no option labelled %q or valued %q", selector, label, value)
	}
}

// isVisible reports whether the selector matches a rendered element.
func isVisible(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`(function() {
		var el = document.querySelector(%q);
		return !!(el && el.offsetParent !== null);
	})()`, selector)

	var visible bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, fmt.Errorf("visibility check failed for %s: %w", selector, err)
	}
	return visible, nil
}

// clickControl scrolls the element into view and clicks it.
func clickControl(ctx context.Context, selector string) error {
	err := chromedp.Run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
