// -----------------------------------------------------------------------
// Stage Outcome - Atomic result type returned by every pipeline stage
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// StageOutcome is the result of one pipeline stage. Stages never panic
// across this boundary by contract; internal failures are caught and
// converted to a failed outcome carrying a diagnostic message. Duration
// is stamped by the executor, not by the stages themselves.
type StageOutcome struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Duration time.Duration          `json:"duration,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// OutcomeOK returns a successful outcome.
func OutcomeOK(message string) StageOutcome {
	return StageOutcome{Success: true, Message: message}
}

// OutcomeOKData returns a successful outcome carrying structured values
// read back from the form (resolved codes, derived selections).
func OutcomeOKData(message string, data map[string]interface{}) StageOutcome {
	return StageOutcome{Success: true, Message: message, Data: data}
}

// OutcomeFail returns a failed outcome.
func OutcomeFail(message string) StageOutcome {
	return StageOutcome{Success: false, Message: message}
}

// OutcomeFailf returns a failed outcome with a formatted message.
func OutcomeFailf(format string, args ...interface{}) StageOutcome {
	return StageOutcome{Success: false, Message: fmt.Sprintf(format, args...)}
}

// OutcomeFromError converts an error to a failed outcome. A nil error
// becomes a bare success.
func OutcomeFromError(err error) StageOutcome {
	if err == nil {
		return StageOutcome{Success: true}
	}
	return StageOutcome{Success: false, Message: err.Error()}
}
