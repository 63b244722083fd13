package interfaces

import (
	"context"

	"github.com/ternarybob/scriba/internal/models"
)

// StageObserver is notified after each stage completes, successful or not.
// Used by the scheduler for best-effort sheet highlights and run tracking;
// observers must never abort the job.
type StageObserver func(stage string, outcome models.StageOutcome)

// PipelineExecutor drives a job through the portal's fixed stage sequence.
// Stages run in strict order: a stage only runs after its predecessor
// succeeded, and the first failure halts the remainder.
type PipelineExecutor interface {
	// StageNames returns the ordered stage sequence.
	StageNames() []string

	// RunJob runs the full sequence against the session. Always returns an
	// outcome; stage panics are converted to failed outcomes, never leaked.
	RunJob(ctx context.Context, session *models.Session, job *models.Job, observer StageObserver) models.StageOutcome

	// RunStage runs a single named stage for manual stepwise invocation
	// against a warm session. Returns an error only for an unknown stage.
	RunStage(ctx context.Context, session *models.Session, job *models.Job, stage string) (models.StageOutcome, error)

	// CaptureFailure grabs a full-page screenshot and a bounded markdown
	// excerpt of the visible form at the moment of failure. Best-effort:
	// either return value may be empty, and it never panics.
	CaptureFailure(ctx context.Context, session *models.Session, runID string) (screenshot string, dump string)
}
