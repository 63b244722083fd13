package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/scriba/internal/models"
)

// SchedulerService polls the sheet for eligible rows and dispatches them
// through the pipeline with bounded concurrency.
type SchedulerService interface {
	// Start begins polling. A non-zero interval overrides the configured
	// cron schedule with "@every <interval>".
	Start(interval time.Duration) error

	// Stop halts polling. A batch already in flight runs to completion;
	// the stop request is honored between batches and between jobs, never
	// mid-stage.
	Stop() error

	// IsPolling reports whether the poll schedule is active.
	IsPolling() bool

	// ProcessRow runs one sheet row through the pipeline immediately on
	// the default worker, outside the poll cycle.
	ProcessRow(ctx context.Context, row int) models.StageOutcome

	// Stats returns scheduler statistics for the status endpoint.
	Stats() map[string]interface{}
}
