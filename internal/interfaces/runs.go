package interfaces

import "github.com/ternarybob/scriba/internal/models"

// RunService owns run records: an in-memory ring of recent runs plus
// persistence for finished ones. Records are purely observational; control
// flow never reads them back.
type RunService interface {
	// StartRun creates a running record for a dispatched job.
	StartRun(job *models.Job, workerKey string) *models.RunRecord

	// SetStage advances the record's current stage.
	SetStage(runID, stage string)

	// RecordStage appends one completed stage result.
	RecordStage(runID string, result models.StageResult)

	// CompleteRun finalizes the record with a terminal status and optional
	// failure artifacts.
	CompleteRun(runID string, status models.RunStatus, errText, screenshot, dump string)

	// GetRun returns one record by ID.
	GetRun(runID string) (*models.RunRecord, bool)

	// ListRuns returns recent records, newest first, merged from the ring
	// and the persistent store.
	ListRuns(limit int) []models.RunRecord

	// Close flushes and closes the backing store.
	Close() error
}
