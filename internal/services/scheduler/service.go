// -----------------------------------------------------------------------
// Scheduler - Polls the sheet for eligible rows, dispatches with bounded
// concurrency
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// Cell highlight colors written back to the sheet.
const (
	colorSuccess = "#d9ead3"
	colorFailure = "#f4cccc"
	colorWorking = "#fff2cc"
)

// writebackTimeout bounds a terminal status write once the job itself is
// over.
const writebackTimeout = 30 * time.Second

type service struct {
	cfg      *common.Config
	sheet    interfaces.SheetClient
	pool     interfaces.SessionPool
	pipeline interfaces.PipelineExecutor
	runs     interfaces.RunService
	status   interfaces.StatusService
	logger   arbor.ILogger

	mu         sync.Mutex
	cron       *cron.Cron
	pollCtx    context.Context
	pollCancel context.CancelFunc

	// Re-entrancy guard: a sweep outlasting the poll interval must not
	// stack a second sweep behind it.
	sweeping atomic.Bool

	sweeps    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	lastSweep atomic.Int64 // unix nanos, 0 = never
}

// NewService creates the job scheduler.
func NewService(cfg *common.Config, sheet interfaces.SheetClient, pool interfaces.SessionPool, pipeline interfaces.PipelineExecutor, runs interfaces.RunService, status interfaces.StatusService, logger arbor.ILogger) interfaces.SchedulerService {
	return &service{
		cfg:      cfg,
		sheet:    sheet,
		pool:     pool,
		pipeline: pipeline,
		runs:     runs,
		status:   status,
		logger:   logger,
	}
}

func (s *service) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("poller is already running")
	}

	schedule := s.cfg.Poller.Schedule
	if interval > 0 {
		schedule = fmt.Sprintf("@every %s", interval)
	}
	if err := common.ValidatePollSchedule(schedule); err != nil {
		return err
	}

	s.pollCtx, s.pollCancel = context.WithCancel(context.Background())

	c := cron.New()
	if _, err := c.AddFunc(schedule, s.sweep); err != nil {
		s.pollCancel()
		s.pollCtx, s.pollCancel = nil, nil
		return fmt.Errorf("failed to schedule poll: %w", err)
	}
	c.Start()
	s.cron = c

	s.setState(interfaces.StatePolling, map[string]interface{}{"schedule": schedule})
	s.logger.Info().Str("schedule", schedule).Msg("Poller started")

	// First sweep immediately; the cron entry only fires after one full
	// interval.
	common.SafeGo(s.logger, "initial-sweep", s.sweep)

	return nil
}

func (s *service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	s.cron.Stop()
	s.cron = nil
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCtx, s.pollCancel = nil, nil
	}

	s.setState(interfaces.StateIdle, nil)
	s.logger.Info().Msg("Poller stopped")
	return nil
}

func (s *service) IsPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

func (s *service) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"polling":        s.IsPolling(),
		"sweeps":         s.sweeps.Load(),
		"jobs_processed": s.processed.Load(),
		"jobs_failed":    s.failed.Load(),
	}
	if nanos := s.lastSweep.Load(); nanos > 0 {
		stats["last_sweep"] = time.Unix(0, nanos).Format(time.RFC3339)
	}
	return stats
}

// ProcessRow runs one row immediately on the default worker, outside the
// poll cycle. Eligibility is not checked; a manual request means the
// operator wants the row processed.
func (s *service) ProcessRow(ctx context.Context, row int) models.StageOutcome {
	sheetRow, err := s.sheet.GetRow(ctx, row)
	if err != nil {
		return models.OutcomeFailf("failed to fetch row %d: %v", row, err)
	}

	job := s.buildJob(sheetRow)
	return s.processJob(ctx, job, interfaces.DefaultWorkerKey)
}

// sweep is one poll cycle: list, filter, dispatch in batches.
func (s *service) sweep() {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("Previous sweep still running, skipping")
		return
	}
	defer s.sweeping.Store(false)

	s.mu.Lock()
	ctx := s.pollCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.sweeps.Add(1)
	s.lastSweep.Store(time.Now().UnixNano())

	// Row 1 is the header.
	rows, err := s.sheet.ListRows(ctx, 2, 0)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Sweep failed to list rows")
		return
	}

	eligible := eligibleRows(rows, s.cfg.Sheet.StatusColumn, s.cfg.Poller.EligibleStatus)
	if len(eligible) == 0 {
		s.logger.Debug().Int("rows", len(rows)).Msg("No eligible rows")
		return
	}

	s.logger.Info().
		Int("eligible", len(eligible)).
		Int("concurrency", s.concurrency()).
		Msg("Dispatching eligible rows")

	s.setState(interfaces.StateProcessing, map[string]interface{}{"jobs": len(eligible)})
	defer s.restoreStateAfterSweep()

	batches := partition(eligible, s.concurrency())
	for i, batch := range batches {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Stop requested, abandoning remaining batches")
			return
		}

		var wg sync.WaitGroup
		for slot, row := range batch {
			job := s.buildJob(&row)
			workerKey := fmt.Sprintf("w%d", slot+1)

			wg.Add(1)
			go func() {
				defer wg.Done()
				s.processJob(ctx, job, workerKey)
			}()
		}
		wg.Wait()

		if i < len(batches)-1 && s.cfg.Poller.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.Poller.BatchPause):
			}
		}
	}
}

// processJob drives one job end to end: run record, status write-back,
// session acquisition, pipeline, terminal write-back and artifacts.
func (s *service) processJob(ctx context.Context, job *models.Job, workerKey string) models.StageOutcome {
	run := s.runs.StartRun(job, workerKey)
	s.processed.Add(1)

	if err := s.sheet.UpdateCell(ctx, job.Row, s.cfg.Sheet.StatusColumn, s.cfg.Poller.ProcessingStatus); err != nil {
		s.logger.Warn().Err(err).Int("row", job.Row).Msg("Failed to mark row as processing")
	}
	s.sheet.HighlightCell(job.Row, s.cfg.Sheet.StatusColumn, colorWorking)

	session, err := s.pool.Acquire(ctx, workerKey)
	if err != nil {
		outcome := models.OutcomeFailf("browser session unavailable: %v", err)
		s.finishFailed(job, run.ID, "session launch", outcome.Message, "", "")
		return outcome
	}

	observer := func(stage string, outcome models.StageOutcome) {
		s.runs.SetStage(run.ID, stage)
		s.runs.RecordStage(run.ID, models.StageResult{
			Stage:    stage,
			Success:  outcome.Success,
			Message:  outcome.Message,
			Duration: outcome.Duration,
		})
		if !outcome.Success {
			if columns := s.stageColumns(stage); len(columns) > 0 {
				s.sheet.HighlightRange(job.Row, columns, colorFailure)
			}
		}
	}

	outcome := s.pipeline.RunJob(ctx, session, job, observer)
	if outcome.Success {
		s.finishSucceeded(job, run.ID, outcome)
		return outcome
	}

	stageName, _ := outcome.Data["stage"].(string)
	if stageName == "" {
		stageName = "pipeline"
	}

	// Artifacts come off the live page before the session is recycled.
	// Capture runs against the session context, not the poll context: a
	// stop request must not cost the diagnostics of the job it interrupted.
	screenshot, dump := s.pipeline.CaptureFailure(context.Background(), session, run.ID)
	s.finishFailed(job, run.ID, stageName, outcome.Message, screenshot, dump)

	// A failed job leaves the form in an unknown state; recycle the
	// session so the next job starts clean.
	s.pool.Release(workerKey)

	return outcome
}

// finishSucceeded records the terminal success state. The write-back runs
// on its own context, independent of the poll context: a job already
// dispatched runs to completion, and completion includes recording its
// outcome even when a stop request cancelled the poll mid-flight.
func (s *service) finishSucceeded(job *models.Job, runID string, outcome models.StageOutcome) {
	ctx, cancel := writebackContext()
	defer cancel()

	reference, _ := outcome.Data["reference"].(string)

	if err := s.sheet.UpdateCell(ctx, job.Row, s.cfg.Sheet.StatusColumn, s.cfg.Poller.SuccessStatus); err != nil {
		s.logger.Warn().Err(err).Int("row", job.Row).Msg("Failed to write success status")
	}
	if reference != "" && s.cfg.Sheet.ResultColumn != "" {
		if err := s.sheet.UpdateCell(ctx, job.Row, s.cfg.Sheet.ResultColumn, reference); err != nil {
			s.logger.Warn().Err(err).Int("row", job.Row).Msg("Failed to write portal reference")
		}
	}
	s.sheet.HighlightCell(job.Row, s.cfg.Sheet.StatusColumn, colorSuccess)

	s.runs.CompleteRun(runID, models.RunStatusSuccess, "", "", "")

	s.logger.Info().
		Str("job", job.Name).
		Int("row", job.Row).
		Str("reference", reference).
		Msg("Job completed")
}

// finishFailed records the terminal failure state. Same detached context
// as finishSucceeded: the FAILED marker must land even after a stop, or
// the row would sit at the processing marker forever.
func (s *service) finishFailed(job *models.Job, runID, stage, message, screenshot, dump string) {
	ctx, cancel := writebackContext()
	defer cancel()

	s.failed.Add(1)

	marker := failureMarker(stage, message, s.cfg.Poller.ErrorLimit)
	if err := s.sheet.UpdateCell(ctx, job.Row, s.cfg.Sheet.StatusColumn, marker); err != nil {
		s.logger.Warn().Err(err).Int("row", job.Row).Msg("Failed to write failure marker")
	}
	s.sheet.HighlightCell(job.Row, s.cfg.Sheet.StatusColumn, colorFailure)

	s.runs.CompleteRun(runID, models.RunStatusFailed, marker, screenshot, dump)

	s.logger.Warn().
		Str("job", job.Name).
		Int("row", job.Row).
		Str("stage", stage).
		Str("message", message).
		Msg("Job failed")
}

// buildJob maps a sheet row's column letters to logical field names.
func (s *service) buildJob(row *models.SheetRow) *models.Job {
	fields := make(map[string]string, len(s.cfg.Sheet.Columns))
	for name, column := range s.cfg.Sheet.Columns {
		fields[name] = strings.TrimSpace(row.Cell(column))
	}
	if raw, ok := fields["inception_date"]; ok && raw != "" {
		fields["inception_date"] = common.NormalizeDate(raw)
	}
	return models.NewJob(row.Row, fields)
}

// stageColumns maps a failed stage to the sheet columns its fields came
// from, for failure highlighting.
func (s *service) stageColumns(stage string) []string {
	var names []string
	switch {
	case strings.Contains(stage, "policy holder"):
		names = []string{"name", "surname", "id_number", "phone"}
	case strings.Contains(stage, "banking"):
		names = []string{"inception_date", "plan", "premium", "bank_name", "account_number", "account_type", "debit_day"}
	case strings.Contains(stage, "members"):
		names = []string{"members"}
	default:
		return nil
	}

	var columns []string
	for _, name := range names {
		if col, ok := s.cfg.Sheet.Columns[name]; ok {
			columns = append(columns, col)
		}
	}
	return columns
}

// writebackContext returns a context for terminal sheet writes, detached
// from the poll context.
func writebackContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writebackTimeout)
}

func (s *service) concurrency() int {
	if s.cfg.Poller.Concurrency < 1 {
		return 1
	}
	return s.cfg.Poller.Concurrency
}

func (s *service) setState(state interfaces.AppState, metadata map[string]interface{}) {
	if s.status != nil {
		s.status.SetState(state, metadata)
	}
}

// restoreStateAfterSweep returns to polling when the schedule is still
// active, idle when it was stopped mid-sweep.
func (s *service) restoreStateAfterSweep() {
	if s.IsPolling() {
		s.setState(interfaces.StatePolling, nil)
	} else {
		s.setState(interfaces.StateIdle, nil)
	}
}

// eligibleRows filters to rows whose status cell matches the eligible
// marker. Comparison is case-insensitive; operators type the marker by
// hand.
func eligibleRows(rows []models.SheetRow, statusColumn, eligibleStatus string) []models.SheetRow {
	want := strings.ToLower(strings.TrimSpace(eligibleStatus))
	var out []models.SheetRow
	for _, row := range rows {
		status := strings.ToLower(strings.TrimSpace(row.Cell(statusColumn)))
		if status == want && want != "" {
			out = append(out, row)
		}
	}
	return out
}

// partition splits rows into batches of at most size.
func partition(rows []models.SheetRow, size int) [][]models.SheetRow {
	if size < 1 {
		size = 1
	}
	var batches [][]models.SheetRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}

// failureMarker formats the terminal failure text written to the status
// cell, truncated so it stays readable in a spreadsheet cell.
func failureMarker(stage, message string, limit int) string {
	marker := fmt.Sprintf("FAILED at %s: %s", stage, message)
	if limit <= 0 {
		limit = 200
	}
	runes := []rune(marker)
	if len(runes) <= limit {
		return marker
	}
	return string(runes[:limit])
}
