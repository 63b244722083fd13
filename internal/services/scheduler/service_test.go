package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// ---- fakes ------------------------------------------------------------

type fakeSheet struct {
	mu         sync.Mutex
	rows       []models.SheetRow
	updates    []string // "row/column=value"
	highlights []string // "row/column"
	listErr    error
}

func (f *fakeSheet) GetRow(ctx context.Context, row int) (*models.SheetRow, error) {
	for i := range f.rows {
		if f.rows[i].Row == row {
			return &f.rows[i], nil
		}
	}
	return &models.SheetRow{Row: row, Data: map[string]string{}}, nil
}

func (f *fakeSheet) ListRows(ctx context.Context, start, end int) ([]models.SheetRow, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rows, nil
}

func (f *fakeSheet) UpdateCell(ctx context.Context, row int, column, value string) error {
	// The real client gives up immediately on a cancelled context.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, sheetKey(row, column)+"="+value)
	return nil
}

func (f *fakeSheet) HighlightCell(row int, column, color string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highlights = append(f.highlights, sheetKey(row, column))
}

func (f *fakeSheet) HighlightRange(row int, columns []string, color string) {
	for _, c := range columns {
		f.HighlightCell(row, c, color)
	}
}

func (f *fakeSheet) updatesFor(row int, column string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := sheetKey(row, column) + "="
	var out []string
	for _, u := range f.updates {
		if strings.HasPrefix(u, prefix) {
			out = append(out, strings.TrimPrefix(u, prefix))
		}
	}
	return out
}

func sheetKey(row int, column string) string {
	return column + "/" + strconv.Itoa(row)
}

type fakePool struct {
	mu       sync.Mutex
	released []string
}

func (f *fakePool) Acquire(ctx context.Context, workerKey string) (*models.Session, error) {
	return models.NewSession(workerKey, "/tmp/"+workerKey, context.Background()), nil
}

func (f *fakePool) Release(workerKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, workerKey)
}

func (f *fakePool) ReleaseAll() {}

func (f *fakePool) Stats() map[string]interface{} { return nil }

type fakePipeline struct {
	run      func(job *models.Job, workerKey string) models.StageOutcome
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakePipeline) StageNames() []string { return []string{"authenticate"} }

func (f *fakePipeline) RunJob(ctx context.Context, session *models.Session, job *models.Job, observer interfaces.StageObserver) models.StageOutcome {
	current := f.inFlight.Add(1)
	for {
		max := f.maxSeen.Load()
		if current <= max || f.maxSeen.CompareAndSwap(max, current) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	outcome := models.OutcomeOKData("done", map[string]interface{}{"reference": "POL-9"})
	if f.run != nil {
		outcome = f.run(job, session.WorkerKey)
	}
	if observer != nil {
		observer("authenticate", outcome)
	}
	return outcome
}

func (f *fakePipeline) RunStage(ctx context.Context, session *models.Session, job *models.Job, stage string) (models.StageOutcome, error) {
	return models.OutcomeOK("ok"), nil
}

func (f *fakePipeline) CaptureFailure(ctx context.Context, session *models.Session, runID string) (string, string) {
	return "/tmp/shot.png", "## page dump"
}

type fakeRuns struct {
	mu        sync.Mutex
	stages    []models.StageResult
	completed map[string]models.RunRecord
}

func (f *fakeRuns) StartRun(job *models.Job, workerKey string) *models.RunRecord {
	return &models.RunRecord{ID: "run_test", JobRow: job.Row, WorkerKey: workerKey}
}

func (f *fakeRuns) SetStage(runID, stage string) {}

func (f *fakeRuns) RecordStage(runID string, result models.StageResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, result)
}

func (f *fakeRuns) CompleteRun(runID string, status models.RunStatus, errText, screenshot, dump string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completed == nil {
		f.completed = map[string]models.RunRecord{}
	}
	f.completed[runID] = models.RunRecord{ID: runID, Status: status, Error: errText, Screenshot: screenshot, FailureDump: dump}
}

func (f *fakeRuns) GetRun(runID string) (*models.RunRecord, bool) { return nil, false }

func (f *fakeRuns) ListRuns(limit int) []models.RunRecord { return nil }

func (f *fakeRuns) Close() error { return nil }

// ---- harness ----------------------------------------------------------

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Poller.BatchPause = 10 * time.Millisecond
	return cfg
}

func eligibleRow(row int, status string) models.SheetRow {
	return models.SheetRow{Row: row, Data: map[string]string{
		"B": status,
		"D": "Thandi", "E": "Mokoena", "F": "9001015800081", "G": "0821234567",
		"H": "2025-03-15", "I": "plan-a", "J": "150.00",
		"K": "Standard Bank", "L": "1234567890", "M": "savings", "N": "15",
	}}
}

func newTestService(cfg *common.Config, sheet *fakeSheet, pool *fakePool, pipe *fakePipeline, runs *fakeRuns) *service {
	return NewService(cfg, sheet, pool, pipe, runs, nil, arbor.NewLogger()).(*service)
}

// ---- tests ------------------------------------------------------------

func TestPartition(t *testing.T) {
	rows := make([]models.SheetRow, 5)
	batches := partition(rows, 3)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 2)

	batches = partition(rows, 1)
	assert.Len(t, batches, 5)

	assert.Empty(t, partition(nil, 3))
}

func TestEligibleRows(t *testing.T) {
	rows := []models.SheetRow{
		eligibleRow(2, "new"),
		eligibleRow(3, "NEW"),
		eligibleRow(4, " New "),
		eligibleRow(5, "Uploaded"),
		eligibleRow(6, "FAILED at report: no reference"),
		eligibleRow(7, ""),
	}

	got := eligibleRows(rows, "B", "new")
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Row)
	assert.Equal(t, 4, got[2].Row)
}

func TestFailureMarker(t *testing.T) {
	marker := failureMarker("file policy holder tab", "Invalid entry, must be a numeric value", 200)
	assert.Equal(t, "FAILED at file policy holder tab: Invalid entry, must be a numeric value", marker)

	long := failureMarker("report", strings.Repeat("x", 500), 200)
	assert.Len(t, []rune(long), 200)
	assert.True(t, strings.HasPrefix(long, "FAILED at report: "))
}

func TestBuildJobMapsColumnsAndDates(t *testing.T) {
	svc := newTestService(testConfig(), &fakeSheet{}, &fakePool{}, &fakePipeline{}, &fakeRuns{})

	row := eligibleRow(4, "new")
	job := svc.buildJob(&row)

	assert.Equal(t, 4, job.Row)
	assert.Equal(t, "Thandi", job.Field("name"))
	assert.Equal(t, "Standard Bank", job.Field("bank_name"))
	assert.Equal(t, "15/03/2025", job.Field("inception_date"), "sheet dates are localized at intake")
	assert.Equal(t, "Mokoena, Thandi", job.Name)
}

func TestSweepBoundsConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.Poller.Concurrency = 3

	sheet := &fakeSheet{rows: []models.SheetRow{
		eligibleRow(2, "new"), eligibleRow(3, "new"), eligibleRow(4, "new"),
		eligibleRow(5, "new"), eligibleRow(6, "new"),
	}}
	pipe := &fakePipeline{run: func(job *models.Job, workerKey string) models.StageOutcome {
		time.Sleep(30 * time.Millisecond)
		return models.OutcomeOKData("done", map[string]interface{}{"reference": "POL-9"})
	}}

	svc := newTestService(cfg, sheet, &fakePool{}, pipe, &fakeRuns{})
	svc.sweep()

	assert.LessOrEqual(t, pipe.maxSeen.Load(), int32(3), "in-flight jobs must never exceed concurrency")
	assert.Equal(t, int64(5), svc.processed.Load())

	for _, row := range []int{2, 3, 4, 5, 6} {
		updates := sheet.updatesFor(row, "B")
		require.Len(t, updates, 2, "row %d", row)
		assert.Equal(t, "Processing", updates[0])
		assert.Equal(t, "Uploaded", updates[1])
	}
}

func TestSweepSequentialWhenConcurrencyOne(t *testing.T) {
	cfg := testConfig()
	cfg.Poller.Concurrency = 1

	sheet := &fakeSheet{rows: []models.SheetRow{
		eligibleRow(2, "new"), eligibleRow(3, "new"), eligibleRow(4, "new"),
	}}
	pipe := &fakePipeline{run: func(job *models.Job, workerKey string) models.StageOutcome {
		time.Sleep(15 * time.Millisecond)
		assert.Equal(t, "w1", workerKey, "sequential mode uses a single worker slot")
		return models.OutcomeOKData("done", nil)
	}}

	svc := newTestService(cfg, sheet, &fakePool{}, pipe, &fakeRuns{})
	svc.sweep()

	assert.Equal(t, int32(1), pipe.maxSeen.Load())
	assert.Equal(t, int64(3), svc.processed.Load())
}

func TestSweepSkipsWhenPreviousStillRunning(t *testing.T) {
	svc := newTestService(testConfig(), &fakeSheet{}, &fakePool{}, &fakePipeline{}, &fakeRuns{})

	svc.sweeping.Store(true)
	svc.sweep()
	assert.Equal(t, int64(0), svc.sweeps.Load(), "a stacked sweep must be skipped, not queued")
}

func TestProcessJobFailureWriteback(t *testing.T) {
	cfg := testConfig()
	sheet := &fakeSheet{}
	pool := &fakePool{}
	runs := &fakeRuns{}
	pipe := &fakePipeline{run: func(job *models.Job, workerKey string) models.StageOutcome {
		outcome := models.OutcomeFail("portal rejected policy holder tab: Invalid entry, must be a numeric value")
		outcome.Data = map[string]interface{}{"stage": "file policy holder tab"}
		return outcome
	}}

	svc := newTestService(cfg, sheet, pool, pipe, runs)
	job := models.NewJob(7, map[string]string{"name": "Thandi"})

	outcome := svc.processJob(context.Background(), job, "w1")
	require.False(t, outcome.Success)

	updates := sheet.updatesFor(7, "B")
	require.Len(t, updates, 2)
	assert.Equal(t, "Processing", updates[0])
	assert.True(t, strings.HasPrefix(updates[1], "FAILED at file policy holder tab: "))

	record := runs.completed["run_test"]
	assert.Equal(t, models.RunStatusFailed, record.Status)
	assert.Equal(t, "/tmp/shot.png", record.Screenshot)
	assert.Equal(t, "## page dump", record.FailureDump)

	assert.Equal(t, []string{"w1"}, pool.released, "a failed job recycles its session")
}

func TestProcessRowRunsOnDefaultWorker(t *testing.T) {
	sheet := &fakeSheet{rows: []models.SheetRow{eligibleRow(9, "new")}}
	pipe := &fakePipeline{run: func(job *models.Job, workerKey string) models.StageOutcome {
		assert.Equal(t, interfaces.DefaultWorkerKey, workerKey)
		return models.OutcomeOKData("done", map[string]interface{}{"reference": "POL-42"})
	}}

	svc := newTestService(testConfig(), sheet, &fakePool{}, pipe, &fakeRuns{})
	outcome := svc.ProcessRow(context.Background(), 9)

	require.True(t, outcome.Success)
	assert.Equal(t, []string{"Uploaded"}, sheet.updatesFor(9, "B")[1:])
	assert.Equal(t, []string{"POL-42"}, sheet.updatesFor(9, "C"))
}

func TestStopDoesNotStrandInFlightWriteback(t *testing.T) {
	cfg := testConfig()
	cfg.Poller.Concurrency = 1

	sheet := &fakeSheet{rows: []models.SheetRow{eligibleRow(2, "new")}}
	runs := &fakeRuns{}

	entered := make(chan struct{})
	release := make(chan struct{})
	pipe := &fakePipeline{run: func(job *models.Job, workerKey string) models.StageOutcome {
		close(entered)
		<-release
		return models.OutcomeOKData("done", map[string]interface{}{"reference": "POL-9"})
	}}

	svc := newTestService(cfg, sheet, &fakePool{}, pipe, runs)
	require.NoError(t, svc.Start(time.Hour))

	// The initial sweep dispatches row 2; stop fires while it is in
	// flight, then the job completes.
	<-entered
	require.NoError(t, svc.Stop())
	close(release)

	require.Eventually(t, func() bool {
		updates := sheet.updatesFor(2, "B")
		return len(updates) == 2 && updates[1] == "Uploaded"
	}, 2*time.Second, 10*time.Millisecond, "the terminal status must land even after a stop")

	require.Eventually(t, func() bool {
		runs.mu.Lock()
		defer runs.mu.Unlock()
		return runs.completed["run_test"].Status == models.RunStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
}

func TestObserverRecordsStageDurations(t *testing.T) {
	sheet := &fakeSheet{}
	runs := &fakeRuns{}
	pipe := &fakePipeline{run: func(job *models.Job, workerKey string) models.StageOutcome {
		outcome := models.OutcomeOKData("done", map[string]interface{}{"reference": "POL-9"})
		outcome.Duration = 42 * time.Millisecond
		return outcome
	}}

	svc := newTestService(testConfig(), sheet, &fakePool{}, pipe, runs)
	outcome := svc.processJob(context.Background(), models.NewJob(3, nil), "w1")
	require.True(t, outcome.Success)

	require.Len(t, runs.stages, 1)
	assert.Equal(t, 42*time.Millisecond, runs.stages[0].Duration)
}

func TestStartStopLifecycle(t *testing.T) {
	svc := newTestService(testConfig(), &fakeSheet{}, &fakePool{}, &fakePipeline{}, &fakeRuns{})

	require.NoError(t, svc.Start(time.Hour))
	assert.True(t, svc.IsPolling())

	err := svc.Start(time.Hour)
	require.Error(t, err, "double start must be rejected")

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsPolling())
	require.NoError(t, svc.Stop(), "stop is idempotent")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Poller.Schedule = "not a schedule"

	svc := newTestService(cfg, &fakeSheet{}, &fakePool{}, &fakePipeline{}, &fakeRuns{})
	require.Error(t, svc.Start(0))
	assert.False(t, svc.IsPolling())
}
