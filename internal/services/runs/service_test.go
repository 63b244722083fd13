package runs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(nil, nil, arbor.NewLogger()).(*Service)
}

func testJob(row int) *models.Job {
	return models.NewJob(row, map[string]string{"name": "Thandi", "surname": "Mokoena"})
}

func TestStartAndCompleteRun(t *testing.T) {
	svc := newTestService(t)

	record := svc.StartRun(testJob(5), "w1")
	require.NotEmpty(t, record.ID)
	assert.Equal(t, models.RunStatusRunning, record.Status)
	assert.Equal(t, 5, record.JobRow)
	assert.Equal(t, "w1", record.WorkerKey)
	assert.False(t, record.Finished())

	svc.SetStage(record.ID, "authenticate")
	svc.RecordStage(record.ID, models.StageResult{
		Stage:    "authenticate",
		Success:  true,
		Duration: time.Second,
	})

	svc.CompleteRun(record.ID, models.RunStatusFailed, "FAILED at file policy tab: invalid entry", "shot.png", "")

	got, ok := svc.GetRun(record.ID)
	require.True(t, ok)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "authenticate", got.Stage)
	assert.Equal(t, "shot.png", got.Screenshot)
	assert.True(t, got.Finished())
	require.Len(t, got.Stages, 1)
	assert.True(t, got.Stages[0].Success)
}

func TestGetRunCopies(t *testing.T) {
	svc := newTestService(t)
	record := svc.StartRun(testJob(1), "default")

	got, ok := svc.GetRun(record.ID)
	require.True(t, ok)
	got.Stage = "tampered"

	again, _ := svc.GetRun(record.ID)
	assert.NotEqual(t, "tampered", again.Stage)
}

func TestListRunsNewestFirst(t *testing.T) {
	svc := newTestService(t)

	first := svc.StartRun(testJob(1), "w1")
	time.Sleep(2 * time.Millisecond)
	second := svc.StartRun(testJob(2), "w2")

	listed := svc.ListRuns(10)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].ID)
	assert.Equal(t, first.ID, listed[1].ID)
}

func TestRingEviction(t *testing.T) {
	svc := newTestService(t)

	var firstID string
	for i := 0; i < ringSize+10; i++ {
		record := svc.StartRun(testJob(i+1), fmt.Sprintf("w%d", i%3+1))
		if i == 0 {
			firstID = record.ID
		}
	}

	listed := svc.ListRuns(0)
	assert.Len(t, listed, ringSize)

	_, ok := svc.GetRun(firstID)
	assert.False(t, ok, "evicted run should be gone without a store")
}

func TestCompleteUnknownRun(t *testing.T) {
	svc := newTestService(t)
	// Must not panic or create a record.
	svc.CompleteRun("run_missing", models.RunStatusSuccess, "", "", "")
	assert.Empty(t, svc.ListRuns(0))
}
